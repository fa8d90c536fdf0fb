package document

import (
	"encoding/json"
	"strings"

	dErrors "attestor/pkg/domain-errors"
)

// Field is one extracted value. Normalized equals Raw when no normalization applies.
type Field struct {
	Name       FieldName
	Raw        string
	Normalized string
}

// Value is the representation downstream stages compare and issue.
func (f Field) Value() string {
	if f.Normalized != "" {
		return f.Normalized
	}
	return f.Raw
}

// FieldSet is an immutable set of extracted fields keyed by vocabulary name.
// Absence of a field is a valid state.
type FieldSet struct {
	fields map[FieldName]Field
}

// NewFieldSet builds a set. The first field given for a name wins.
func NewFieldSet(fields ...Field) FieldSet {
	m := make(map[FieldName]Field, len(fields))
	for _, f := range fields {
		if !f.Name.Valid() {
			continue
		}
		if _, exists := m[f.Name]; exists {
			continue
		}
		m[f.Name] = f
	}
	return FieldSet{fields: m}
}

// Get returns the field for name.
func (s FieldSet) Get(name FieldName) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Has reports whether name is present.
func (s FieldSet) Has(name FieldName) bool {
	_, ok := s.fields[name]
	return ok
}

// Len is the number of present fields.
func (s FieldSet) Len() int {
	return len(s.fields)
}

// Names lists present fields in canonical order.
func (s FieldSet) Names() []FieldName {
	out := make([]FieldName, 0, len(s.fields))
	for name := range s.fields {
		out = append(out, name)
	}
	SortFields(out)
	return out
}

// Fields lists present fields in canonical order.
func (s FieldSet) Fields() []Field {
	names := s.Names()
	out := make([]Field, len(names))
	for i, name := range names {
		out[i] = s.fields[name]
	}
	return out
}

// Merge returns a new set holding s plus the fields of other whose names are
// not already present in s. Existing values are never overwritten.
func (s FieldSet) Merge(other FieldSet) FieldSet {
	merged := make([]Field, 0, s.Len()+other.Len())
	merged = append(merged, s.Fields()...)
	merged = append(merged, other.Fields()...)
	return NewFieldSet(merged...)
}

// Values renders the set as submitted-style values, keyed by name.
func (s FieldSet) Values() Values {
	m := make(map[FieldName]string, len(s.fields))
	for name, f := range s.fields {
		m[name] = f.Value()
	}
	return Values{values: m}
}

// MarshalJSON renders canonical names to normalized values.
func (s FieldSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// Values is a field-name to value mapping supplied by a caller, or derived
// from an extracted set. Whitespace-only values count as absent.
type Values struct {
	values map[FieldName]string
}

// NewValues validates every key against the vocabulary. Unknown names are an
// error rather than being dropped.
func NewValues(raw map[string]string) (Values, error) {
	m := make(map[FieldName]string, len(raw))
	for key, value := range raw {
		name, err := ParseFieldName(key)
		if err != nil {
			return Values{}, err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, dup := m[name]; dup {
			return Values{}, dErrors.Newf(dErrors.CodeInvalidInput, "field %q supplied more than once", name)
		}
		m[name] = value
	}
	return Values{values: m}, nil
}

// ValuesOf builds Values from typed keys.
func ValuesOf(m map[FieldName]string) Values {
	out := make(map[FieldName]string, len(m))
	for name, value := range m {
		if name.Valid() && strings.TrimSpace(value) != "" {
			out[name] = value
		}
	}
	return Values{values: out}
}

// Get returns the value for name.
func (v Values) Get(name FieldName) (string, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Len is the number of present values.
func (v Values) Len() int {
	return len(v.values)
}

// Names lists present fields in canonical order.
func (v Values) Names() []FieldName {
	out := make([]FieldName, 0, len(v.values))
	for name := range v.values {
		out = append(out, name)
	}
	SortFields(out)
	return out
}

// Map returns a copy keyed by canonical name.
func (v Values) Map() map[string]string {
	out := make(map[string]string, len(v.values))
	for name, value := range v.values {
		out[name.String()] = value
	}
	return out
}

// MarshalJSON renders canonical names to values.
func (v Values) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON applies the same validation as NewValues.
func (v *Values) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "fields must be an object of strings")
	}
	parsed, err := NewValues(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
