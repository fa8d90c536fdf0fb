package credential

import (
	"bytes"
	"encoding/json"
)

// CanonicalizationV1 identifies the canonical form below. Any change to key
// ordering, escaping or whitespace needs a new identifier.
//
// v1: proof removed, UTF-8 JSON, object keys sorted by byte value at every
// level, no insignificant whitespace, no HTML escaping (U+2028 and U+2029 are
// still escaped), numbers as written.
const CanonicalizationV1 = "sorted-compact-json/v1"

// Canonicalize returns the exact bytes that are signed and verified.
func Canonicalize(c Credential) ([]byte, error) {
	return canonicalJSON(c.WithoutProof())
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	// Round trip through generic values so every object becomes a map, which
	// encoding/json writes with sorted keys.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
