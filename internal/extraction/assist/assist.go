// Package assist asks a language model for identity fields the pattern rules
// missed. Its output only fills gaps; it never replaces a rule-based field.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"attestor/internal/document"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash-lite"

const promptTemplate = `Extract identity fields from the OCR text of an identity document and return one JSON object.

Rules:
1. Use only these keys: name, date_of_birth, age, email, phone, gender, address, national_id, tax_id, postal_code.
2. Use null for any field that does not appear in the text. Never guess.
3. Return only the JSON object with no commentary and no code fences.

OCR text:
"""
%s
"""`

// Generator returns the model's raw text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Source extracts fields with a Generator.
type Source struct {
	gen    Generator
	logger *slog.Logger
}

// NewSource wraps gen.
func NewSource(gen Generator, logger *slog.Logger) *Source {
	return &Source{gen: gen, logger: logger}
}

// Extract never fails. A model or parse failure yields an empty set.
func (s *Source) Extract(ctx context.Context, text string) document.FieldSet {
	if strings.TrimSpace(text) == "" {
		return document.NewFieldSet()
	}
	out, err := s.gen.Generate(ctx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		s.warn(ctx, "assisted extraction failed", err)
		return document.NewFieldSet()
	}
	set, err := ParseResponse(out)
	if err != nil {
		s.warn(ctx, "assisted extraction returned unusable output", err)
		return document.NewFieldSet()
	}
	return set
}

func (s *Source) warn(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "error", err)
	}
}

// ParseResponse reads the model's JSON object, tolerating code fences and
// surrounding prose. Unknown keys and nulls are skipped.
func ParseResponse(out string) (document.FieldSet, error) {
	body := firstObject(stripFences(out))
	if body == "" {
		return document.FieldSet{}, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return document.FieldSet{}, fmt.Errorf("decode response: %w", err)
	}

	fields := make([]document.Field, 0, len(raw))
	for key, v := range raw {
		name, err := document.ParseFieldName(key)
		if err != nil || v == nil {
			continue
		}
		var value string
		switch t := v.(type) {
		case string:
			value = strings.TrimSpace(t)
		case json.Number:
			value = t.String()
		default:
			continue
		}
		if value == "" {
			continue
		}
		normalized := value
		if name.DateLike() {
			normalized = document.NormalizeDate(value)
		}
		fields = append(fields, document.Field{Name: name, Raw: value, Normalized: normalized})
	}
	return document.NewFieldSet(fields...), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < 20 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate requests a JSON response and concatenates the text parts.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// Close releases the client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
