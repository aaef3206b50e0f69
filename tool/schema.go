package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// schemaFor reflects a JSON schema for T. Property names follow json tags,
// descriptions come from `jsonschema:"..."` tags and fields without
// omitempty are required.
func schemaFor[T any]() (map[string]any, error) {
	s, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("reflect schema: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// compileSchema turns a raw schema map into a resolved validator. A nil or
// empty schema accepts any object.
func compileSchema(raw map[string]any) (*jsonschema.Resolved, error) {
	if len(raw) == 0 {
		raw = map[string]any{"type": "object"}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return s.Resolve(nil)
}

// normalizeArgs round-trips args through JSON so validation always sees the
// JSON value model (float64 numbers, []any, map[string]any).
func normalizeArgs(args map[string]any) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
