package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
)

// FieldType is the JSON type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field describes one property. Every field of an object is required.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Enum        []string
	Items       *Field  // element shape, arrays only
	Fields      []Field // properties, objects only
}

// Schema is the output contract passed to a Provider with a request and
// enforced on the response by Decode.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// Root returns the schema as a top-level object field.
func (s *Schema) Root() Field {
	return Field{Type: TypeObject, Description: s.Description, Fields: s.Fields}
}

// JSONSchema renders the contract as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	return s.Root().JSONSchema()
}

// JSONSchema renders the field as a JSON Schema fragment.
func (f Field) JSONSchema() map[string]any {
	m := map[string]any{"type": string(f.Type)}
	if f.Description != "" {
		m["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		m["enum"] = slices.Clone(f.Enum)
	}
	switch f.Type {
	case TypeArray:
		if f.Items != nil {
			m["items"] = f.Items.JSONSchema()
		}
	case TypeObject:
		props := make(map[string]any, len(f.Fields))
		required := make([]string, 0, len(f.Fields))
		for _, c := range f.Fields {
			props[c.Name] = c.JSONSchema()
			required = append(required, c.Name)
		}
		m["properties"] = props
		m["required"] = required
	}
	return m
}

// Validate checks raw against the schema: well-formed JSON, every required
// field present, every type and enum respected. Unknown extra fields are ignored.
func (s *Schema) Validate(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return errors.New("response is not valid JSON")
	}
	var errs []error
	s.Root().validate("$", gjson.ParseBytes(raw), &errs)
	return errors.Join(errs...)
}

// Decode validates raw and unmarshals it into out. Any violation is reported
// as ErrMalformedResponse.
func (s *Schema) Decode(raw []byte, out any) error {
	if err := s.Validate(raw); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, s.Name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, s.Name, err)
	}
	return nil
}

func (f Field) validate(path string, v gjson.Result, errs *[]error) {
	switch f.Type {
	case TypeString:
		if v.Type != gjson.String {
			*errs = append(*errs, fmt.Errorf("%s: want string, got %s", path, kindOf(v)))
			return
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, v.Str) {
			*errs = append(*errs, fmt.Errorf("%s: %q is not one of %v", path, v.Str, f.Enum))
		}
	case TypeBoolean:
		if !v.IsBool() {
			*errs = append(*errs, fmt.Errorf("%s: want boolean, got %s", path, kindOf(v)))
		}
	case TypeArray:
		if !v.IsArray() {
			*errs = append(*errs, fmt.Errorf("%s: want array, got %s", path, kindOf(v)))
			return
		}
		if f.Items == nil {
			return
		}
		for i, el := range v.Array() {
			f.Items.validate(fmt.Sprintf("%s[%d]", path, i), el, errs)
		}
	case TypeObject:
		if !v.IsObject() {
			*errs = append(*errs, fmt.Errorf("%s: want object, got %s", path, kindOf(v)))
			return
		}
		present := make(map[string]gjson.Result)
		v.ForEach(func(key, value gjson.Result) bool {
			present[key.Str] = value
			return true
		})
		for _, c := range f.Fields {
			cv, ok := present[c.Name]
			if !ok {
				*errs = append(*errs, fmt.Errorf("%s.%s: missing required field", path, c.Name))
				continue
			}
			c.validate(path+"."+c.Name, cv, errs)
		}
	}
}

func kindOf(v gjson.Result) string {
	switch {
	case !v.Exists():
		return "nothing"
	case v.IsObject():
		return "object"
	case v.IsArray():
		return "array"
	case v.IsBool():
		return "boolean"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.Null:
		return "null"
	}
	return "unknown"
}
