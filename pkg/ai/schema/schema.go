// Package schema validates structured model output against a declared
// shape.
//
// Model providers return JSON text; the gateway parses it and hands the
// candidate value here. Validation either produces the typed value or a
// list of violations with JSON-path-style locations, so callers can decide
// whether to surface the failure or re-prompt.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Type is the expected JSON type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Field declares the constraints on one value.
type Field struct {
	// Type is the expected JSON type.
	Type Type

	// Required fails validation when the field is absent from its
	// enclosing object.
	Required bool

	// Enum restricts a string field to a fixed set of values.
	Enum []string

	// MinLength and MaxLength bound a string's length. Zero means
	// unbounded.
	MinLength int
	MaxLength int

	// Minimum and Maximum bound a numeric field inclusively.
	Minimum *float64
	Maximum *float64

	// Items declares the element shape for array fields.
	Items *Field

	// Fields declares the member shapes for object fields.
	Fields map[string]Field
}

// Schema declares the shape of a structured response: a JSON object with
// the given fields.
type Schema struct {
	Fields map[string]Field

	// AllowUnknown permits members not declared in Fields. Unknown
	// members are dropped from the validated value either way.
	AllowUnknown bool
}

// Violation is one validation failure at a specific location.
type Violation struct {
	// Path locates the failing value, e.g. "skills[2].level".
	Path string

	// Message describes the failure.
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// FormatViolations renders violations as a single line for error messages
// and ledger entries.
func FormatViolations(violations []Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// Validate checks a candidate value against the schema. On success it
// returns the validated object with unknown members dropped; on failure it
// returns the collected violations.
func (s *Schema) Validate(value any) (map[string]any, []Violation) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, []Violation{{Path: "$", Message: fmt.Sprintf("expected object, got %s", typeName(value))}}
	}

	var violations []Violation
	out := make(map[string]any, len(s.Fields))

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s.Fields[name]
		raw, present := obj[name]
		if !present {
			if field.Required {
				violations = append(violations, Violation{
					Path:    name,
					Message: "required field is missing",
				})
			}
			continue
		}

		validated, vs := validateField(name, field, raw)
		if len(vs) > 0 {
			violations = append(violations, vs...)
			continue
		}
		out[name] = validated
	}

	if !s.AllowUnknown {
		for name := range obj {
			if _, declared := s.Fields[name]; !declared {
				violations = append(violations, Violation{
					Path:    name,
					Message: "unknown field",
				})
			}
		}
	}

	if len(violations) > 0 {
		sort.Slice(violations, func(i, j int) bool { return violations[i].Path < violations[j].Path })
		return nil, violations
	}
	return out, nil
}

// ValidateJSON parses raw JSON and validates it. A parse failure is
// reported as a single violation at the document root.
func (s *Schema) ValidateJSON(data []byte) (map[string]any, []Violation) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, []Violation{{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	return s.Validate(value)
}

func validateField(path string, field Field, raw any) (any, []Violation) {
	switch field.Type {
	case TypeString:
		return validateString(path, field, raw)
	case TypeNumber, TypeInteger:
		return validateNumber(path, field, raw)
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("expected boolean, got %s", typeName(raw))}}
	case TypeArray:
		return validateArray(path, field, raw)
	case TypeObject:
		return validateObject(path, field, raw)
	default:
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("schema declares unsupported type %q", field.Type)}}
	}
}

func validateString(path string, field Field, raw any) (any, []Violation) {
	str, ok := raw.(string)
	if !ok {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("expected string, got %s", typeName(raw))}}
	}

	if field.MinLength > 0 && len(str) < field.MinLength {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("length %d below minimum %d", len(str), field.MinLength)}}
	}
	if field.MaxLength > 0 && len(str) > field.MaxLength {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("length %d above maximum %d", len(str), field.MaxLength)}}
	}
	if len(field.Enum) > 0 {
		for _, allowed := range field.Enum {
			if str == allowed {
				return str, nil
			}
		}
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("%q is not one of %v", str, field.Enum)}}
	}
	return str, nil
}

func validateNumber(path string, field Field, raw any) (any, []Violation) {
	num, ok := raw.(float64)
	if !ok {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("expected %s, got %s", field.Type, typeName(raw))}}
	}

	if field.Type == TypeInteger && num != float64(int64(num)) {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("expected integer, got %v", num)}}
	}
	if field.Minimum != nil && num < *field.Minimum {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("%v below minimum %v", num, *field.Minimum)}}
	}
	if field.Maximum != nil && num > *field.Maximum {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("%v above maximum %v", num, *field.Maximum)}}
	}
	if field.Type == TypeInteger {
		return int64(num), nil
	}
	return num, nil
}

func validateArray(path string, field Field, raw any) (any, []Violation) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, []Violation{{Path: path, Message: fmt.Sprintf("expected array, got %s", typeName(raw))}}
	}
	if field.Items == nil {
		return arr, nil
	}

	var violations []Violation
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		validated, vs := validateField(fmt.Sprintf("%s[%d]", path, i), *field.Items, item)
		if len(vs) > 0 {
			violations = append(violations, vs...)
			continue
		}
		out = append(out, validated)
	}
	if len(violations) > 0 {
		return nil, violations
	}
	return out, nil
}

func validateObject(path string, field Field, raw any) (any, []Violation) {
	nested := &Schema{Fields: field.Fields, AllowUnknown: true}
	obj, vs := nested.Validate(raw)
	if len(vs) > 0 {
		prefixed := make([]Violation, len(vs))
		for i, v := range vs {
			p := v.Path
			if p == "$" {
				p = path
			} else {
				p = path + "." + p
			}
			prefixed[i] = Violation{Path: p, Message: v.Message}
		}
		return nil, prefixed
	}
	return obj, nil
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
