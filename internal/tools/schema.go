package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema helpers for building JSON Schema objects.

type props = map[string]*jsonschema.Schema

func object(properties props, required ...string) *jsonschema.Schema {
	if properties == nil {
		properties = props{}
	}
	return &jsonschema.Schema{Type: "object", Properties: properties, Required: required}
}

func propStr(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

// propID is a required identifier; an empty string would address the
// collection instead of the item.
func propID(desc string) *jsonschema.Schema {
	s := propStr(desc)
	s.MinLength = jsonschema.Ptr(1)
	return s
}

func propInt(desc string, lo, hi float64) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc, Minimum: &lo, Maximum: &hi}
}

func propEnum(desc string, values ...string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Description: desc, Enum: enum}
}

func propObj(desc string, properties props, required ...string) *jsonschema.Schema {
	s := object(properties, required...)
	s.Description = desc
	return s
}

func propArr(desc string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: items}
}

// FieldError is one offending argument.
type FieldError struct {
	Path   string
	Reason string
}

// ValidationError lists every argument that failed the tool schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("Invalid arguments:")
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "\n- %s: %s", f.Path, f.Reason)
	}
	return b.String()
}

const rootPath = "(root)"

// validate decodes raw and checks it against the tool schema. The walk
// reports every offending field; the resolved schema then catches any
// keyword the walk does not cover.
func validate(t *Tool, raw json.RawMessage) (map[string]any, *ValidationError) {
	var decoded any = map[string]any{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return nil, &ValidationError{Fields: []FieldError{{Path: rootPath, Reason: "malformed JSON"}}}
		}
	}

	var errs []FieldError
	checkValue(rootPath, t.Schema, decoded, &errs)
	if len(errs) == 0 && t.resolved != nil {
		if err := t.resolved.Validate(decoded); err != nil {
			errs = append(errs, FieldError{Path: rootPath, Reason: err.Error()})
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return decoded.(map[string]any), nil
}

func checkValue(path string, s *jsonschema.Schema, v any, errs *[]FieldError) {
	if s == nil {
		return
	}
	if s.Type != "" && !typeMatches(s.Type, v) {
		*errs = append(*errs, FieldError{
			Path:   path,
			Reason: fmt.Sprintf("expected %s, received %s", s.Type, jsonType(v)),
		})
		return
	}

	switch val := v.(type) {
	case map[string]any:
		for _, name := range s.Required {
			if _, ok := val[name]; !ok {
				*errs = append(*errs, FieldError{Path: join(path, name), Reason: "required"})
			}
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if pv, ok := val[name]; ok {
				checkValue(join(path, name), s.Properties[name], pv, errs)
			}
		}
	case []any:
		for i, item := range val {
			checkValue(path+"["+strconv.Itoa(i)+"]", s.Items, item, errs)
		}
	case string:
		if s.MinLength != nil && utf8.RuneCountInString(val) < *s.MinLength {
			reason := fmt.Sprintf("must be at least %d characters", *s.MinLength)
			if *s.MinLength == 1 {
				reason = "must not be empty"
			}
			*errs = append(*errs, FieldError{Path: path, Reason: reason})
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, any(val)) {
			*errs = append(*errs, FieldError{Path: path, Reason: "must be one of: " + enumList(s.Enum)})
		}
	case float64:
		if s.Minimum != nil && val < *s.Minimum {
			*errs = append(*errs, FieldError{Path: path, Reason: fmt.Sprintf("must be >= %g", *s.Minimum)})
		}
		if s.Maximum != nil && val > *s.Maximum {
			*errs = append(*errs, FieldError{Path: path, Reason: fmt.Sprintf("must be <= %g", *s.Maximum)})
		}
	}
}

func join(path, name string) string {
	if path == rootPath {
		return name
	}
	return path + "." + name
}

func typeMatches(want string, v any) bool {
	switch want {
	case "integer":
		f, ok := v.(float64)
		return ok && f == math.Trunc(f)
	case "number":
		_, ok := v.(float64)
		return ok
	default:
		return jsonType(v) == want
	}
}

func jsonType(v any) string {
	switch v.(type) {
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
		return fmt.Sprintf("%T", v)
	}
}

func enumList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
