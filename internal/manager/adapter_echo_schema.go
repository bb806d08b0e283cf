package manager

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// maxSchemaDepth bounds recursion through nested or self-referencing schemas.
const maxSchemaDepth = 16

// schemaExample renders a small JSON value satisfying common JSON Schema
// keywords (type, const, enum, properties, required, items, minItems,
// minLength, minimum, format, anyOf/oneOf/allOf).
func schemaExample(schema []byte) (string, error) {
	var s any
	if err := json.Unmarshal(schema, &s); err != nil {
		return "", fmt.Errorf("response schema: %w", err)
	}
	b, err := json.Marshal(exampleFor(s, 0))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func exampleFor(node any, depth int) any {
	s, ok := node.(map[string]any)
	if !ok || depth > maxSchemaDepth {
		return nil
	}
	if c, ok := s["const"]; ok {
		return c
	}
	if e, ok := s["enum"].([]any); ok && len(e) > 0 {
		return e[0]
	}
	if d, ok := s["default"]; ok {
		return d
	}
	for _, k := range []string{"allOf", "anyOf", "oneOf"} {
		if l, ok := s[k].([]any); ok && len(l) > 0 {
			return exampleFor(l[0], depth+1)
		}
	}

	switch schemaType(s) {
	case "object":
		obj := map[string]any{}
		props, _ := s["properties"].(map[string]any)
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			obj[name] = exampleFor(props[name], depth+1)
		}
		return obj
	case "array":
		n := intKeyword(s, "minItems")
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, exampleFor(s["items"], depth+1))
		}
		return out
	case "string":
		switch s["format"] {
		case "date-time":
			return "1970-01-01T00:00:00Z"
		case "date":
			return "1970-01-01"
		case "email":
			return "user@example.com"
		case "uri":
			return "https://example.com"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		}
		return strings.Repeat("a", intKeyword(s, "minLength"))
	case "integer":
		return int64(math.Ceil(numberExample(s)))
	case "number":
		return numberExample(s)
	case "boolean":
		return false
	default:
		return nil
	}
}

// schemaType picks the first non-null type, inferring object/array from
// structural keywords when "type" is absent.
func schemaType(s map[string]any) string {
	switch t := s["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if name, ok := v.(string); ok && name != "null" {
				return name
			}
		}
		return "null"
	}
	if _, ok := s["properties"]; ok {
		return "object"
	}
	if _, ok := s["items"]; ok {
		return "array"
	}
	return ""
}

func numberExample(s map[string]any) float64 {
	if v, ok := s["minimum"].(float64); ok {
		return v
	}
	if v, ok := s["exclusiveMinimum"].(float64); ok {
		return v + 1
	}
	if v, ok := s["maximum"].(float64); ok && v < 0 {
		return v
	}
	if v, ok := s["exclusiveMaximum"].(float64); ok && v <= 0 {
		return v - 1
	}
	return 0
}

func intKeyword(s map[string]any, key string) int {
	v, ok := s[key].(float64)
	if !ok || v < 0 {
		return 0
	}
	return int(v)
}
