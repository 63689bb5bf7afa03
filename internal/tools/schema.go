package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ParamType is a JSON-schema primitive.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// ParamSpec describes one named argument.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	// Items is the element type of an array parameter.
	Items ParamType
	Enum  []string
}

func (p ParamSpec) schema() map[string]any {
	s := map[string]any{
		"type":        string(p.Type),
		"description": p.Description,
	}
	if p.Type == TypeArray && p.Items != "" {
		s["items"] = map[string]any{"type": string(p.Items)}
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	return s
}

func parametersSchema(params []ParamSpec) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		properties[p.Name] = p.schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// bindArgs validates raw arguments against params, coercing values and
// filling defaults. Undeclared keys are dropped.
func bindArgs(tool string, params []ParamSpec, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for _, p := range params {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, &SchemaError{Tool: tool, Field: p.Name, Message: "required"}
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(p.Type, p.Items, v)
		if err != nil {
			return nil, &SchemaError{Tool: tool, Field: p.Name, Message: err.Error()}
		}
		if len(p.Enum) > 0 {
			if s, ok := coerced.(string); ok && !slices.Contains(p.Enum, s) {
				return nil, &SchemaError{Tool: tool, Field: p.Name, Message: fmt.Sprintf("must be one of %s", strings.Join(p.Enum, ", "))}
			}
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func coerce(t, items ParamType, v any) (any, error) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case TypeInteger:
		return toInt(v)
	case TypeNumber:
		return toFloat(v)
	case TypeBoolean:
		return toBool(v)
	case TypeArray:
		return toArray(items, v)
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		return m, nil
	default:
		return v, nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		if n < math.MinInt || n >= math.MaxInt {
			return 0, fmt.Errorf("integer %v out of range", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %v", v)
}

// toArray returns []string, []int, []float64, []bool or []map[string]any
// depending on the item type; untyped arrays stay []any.
func toArray(items ParamType, v any) (any, error) {
	var elems []any
	switch a := v.(type) {
	case []any:
		elems = a
	case []string:
		for _, s := range a {
			elems = append(elems, s)
		}
	case []float64:
		for _, f := range a {
			elems = append(elems, f)
		}
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}

	switch items {
	case TypeString:
		out := make([]string, len(elems))
		for i, e := range elems {
			s, err := coerce(TypeString, "", e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = s.(string)
		}
		return out, nil
	case TypeInteger:
		out := make([]int, len(elems))
		for i, e := range elems {
			n, err := toInt(e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case TypeNumber:
		out := make([]float64, len(elems))
		for i, e := range elems {
			f, err := toFloat(e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	case TypeBoolean:
		out := make([]bool, len(elems))
		for i, e := range elems {
			b, err := toBool(e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = b
		}
		return out, nil
	case TypeObject:
		out := make([]map[string]any, len(elems))
		for i, e := range elems {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: expected object, got %T", i, e)
			}
			out[i] = m
		}
		return out, nil
	default:
		return elems, nil
	}
}
