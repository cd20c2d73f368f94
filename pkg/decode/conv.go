package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rexliu/ksdk/pkg/core"
)

// String renders a decoded scalar. XML leaves are already strings; JSON
// numbers keep their literal text and booleans become "1" or "0".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

// Int converts a decoded scalar. An empty value is zero.
func Int(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		return int64(f), err
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// Float converts a decoded scalar. An empty value is zero.
func Float(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return t.Float64()
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}

// Bool converts a decoded scalar. XML sends "1"/"0", JSON sends true/false.
func Bool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case json.Number:
		return t.String() != "0", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false":
			return false, nil
		case "1", "true":
			return true, nil
		}
		return false, fmt.Errorf("expected bool, got %q", t)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

// ObjectSlice converts a decoded list into typed objects. An empty XML list
// arrives as "" and yields nil.
func ObjectSlice[T core.Object](v any) ([]T, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
	case []any:
		out := make([]T, 0, len(t))
		for i, item := range t {
			obj, ok := item.(T)
			if !ok {
				return nil, fmt.Errorf("item %d: unexpected %T", i, item)
			}
			out = append(out, obj)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list, got %T", v)
}

// Object converts a decoded value into a typed object.
func Object[T core.Object](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	obj, ok := v.(T)
	if !ok {
		if s, isString := v.(string); isString && s == "" {
			return zero, nil
		}
		return zero, fmt.Errorf("unexpected %T", v)
	}
	return obj, nil
}

// Map converts a decoded keyed map. An empty XML map arrives as "" and yields nil.
func Map(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	case string:
		if t == "" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected map, got %T", v)
}
