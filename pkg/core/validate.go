package core

import (
	"fmt"

	"github.com/goccy/go-json"
)

var nativeTypes = map[string]bool{
	"bool":    true,
	"boolean": true,
	"int":     true,
	"integer": true,
	"bigint":  true,
	"float":   true,
	"double":  true,
	"string":  true,
}

// ValidateObjectType checks a decoded value against the statically expected type.
// Scalars always pass unless the expected type is an enum, in which case the
// value must literally match one of the declared constants.
func ValidateObjectType(reg *Registry, value any, expected string) error {
	if value == nil || expected == "" {
		return nil
	}
	switch v := value.(type) {
	case Object:
		if nativeTypes[expected] || !reg.IsA(v.ObjectType(), expected) {
			return Errorf(CodeInvalidObjectType, "Invalid object type - %s is not instance of %s", v.ObjectType(), expected)
		}
		return nil
	case *APIError:
		return nil
	case []any:
		if expected == "array" || expected == "map" {
			return nil
		}
		for _, item := range v {
			if err := ValidateObjectType(reg, item, expected); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if expected == "array" || expected == "map" || !nativeTypes[expected] {
			return nil
		}
		return Errorf(CodeInvalidObjectType, "Invalid object type - map is not %s", expected)
	}

	values, isEnum := reg.EnumValues(expected)
	if !isEnum {
		return nil
	}
	literal := scalarString(value)
	for _, allowed := range values {
		if allowed == literal {
			return nil
		}
	}
	return Errorf(CodeInvalidEnumValue, "Invalid enum value %q for %s", literal, expected)
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
