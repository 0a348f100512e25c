package agent

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// validateArguments checks decoded JSON arguments against a structural
// subset of JSON schema: required fields, property types (including
// ["integer","null"] style unions) and additionalProperties.
func validateArguments(schema map[string]interface{}, args map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := parseRequiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, hasProperties := asStringMap(schema["properties"])
	additionalAllowed, err := parseAdditionalProperties(schema["additionalProperties"])
	if err != nil {
		return err
	}

	for _, key := range sortedKeys(args) {
		value := args[key]
		propertySchema, hasProperty := properties[key]
		if !hasProperty {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("unknown argument %q", key)
			}
			continue
		}

		types, err := parsePropertyTypes(propertySchema)
		if err != nil {
			return err
		}
		if len(types) == 0 {
			continue
		}
		if !matchesAnyType(types, value) {
			return fmt.Errorf("argument %q must be %v", key, types)
		}
	}

	return nil
}

func parseRequiredFields(raw interface{}) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return value, nil
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, errors.New(`schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, errors.New(`schema "required" must be an array`)
	}
}

func parseAdditionalProperties(raw interface{}) (bool, error) {
	switch value := raw.(type) {
	case nil:
		return true, nil
	case bool:
		return value, nil
	default:
		return false, errors.New(`schema "additionalProperties" must be a bool`)
	}
}

// parsePropertyTypes returns the allowed type names for a property schema.
// A missing "type" means any type is allowed.
func parsePropertyTypes(propertySchema interface{}) ([]string, error) {
	propertyMap, ok := asStringMap(propertySchema)
	if !ok {
		return nil, errors.New(`schema "properties" entries must be objects`)
	}
	rawType, ok := propertyMap["type"]
	if !ok {
		return nil, nil
	}
	switch value := rawType.(type) {
	case string:
		return []string{value}, nil
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			name, ok := item.(string)
			if !ok {
				return nil, errors.New(`schema property "type" entries must be strings`)
			}
			out = append(out, name)
		}
		return out, nil
	default:
		return nil, errors.New(`schema property "type" must be a string or array`)
	}
}

func matchesAnyType(types []string, value interface{}) bool {
	for _, t := range types {
		if matchesType(t, value) {
			return true
		}
	}
	return false
}

func matchesType(expected string, value interface{}) bool {
	switch expected {
	case "null":
		return value == nil
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		return isInteger(value)
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}

func isNumber(value interface{}) bool {
	switch value.(type) {
	case int, int64, float64:
		return true
	default:
		return false
	}
}

// isInteger accepts whole-valued floats because encoding/json decodes all
// JSON numbers as float64.
func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int64:
		return true
	case float64:
		return math.Trunc(v) == v
	default:
		return false
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
