package agent

import "strconv"

// JSON-decoded argument maps carry numbers as float64 and optional ints as
// nil. These helpers coerce values the way tool handlers expect.

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func argOptionalID(args map[string]interface{}, key string) *int64 {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	n, ok := argInt64(v)
	if !ok {
		return nil
	}
	return &n
}

func argBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
