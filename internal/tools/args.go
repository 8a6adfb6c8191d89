package tools

// Argument extraction helpers. Reasoner tool calls arrive as JSON-decoded
// maps, so numbers are float64 and every field needs a type check.

// StringArg returns args[key] as a string, or def when absent or not a
// string.
func StringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// IntArg returns args[key] as an int, accepting JSON float64.
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// FloatArg returns args[key] as a float64.
func FloatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// BoolArg returns args[key] as a bool.
func BoolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
