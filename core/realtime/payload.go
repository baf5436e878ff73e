package realtime

// Accessors for decoded JSON. Missing or mistyped fields yield zero values.

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	value, _ := m[key].(string)
	return value
}

func objectField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	value, _ := m[key].(map[string]any)
	return value
}

func listField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	value, _ := m[key].([]any)
	return value
}

func objects(list []any) []map[string]any {
	result := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if object, ok := entry.(map[string]any); ok {
			result = append(result, object)
		}
	}
	return result
}
