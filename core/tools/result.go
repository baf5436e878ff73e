package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
)

const toolNotFoundMessage = "tool not found"

// normalizeResult turns whatever a tool returned into the JSON string placed
// in a function_call_output item. Maps and structs are marshalled, strings
// that already hold JSON pass through and every other value is wrapped as
// {"result": "<value>"}.
func normalizeResult(value any) string {
	switch v := value.(type) {
	case string:
		if json.Valid([]byte(v)) {
			return v
		}
		return wrapResult(v)
	case []byte:
		if json.Valid(v) {
			return string(v)
		}
		return wrapResult(string(v))
	case json.RawMessage:
		if json.Valid(v) {
			return string(v)
		}
		return wrapResult(string(v))
	}

	if isObject(value) {
		encoded, err := json.Marshal(value)
		if err == nil {
			return string(encoded)
		}
		logger.Warn("failed to marshal tool result", "error", err)
	}
	return wrapResult(fmt.Sprint(value))
}

func isObject(value any) bool {
	t := reflect.TypeOf(value)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(value).IsNil() {
			return false
		}
		t = t.Elem()
	}
	return t.Kind() == reflect.Map || t.Kind() == reflect.Struct
}

func wrapResult(text string) string {
	encoded, _ := json.Marshal(map[string]string{"result": text})
	return string(encoded)
}

func errorResult(message string) string {
	encoded, _ := json.Marshal(map[string]string{"error": message})
	return string(encoded)
}
