package awaitcall

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Helpers for JSON parsing

// isArray returns true if the message is a JSON array (starts
// with '[', spaces skipped).
func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b == '['
	}
	return false
}

// isObject returns true if the message is a JSON object (starts with '{',
// spaces skipped).
func isObject(raw []byte) bool {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b == '{'
	}
	return false
}

// isNull returns true for empty or null JSON values.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// isSpace returns true if the byte is considered a space in JSON syntax.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
