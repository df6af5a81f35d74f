package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractField decodes a model response that must be a JSON object carrying a
// non-empty string under field. Markdown code fences around the object are
// tolerated; other fields are ignored.
func ExtractField(response, field string) (string, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response), &obj); err != nil {
		return "", fmt.Errorf("response is not a JSON object: %w", err)
	}

	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("response is missing field %q", field)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("field %q is not a string: %w", field, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("field %q is empty", field)
	}
	return value, nil
}
