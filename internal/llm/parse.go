package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Models wrap JSON in markdown fences or chatter more often than not.
// extractJSON pulls out the first balanced object or array so the caller
// can unmarshal it.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	objStart := strings.IndexAny(content, "{[")
	if objStart < 0 {
		return "", fmt.Errorf("no JSON found in response")
	}

	open := content[objStart]
	var close byte
	if open == '{' {
		close = '}'
	} else {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := objStart; i < len(content); i++ {
		ch := content[i]

		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return content[objStart : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON in response")
}

func decodeJSON(content string, v interface{}) error {
	raw, err := extractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal model output: %w", err)
	}
	return nil
}
