package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned for a blank model reply.
var ErrEmptyResponse = errors.New("empty model response")

// ParseJSONResponse parses a JSON object from an LLM reply, unwrapping
// markdown code fences.
func ParseJSONResponse(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		if len(lines) == 1 {
			// ```{"a":1}``` on a single line
			text = strings.TrimPrefix(strings.Trim(text, "`"), "json")
		} else {
			text = strings.Join(lines[1:endIdx], "\n")
		}
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &result); err != nil {
		return nil, fmt.Errorf("parsing model response as JSON: %w", err)
	}
	return result, nil
}
