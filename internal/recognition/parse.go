package recognition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseRawResultJSON parses the JSON response from a vision model into a
// RawResult. Models wrap their output in markdown fences or prose often
// enough that we cut the response down to the outermost JSON object before
// unmarshaling.
func parseRawResultJSON(text string) (*RawResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw RawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if raw.Fields == nil {
		raw.Fields = make(map[string]RawField)
	}

	// Confidences outside [0, 1] are provider noise; drop them so they
	// are excluded from aggregation instead of skewing it.
	for name, field := range raw.Fields {
		raw.Fields[name] = clampConfidence(field)
	}
	for _, item := range raw.Items {
		for name, field := range item {
			item[name] = clampConfidence(field)
		}
	}

	return &raw, nil
}

func clampConfidence(f RawField) RawField {
	if f.Confidence != nil && (*f.Confidence < 0 || *f.Confidence > 1) {
		f.Confidence = nil
	}
	return f
}
