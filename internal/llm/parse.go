package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ExtractJSON pulls the first {...} object out of a completion. Models
// occasionally wrap the object in code fences or prose, so we slice between
// the outermost braces before decoding.
func ExtractJSON(raw string, dest interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return json.Unmarshal([]byte(raw), dest)
}

// ExtractNumber is the fallback when a completion does not decode as JSON:
// it returns the first numeric literal found in the text.
func ExtractNumber(raw string) (float64, bool) {
	match := numberPattern.FindString(raw)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
