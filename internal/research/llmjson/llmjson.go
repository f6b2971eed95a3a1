// Package llmjson pulls the JSON object out of free-form model output.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrNoJSON is returned when the text holds no {...} block.
var ErrNoJSON = errors.New("no JSON object in model output")

// greedy: from the first "{" to the last "}"
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Extract returns the outermost {...} span of text.
func Extract(text string) (string, bool) {
	block := objectPattern.FindString(text)
	return block, block != ""
}

// Decode unmarshals the {...} span of text into v.
func Decode(text string, v interface{}) error {
	block, ok := Extract(text)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(block), v)
}
