package scorer

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/abhisek/mindscale/internal/llm"
)

// scoreSpanSchema validates a candidate structured span: every key
// matches the score naming convention and every value is numeric.
func scoreSpanSchema(keyPattern string) *llm.Schema {
	return &llm.Schema{
		Name:        "item-score",
		Description: "Structured per-item score emitted by the interviewer model",
		Definition: map[string]any{
			"type": "object",
			"patternProperties": map[string]any{
				keyPattern: map[string]any{"type": "number"},
			},
			"additionalProperties": false,
			"minProperties":        1,
		},
	}
}

// extractScores scans text for balanced-brace spans, validates each
// against the score schema and merges all valid spans into one map.
// Values are HAMD item scores, so they are rounded to integers.
func extractScores(text string, schema *llm.Schema) (map[string]int, bool) {
	merged := make(map[string]int)
	found := false

	for _, span := range balancedSpans(text) {
		if err := llm.ValidateJSON(schema, json.RawMessage(span)); err != nil {
			continue
		}
		var scores map[string]float64
		if err := json.Unmarshal([]byte(span), &scores); err != nil {
			continue
		}
		for key, value := range scores {
			merged[key] = int(math.Round(value))
		}
		found = true
	}

	if !found {
		return nil, false
	}
	return merged, true
}

// balancedSpans returns every complete JSON object span in text, in
// order. Every opening brace is a candidate: if a JSON value parses
// from there the span is taken and scanning resumes after it,
// otherwise scanning resumes at the next brace. A brace quoted in
// prose, or a span left open at end of text, therefore cannot swallow
// a valid span that follows it.
func balancedSpans(text string) []string {
	var spans []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		spans = append(spans, string(raw))
		i += int(dec.InputOffset()) - 1
	}
	return spans
}

var leakCues = []*regexp.Regexp{
	regexp.MustCompile(`[0-9０-９]\s*分`),
	regexp.MustCompile(`(?i)\bscore\s*(?:is|of|[:：=])\s*[0-9]`),
	regexp.MustCompile(`(?i)[0-9]\s*points?\b`),
	regexp.MustCompile(`评分\s*[:：为是]\s*[0-9０-９]`),
}

// hasScoreLeak reports whether prose output discusses numeric scores
// the way the structured channel should carry them.
func hasScoreLeak(text string) bool {
	for _, cue := range leakCues {
		if cue.MatchString(text) {
			return true
		}
	}
	return false
}
