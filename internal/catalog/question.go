package catalog

import (
	"encoding/json"
	"regexp"
	"strings"
)

// FallbackQuestion is returned when no question text can be recovered
// from a template. Extraction never fails outward.
const FallbackQuestion = "请描述您的情况。"

// questionCue marks the question text inside prose-style templates.
const questionCue = "向患者提问："

var questionFieldPattern = regexp.MustCompile(`"question"\s*[:：]\s*"([^"]+)"`)

// ExtractQuestion recovers the question a template poses to the
// respondent. Templates are usually JSON objects with a "question"
// field somewhere inside, but the authored files are inconsistent:
// some use full-width quotes, some are plain prose. Each rung of the
// fallback chain handles one failure mode, ending at FallbackQuestion.
func ExtractQuestion(template string) string {
	// Structured lookup, with a quote-normalization pass for templates
	// whose question field was authored with full-width quotes.
	for _, text := range []string{template, normalizeQuotes(template)} {
		if q, ok := questionFromJSON(text); ok {
			return q
		}
	}

	// Key/value pattern match for JSON-ish templates that don't parse
	// as a whole (trailing commas, unquoted keys elsewhere).
	if m := questionFieldPattern.FindStringSubmatch(normalizeQuotes(template)); m != nil {
		if q := strings.TrimSpace(m[1]); q != "" {
			return q
		}
	}

	// Prose cue: everything after the cue token up to the first
	// question mark, inclusive.
	if _, after, ok := strings.Cut(template, questionCue); ok {
		if q, _, found := strings.Cut(after, "？"); found {
			if q = strings.TrimSpace(q); q != "" {
				return q + "？"
			}
		}
	}

	// Last resort: a quoted span that reads like a question.
	if q, ok := quotedQuestion(template); ok {
		return q
	}

	return FallbackQuestion
}

// questionFromJSON parses text as JSON and walks it for the first
// non-empty "question" string field at any depth.
func questionFromJSON(text string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return "", false
	}
	return findQuestionField(v)
}

func findQuestionField(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		if q, ok := t["question"].(string); ok && strings.TrimSpace(q) != "" {
			return strings.TrimSpace(q), true
		}
		for _, child := range t {
			if q, ok := findQuestionField(child); ok {
				return q, true
			}
		}
	case []any:
		for _, child := range t {
			if q, ok := findQuestionField(child); ok {
				return q, true
			}
		}
	}
	return "", false
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // “
	"”", `"`, // ”
	"「", `"`, // 「
	"」", `"`, // 」
	"『", `"`, // 『
	"』", `"`, // 』
)

func normalizeQuotes(text string) string {
	return quoteReplacer.Replace(text)
}

// quotedQuestion scans quoted spans (after normalization) and returns
// the first one containing a question mark or an address cue.
func quotedQuestion(text string) (string, bool) {
	norm := normalizeQuotes(text)
	for {
		start := strings.IndexByte(norm, '"')
		if start < 0 {
			return "", false
		}
		rest := norm[start+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", false
		}
		span := strings.TrimSpace(rest[:end])
		if span != "" && (strings.Contains(span, "？") || strings.Contains(span, "您")) {
			return span, true
		}
		norm = rest[end+1:]
	}
}
