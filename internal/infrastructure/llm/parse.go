package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StripFences removes Markdown code fences wrapping a payload. Handles both
// ```json and plain ``` fences; non-fenced input passes through untouched.
func StripFences(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "```") {
		return value
	}
	if i := strings.IndexByte(value, '\n'); i != -1 {
		value = value[i+1:]
	} else {
		value = strings.TrimPrefix(value, "```")
	}
	value = strings.TrimSuffix(strings.TrimSpace(value), "```")
	return strings.TrimSpace(value)
}

// DecodeJSON strips fences and strictly unmarshals the payload into out.
// Unknown fields are tolerated; type mismatches are rejected. Model output
// is never trusted without passing through here.
func DecodeJSON(raw string, out any) error {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model payload")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("decode model payload: %w", err)
	}
	return nil
}

var markdownLinkExpr = regexp.MustCompile(`\[[^\]]+\]\(https?://[^\)]+\)`)

// prose markers that indicate a sourced claim
var citationMarkers = []string{
	"according to",
	"reports that",
	"states that",
	"pricing page",
	"documentation",
	"review on",
	"users report",
	"benchmark shows",
	"study found",
	"analysis by",
}

// CountCitations counts citation evidence in generated text: markdown URL
// links plus prose citation markers.
func CountCitations(text string) int {
	count := len(markdownLinkExpr.FindAllString(text, -1))
	lower := strings.ToLower(text)
	for _, marker := range citationMarkers {
		count += strings.Count(lower, marker)
	}
	return count
}

// banned disclaimer phrasing that disqualifies generated content
var disclaimerMarkers = []string{
	"as an ai language model",
	"as an ai model",
	"i cannot browse",
	"i do not have access to real-time",
	"my knowledge cutoff",
	"my training data",
	"consult a professional before",
}

// ContainsDisclaimer reports whether the text carries banned model
// disclaimer phrasing.
func ContainsDisclaimer(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range disclaimerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
