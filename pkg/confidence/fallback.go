package confidence

import (
	"regexp"
	"strings"
)

// FallbackResult is the outcome of the secondary check run when primary
// confirmation fails: does the response read like the AI is waiting on a
// human?
type FallbackResult struct {
	RequiresUserInput bool     `json:"requires_user_input"`
	Markers           []string `json:"markers,omitempty"`
}

// FallbackDetector decides whether a human must intervene before a task can
// proceed.
type FallbackDetector interface {
	Detect(response string) FallbackResult
}

// userInputMarkers are phrases that indicate the AI is asking the user to
// decide or provide something.
var userInputMarkers = []string{
	"let me know",
	"which option",
	"would you like",
	"should i",
	"do you want",
	"please confirm",
	"please provide",
	"waiting for your",
	"need your input",
	"could you clarify",
}

// trailingQuestion matches a question mark closing the response.
var trailingQuestion = regexp.MustCompile(`\?\s*$`)

// MarkerFallbackDetector is the default FallbackDetector: a deterministic
// scan for user-input markers and a trailing question.
type MarkerFallbackDetector struct{}

func NewMarkerFallbackDetector() *MarkerFallbackDetector { return &MarkerFallbackDetector{} }

func (d *MarkerFallbackDetector) Detect(response string) FallbackResult {
	text := strings.ToLower(response)

	found := []string{}

	for _, marker := range userInputMarkers {
		if strings.Contains(text, marker) {
			found = append(found, marker)
		}
	}

	if trailingQuestion.MatchString(strings.TrimSpace(response)) {
		found = append(found, "trailing_question")
	}

	return FallbackResult{
		RequiresUserInput: len(found) > 0,
		Markers:           found,
	}
}
