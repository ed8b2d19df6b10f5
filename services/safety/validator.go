// Package safety provides the generic content-screening oracle and toxicity
// scoring used by the request pipeline.
package safety

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern  *regexp.Regexp
	category string
}

// unsafeRules pairs safety patterns with the category tag they trigger,
// checked in order. These would normally be loaded from a managed list.
var unsafeRules = []rule{
	{regexp.MustCompile(`(?i)\b(malware|exploit|hack|crack)\b`), "security"},
	{regexp.MustCompile(`(?i)\b(http|www|\.com)\b`), "urls"},
	{regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "emails"},
	{regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`), "ssn"},
	{regexp.MustCompile(`\b\d{16}\b`), "credit_card"},
	{regexp.MustCompile(`(?i)\b(kill|hurt|harm)\b`), "violence"},
	{regexp.MustCompile(`(?i)\b(damn|hell)\b`), "mild_profanity"},
	{regexp.MustCompile(`(?i)\b(racist|sexist)\b`), "hate_speech"},
}

const (
	maxWords       = 500
	minUniqueRatio = 0.3
	scorePerIssue  = 0.2
)

// Validator screens content against safety rules.
type Validator struct{}

// NewValidator creates a content validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks text against the safety rules.
// Returns (ok, ordered list of triggered category tags).
func (v *Validator) Validate(text string) (bool, []string) {
	var issues []string

	if strings.TrimSpace(text) == "" {
		return false, []string{"empty_input"}
	}

	for _, r := range unsafeRules {
		if r.pattern.MatchString(text) {
			issues = append(issues, r.category)
		}
	}

	words := strings.Fields(text)
	if len(words) > maxWords {
		issues = append(issues, "too_many_words")
	}

	if len(words) > 0 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique)) < float64(len(words))*minUniqueRatio {
			issues = append(issues, "repetitive_content")
		}
	}

	return len(issues) == 0, issues
}

// ToxicityScore computes a basic 0-1 toxicity score from the number of
// triggered categories. In production this would be a proper classifier.
func (v *Validator) ToxicityScore(text string) float64 {
	_, issues := v.Validate(text)
	score := float64(len(issues)) * scorePerIssue
	if score > 1.0 {
		return 1.0
	}
	return score
}
