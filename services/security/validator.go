// Package security provides input-hardening and credential-format oracles.
// All checks are pure functions over the input text, safe to call repeatedly.
package security

import (
	"regexp"
	"strconv"
	"strings"
)

// Patterns that indicate injection attempts.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<[^>]*script[^>]*>`),                       // script tags
	regexp.MustCompile(`\{\{.*\}\}`),                               // template injection
	regexp.MustCompile(`\$where:`),                                 // NoSQL injection
	regexp.MustCompile(`(?i)(select|union|insert|drop|delete|update)\s+.*`), // SQL injection
	regexp.MustCompile("^\\s*[;|()`]"),                             // command injection
}

var specialCharPattern = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

const (
	// MinAPIKeyLength is the minimum accepted credential length.
	MinAPIKeyLength = 32

	// maxSpecialCharRatio rejects inputs dominated by special characters.
	maxSpecialCharRatio = 0.3
)

var apiKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{32,}$`)

// Validator screens request input and credential format.
type Validator struct{}

// NewValidator creates a security validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateInput checks text for injection and abuse patterns.
// Returns (ok, ordered list of issue tags).
func (v *Validator) ValidateInput(text string) (bool, []string) {
	var issues []string

	for _, p := range suspiciousPatterns {
		if p.MatchString(text) {
			issues = append(issues, "suspicious_pattern_detected")
			break
		}
	}

	if strings.ContainsAny(text, ";&|$()`") {
		issues = append(issues, "command_injection_risk")
	}

	if len(text) > 0 {
		ratio := float64(len(specialCharPattern.FindAllString(text, -1))) / float64(len(text))
		if ratio > maxSpecialCharRatio {
			issues = append(issues, "excessive_special_chars")
		}
	}

	return len(issues) == 0, issues
}

// ValidateAPIKey checks credential format and strength.
func (v *Validator) ValidateAPIKey(apiKey string) (bool, []string) {
	var issues []string

	if len(apiKey) < MinAPIKeyLength {
		issues = append(issues, "api_key_too_short")
	}

	if !apiKeyPattern.MatchString(apiKey) {
		issues = append(issues, "api_key_invalid_format")
	}

	for i := 0; i < 10; i++ {
		if strings.Contains(apiKey, strings.Repeat(strconv.Itoa(i), 4)) {
			issues = append(issues, "api_key_sequential_pattern")
			break
		}
	}

	return len(issues) == 0, issues
}
