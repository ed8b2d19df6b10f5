// Package privacy classifies content into privacy tiers and applies the
// requested level of anonymization to detected sensitive substrings.
package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is the privacy classification of a piece of content.
type Tier string

const (
	TierPublic     Tier = "public"     // no PII, freely shareable
	TierInternal   Tier = "internal"   // business data, limited sharing
	TierRestricted Tier = "restricted" // contains PII, strict controls
	TierSensitive  Tier = "sensitive"  // special category data
)

// Level is the degree of anonymization applied to detected substrings.
type Level string

const (
	LevelNone      Level = "none"
	LevelPartial   Level = "partial"   // mask, keep trailing digits for some types
	LevelFull      Level = "full"      // replace with [REDACTED]
	LevelSynthetic Level = "synthetic" // replace with synthetic data
)

// ParseLevel resolves an anonymization level string; empty means none.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelNone, nil
	}
	switch Level(strings.ToLower(s)) {
	case LevelNone, LevelPartial, LevelFull, LevelSynthetic:
		return Level(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown anonymization level %q", s)
	}
}

// RequiresConsent reports whether a tier demands explicit consent.
func (t Tier) RequiresConsent() bool {
	return t == TierRestricted || t == TierSensitive
}

type sensitiveRule struct {
	name    string
	pattern *regexp.Regexp
}

// sensitiveRules detect sensitive data categories, checked in order.
var sensitiveRules = []sensitiveRule{
	{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}[-.]?\d{2}[-.]?\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"address", regexp.MustCompile(`\b\d+\s+([A-Za-z]+ ){1,3}(St|Street|Rd|Road|Ave|Avenue|Blvd|Boulevard)\b`)},
}

// keepSuffixFor are categories where partial anonymization keeps the last
// four characters.
var keepSuffixFor = map[string]bool{"credit_card": true, "phone": true}

const internalWordThreshold = 100

// Manager classifies and anonymizes content.
type Manager struct{}

// NewManager creates a privacy manager.
func NewManager() *Manager {
	return &Manager{}
}

// ClassifyTier determines the privacy tier of text from detected
// sensitive-data categories, returning the tier and the category tags found.
func (m *Manager) ClassifyTier(text string) (Tier, []string) {
	var found []string
	for _, r := range sensitiveRules {
		if r.pattern.MatchString(text) {
			found = append(found, r.name)
		}
	}

	for _, tag := range found {
		if tag == "credit_card" || tag == "ssn" {
			return TierSensitive, found
		}
	}
	if len(found) > 0 {
		return TierRestricted, found
	}
	if len(strings.Fields(text)) > internalWordThreshold {
		return TierInternal, []string{"length_based"}
	}
	return TierPublic, nil
}

// Anonymize transforms text according to the requested level and returns
// the result with the number of replacements made.
func (m *Manager) Anonymize(text string, level Level) (string, int) {
	if level == LevelNone {
		return text, 0
	}

	if level == LevelSynthetic {
		return m.syntheticReplacement(text), 1
	}

	replacements := 0
	result := text
	for _, r := range sensitiveRules {
		result = r.pattern.ReplaceAllStringFunc(result, func(match string) string {
			replacements++
			if level == LevelPartial && keepSuffixFor[r.name] && len(match) >= 4 {
				return "****" + match[len(match)-4:]
			}
			return "[REDACTED]"
		})
	}
	return result, replacements
}

// syntheticReplacement produces a synthetic stand-in preserving word count.
func (m *Manager) syntheticReplacement(original string) string {
	words := strings.Fields(original)
	out := make([]string, len(words))
	for i := range words {
		out[i] = fmt.Sprintf("synthetic_word_%d", i)
	}
	return strings.Join(out, " ")
}
