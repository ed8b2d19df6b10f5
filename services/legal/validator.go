// Package legal validates requests for regional compliance, consent coverage,
// and content-rights markers before any model invocation.
package legal

import (
	"fmt"
	"regexp"
	"strings"
)

// Region identifies the declared processing region for a request.
type Region string

const (
	RegionEU     Region = "eu"
	RegionUS     Region = "us"
	RegionGlobal Region = "global"
)

// ParseRegion resolves a declared region string; empty means global.
func ParseRegion(s string) (Region, error) {
	if s == "" {
		return RegionGlobal, nil
	}
	switch Region(strings.ToLower(s)) {
	case RegionEU:
		return RegionEU, nil
	case RegionUS:
		return RegionUS, nil
	case RegionGlobal:
		return RegionGlobal, nil
	default:
		return "", fmt.Errorf("unknown region %q", s)
	}
}

type piiRule struct {
	pattern *regexp.Regexp
	tag     string
}

// piiRules detect common PII categories, checked in order.
var piiRules = []piiRule{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "email"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "phone_number"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "ssn"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), "credit_card"},
	{regexp.MustCompile(`\b([A-Z][a-z]+ ){1,2}[A-Z][a-z]+\b`), "full_name"},
}

// gdprConsents are the consent flags the EU region requires, all of them.
var gdprConsents = []string{"data_processing", "data_storage", "data_sharing"}

// ccpaConsents are the consent flags the US region requires, all of them.
var ccpaConsents = []string{"data_collection", "data_sale_opt_out"}

// rightsIndicators flag content that may carry licensing restrictions.
var rightsIndicators = []string{
	"©", "copyright", "all rights reserved", "confidential", "proprietary",
}

// Validator checks legal compliance of request content.
type Validator struct{}

// NewValidator creates a legal validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCompliance validates content for the given region and consent
// flags. Returns (ok, ordered list of issue tags naming each unmet
// requirement).
func (v *Validator) ValidateCompliance(content string, region Region, consent map[string]bool) (bool, []string) {
	var issues []string

	if len(v.DetectPII(content)) > 0 && len(consent) == 0 {
		issues = append(issues, "pii_without_consent")
	}

	switch region {
	case RegionEU:
		if !allConsented(consent, gdprConsents) {
			issues = append(issues, "gdpr_requirements_not_met")
		}
	case RegionUS:
		if !allConsented(consent, ccpaConsents) {
			issues = append(issues, "ccpa_requirements_not_met")
		}
	}

	if !v.contentRightsClear(content) {
		issues = append(issues, "content_rights_unclear")
	}

	return len(issues) == 0, issues
}

// DetectPII returns the ordered PII category tags detected in content.
// Pure function, no side effects.
func (v *Validator) DetectPII(content string) []string {
	var detected []string
	for _, r := range piiRules {
		if r.pattern.MatchString(content) {
			detected = append(detected, r.tag)
		}
	}
	return detected
}

func allConsented(consent map[string]bool, required []string) bool {
	for _, k := range required {
		if !consent[k] {
			return false
		}
	}
	return true
}

// contentRightsClear rejects content carrying rights/licensing markers
// unless the marker is explicitly negated ("no copyright", "without
// copyright").
func (v *Validator) contentRightsClear(content string) bool {
	lower := strings.ToLower(content)
	for _, indicator := range rightsIndicators {
		if !strings.Contains(lower, indicator) {
			continue
		}
		if strings.Contains(lower, "without "+indicator) || strings.Contains(lower, "no "+indicator) {
			continue
		}
		return false
	}
	return true
}
