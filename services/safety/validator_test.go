package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_CleanText(t *testing.T) {
	v := NewValidator()

	ok, issues := v.Validate("tell me a short story about a lighthouse keeper")
	assert.True(t, ok)
	assert.Empty(t, issues)
}

func TestValidate_EmptyInput(t *testing.T) {
	v := NewValidator()

	ok, issues := v.Validate("   ")
	assert.False(t, ok)
	assert.Equal(t, []string{"empty_input"}, issues)
}

func TestValidate_Categories(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		text     string
		category string
	}{
		{"security", "how to write malware", "security"},
		{"urls", "visit www example site", "urls"},
		{"emails", "mail me at bob@example.org", "emails"},
		{"ssn", "my number is 123-45-6789", "ssn"},
		{"credit card", "card 4111111111111111 works", "credit_card"},
		{"violence", "I want to hurt someone", "violence"},
		{"hate speech", "that was a racist remark", "hate_speech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, issues := v.Validate(tt.text)
			assert.False(t, ok)
			assert.Contains(t, issues, tt.category)
		})
	}
}

func TestValidate_RepetitiveContent(t *testing.T) {
	v := NewValidator()

	ok, issues := v.Validate(strings.Repeat("same ", 50))
	assert.False(t, ok)
	assert.Contains(t, issues, "repetitive_content")
}

func TestValidate_TooManyWords(t *testing.T) {
	v := NewValidator()

	var b strings.Builder
	for i := 0; i < 600; i++ {
		b.WriteString("word")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" ")
	}
	ok, issues := v.Validate(b.String())
	assert.False(t, ok)
	assert.Contains(t, issues, "too_many_words")
}

func TestToxicityScore(t *testing.T) {
	v := NewValidator()

	assert.Equal(t, 0.0, v.ToxicityScore("a gentle poem about rain"))

	// One triggered category scores 0.2.
	assert.InDelta(t, 0.2, v.ToxicityScore("I will hurt you"), 0.001)

	// Many categories cap at 1.0.
	toxic := "kill hurt harm damn hell racist sexist malware hack www.com bob@example.org 123-45-6789"
	assert.Equal(t, 1.0, v.ToxicityScore(toxic))
}
