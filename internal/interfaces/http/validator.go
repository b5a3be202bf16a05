package http

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation constants
const (
	MaxTitleLength   = 256
	MaxMessageLength = 10000
	MaxPromptLength  = 2000
)

// ValidID reports whether s is a canonical UUID, the id format of every stored row.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// TruncateString cuts s to maxLen characters without splitting a rune
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// ValidateLength checks if the character count of s is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
