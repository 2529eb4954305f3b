package utils

import (
	"strconv"
	"unicode/utf16"
)

const usernameDigits = 6

// GenerateUsername derives a stable display name from an email address.
// The hash runs over UTF-16 code units with 32-bit wraparound, so the
// result matches names shown by the web client for the same account.
func GenerateUsername(email string) string {
	if email == "" {
		return "User"
	}

	var hash int32
	for _, char := range utf16.Encode([]rune(email)) {
		hash = (hash << 5) - hash + int32(char)
	}

	positive := int64(hash)
	if positive < 0 {
		positive = -positive
	}

	digits := strconv.FormatInt(positive, 10)
	if len(digits) > usernameDigits {
		digits = digits[:usernameDigits]
	}

	return "User" + digits
}
