// Package phone normalizes and formats dialable phone numbers.
//
// All functions are pure transforms over the digits of the input; formatting
// characters in the input are ignored. North American (NANP) numbers get
// grouped US-style, everything else falls back to a bare international form.
package phone

import (
	"regexp"
	"strings"
)

var (
	nanpPattern = regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{6}$`)
)

// ExtractDigits strips every non-digit character from the input.
func ExtractDigits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatForDialing normalizes a number to its canonical dialable form with a
// leading +. Ten-digit numbers are assumed to be NANP and get a +1 prefix.
func FormatForDialing(number string) string {
	cleaned := ExtractDigits(number)

	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+" + cleaned
	}
	return "+" + cleaned
}

// IsValid reports whether the number passes numbering-plan sanity checks.
// NANP numbers (10 digits, or 11 with a leading 1) must match the NANP
// pattern. Anything else is only accepted as international when written with
// an explicit leading +, at 7 to 15 digits; a bare short digit string is a
// truncated NANP number, not a foreign one.
func IsValid(number string) bool {
	cleaned := ExtractDigits(number)

	if len(cleaned) == 10 {
		return nanpPattern.MatchString(cleaned)
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return nanpPattern.MatchString(cleaned[1:])
	}
	if !strings.HasPrefix(strings.TrimSpace(number), "+") {
		return false
	}
	return len(cleaned) >= 7 && len(cleaned) <= 15
}

// FormatAsTyped progressively formats a partially entered number for display
// in a dialpad, grouping as digits arrive.
func FormatAsTyped(input string) string {
	digits := ExtractDigits(input)

	switch {
	case len(digits) == 0:
		return ""
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return "(" + digits[:3] + ") " + digits[3:]
	case len(digits) <= 10:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	}

	// Longer than 10 digits: loose international fallback.
	end := 11
	if len(digits) < end {
		end = len(digits)
	}
	return "+" + digits[:1] + " (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:end]
}

// FormatDisplay renders a completed number for display in history and
// contact lists.
func FormatDisplay(number string) string {
	cleaned := ExtractDigits(number)

	if len(cleaned) == 10 {
		return "(" + cleaned[:3] + ") " + cleaned[3:6] + "-" + cleaned[6:]
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+1 (" + cleaned[1:4] + ") " + cleaned[4:7] + "-" + cleaned[7:]
	}
	if len(cleaned) > 11 {
		return "+" + cleaned
	}
	return cleaned
}
