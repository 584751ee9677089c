// Package phone canonicalizes phone numbers to E.164 so the same caller
// always maps to the same stored record.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// Normalize returns the canonical E.164 form of a raw phone string.
//
// Strict parsing is attempted first; when that fails, a best-effort
// reconstruction is applied (10 digits -> +1XXXXXXXXXX, 11 digits
// starting with 1 -> +1XXXXXXXXXX). Anything else falls back to the
// trimmed input so callers never lose the raw value.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
// That property is what lets the same function serve both writes and
// lookups.
func Normalize(value string) string {
	return NormalizeRegion(value, defaultRegion)
}

// NormalizeRegion is Normalize with an explicit default region for
// numbers written without a country prefix.
func NormalizeRegion(value, region string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if parsed, err := phonenumbers.Parse(trimmed, region); err == nil && phonenumbers.IsValidNumber(parsed) {
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}

	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}

	digits := stripNonDigits(trimmed)
	if len(digits) == 10 {
		return "+1" + digits
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits
	}

	return trimmed
}

// ForDisplay renders a number in national format when possible; the raw
// value is shown untouched otherwise.
func ForDisplay(value string) string {
	if value == "" {
		return "-"
	}
	if parsed, err := phonenumbers.Parse(value, defaultRegion); err == nil {
		return phonenumbers.Format(parsed, phonenumbers.NATIONAL)
	}
	return value
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
