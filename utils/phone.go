package utils

import (
	"strings"
)

// NormalizePhone canonicalizes a recipient phone number: strips every
// non-digit, rewrites a national trunk prefix ("0...") to the default
// country code, and prepends the country code when missing entirely.
// The country code is a policy parameter, not a constant; Indonesian
// deployments pass "62".
func NormalizePhone(raw, defaultCountryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, defaultCountryCode) {
		return digits
	}
	if strings.HasPrefix(digits, "0") {
		return defaultCountryCode + digits[1:]
	}
	return defaultCountryCode + digits
}
