// Package phone canonicalises Ecuadorian phone numbers and produces the
// ordered lookup variants used for identity resolution across historically
// inconsistent stored formats.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	// CountryCode is the international calling code prepended to national numbers.
	CountryCode = "+593"

	countryDigits = "593"
	defaultRegion = "EC"
)

// Clean strips whitespace, hyphens and parentheses from a raw phone string.
func Clean(raw string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(raw))
}

// Normalize converts a raw phone number into the canonical lookup key.
// National numbers (leading 0) and bare country-code numbers are promoted to
// full international form; anything already international, or unrecognised,
// passes through after cleaning. Normalize is idempotent.
func Normalize(raw string) string {
	cleaned := Clean(raw)
	switch {
	case cleaned == "":
		return cleaned
	case strings.HasPrefix(cleaned, "0"):
		return CountryCode + cleaned[1:]
	case strings.HasPrefix(cleaned, countryDigits):
		return "+" + cleaned
	default:
		return cleaned
	}
}

// Variants returns lookup candidates for a raw number in resolution precedence
// order: the input as-is, the 0-prefix promoted to country code, the input
// without a leading +, and the international form demoted back to national.
// Duplicates are removed while preserving order.
func Variants(raw string) []string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return nil
	}

	candidates := []string{cleaned}
	if strings.HasPrefix(cleaned, "0") {
		candidates = append(candidates, CountryCode+cleaned[1:])
	}
	if strings.HasPrefix(cleaned, countryDigits) {
		candidates = append(candidates, "+"+cleaned)
	}
	if stripped := strings.TrimPrefix(cleaned, "+"); stripped != cleaned {
		candidates = append(candidates, stripped)
	}
	if strings.HasPrefix(cleaned, CountryCode) {
		candidates = append(candidates, "0"+cleaned[len(CountryCode):])
	}

	seen := make(map[string]struct{}, len(candidates))
	res := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		res = append(res, c)
	}
	return res
}

// IsPlausible reports whether the number parses as a valid phone number for
// the default region. Used only at the REST boundary; the canonical rule
// chain above decides the stored form.
func IsPlausible(raw string) bool {
	cleaned := Clean(raw)
	if cleaned == "" {
		return false
	}
	number, err := phonenumbers.Parse(cleaned, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}
