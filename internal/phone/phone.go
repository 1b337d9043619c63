// Package phone normalizes raw directory phone numbers into a canonical
// E.164-like form and derives synthetic login emails from them.
package phone

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MinCanonicalLength is the shortest canonical phone accepted for
// provisioning. Anything shorter is treated as invalid.
const MinCanonicalLength = 10

// Plan describes the subset of a national numbering plan needed to rewrite
// a domestic mobile number into international form.
type Plan struct {
	CountryCode    string // international prefix including "+", e.g. "+886"
	TrunkPrefix    string // national trunk prefix, e.g. "0"
	MobilePrefix   string // first digit after the trunk prefix for mobiles
	NationalLength int    // length of a domestic mobile number with trunk prefix
}

// Taiwan is the default plan: 09xxxxxxxx -> +8869xxxxxxxx.
var Taiwan = Plan{
	CountryCode:    "+886",
	TrunkPrefix:    "0",
	MobilePrefix:   "9",
	NationalLength: 10,
}

// Normalize canonicalizes raw using the Taiwan plan.
func Normalize(raw string) string {
	return Taiwan.Normalize(raw)
}

// Normalize strips formatting from raw and rewrites domestic mobile numbers
// into international form. Numbers already carrying a leading "+" are
// returned as stripped. Anything else comes back stripped but otherwise
// untouched, so callers must still check Valid.
func (p Plan) Normalize(raw string) string {
	s := strip(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "+") {
		return s
	}
	domestic := p.TrunkPrefix + p.MobilePrefix
	if strings.HasPrefix(s, domestic) && len(s) == p.NationalLength {
		return p.CountryCode + s[len(p.TrunkPrefix):]
	}
	return s
}

// StoredForms returns the spellings a directory may hold for raw, canonical
// first: the canonical form, the domestic form with the trunk prefix, and
// the stripped input. Duplicates and empties are dropped.
func (p Plan) StoredForms(raw string) []string {
	canonical := p.Normalize(raw)
	if canonical == "" {
		return nil
	}
	forms := []string{canonical}
	add := func(f string) {
		if f == "" {
			return
		}
		for _, seen := range forms {
			if seen == f {
				return
			}
		}
		forms = append(forms, f)
	}
	if rest, ok := strings.CutPrefix(canonical, p.CountryCode); ok && p.CountryCode != "" {
		add(p.TrunkPrefix + rest)
	}
	add(strip(raw))
	return forms
}

// strip folds full-width characters to ASCII and keeps only digits and "+".
func strip(raw string) string {
	if raw == "" {
		return ""
	}
	folded := norm.NFKC.String(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether canonical is long enough to be provisioned.
func Valid(canonical string) bool {
	return canonical != "" && len(canonical) >= MinCanonicalLength
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
