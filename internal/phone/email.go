package phone

const (
	localPrefix = "p"
	// maxLocalLength caps the prefixed local part, matching the RFC 5321
	// local-part limit.
	maxLocalLength = 64
	placeholder    = "user"
)

// DeriveEmail builds the deterministic login email for a canonical phone.
// The same phone and domain always produce the same address, which is what
// keeps repeated runs from minting a second email for one number.
func DeriveEmail(canonical, domain string) string {
	return LocalPart(canonical) + "@" + domain
}

// LocalPart returns "p" followed by the digits of canonical, truncated to
// 64 characters. A phone without digits maps to the placeholder "user".
func LocalPart(canonical string) string {
	digits := Digits(canonical)
	if digits == "" {
		return placeholder
	}
	local := localPrefix + digits
	if len(local) > maxLocalLength {
		local = local[:maxLocalLength]
	}
	return local
}
