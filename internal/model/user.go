package model

import "strings"

// Role values stored on directory records.
const (
	RoleAdmin = "admin"
)

// User is one record of the directory's users collection. ID is shared with
// the identity account of the same person.
type User struct {
	ID             string `json:"id"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	CommunityScope string `json:"serviceCommunityCode,omitempty"`
	Role           string `json:"role,omitempty"`
}

// HasPhone reports whether the record carries a non-blank phone.
func (u User) HasPhone() bool {
	return strings.TrimSpace(u.Phone) != ""
}

// HasEmail reports whether the record carries a non-blank email. Records with
// an email are never backfilled again.
func (u User) HasEmail() bool {
	return strings.TrimSpace(u.Email) != ""
}

// IsAdmin reports whether the record grants the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Candidate is a user selected for reconciliation. Phone is already
// canonical; RawPhone keeps the directory value for logging.
type Candidate struct {
	ID             string `json:"uid"`
	Phone          string `json:"phone"`
	RawPhone       string `json:"rawPhone,omitempty"`
	Name           string `json:"name,omitempty"`
	CommunityScope string `json:"communityCode,omitempty"`
}

// Resolution is the answer of a phone lookup.
type Resolution struct {
	Email string `json:"email"`
	ID    string `json:"uid"`
}
