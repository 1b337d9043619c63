package model

import "time"

// Account is an identity account as reported by the identity store.
type Account struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Disabled    bool      `json:"disabled,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AccountInput creates an account under a caller-chosen ID.
type AccountInput struct {
	ID          string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// AccountUpdate lists the fields to change on an account. Nil fields are
// left untouched.
type AccountUpdate struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.Password == nil && u.PhoneNumber == nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
