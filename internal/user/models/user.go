package models

import (
	"time"

	"coopmarket/pkg/domain"
)

// User is the directory record behind every resolved principal.
//
// Invariants:
//   - Email is unique (case-insensitive) and non-empty
//   - ExternalID, when set, is unique across the directory
//   - Role is one of ADMIN, SELLER, BUYER
//   - A user registered through the identity provider starts verified;
//     password-registered users verify via the email flow
type User struct {
	ID           domain.UserID `json:"id"`
	Email        string        `json:"email"`
	Username     string        `json:"username"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Phone        string        `json:"phone,omitempty"`
	ExternalID   string        `json:"-"`
	PasswordHash string        `json:"-"` // never serialize
	Role         domain.Role   `json:"role"`
	IsVerified   bool          `json:"isVerified"`
	IsActive     bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Summary is the embedded owner/participant view other features attach to
// their responses (product seller, order buyer/seller).
type Summary struct {
	ID        domain.UserID `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
}

// Summarize produces the embedded view of a user.
func (u *User) Summarize() Summary {
	return Summary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}
