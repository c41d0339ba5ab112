package models

// RegisterRequest creates a directory record. ExternalID is set when the
// client registered through the identity provider first; Password when using
// the self-issued scheme. At least one of the two must be present.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Role       string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

type RefreshRequest struct {
	Token string `json:"token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// SessionResponse is returned by register, login and refresh.
type SessionResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}
