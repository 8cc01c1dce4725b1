package gateway

import "fmt"

// Profile holds the identity fields of an authenticated user. Optional
// fields are empty strings when the account has not filled them in.
type Profile struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	FirstName        string `json:"firstName"`
	MiddleName       string `json:"middleName,omitempty"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone,omitempty"`
	Street           string `json:"street,omitempty"`
	City             string `json:"city,omitempty"`
	Region           string `json:"region,omitempty"`
	PostalCode       string `json:"postalCode,omitempty"`
	Country          string `json:"country,omitempty"`
	OrganizationID   string `json:"organizationId,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// Session is the durable record of an authenticated principal: an opaque
// credential plus the profile it belongs to. A Session returned by this
// package has passed the boundary validation in decodeSession.
type Session struct {
	Token   string  `json:"token"`
	Profile Profile `json:"user"`
}

// LoginOutcome is the result of a credential-accepted login. When the account
// has a second factor enabled, Session is nil and UserID identifies the
// principal awaiting verification.
type LoginOutcome struct {
	TwoFactorEnabled bool
	UserID           string
	Session          *Session
}

// OAuthOutcome is the result of exchanging a provider credential.
// NeedsAdditionalDetails signals that the account was created from provider
// data alone and the profile should be completed.
type OAuthOutcome struct {
	Session                *Session
	NeedsAdditionalDetails bool
}

// RegisterRequest carries the fields for account creation
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName,omitempty"`
	LastName    string `json:"lastName"`
	InviteToken string `json:"inviteToken,omitempty"`
}

// CompleteProfileRequest carries the fields merged into an existing profile
type CompleteProfileRequest struct {
	Phone          string `json:"phone,omitempty"`
	Street         string `json:"street,omitempty"`
	City           string `json:"city,omitempty"`
	Region         string `json:"region,omitempty"`
	PostalCode     string `json:"postalCode,omitempty"`
	Country        string `json:"country,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// TwoFactorEnrollment is the material returned when enabling a second factor
type TwoFactorEnrollment struct {
	Secret      string `json:"secret"`
	QRCodeImage string `json:"qrCodeImage"`
}

// RejectionError is an explicit refusal from the gateway carrying the
// server-supplied message. Any other error returned by this package is a
// transport failure (network error or undecodable response).
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected request (status %d): %s", e.StatusCode, e.Message)
}
