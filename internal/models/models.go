package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User represents an account on the gateway. Profile fields beyond email and
// name are optional and may be filled in later via profile completion.
type User struct {
	BaseModel
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"type:varchar(60)"` // empty for OAuth-only accounts
	FirstName    string `json:"first_name" gorm:"not null"`
	MiddleName   string `json:"middle_name"`
	LastName     string `json:"last_name" gorm:"not null"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	City         string `json:"city"`
	Region       string `json:"region"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	AvatarURL    string `json:"avatar_url"`

	OrganizationID string `json:"organization_id" gorm:"index"`

	// Two-factor state. TOTPSecret is set by generate and only trusted once
	// TwoFactorEnabled is flipped by a successful verify.
	TwoFactorEnabled bool   `json:"two_factor_enabled" gorm:"not null;default:false"`
	TOTPSecret       string `json:"-"`
}

// LoginChallenge is a pending second-factor challenge created when a
// password-accepted login hits a 2FA-enabled account. Rows expire and are
// purged by the cleanup job; Attempts counts remaining tries.
type LoginChallenge struct {
	BaseModel
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Attempts  int       `json:"attempts" gorm:"not null;default:5"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

// PasswordReset is an outstanding reset key. Keys are single-use and expire.
type PasswordReset struct {
	BaseModel
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Key       string     `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	UsedAt    *time.Time `json:"used_at"`
}

// Organization groups users; invite tokens let registration and OAuth login
// attach a new user to an existing organization.
type Organization struct {
	BaseModel
	Name        string `json:"name" gorm:"not null"`
	InviteToken string `json:"-" gorm:"uniqueIndex"`
}

// Setting is the singleton server configuration row. The JWT secret is
// generated on first start and reused afterwards.
type Setting struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"`
}

// AutoMigrate runs migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&LoginChallenge{},
		&PasswordReset{},
		&Organization{},
		&Setting{},
	)
}
