// Package validate holds the credential pre-checks shared by the CLI client
// and the gateway server. The client runs them before any network call; the
// server registers them as custom go-playground validators so the same rules
// are enforced on both sides of the wire.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// TwoFactorCodeLength is the exact number of digits in a one-time code.
const TwoFactorCodeLength = 6

// passwordSymbols is the accepted punctuation set for the password policy.
const passwordSymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var (
	ErrCodeRequired  = errors.New("verification code is required")
	ErrCodeFormat    = errors.New("verification code must be exactly 6 digits")
	ErrEmailRequired = errors.New("email is required")
	ErrEmailFormat   = errors.New("email address is not valid")
)

// TwoFactorCode checks that code is exactly six ASCII digits.
func TwoFactorCode(code string) error {
	if code == "" {
		return ErrCodeRequired
	}
	if len(code) != TwoFactorCodeLength {
		return ErrCodeFormat
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrCodeFormat
		}
	}
	return nil
}

// Email checks the identifier has an email shape. This is an advisory
// fast-fail; the gateway independently validates on its side.
func Email(identifier string) error {
	if identifier == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(identifier) {
		return ErrEmailFormat
	}
	return nil
}

// Password enforces the password policy: at least 8 characters with one
// uppercase letter, one lowercase letter, one digit and one symbol from the
// accepted punctuation set. Returns nil when the password is acceptable,
// otherwise an error naming the first missing requirement.
func Password(password string) error {
	if len(password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return errors.New("password must contain an uppercase letter")
	case !lower:
		return errors.New("password must contain a lowercase letter")
	case !digit:
		return errors.New("password must contain a digit")
	case !symbol:
		return errors.New("password must contain a symbol")
	}
	return nil
}
