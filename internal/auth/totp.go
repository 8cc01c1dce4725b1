package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp/totp"
)

// TOTPEnrollment is the material a user needs to configure an authenticator app
type TOTPEnrollment struct {
	Secret      string // base32 secret
	QRCodeImage string // base64-encoded PNG of the otpauth:// URL
}

// GenerateTOTP creates a new TOTP secret for the account and renders the
// enrollment QR code. The secret is not trusted until a code verifies.
func GenerateTOTP(issuer, accountEmail string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &TOTPEnrollment{
		Secret:      key.Secret(),
		QRCodeImage: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ValidateTOTP checks a one-time code against a stored secret
func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
