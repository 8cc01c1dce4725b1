package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taskdeck-dev/taskdeck/internal/models"
)

// ProviderClaims are the identity fields extracted from a verified
// external-provider credential
type ProviderClaims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	Audience   string `json:"aud"`
}

// ProviderVerifier checks an external-provider credential and returns the
// identity it asserts. Tests substitute a fake.
type ProviderVerifier interface {
	Verify(ctx context.Context, credential string) (*ProviderClaims, error)
}

// tokenInfoVerifier verifies credentials against the provider's tokeninfo
// endpoint over HTTPS
type tokenInfoVerifier struct {
	tokenInfoURL string
	audience     string
	httpClient   *http.Client
}

// NewTokenInfoVerifier builds the default verifier. An empty audience skips
// the audience check (development only).
func NewTokenInfoVerifier(tokenInfoURL, audience string) ProviderVerifier {
	return &tokenInfoVerifier{
		tokenInfoURL: tokenInfoURL,
		audience:     audience,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *tokenInfoVerifier) Verify(ctx context.Context, credential string) (*ProviderClaims, error) {
	u := v.tokenInfoURL + "?id_token=" + url.QueryEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return nil, fmt.Errorf("provider rejected credential (status %d): %s", resp.StatusCode, string(body))
	}

	var claims ProviderClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if claims.Email == "" || claims.Subject == "" {
		return nil, fmt.Errorf("provider response missing identity fields")
	}
	if v.audience != "" && claims.Audience != v.audience {
		return nil, fmt.Errorf("credential audience mismatch")
	}
	return &claims, nil
}

// OAuthRequest represents a provider-credential exchange
type OAuthRequest struct {
	ProviderCredential string `json:"providerCredential" binding:"required"`
	InviteToken        string `json:"inviteToken"`
}

// oauthLogin exchanges a verified provider credential for a session. An
// unknown email creates the account on the fly; the response flags it so the
// client can ask for the missing profile details. The exchange never raises a
// second-factor challenge: the provider already vouched for the identity.
func (s *Server) oauthLogin(c *gin.Context) {
	var req OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := s.verifier.Verify(c.Request.Context(), req.ProviderCredential)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Provider credential verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Provider credential was not accepted"})
		return
	}

	var user models.User
	err = s.db.Where("email = ?", claims.Email).First(&user).Error
	switch {
	case err == nil:
		s.logger.Info().Str("user_id", user.ID).Msg("OAuth login")
		s.sessionPayload(c, &user, gin.H{"needsAdditionalDetails": false})

	case err == gorm.ErrRecordNotFound:
		var orgID string
		if req.InviteToken != "" {
			var org models.Organization
			if err := s.db.Where("invite_token = ?", req.InviteToken).First(&org).Error; err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invite token"})
				return
			}
			orgID = org.ID
		}

		user = models.User{
			Email:          claims.Email,
			Username:       usernameFromEmail(claims.Email),
			FirstName:      claims.GivenName,
			LastName:       claims.FamilyName,
			AvatarURL:      claims.Picture,
			OrganizationID: orgID,
		}
		if user.FirstName == "" {
			user.FirstName = user.Username
		}
		if user.LastName == "" {
			user.LastName = user.Username
		}

		if err := s.db.Create(&user).Error; err != nil {
			s.logger.Error().Err(err).Str("email", claims.Email).Msg("Failed to create OAuth user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
			return
		}

		s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Account created from OAuth login")
		s.sessionPayload(c, &user, gin.H{"needsAdditionalDetails": true})

	default:
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
