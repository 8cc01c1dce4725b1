package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
)

// Generate2FARequest asks for fresh enrollment material
type Generate2FARequest struct {
	UserID string `json:"userId" binding:"required"`
}

// TwoFactorCodeRequest carries a one-time code
type TwoFactorCodeRequest struct {
	Code string `json:"code" binding:"required,otpcode"`
}

// generate2FA creates a TOTP secret for the authenticated user. The secret
// is stored immediately but only trusted once a code verifies.
func (s *Server) generate2FA(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req Generate2FARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot enroll another user"})
		return
	}

	enrollment, err := auth.GenerateTOTP(s.config.Auth.TOTPIssuer, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate TOTP enrollment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := s.db.Model(user).Update("totp_secret", enrollment.Secret).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store TOTP secret")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("TOTP enrollment generated")
	c.JSON(http.StatusOK, gin.H{
		"secret":      enrollment.Secret,
		"qrCodeImage": enrollment.QRCodeImage,
	})
}

// verify2FA confirms the enrolled secret and switches the second factor on
func (s *Server) verify2FA(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if user.TOTPSecret == "" || !auth.ValidateTOTP(req.Code, user.TOTPSecret) {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	if err := s.db.Model(user).Update("two_factor_enabled", true).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to enable two-factor")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Two-factor enabled")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// disable2FA switches the second factor off after checking a current code
func (s *Server) disable2FA(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !user.TwoFactorEnabled || !auth.ValidateTOTP(req.Code, user.TOTPSecret) {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	updates := map[string]any{
		"two_factor_enabled": false,
		"totp_secret":        "",
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to disable two-factor")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Two-factor disabled")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
