package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
	"github.com/taskdeck-dev/taskdeck/internal/models"
	"github.com/taskdeck-dev/taskdeck/internal/tasks"
)

const resetKeyTTL = 30 * time.Minute

// ForgotPasswordRequest asks for a reset key by identifier
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required,email"`
}

// ResetPasswordRequest consumes a reset key
type ResetPasswordRequest struct {
	Key         string `json:"key" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,password"`
}

// forgotPassword issues a reset key and queues the notification email. The
// response is identical whether or not the address exists.
func (s *Server) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack := gin.H{"success": true}

	var user models.User
	if err := s.db.Where("email = ?", req.Identifier).First(&user).Error; err != nil {
		// Do not reveal whether the address is registered.
		c.JSON(http.StatusOK, ack)
		return
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate reset key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		Key:       hex.EncodeToString(keyBytes),
		ExpiresAt: time.Now().Add(resetKeyTTL),
	}
	if err := s.db.Create(reset).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create password reset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	task, err := tasks.NewSendResetEmailTask(reset.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build reset email task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := s.asynqClient.Enqueue(task); err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue reset email task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Password reset key issued")
	c.JSON(http.StatusOK, ack)
}

// resetPassword validates the key and replaces the password hash
func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var reset models.PasswordReset
	err := s.db.Where("key = ? AND used_at IS NULL AND expires_at > ?", req.Key, time.Now()).
		First(&reset).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Reset key is expired or unknown"})
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", reset.UserID).
		Update("password_hash", passwordHash).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	now := time.Now()
	if err := s.db.Model(&reset).Update("used_at", &now).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to mark reset key used")
	}

	s.logger.Info().Str("user_id", reset.UserID).Msg("Password reset completed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// verifyResetKey reports whether a key can still be used
func (s *Server) verifyResetKey(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	var count int64
	if err := s.db.Model(&models.PasswordReset{}).
		Where("key = ? AND used_at IS NULL AND expires_at > ?", key, time.Now()).
		Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check reset key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": count > 0})
}
