package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
	"github.com/taskdeck-dev/taskdeck/internal/models"
)

const (
	challengeTTL      = 5 * time.Minute
	challengeAttempts = 5
)

// LoginRequest represents a login request
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
}

// VerifyLoginRequest represents the second step of a 2FA login
type VerifyLoginRequest struct {
	Code   string `json:"code" binding:"required,otpcode"`
	UserID string `json:"userId" binding:"required"`
}

// RegisterRequest represents an account-creation request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,alphanum"`
	Password    string `json:"password" binding:"required,password"`
	FirstName   string `json:"firstName" binding:"required"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName" binding:"required"`
	InviteToken string `json:"inviteToken"`
}

// CompleteProfileRequest carries the optional fields merged into a profile
type CompleteProfileRequest struct {
	Phone          string `json:"phone"`
	Street         string `json:"street"`
	City           string `json:"city"`
	Region         string `json:"region"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`
	OrganizationID string `json:"organizationId"`
}

// UserDetail is the user object inside session payloads
type UserDetail struct {
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

func userDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		FirstName:        user.FirstName,
		MiddleName:       user.MiddleName,
		LastName:         user.LastName,
		Phone:            user.Phone,
		Street:           user.Street,
		City:             user.City,
		Region:           user.Region,
		PostalCode:       user.PostalCode,
		Country:          user.Country,
		OrganizationID:   user.OrganizationID,
		AvatarURL:        user.AvatarURL,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

// sessionPayload issues a token and renders the full session response body
func (s *Server) sessionPayload(c *gin.Context, user *models.User, extra gin.H) bool {
	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return false
	}

	body := gin.H{
		"token": token,
		"user":  userDetail(user),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
	return true
}

// login authenticates with identifier and password. When the account has a
// second factor enabled, a short-lived challenge row is created instead of a
// session and the client must follow up on /api/auth/login/2fa.
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", req.Identifier).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if user.PasswordHash == "" {
		// OAuth-only account.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if user.TwoFactorEnabled {
		challenge := &models.LoginChallenge{
			UserID:    user.ID,
			Attempts:  challengeAttempts,
			ExpiresAt: time.Now().Add(challengeTTL),
		}
		if err := s.db.Create(challenge).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to create login challenge")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		s.logger.Info().Str("user_id", user.ID).Msg("Login challenge issued")
		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"twoFactorEnabled": true,
			"userId":           user.ID,
		})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	s.sessionPayload(c, &user, gin.H{"success": true, "twoFactorEnabled": false})
}

// verifyLogin2FA completes a pending challenge with a one-time code
func (s *Server) verifyLogin2FA(c *gin.Context) {
	var req VerifyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var challenge models.LoginChallenge
	err := s.db.Where("user_id = ? AND expires_at > ?", req.UserID, time.Now()).
		Order("created_at DESC").First(&challenge).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No login challenge is pending"})
		return
	}

	if challenge.Attempts <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Too many attempts, please log in again"})
		return
	}

	var user models.User
	if err := s.db.Where("id = ?", req.UserID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No login challenge is pending"})
		return
	}

	if !auth.ValidateTOTP(req.Code, user.TOTPSecret) {
		if err := s.db.Model(&challenge).Update("attempts", challenge.Attempts-1).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to update challenge attempts")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	// Challenge consumed.
	if err := s.db.Where("user_id = ?", user.ID).Delete(&models.LoginChallenge{}).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete login challenges")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Second factor verified, user logged in")
	s.sessionPayload(c, &user, nil)
}

// register creates an account and logs it in immediately
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var orgID string
	if req.InviteToken != "" {
		var org models.Organization
		if err := s.db.Where("invite_token = ?", req.InviteToken).First(&org).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invite token"})
			return
		}
		orgID = org.ID
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	user := &models.User{
		Email:          req.Email,
		Username:       req.Username,
		PasswordHash:   passwordHash,
		FirstName:      req.FirstName,
		MiddleName:     req.MiddleName,
		LastName:       req.LastName,
		OrganizationID: orgID,
	}

	if err := s.db.Create(user).Error; err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("Failed to create user")
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email or username already exists"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Account created")
	s.sessionPayload(c, user, nil)
}

// getProfile returns the session payload for the presented token, confirming
// the stored credential is still accepted
func (s *Server) getProfile(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": getBearerToken(c),
		"user":  userDetail(user),
	})
}

// completeProfile merges phone, address and organization fields
func (s *Server) completeProfile(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CompleteProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Street != "" {
		user.Street = req.Street
	}
	if req.City != "" {
		user.City = req.City
	}
	if req.Region != "" {
		user.Region = req.Region
	}
	if req.PostalCode != "" {
		user.PostalCode = req.PostalCode
	}
	if req.Country != "" {
		user.Country = req.Country
	}
	if req.OrganizationID != "" {
		var org models.Organization
		if err := s.db.Where("id = ?", req.OrganizationID).First(&org).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown organization"})
			return
		}
		user.OrganizationID = org.ID
	}

	if err := s.db.Save(user).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": getBearerToken(c),
		"user":  userDetail(user),
	})
}

// logout acknowledges the end of a session. Tokens are stateless so there is
// nothing durable to revoke; the client discards its record.
func (s *Server) logout(c *gin.Context) {
	if user, exists := GetCurrentUser(c); exists {
		s.logger.Info().Str("user_id", user.ID).Msg("User logged out")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
