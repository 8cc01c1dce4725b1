package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/taskdeck-dev/taskdeck/internal/config"
	"github.com/taskdeck-dev/taskdeck/internal/models"
	"github.com/taskdeck-dev/taskdeck/internal/tasks"
)

// Mailer delivers outbound mail. The default implementation only logs the
// message so local environments work without an SMTP relay.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// LogMailer writes the would-be email to the log instead of sending it.
type LogMailer struct {
	From   string
	Logger zerolog.Logger
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.Logger.Info().
		Str("from", m.From).
		Str("to", to).
		Str("reset_url", resetURL).
		Msg("Password reset email (log-only delivery)")
	return nil
}

// HandleSendResetEmail delivers the password reset email for a reset record
func HandleSendResetEmail(ctx context.Context, t *asynq.Task, db *gorm.DB, cfg *config.Config, mailer Mailer, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	var reset models.PasswordReset
	if err := db.First(&reset, "id = ?", payload.ResetID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			// Reset was purged before delivery. Nothing to do.
			logger.Warn().Str("reset_id", payload.ResetID).Msg("Reset record not found, skipping email")
			return nil
		}
		return fmt.Errorf("failed to load reset record: %w", err)
	}

	if reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
		logger.Info().Str("reset_id", reset.ID).Msg("Reset key no longer valid, skipping email")
		return nil
	}

	var user models.User
	if err := db.First(&user, "id = ?", reset.UserID).Error; err != nil {
		return fmt.Errorf("failed to load user for reset: %w", err)
	}

	resetURL := fmt.Sprintf("%s?key=%s", cfg.Mail.ResetBaseURL, reset.Key)
	if err := mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	logger.Info().
		Str("reset_id", reset.ID).
		Str("user_id", user.ID).
		Msg("Password reset email delivered")
	return nil
}
