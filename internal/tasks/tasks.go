package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Mail delivery tasks
	TypeSendResetEmail = "mail:send_reset_email"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	ResetID string `json:"reset_id,omitempty"`
}

// NewSendResetEmailTask creates a task to deliver a password reset email
func NewSendResetEmailTask(resetID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		ResetID: resetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSendResetEmail, payload), nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
