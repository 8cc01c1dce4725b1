package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck-dev/taskdeck/internal/models"
)

// seedResetKey creates a reset record directly, skipping the forgot-password
// endpoint so no task queue is needed.
func seedResetKey(t *testing.T, srv *Server, userID, key string, expiresAt time.Time) *models.PasswordReset {
	t.Helper()

	reset := &models.PasswordReset{
		UserID:    userID,
		Key:       key,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, srv.db.Create(reset).Error)
	return reset
}

func TestResetPasswordWithValidKey(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "heidi@example.com", "Str0ng!pass")
	user := resp["user"].(map[string]interface{})
	userID := user["id"].(string)

	seedResetKey(t, srv, userID, "valid-key", time.Now().Add(30*time.Minute))

	w := doJSON(t, srv, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"key":         "valid-key",
		"newPassword": "N3w!passwd",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old password no longer works, new one does.
	w = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "heidi@example.com",
		"password":   "Str0ng!pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "heidi@example.com",
		"password":   "N3w!passwd",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestResetKeyIsSingleUse(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "ivan@example.com", "Str0ng!pass")
	user := resp["user"].(map[string]interface{})
	userID := user["id"].(string)

	seedResetKey(t, srv, userID, "one-shot-key", time.Now().Add(30*time.Minute))

	w := doJSON(t, srv, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"key":         "one-shot-key",
		"newPassword": "N3w!passwd",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"key":         "one-shot-key",
		"newPassword": "An0ther!pw",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResetPasswordExpiredKey(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "judy@example.com", "Str0ng!pass")
	user := resp["user"].(map[string]interface{})
	userID := user["id"].(string)

	seedResetKey(t, srv, userID, "expired-key", time.Now().Add(-time.Minute))

	w := doJSON(t, srv, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"key":         "expired-key",
		"newPassword": "N3w!passwd",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResetPasswordRejectsWeakReplacement(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "karl@example.com", "Str0ng!pass")
	user := resp["user"].(map[string]interface{})
	userID := user["id"].(string)

	seedResetKey(t, srv, userID, "weak-pw-key", time.Now().Add(30*time.Minute))

	w := doJSON(t, srv, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"key":         "weak-pw-key",
		"newPassword": "alllowercase",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyResetKey(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "lena@example.com", "Str0ng!pass")
	user := resp["user"].(map[string]interface{})
	userID := user["id"].(string)

	seedResetKey(t, srv, userID, "check-key", time.Now().Add(30*time.Minute))

	w := doJSON(t, srv, http.MethodGet, "/api/auth/password/verify-key?key=check-key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["valid"])

	w = doJSON(t, srv, http.MethodGet, "/api/auth/password/verify-key?key=no-such-key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["valid"])

	w = doJSON(t, srv, http.MethodGet, "/api/auth/password/verify-key", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForgotPasswordUnknownAddressAcks(t *testing.T) {
	srv := newTestServer(t)

	// Unknown address returns before any task is enqueued, so no queue is
	// needed and the ack must be indistinguishable from the known case.
	w := doJSON(t, srv, http.MethodPost, "/api/auth/password/forgot", "", map[string]string{
		"identifier": "nobody@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}
