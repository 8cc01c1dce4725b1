package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionPayload() map[string]any {
	return map[string]any{
		"token": "tok-1",
		"user": map[string]any{
			"id":               "u1",
			"email":            "alice@example.com",
			"username":         "alice",
			"firstName":        "Alice",
			"lastName":         "Doe",
			"twoFactorEnabled": false,
		},
	}
}

func TestLogin_DirectSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice@example.com", req.Identifier)

		body := sessionPayload()
		body["success"] = true
		body["twoFactorEnabled"] = false
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := New(srv.URL)
	outcome, err := c.Login(context.Background(), "alice@example.com", "correct-pw")

	require.NoError(t, err)
	assert.False(t, outcome.TwoFactorEnabled)
	require.NotNil(t, outcome.Session)
	assert.Equal(t, "tok-1", outcome.Session.Token)
	assert.Equal(t, "u1", outcome.Session.Profile.ID)
}

func TestLogin_ChallengeRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":          true,
			"twoFactorEnabled": true,
			"userId":           "u1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	outcome, err := c.Login(context.Background(), "alice@example.com", "correct-pw")

	require.NoError(t, err)
	assert.True(t, outcome.TwoFactorEnabled)
	assert.Equal(t, "u1", outcome.UserID)
	assert.Nil(t, outcome.Session)
}

func TestLogin_RejectionCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid email or password"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "alice@example.com", "wrong")

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusUnauthorized, rej.StatusCode)
	assert.Equal(t, "invalid email or password", rej.Message)
}

func TestLogin_UndecodableErrorBodyIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream busted</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "alice@example.com", "pw")

	require.Error(t, err)
	var rej *RejectionError
	assert.False(t, errors.As(err, &rej), "non-JSON failure is transport, not rejection")
}

func TestVerifyLogin2FA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login/2fa", r.URL.Path)

		var req struct {
			Code   string `json:"code"`
			UserID string `json:"userId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "123456", req.Code)
		assert.Equal(t, "u1", req.UserID)

		json.NewEncoder(w).Encode(sessionPayload())
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess, err := c.VerifyLogin2FA(context.Background(), "123456", "u1")

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.Profile.Email)
}

func TestProfile_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/profile", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(sessionPayload())
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess, err := c.Profile(context.Background(), "tok-1")

	require.NoError(t, err)
	assert.Equal(t, "u1", sess.Profile.ID)
}

func TestDecodeSession_RejectsIncompletePayload(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing token", body: map[string]any{"user": map[string]any{"id": "u1", "email": "a@b.co"}}},
		{name: "missing user id", body: map[string]any{"token": "tok-1", "user": map[string]any{"email": "a@b.co"}}},
		{name: "missing email", body: map[string]any{"token": "tok-1", "user": map[string]any{"id": "u1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			c := New(srv.URL)
			_, err := c.Profile(context.Background(), "tok-1")
			assert.Error(t, err, "boundary validation must reject incomplete payloads")
		})
	}
}

func TestVerifyResetKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/password/verify-key", r.URL.Path)
		assert.Equal(t, "key-123", r.URL.Query().Get("key"))
		json.NewEncoder(w).Encode(map[string]bool{"valid": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	valid, err := c.VerifyResetKey(context.Background(), "key-123")

	require.NoError(t, err)
	assert.True(t, valid)
}

func TestOAuthLogin_NeedsAdditionalDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/oauth", r.URL.Path)
		body := sessionPayload()
		body["needsAdditionalDetails"] = true
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := New(srv.URL)
	outcome, err := c.OAuthLogin(context.Background(), "provider-token", "invite-1")

	require.NoError(t, err)
	assert.True(t, outcome.NeedsAdditionalDetails)
	assert.Equal(t, "u1", outcome.Session.Profile.ID)
}

func TestGenerate2FA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/2fa/generate", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"secret": "BASE32SECRET", "qrCodeImage": "aW1n"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	enrollment, err := c.Generate2FA(context.Background(), "tok-1", "u1")

	require.NoError(t, err)
	assert.Equal(t, "BASE32SECRET", enrollment.Secret)
	assert.NotEmpty(t, enrollment.QRCodeImage)
}
