package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enroll2FA runs the full generate/verify enrollment for a registered user
// and returns the shared secret.
func enroll2FA(t *testing.T, srv *Server, token, userID string) string {
	t.Helper()

	w := doJSON(t, srv, http.MethodPost, "/api/auth/2fa/generate", token, map[string]string{
		"userId": userID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var enrollment map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enrollment))
	secret, _ := enrollment["secret"].(string)
	require.NotEmpty(t, secret)
	require.NotEmpty(t, enrollment["qrCodeImage"])

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/2fa/verify", token, map[string]string{
		"code": code,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verify map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verify))
	require.Equal(t, true, verify["success"])

	return secret
}

func TestTwoFactorEnrollment(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "mary@example.com", "Str0ng!pass")
	token := resp["token"].(string)
	userID := resp["user"].(map[string]interface{})["id"].(string)

	enroll2FA(t, srv, token, userID)

	// Profile now reports the second factor as enabled.
	w := doJSON(t, srv, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	user := profile["user"].(map[string]interface{})
	assert.Equal(t, true, user["twoFactorEnabled"])
}

func TestGenerate2FAForAnotherUserForbidden(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "nina@example.com", "Str0ng!pass")
	token := resp["token"].(string)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/2fa/generate", token, map[string]string{
		"userId": "someone-else",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerify2FAWrongCode(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "omar@example.com", "Str0ng!pass")
	token := resp["token"].(string)
	userID := resp["user"].(map[string]interface{})["id"].(string)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/2fa/generate", token, map[string]string{
		"userId": userID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/2fa/verify", token, map[string]string{
		"code": "000000",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var verify map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verify))
	assert.Equal(t, false, verify["success"])
}

func TestLoginWithSecondFactor(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "pete@example.com", "Str0ng!pass")
	token := resp["token"].(string)
	userID := resp["user"].(map[string]interface{})["id"].(string)
	secret := enroll2FA(t, srv, token, userID)

	// First step yields a challenge instead of a session.
	w := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "pete@example.com",
		"password":   "Str0ng!pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var step1 map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &step1))
	assert.Equal(t, true, step1["twoFactorEnabled"])
	assert.Nil(t, step1["token"])
	require.Equal(t, userID, step1["userId"])

	// Wrong code burns an attempt but keeps the challenge alive.
	w = doJSON(t, srv, http.MethodPost, "/api/auth/login/2fa", "", map[string]string{
		"code":   "000000",
		"userId": userID,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/login/2fa", "", map[string]string{
		"code":   code,
		"userId": userID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var step2 map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &step2))
	assert.NotEmpty(t, step2["token"])

	// Challenge is consumed, replaying the code fails.
	w = doJSON(t, srv, http.MethodPost, "/api/auth/login/2fa", "", map[string]string{
		"code":   code,
		"userId": userID,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisableTwoFactor(t *testing.T) {
	srv := newTestServer(t)

	resp := registerUser(t, srv, "rita@example.com", "Str0ng!pass")
	token := resp["token"].(string)
	userID := resp["user"].(map[string]interface{})["id"].(string)
	secret := enroll2FA(t, srv, token, userID)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/2fa/disable", token, map[string]string{
		"code": code,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var disable map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &disable))
	assert.Equal(t, true, disable["success"])

	// Plain login works again.
	w = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "rita@example.com",
		"password":   "Str0ng!pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var login map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login["token"])
	assert.Equal(t, false, login["twoFactorEnabled"])
}
