// Package gateway is the HTTP client for the Taskdeck auth API. All request
// and response decoding happens here: callers get fully-typed values or an
// error, never raw JSON.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is an HTTP client for the Taskdeck auth gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new gateway client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// loginResponse is the login wire shape. The session fields are present only
// when the account has no second factor.
type loginResponse struct {
	Success          bool     `json:"success"`
	TwoFactorEnabled bool     `json:"twoFactorEnabled"`
	UserID           string   `json:"userId,omitempty"`
	Token            string   `json:"token,omitempty"`
	Profile          *Profile `json:"user,omitempty"`
}

// Login submits credentials. A nil error means the credentials were accepted;
// inspect the outcome to see whether a second factor is still required.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginOutcome, error) {
	resp, err := c.post(ctx, "/api/auth/login", loginRequest{Identifier: identifier, Password: password}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.TwoFactorEnabled {
		if body.UserID == "" {
			return nil, fmt.Errorf("login response missing userId for pending challenge")
		}
		return &LoginOutcome{TwoFactorEnabled: true, UserID: body.UserID}, nil
	}

	sess, err := validateSession(&Session{Token: body.Token, Profile: deref(body.Profile)})
	if err != nil {
		return nil, err
	}
	return &LoginOutcome{Session: sess}, nil
}

type verifyLoginRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

// VerifyLogin2FA exchanges a pending challenge and one-time code for a session
func (c *Client) VerifyLogin2FA(ctx context.Context, code, userID string) (*Session, error) {
	resp, err := c.post(ctx, "/api/auth/login/2fa", verifyLoginRequest{Code: code, UserID: userID}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSession(resp)
}

// Register creates an account and returns its session directly
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	resp, err := c.post(ctx, "/api/auth/register", req, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSession(resp)
}

type oauthRequest struct {
	ProviderCredential string `json:"providerCredential"`
	InviteToken        string `json:"inviteToken,omitempty"`
}

type oauthResponse struct {
	Token                  string   `json:"token"`
	Profile                *Profile `json:"user"`
	NeedsAdditionalDetails bool     `json:"needsAdditionalDetails,omitempty"`
}

// OAuthLogin exchanges an external-provider credential for a session
func (c *Client) OAuthLogin(ctx context.Context, providerCredential, inviteToken string) (*OAuthOutcome, error) {
	resp, err := c.post(ctx, "/api/auth/oauth", oauthRequest{ProviderCredential: providerCredential, InviteToken: inviteToken}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var body oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	sess, err := validateSession(&Session{Token: body.Token, Profile: deref(body.Profile)})
	if err != nil {
		return nil, err
	}
	return &OAuthOutcome{Session: sess, NeedsAdditionalDetails: body.NeedsAdditionalDetails}, nil
}

// CompleteProfile merges additional profile fields into the account
func (c *Client) CompleteProfile(ctx context.Context, token string, req CompleteProfileRequest) (*Session, error) {
	resp, err := c.post(ctx, "/api/auth/profile/complete", req, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSession(resp)
}

// Logout informs the gateway that the session is finished
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.post(ctx, "/api/auth/logout", struct{}{}, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Profile fetches the current session payload, confirming the credential is
// still accepted server-side
func (c *Client) Profile(ctx context.Context, token string) (*Session, error) {
	resp, err := c.get(ctx, "/api/auth/profile", nil, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSession(resp)
}

type forgotPasswordRequest struct {
	Identifier string `json:"identifier"`
}

// ForgotPassword asks the gateway to send a reset key to the identifier
func (c *Client) ForgotPassword(ctx context.Context, identifier string) error {
	resp, err := c.post(ctx, "/api/auth/password/forgot", forgotPasswordRequest{Identifier: identifier}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

type resetPasswordRequest struct {
	Key         string `json:"key"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword consumes a reset key and sets a new password
func (c *Client) ResetPassword(ctx context.Context, key, newPassword string) error {
	resp, err := c.post(ctx, "/api/auth/password/reset", resetPasswordRequest{Key: key, NewPassword: newPassword}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// VerifyResetKey reports whether a reset key is still valid
func (c *Client) VerifyResetKey(ctx context.Context, key string) (bool, error) {
	resp, err := c.get(ctx, "/api/auth/password/verify-key", url.Values{"key": {key}}, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}

	var body struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Valid, nil
}

type generate2FARequest struct {
	UserID string `json:"userId"`
}

// Generate2FA creates a fresh TOTP secret and enrollment QR code for the user
func (c *Client) Generate2FA(ctx context.Context, token, userID string) (*TwoFactorEnrollment, error) {
	resp, err := c.post(ctx, "/api/auth/2fa/generate", generate2FARequest{UserID: userID}, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var body TwoFactorEnrollment
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &body, nil
}

type codeRequest struct {
	Code string `json:"code"`
}

// Verify2FA confirms the enrolled secret and switches the second factor on
func (c *Client) Verify2FA(ctx context.Context, token, code string) (bool, error) {
	return c.twoFactorToggle(ctx, "/api/auth/2fa/verify", token, code)
}

// Disable2FA switches the second factor off after checking a current code
func (c *Client) Disable2FA(ctx context.Context, token, code string) (bool, error) {
	return c.twoFactorToggle(ctx, "/api/auth/2fa/disable", token, code)
}

func (c *Client) twoFactorToggle(ctx context.Context, path, token, code string) (bool, error) {
	resp, err := c.post(ctx, path, codeRequest{Code: code}, token)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Success, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, token string) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, token string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeSession is the single decode-and-validate step for endpoints that
// return a full session payload.
func decodeSession(resp *http.Response) (*Session, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return validateSession(&sess)
}

func validateSession(sess *Session) (*Session, error) {
	switch {
	case sess.Token == "":
		return nil, fmt.Errorf("session payload missing token")
	case sess.Profile.ID == "":
		return nil, fmt.Errorf("session payload missing user id")
	case sess.Profile.Email == "":
		return nil, fmt.Errorf("session payload missing email")
	}
	return sess, nil
}

// decodeError turns a non-2xx response into a RejectionError carrying the
// server's message, or a plain error when the body is not the error shape.
func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("request failed (status %d): %w", resp.StatusCode, err)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, string(data))
	}
	return &RejectionError{StatusCode: resp.StatusCode, Message: body.Error}
}

func deref(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	return *p
}
