// Package session owns the client-side authentication lifecycle. The
// Controller is the single source of truth for "who is logged in" and the
// sole writer of the persisted session record.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
	"github.com/taskdeck-dev/taskdeck/internal/validate"
)

// Gateway is the slice of the auth API the controller depends on. The HTTP
// implementation lives in internal/cli/gateway; tests substitute a fake.
type Gateway interface {
	Login(ctx context.Context, identifier, password string) (*gateway.LoginOutcome, error)
	VerifyLogin2FA(ctx context.Context, code, userID string) (*gateway.Session, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Session, error)
	OAuthLogin(ctx context.Context, providerCredential, inviteToken string) (*gateway.OAuthOutcome, error)
	CompleteProfile(ctx context.Context, token string, req gateway.CompleteProfileRequest) (*gateway.Session, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, token string) (*gateway.Session, error)
	ForgotPassword(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, key, newPassword string) error
	VerifyResetKey(ctx context.Context, key string) (bool, error)
	Generate2FA(ctx context.Context, token, userID string) (*gateway.TwoFactorEnrollment, error)
	Verify2FA(ctx context.Context, token, code string) (bool, error)
	Disable2FA(ctx context.Context, token, code string) (bool, error)
}

// Store persists the authenticated session across process restarts.
// Load returns (nil, nil) for a missing or malformed record.
type Store interface {
	Save(sess *gateway.Session) error
	Load() (*gateway.Session, error)
	Delete() error
}

// pendingChallenge is the volatile state between a password-accepted login
// and second-factor verification. It is never persisted.
type pendingChallenge struct {
	userID string
}

// operation kinds for the request-sequence latch.
type opKind int

const (
	opLogin opKind = iota
	opVerify
	opRegister
	opOAuth
	opCompleteProfile
	opHydrate
	opTwoFactor
	opKindCount
)

// Controller orchestrates login, registration, OAuth exchange, two-factor
// verification, logout and profile completion. All methods are safe for
// concurrent use; overlapping requests of the same kind resolve
// last-issued-wins via a per-kind sequence latch.
type Controller struct {
	gw    Gateway
	store Store
	log   zerolog.Logger

	mu        sync.Mutex
	state     State
	session   *gateway.Session
	challenge *pendingChallenge
	hydrated  bool
	seq       [opKindCount]uint64
}

// New creates a controller in the Anonymous state. Call Hydrate to restore a
// persisted session.
func New(gw Gateway, store Store, log zerolog.Logger) *Controller {
	return &Controller{
		gw:    gw,
		store: store,
		log:   log,
		state: StateAnonymous,
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Hydrated reports whether the initial restore has completed. The route
// guard makes no decision until it has.
func (c *Controller) Hydrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hydrated
}

// Current returns a copy of the authenticated session, or nil
func (c *Controller) Current() *gateway.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

// ChallengeUserID returns the principal awaiting a second factor, if any
func (c *Controller) ChallengeUserID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.challenge == nil {
		return "", false
	}
	return c.challenge.userID, true
}

// begin takes the next sequence number for an operation kind. A response is
// applied only while its number is still the newest of its kind, so a
// double-submit cannot interleave two half-applied outcomes.
func (c *Controller) begin(kind opKind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[kind]++
	return c.seq[kind]
}

func (c *Controller) currentLocked(kind opKind, n uint64) bool {
	return c.seq[kind] == n
}

// invalidateAllLocked bumps every sequence so in-flight responses issued
// before this point can never apply.
func (c *Controller) invalidateAllLocked() {
	for k := range c.seq {
		c.seq[k]++
	}
}

var staleResult = failure(FailureInvalidState, "superseded by a newer request")

// Hydrate restores the persisted session record and revalidates it against
// the gateway. An explicit credential rejection forces the anonymous state
// and deletes the record; any other failure keeps the restored session so a
// network outage does not log the user out.
func (c *Controller) Hydrate(ctx context.Context) {
	seq := c.begin(opHydrate)

	stored, err := c.store.Load()
	if err != nil || stored == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.hydrated = true
		return
	}

	fresh, err := c.gw.Profile(ctx, stored.Token)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrated = true
	if !c.currentLocked(opHydrate, seq) {
		return
	}

	switch {
	case err == nil:
		c.session = fresh
		c.state = StateAuthenticated
		c.persistLocked()
	case isRejection(err):
		c.log.Warn().Err(err).Msg("Stored credential no longer accepted, clearing session")
		c.clearLocked()
	default:
		c.log.Warn().Err(err).Msg("Could not revalidate stored session, keeping it")
		c.session = stored
		c.state = StateAuthenticated
	}
}

// Login submits an identifier and password. Returns success, a
// challenge-required result (second factor pending), or a failure.
func (c *Controller) Login(ctx context.Context, identifier, password string) Result {
	if err := validate.Email(identifier); err != nil {
		return failure(FailureValidation, err.Error())
	}
	if password == "" {
		return failure(FailureValidation, "password is required")
	}

	seq := c.begin(opLogin)
	outcome, err := c.gw.Login(ctx, identifier, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opLogin, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, false)
	}

	if outcome.TwoFactorEnabled {
		c.challenge = &pendingChallenge{userID: outcome.UserID}
		c.state = StateAwaitingSecondFactor
		c.session = nil
		return challengeRequired()
	}

	c.adoptLocked(outcome.Session)
	return success()
}

// VerifyTwoFactor exchanges the pending challenge and a one-time code for a
// session. The challenge is retained on failure so the user may retry.
func (c *Controller) VerifyTwoFactor(ctx context.Context, code string) Result {
	if err := validate.TwoFactorCode(code); err != nil {
		return failure(FailureValidation, err.Error())
	}

	c.mu.Lock()
	if c.challenge == nil {
		c.mu.Unlock()
		return failure(FailureInvalidState, "no login challenge is pending")
	}
	userID := c.challenge.userID
	c.mu.Unlock()

	seq := c.begin(opVerify)
	sess, err := c.gw.VerifyLogin2FA(ctx, code, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opVerify, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, false)
	}

	c.challenge = nil
	c.adoptLocked(sess)
	return success()
}

// CancelTwoFactor abandons a pending challenge and returns to anonymous
func (c *Controller) CancelTwoFactor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.challenge = nil
	if c.state == StateAwaitingSecondFactor {
		c.state = StateAnonymous
	}
}

// Register creates an account and logs it in immediately. A second factor is
// never requested here: a new account has none configured yet.
func (c *Controller) Register(ctx context.Context, req gateway.RegisterRequest) Result {
	if err := validate.Email(req.Email); err != nil {
		return failure(FailureValidation, err.Error())
	}
	if err := validate.Password(req.Password); err != nil {
		return failure(FailureValidation, err.Error())
	}
	if req.FirstName == "" || req.LastName == "" || req.Username == "" {
		return failure(FailureValidation, "first name, last name and username are required")
	}

	seq := c.begin(opRegister)
	sess, err := c.gw.Register(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opRegister, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, false)
	}

	c.challenge = nil
	c.adoptLocked(sess)
	return success()
}

// LoginWithOAuth exchanges an external-provider credential for a session.
// Like registration, the exchange bypasses the second-factor challenge.
func (c *Controller) LoginWithOAuth(ctx context.Context, providerCredential, inviteToken string) Result {
	if providerCredential == "" {
		return failure(FailureValidation, "provider credential is required")
	}

	seq := c.begin(opOAuth)
	outcome, err := c.gw.OAuthLogin(ctx, providerCredential, inviteToken)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opOAuth, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, false)
	}

	c.challenge = nil
	c.adoptLocked(outcome.Session)
	res := success()
	res.NeedsAdditionalDetails = outcome.NeedsAdditionalDetails
	return res
}

// CompleteProfile merges phone, address and organization fields into the
// current session's profile. Requires the authenticated state.
func (c *Controller) CompleteProfile(ctx context.Context, req gateway.CompleteProfileRequest) Result {
	c.mu.Lock()
	if c.state != StateAuthenticated || c.session == nil {
		c.mu.Unlock()
		return failure(FailureInvalidState, "not logged in")
	}
	token := c.session.Token
	c.mu.Unlock()

	seq := c.begin(opCompleteProfile)
	sess, err := c.gw.CompleteProfile(ctx, token, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opCompleteProfile, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, true)
	}

	c.adoptLocked(sess)
	return success()
}

// Logout informs the gateway best-effort and unconditionally clears the
// session, the pending challenge and the persisted record. Always succeeds.
func (c *Controller) Logout(ctx context.Context) Result {
	c.mu.Lock()
	var token string
	if c.session != nil {
		token = c.session.Token
	}
	// Invalidate every in-flight request: a late login response must not
	// resurrect a session the user just discarded.
	c.invalidateAllLocked()
	c.clearLocked()
	c.mu.Unlock()

	if token != "" {
		if err := c.gw.Logout(ctx, token); err != nil {
			c.log.Warn().Err(err).Msg("Gateway logout failed, local session cleared anyway")
		}
	}
	return success()
}

// RequestPasswordReset asks the gateway to issue a reset key. Stateless.
func (c *Controller) RequestPasswordReset(ctx context.Context, identifier string) Result {
	if err := validate.Email(identifier); err != nil {
		return failure(FailureValidation, err.Error())
	}
	if err := c.gw.ForgotPassword(ctx, identifier); err != nil {
		return c.failureFrom(err)
	}
	return success()
}

// ResetPassword consumes a reset key. The password policy is checked here as
// a fast-fail; the gateway re-validates.
func (c *Controller) ResetPassword(ctx context.Context, key, newPassword string) Result {
	if key == "" {
		return failure(FailureValidation, "reset key is required")
	}
	if err := validate.Password(newPassword); err != nil {
		return failure(FailureValidation, err.Error())
	}
	if err := c.gw.ResetPassword(ctx, key, newPassword); err != nil {
		return c.failureFrom(err)
	}
	return success()
}

// VerifyResetKey reports whether a reset key is still valid. Stateless.
func (c *Controller) VerifyResetKey(ctx context.Context, key string) (bool, Result) {
	if key == "" {
		return false, failure(FailureValidation, "reset key is required")
	}
	valid, err := c.gw.VerifyResetKey(ctx, key)
	if err != nil {
		return false, c.failureFrom(err)
	}
	return valid, success()
}

// SetupTwoFactor requests enrollment material for the authenticated user
func (c *Controller) SetupTwoFactor(ctx context.Context) (*gateway.TwoFactorEnrollment, Result) {
	c.mu.Lock()
	if c.state != StateAuthenticated || c.session == nil {
		c.mu.Unlock()
		return nil, failure(FailureInvalidState, "not logged in")
	}
	token, userID := c.session.Token, c.session.Profile.ID
	c.mu.Unlock()

	enrollment, err := c.gw.Generate2FA(ctx, token, userID)
	if err != nil {
		return nil, c.failureFromAuthed(err)
	}
	return enrollment, success()
}

// ConfirmTwoFactor verifies the enrolled secret and records the second
// factor as enabled on the session.
func (c *Controller) ConfirmTwoFactor(ctx context.Context, code string) Result {
	return c.toggleTwoFactor(ctx, code, true)
}

// DisableTwoFactor turns the second factor off after checking a current code
func (c *Controller) DisableTwoFactor(ctx context.Context, code string) Result {
	return c.toggleTwoFactor(ctx, code, false)
}

func (c *Controller) toggleTwoFactor(ctx context.Context, code string, enable bool) Result {
	if err := validate.TwoFactorCode(code); err != nil {
		return failure(FailureValidation, err.Error())
	}

	c.mu.Lock()
	if c.state != StateAuthenticated || c.session == nil {
		c.mu.Unlock()
		return failure(FailureInvalidState, "not logged in")
	}
	token := c.session.Token
	c.mu.Unlock()

	seq := c.begin(opTwoFactor)
	var ok bool
	var err error
	if enable {
		ok, err = c.gw.Verify2FA(ctx, token, code)
	} else {
		ok, err = c.gw.Disable2FA(ctx, token, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(opTwoFactor, seq) {
		return staleResult
	}
	if err != nil {
		return c.failureFromLocked(err, true)
	}
	if !ok {
		return failure(FailureCredentialRejected, "invalid code")
	}
	if c.session != nil {
		c.session.Profile.TwoFactorEnabled = enable
		c.persistLocked()
	}
	return success()
}

// adoptLocked promotes a gateway session to the authenticated state and
// persists it. Caller holds the lock.
func (c *Controller) adoptLocked(sess *gateway.Session) {
	c.session = sess
	c.state = StateAuthenticated
	c.persistLocked()
}

func (c *Controller) persistLocked() {
	if err := c.store.Save(c.session); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist session record")
	}
}

// clearLocked drops all authentication state and the persisted record.
// Caller holds the lock.
func (c *Controller) clearLocked() {
	c.session = nil
	c.challenge = nil
	c.state = StateAnonymous
	if err := c.store.Delete(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to delete session record")
	}
}

// failureFromLocked maps a gateway error to a Result. Caller holds the lock.
// When authed is true and the gateway explicitly rejected the credential, the
// session is force-cleared: the stored token is no longer accepted.
func (c *Controller) failureFromLocked(err error, authed bool) Result {
	var rej *gateway.RejectionError
	if errors.As(err, &rej) {
		if authed && (rej.StatusCode == 401 || rej.StatusCode == 403) {
			c.log.Warn().Int("status", rej.StatusCode).Msg("Credential rejected on authenticated call, clearing session")
			c.clearLocked()
		}
		return failure(FailureCredentialRejected, rej.Message)
	}
	c.log.Error().Err(err).Msg("Gateway call failed")
	return failure(FailureTransport, transportMessage)
}

func (c *Controller) failureFrom(err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureFromLocked(err, false)
}

func (c *Controller) failureFromAuthed(err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureFromLocked(err, true)
}

func isRejection(err error) bool {
	var rej *gateway.RejectionError
	return errors.As(err, &rej)
}
