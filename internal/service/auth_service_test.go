package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/work-item-tracker/internal/config"
	"github.com/iliyamo/work-item-tracker/internal/model"
)

func newTestAuthService() (*AuthService, *memUsers, *memSessions, *recordingNotifier) {
	users := newMemUsers()
	sessions := newMemSessions()
	notifier := &recordingNotifier{}
	cfg := config.Config{
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		SessionTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}
	policy := config.ChallengeConfig{
		CodeTTL:       15 * time.Minute,
		ResetTokenTTL: 10 * time.Minute,
		// no cooldown by default so tests can reissue freely
	}
	svc := NewAuthService(users, newMemChallenges(users), sessions, notifier, cfg, policy)
	return svc, users, sessions, notifier
}

func signupAndVerify(t *testing.T, svc *AuthService, notifier *recordingNotifier, email string) uint64 {
	t.Helper()
	ctx := context.Background()
	uid, err := svc.Signup(ctx, email, "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, email, notifier.last().Code))
	return uid
}

func TestSignupIssuesVerificationChallenge(t *testing.T) {
	svc, users, _, notifier := newTestAuthService()
	ctx := context.Background()

	uid, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)

	u, err := users.GetByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, u.VerificationState)

	ev := notifier.last()
	assert.Equal(t, model.PurposeEmailVerification, ev.Purpose)
	assert.Len(t, ev.Code, 6)
}

func TestLoginRequiresVerification(t *testing.T) {
	svc, _, sessions, notifier := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)

	// Correct credential, unverified account.
	_, err = svc.Login(ctx, "ada@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrNotVerified)
	assert.Equal(t, 0, sessions.count(), "failed login must not write the session store")

	// Wrong credential wins over the verification check.
	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown account.
	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, sessions.count())

	// Verify, then the same credential logs in.
	require.NoError(t, svc.VerifyEmail(ctx, "ada@example.com", notifier.last().Code))
	res, err := svc.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.NotEmpty(t, res.Access.Token)
	assert.NotEmpty(t, res.Session.Raw)
	assert.Equal(t, 1, sessions.count())
}

func TestVerificationCodeIsSingleUse(t *testing.T) {
	svc, _, _, notifier := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)
	code := notifier.last().Code

	require.NoError(t, svc.VerifyEmail(ctx, "ada@example.com", code))
	// The identical code cannot be replayed after a success.
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "ada@example.com", code), ErrInvalidChallenge)
}

func TestResendSupersedesPreviousCode(t *testing.T) {
	svc, _, _, notifier := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)
	oldCode := notifier.last().Code

	require.NoError(t, svc.ResendVerification(ctx, "ada@example.com"))
	newCode := notifier.last().Code

	// The superseded code fails even though it was never used.
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "ada@example.com", oldCode), ErrInvalidChallenge)
	assert.NoError(t, svc.VerifyEmail(ctx, "ada@example.com", newCode))
}

func TestVerifyEmailMismatchLeavesStateUnchanged(t *testing.T) {
	svc, users, _, notifier := newTestAuthService()
	ctx := context.Background()

	uid, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)
	code := notifier.last().Code

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "ada@example.com", wrong), ErrInvalidChallenge)

	u, err := users.GetByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, u.VerificationState)

	// The real code still works: a failed submission consumes nothing.
	assert.NoError(t, svc.VerifyEmail(ctx, "ada@example.com", code))
}

func TestResendCooldownThrottles(t *testing.T) {
	users := newMemUsers()
	notifier := &recordingNotifier{}
	cfg := config.Config{JWTSecret: "s", AccessTTLMin: 15, SessionTTLDays: 7, BcryptCost: bcrypt.MinCost}
	policy := config.ChallengeConfig{CodeTTL: 15 * time.Minute, ResetTokenTTL: 10 * time.Minute, ResendCooldown: time.Minute}
	svc := NewAuthService(users, newMemChallenges(users), newMemSessions(), notifier, cfg, policy)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResendVerification(ctx, "ada@example.com"), ErrResendThrottled)
	assert.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	// The reset challenge was just issued, so an immediate retry throttles.
	assert.ErrorIs(t, svc.ForgotPassword(ctx, "ada@example.com"), ErrResendThrottled)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, _, notifier := newTestAuthService()
	ctx := context.Background()
	signupAndVerify(t, svc, notifier, "ada@example.com")

	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	code := notifier.last().Code
	require.Equal(t, model.PurposePasswordReset, notifier.last().Purpose)

	token, exp, err := svc.ValidateResetToken(ctx, "ada@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, code, token, "capability token must be distinct from the 6-digit code")
	assert.True(t, exp.After(time.Now()))

	// The consumed code cannot be validated a second time.
	_, _, err = svc.ValidateResetToken(ctx, "ada@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidChallenge)

	// The 6-digit code is not accepted as the reset credential.
	assert.ErrorIs(t, svc.ResetPassword(ctx, code, "newpass99"), ErrInvalidChallenge)

	require.NoError(t, svc.ResetPassword(ctx, token, "newpass99"))

	// Token is single-use.
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "again"), ErrInvalidChallenge)

	// Old password is dead, new one works, verification survived the reset.
	_, err = svc.Login(ctx, "ada@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	res, err := svc.Login(ctx, "ada@example.com", "newpass99")
	require.NoError(t, err)
	assert.Equal(t, model.StateVerified, res.User.VerificationState)
}

func TestVerifyEmailStorageFaultKeepsCodeUsable(t *testing.T) {
	users := newMemUsers()
	challenges := newMemChallenges(users)
	notifier := &recordingNotifier{}
	cfg := config.Config{JWTSecret: "s", AccessTTLMin: 15, SessionTTLDays: 7, BcryptCost: bcrypt.MinCost}
	policy := config.ChallengeConfig{CodeTTL: 15 * time.Minute, ResetTokenTTL: 10 * time.Minute}
	svc := NewAuthService(users, challenges, newMemSessions(), notifier, cfg, policy)
	ctx := context.Background()

	uid, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)
	code := notifier.last().Code

	// A storage fault during verification must not burn the code: consume
	// and state change are one transaction, so both roll back together.
	boom := errors.New("storage down")
	challenges.verifyErr = boom
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "ada@example.com", code), boom)

	u, err := users.GetByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, u.VerificationState)

	// The same code succeeds once storage recovers; no resend needed.
	require.NoError(t, svc.VerifyEmail(ctx, "ada@example.com", code))
	u, err = users.GetByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.StateVerified, u.VerificationState)
}

func TestResetPasswordStorageFaultKeepsTokenUsable(t *testing.T) {
	users := newMemUsers()
	challenges := newMemChallenges(users)
	notifier := &recordingNotifier{}
	cfg := config.Config{JWTSecret: "s", AccessTTLMin: 15, SessionTTLDays: 7, BcryptCost: bcrypt.MinCost}
	policy := config.ChallengeConfig{CodeTTL: 15 * time.Minute, ResetTokenTTL: 10 * time.Minute}
	svc := NewAuthService(users, challenges, newMemSessions(), notifier, cfg, policy)
	ctx := context.Background()
	signupAndVerify(t, svc, notifier, "ada@example.com")

	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	token, _, err := svc.ValidateResetToken(ctx, "ada@example.com", notifier.last().Code)
	require.NoError(t, err)

	// A fault on the credential write must not delete the capability token.
	boom := errors.New("storage down")
	challenges.resetErr = boom
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "newpass99"), boom)

	// Old credential untouched by the failed attempt.
	_, err = svc.Login(ctx, "ada@example.com", "hunter22")
	assert.NoError(t, err)

	// The same token completes the reset once storage recovers.
	require.NoError(t, svc.ResetPassword(ctx, token, "newpass99"))
	_, err = svc.Login(ctx, "ada@example.com", "newpass99")
	assert.NoError(t, err)
}

func TestResetUsableFromUnverifiedState(t *testing.T) {
	svc, users, _, notifier := newTestAuthService()
	ctx := context.Background()

	uid, err := svc.Signup(ctx, "ada@example.com", "Ada", "Lovelace", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	token, _, err := svc.ValidateResetToken(ctx, "ada@example.com", notifier.last().Code)
	require.NoError(t, err)
	require.NoError(t, svc.ResetPassword(ctx, token, "newpass99"))

	// Recovery never touches the verification machine.
	u, err := users.GetByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, u.VerificationState)
}

func TestLoginReplacesSessionSlot(t *testing.T) {
	svc, _, sessions, notifier := newTestAuthService()
	ctx := context.Background()
	signupAndVerify(t, svc, notifier, "ada@example.com")

	first, err := svc.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	// One slot per user: the second login invalidated the first token.
	assert.Equal(t, 1, sessions.count())
	assert.ErrorIs(t, svc.LogoutByToken(ctx, first.Session.Raw), ErrInvalidCredentials)
	assert.NoError(t, svc.LogoutByToken(ctx, second.Session.Raw))
	assert.Equal(t, 0, sessions.count())
}

func TestLogoutClearsSlotUnconditionally(t *testing.T) {
	svc, _, sessions, notifier := newTestAuthService()
	ctx := context.Background()
	uid := signupAndVerify(t, svc, notifier, "ada@example.com")

	_, err := svc.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, uid))
	assert.Equal(t, 0, sessions.count())

	// Logging out an already empty slot still succeeds.
	assert.NoError(t, svc.Logout(ctx, uid))
}

func TestChangePassword(t *testing.T) {
	svc, _, _, notifier := newTestAuthService()
	ctx := context.Background()
	uid := signupAndVerify(t, svc, notifier, "ada@example.com")

	assert.ErrorIs(t, svc.ChangePassword(ctx, uid, "wrong", "next"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, uid, "hunter22", "next"))

	_, err := svc.Login(ctx, "ada@example.com", "next")
	assert.NoError(t, err)
}
