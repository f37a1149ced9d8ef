package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/work-item-tracker/internal/config"
	"github.com/iliyamo/work-item-tracker/internal/model"
	"github.com/iliyamo/work-item-tracker/internal/queue"
	"github.com/iliyamo/work-item-tracker/internal/utils"
)

// UserStore is the slice of the user repository the auth service needs.
type UserStore interface {
	Create(ctx context.Context, email, firstName, lastName, passwordHash string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, passwordHash string) error
}

// ChallengeStore persists challenges and reset capability tokens. Consuming
// a challenge and the account change it authorizes are a single atomic
// operation: a failure leaves the code (or token) submittable for a retry.
type ChallengeStore interface {
	Issue(ctx context.Context, userID uint64, purpose, code string, ttl time.Duration) (model.Challenge, error)
	GetActive(ctx context.Context, userID uint64, purpose string) (model.Challenge, error)
	ConsumeAndVerify(ctx context.Context, challengeID, userID uint64) error
	ConsumeAndStoreResetToken(ctx context.Context, challengeID, userID uint64, tokenHash string, exp time.Time) error
	ConsumeResetTokenAndSetPassword(ctx context.Context, tokenHash, passwordHash string) error
}

// SessionStore is the single-slot session persistence the gateway writes.
type SessionStore interface {
	Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateToken(ctx context.Context, tokenHash string) (uint64, error)
	DeleteForUser(ctx context.Context, userID uint64) error
}

// AuthService drives the account verification state machine and is the only
// component that writes the session store. All stored state stays unchanged
// on every failure path; the session slot is written strictly after the
// credential and verification checks have passed.
type AuthService struct {
	users      UserStore
	challenges ChallengeStore
	sessions   SessionStore
	notifier   Notifier
	cfg        config.Config
	policy     config.ChallengeConfig
}

func NewAuthService(users UserStore, challenges ChallengeStore, sessions SessionStore, notifier Notifier, cfg config.Config, policy config.ChallengeConfig) *AuthService {
	return &AuthService{users: users, challenges: challenges, sessions: sessions, notifier: notifier, cfg: cfg, policy: policy}
}

// LoginResult carries the identity summary and tokens produced by a
// successful login.
type LoginResult struct {
	User    model.User
	Access  utils.AccessToken
	Session utils.SessionToken
}

// Signup creates an account in pending_verification state and issues its
// first email verification challenge. The account cannot log in until the
// challenge is submitted; verification is enforced at login, not here.
func (s *AuthService) Signup(ctx context.Context, email, firstName, lastName, password string) (uint64, error) {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return 0, err
	}
	uid, err := s.users.Create(ctx, email, firstName, lastName, hash)
	if err != nil {
		return 0, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return 0, err
	}
	// First challenge for a fresh account; the cooldown cannot apply.
	if err := s.issueChallenge(ctx, u, model.PurposeEmailVerification, false); err != nil {
		return 0, err
	}
	return uid, nil
}

// VerifyEmail submits a 6-digit code against the account's single active
// email verification challenge. The code is compared as an exact string; on
// match the code is consumed and the account becomes verified in one store
// transaction. Any other outcome is ErrInvalidChallenge and leaves both the
// account state and the challenge unchanged, so the code stays usable after
// a transient storage fault.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidChallenge
		}
		return err
	}
	ch, err := s.activeChallenge(ctx, u.ID, model.PurposeEmailVerification, code)
	if err != nil {
		return err
	}
	if err := s.challenges.ConsumeAndVerify(ctx, ch.ID, u.ID); err != nil {
		if err == sql.ErrNoRows {
			// Lost a race with a concurrent submission of the same code.
			return ErrInvalidChallenge
		}
		return err
	}
	return nil
}

// ResendVerification issues a fresh email verification challenge,
// superseding the previous one. The old code stops working even if it was
// never submitted.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.VerificationState == model.StateVerified {
		return ErrAlreadyVerified
	}
	return s.issueChallenge(ctx, u, model.PurposeEmailVerification, true)
}

// Login checks the credential and the verification gate, then swaps the
// user's session slot. The slot is the only persistent write and happens
// last, so a failed login can never leave a partial session behind.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if u.VerificationState != model.StateVerified {
		return LoginResult{}, ErrNotVerified
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Email, s.cfg.AccessTTLMin)
	if err != nil {
		return LoginResult{}, err
	}
	session, err := utils.NewSessionToken(s.cfg.SessionTTLDays)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.sessions.Replace(ctx, u.ID, utils.HashTokenRaw(session.Raw), session.Exp); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Access: access, Session: session}, nil
}

// Logout clears the user's session slot. Clearing an already empty slot
// succeeds; the caller must always end up logged out.
func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	return s.sessions.DeleteForUser(ctx, userID)
}

// LogoutByToken terminates the session identified by a raw session token,
// for clients that no longer hold a valid access token.
func (s *AuthService) LogoutByToken(ctx context.Context, raw string) error {
	uid, err := s.sessions.ValidateToken(ctx, utils.HashTokenRaw(raw))
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidCredentials
		}
		return err
	}
	return s.sessions.DeleteForUser(ctx, uid)
}

// ForgotPassword starts the recovery flow by issuing a password reset
// challenge. It is usable from any verification state once the account
// exists and does not touch the verification state machine.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueChallenge(ctx, u, model.PurposePasswordReset, true)
}

// ValidateResetToken submits a reset code and, on success, mints a fresh
// single-use capability token for the actual reset. The 6-digit code is
// consumed in the same store transaction that records the token, and is
// never accepted as the reset credential itself.
func (s *AuthService) ValidateResetToken(ctx context.Context, email, code string) (string, time.Time, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, ErrInvalidChallenge
		}
		return "", time.Time{}, err
	}
	ch, err := s.activeChallenge(ctx, u.ID, model.PurposePasswordReset, code)
	if err != nil {
		return "", time.Time{}, err
	}
	token, err := utils.NewResetCapabilityToken()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := time.Now().UTC().Add(s.policy.ResetTokenTTL)
	if err := s.challenges.ConsumeAndStoreResetToken(ctx, ch.ID, u.ID, utils.HashTokenRaw(token), exp); err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, ErrInvalidChallenge
		}
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ResetPassword consumes a reset capability token and replaces the stored
// credential in one store transaction: a fault on the credential write
// leaves the token usable instead of stranding the user mid-reset.
// Verification state is untouched: a verified account stays verified
// through a password reset.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.challenges.ConsumeResetTokenAndSetPassword(ctx, utils.HashTokenRaw(token), hash); err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidChallenge
		}
		return err
	}
	return nil
}

// ChangePassword replaces the credential of an authenticated user after
// re-checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidCredentials
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

// issueChallenge generates a code, stores it (superseding any active one for
// the same purpose) and hands it to the notifier. With enforceCooldown set,
// a still-fresh active challenge blocks the reissue.
func (s *AuthService) issueChallenge(ctx context.Context, u model.User, purpose string, enforceCooldown bool) error {
	if enforceCooldown && s.policy.ResendCooldown > 0 {
		if prev, err := s.challenges.GetActive(ctx, u.ID, purpose); err == nil {
			if time.Since(prev.IssuedAt) < s.policy.ResendCooldown {
				return ErrResendThrottled
			}
		} else if err != sql.ErrNoRows {
			return err
		}
	}
	code, err := utils.NewChallengeCode()
	if err != nil {
		return err
	}
	ch, err := s.challenges.Issue(ctx, u.ID, purpose, code, s.policy.CodeTTL)
	if err != nil {
		return err
	}
	s.notifier.ChallengeIssued(ctx, queue.ChallengeIssuedEvent{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.FullName(),
		Purpose:   purpose,
		Code:      ch.Code,
		IssuedAt:  ch.IssuedAt.Format(time.RFC3339),
		ExpiresAt: ch.ExpiresAt.Format(time.RFC3339),
	})
	return nil
}

// activeChallenge resolves the single active challenge for (user, purpose)
// and compares the code as an exact string. Missing, expired, superseded,
// consumed and mismatched codes are all ErrInvalidChallenge. The challenge
// is not consumed here; consumption happens atomically with the account
// change it authorizes.
func (s *AuthService) activeChallenge(ctx context.Context, userID uint64, purpose, code string) (model.Challenge, error) {
	ch, err := s.challenges.GetActive(ctx, userID, purpose)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Challenge{}, ErrInvalidChallenge
		}
		return model.Challenge{}, err
	}
	if ch.Code != code {
		return model.Challenge{}, ErrInvalidChallenge
	}
	return ch, nil
}
