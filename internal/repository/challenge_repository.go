package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/work-item-tracker/internal/model"
)

// ChallengeRepo persists verification/reset challenges and the short-lived
// reset capability tokens minted after a reset code is validated. Codes are
// stored as the literal 6-digit string; reset tokens are stored only as a
// SHA-256 hash, following the same at-rest policy as session tokens.
// Consuming a challenge and applying the account change it authorizes happen
// in one transaction, so a storage fault can never burn a code without its
// effect landing.
type ChallengeRepo struct{ DB *sql.DB }

func NewChallengeRepo(db *sql.DB) *ChallengeRepo { return &ChallengeRepo{DB: db} }

// Issue inserts a fresh challenge for (userID, purpose) and supersedes any
// prior active one in the same transaction, so at most one challenge per
// (user, purpose) is ever submittable. Returns the stored challenge.
func (r *ChallengeRepo) Issue(ctx context.Context, userID uint64, purpose, code string, ttl time.Duration) (model.Challenge, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Challenge{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE challenges SET superseded_at=NOW() WHERE user_id=? AND purpose=? AND consumed_at IS NULL AND superseded_at IS NULL",
		userID, purpose); err != nil {
		return model.Challenge{}, err
	}

	now := time.Now().UTC()
	exp := now.Add(ttl)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO challenges (user_id, purpose, code, issued_at, expires_at) VALUES (?,?,?,?,?)",
		userID, purpose, code, now, exp)
	if err != nil {
		return model.Challenge{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Challenge{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Challenge{}, err
	}
	return model.Challenge{
		ID:        uint64(id),
		UserID:    userID,
		Purpose:   purpose,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// GetActive returns the single unconsumed, unsuperseded, unexpired challenge
// for (userID, purpose), or sql.ErrNoRows when none is submittable.
func (r *ChallengeRepo) GetActive(ctx context.Context, userID uint64, purpose string) (model.Challenge, error) {
	var (
		c          model.Challenge
		consumed   sql.NullTime
		superseded sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, purpose, code, issued_at, expires_at, consumed_at, superseded_at
		 FROM challenges
		 WHERE user_id=? AND purpose=? AND consumed_at IS NULL AND superseded_at IS NULL AND expires_at > NOW()
		 ORDER BY id DESC LIMIT 1`,
		userID, purpose).Scan(&c.ID, &c.UserID, &c.Purpose, &c.Code, &c.IssuedAt, &c.ExpiresAt, &consumed, &superseded)
	if err != nil {
		return model.Challenge{}, err
	}
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	if superseded.Valid {
		t := superseded.Time
		c.SupersededAt = &t
	}
	return c, nil
}

// consumeChallenge marks a challenge as used inside the caller's
// transaction. The guard on consumed_at means the second of two concurrent
// submissions sees zero rows and gets sql.ErrNoRows.
func consumeChallenge(ctx context.Context, tx *sql.Tx, challengeID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE challenges SET consumed_at=NOW() WHERE id=? AND consumed_at IS NULL",
		challengeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ConsumeAndVerify marks the challenge consumed and moves its owner to the
// verified state in one transaction. Either both writes land or neither
// does; a failed verification leaves the code submittable for a retry.
func (r *ChallengeRepo) ConsumeAndVerify(ctx context.Context, challengeID, userID uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := consumeChallenge(ctx, tx, challengeID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET verification_state=?, updated_at=NOW() WHERE id=?",
		model.StateVerified, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ConsumeAndStoreResetToken consumes the reset challenge and records the
// hash of the freshly minted capability token in one transaction, replacing
// any earlier token for the same user.
func (r *ChallengeRepo) ConsumeAndStoreResetToken(ctx context.Context, challengeID, userID uint64, tokenHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := consumeChallenge(ctx, tx, challengeID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reset_tokens WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp); err != nil {
		return err
	}
	return tx.Commit()
}

// ConsumeResetTokenAndSetPassword validates a reset capability token by
// hash, deletes it and replaces the owner's credential, all in one
// transaction. Expired or unknown tokens yield sql.ErrNoRows; a fault on the
// credential write rolls the deletion back so the token stays usable.
func (r *ChallengeRepo) ConsumeResetTokenAndSetPassword(ctx context.Context, tokenHash, passwordHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		userID    uint64
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM reset_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		tokenHash).Scan(&userID, &expiresAt)
	if err != nil {
		return err
	}
	if time.Now().UTC().After(expiresAt) {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reset_tokens WHERE token_hash=?", tokenHash); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?",
		passwordHash, userID); err != nil {
		return err
	}
	return tx.Commit()
}
