package repository

import (
	"context"
	"database/sql"
	"time"
)

// SessionRepo persists the single session slot each user holds. The
// sessions table has a unique index on user_id; Replace swaps the slot
// atomically so a reader never observes a token without its identity.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Replace deletes the user's previous session (if any) and inserts the new
// one inside a transaction. Logging in from a second client therefore
// invalidates the first client's token.
func (r *SessionRepo) Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp); err != nil {
		return err
	}
	return tx.Commit()
}

// ValidateToken returns the owning user ID for a non-expired session token
// hash, or sql.ErrNoRows.
func (r *SessionRepo) ValidateToken(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt)
	if err != nil {
		return 0, err
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

// DeleteForUser clears the user's session slot. Deleting an already empty
// slot is not an error: logout must always succeed.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id=?", userID)
	return err
}
