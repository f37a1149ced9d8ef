package model

import "time"

// Session models an entry in the `sessions` table.  Each user holds at most
// one session row (user_id is unique); logging in replaces the previous row
// in a single transaction so a reader never observes a token without its
// matching identity.  The plain bearer token is not stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the session (unique).
//  TokenHash – SHA-256 hex digest of the bearer token.
//  ExpiresAt – expiration timestamp of the session.
//  CreatedAt – timestamp of creation.
type Session struct {
	ID        uint64    // sessions.id
	UserID    uint64    // sessions.user_id
	TokenHash string    // sessions.token_hash
	ExpiresAt time.Time // sessions.expires_at
	CreatedAt time.Time // sessions.created_at
}
