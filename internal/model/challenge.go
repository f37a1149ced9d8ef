package model

import "time"

// Challenge purposes.  A challenge proves control of an email address and is
// scoped to exactly one of these uses.
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// Challenge models an entry in the `challenges` table.  Each challenge
// belongs to a user and carries a 6-digit decimal code that is compared as
// an exact string (leading zeros are significant).  At most one challenge
// per (user, purpose) is active at a time: issuing a new one marks the
// previous row as superseded.  A consumed challenge can never be replayed.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the challenge.
//  Purpose      – PurposeEmailVerification or PurposePasswordReset.
//  Code         – 6 ASCII decimal digits.
//  IssuedAt     – when the code was generated.
//  ExpiresAt    – expiration timestamp of the code.
//  ConsumedAt   – when the code was successfully submitted (null if unused).
//  SupersededAt – when a newer challenge replaced this one (null if current).
type Challenge struct {
	ID           uint64     // challenges.id
	UserID       uint64     // challenges.user_id
	Purpose      string     // challenges.purpose
	Code         string     // challenges.code
	IssuedAt     time.Time  // challenges.issued_at
	ExpiresAt    time.Time  // challenges.expires_at
	ConsumedAt   *time.Time // challenges.consumed_at (nullable)
	SupersededAt *time.Time // challenges.superseded_at (nullable)
}

// Active reports whether the challenge can still be submitted at time now.
func (c Challenge) Active(now time.Time) bool {
	return c.ConsumedAt == nil && c.SupersededAt == nil && now.Before(c.ExpiresAt)
}
