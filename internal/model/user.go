package model

import "time"

// Verification states stored in users.verification_state.  An account may
// authenticate only once it has reached StateVerified.
const (
	StateUnverified = "unverified"
	StatePending    = "pending_verification"
	StateVerified   = "verified"
)

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the
// database.  The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Email             – unique, normalized (lowercase) email address.
//  FirstName         – given name supplied at signup.
//  LastName          – family name supplied at signup.
//  PasswordHash      – bcrypt hashed password.
//  VerificationState – one of StateUnverified, StatePending, StateVerified.
//  IsActive          – whether the account is active.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                uint64    // users.id
	Email             string    // users.email
	FirstName         string    // users.first_name
	LastName          string    // users.last_name
	PasswordHash      string    // users.password_hash
	VerificationState string    // users.verification_state
	IsActive          bool      // users.is_active
	CreatedAt         time.Time // users.created_at
	UpdatedAt         time.Time // users.updated_at
}

// FullName joins first and last name for display and event payloads.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
