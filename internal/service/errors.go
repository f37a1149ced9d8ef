package service

import "errors"

// Sentinel errors returned by the service layer. Handlers translate these
// into HTTP status codes; none of them may leave stored state changed.
var (
	// ErrValidation covers missing or malformed required input. It is
	// resolved before any repository call.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned when an account does not exist or
	// the password does not match. The two cases are deliberately not
	// distinguishable by the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified is returned on login when the account has not yet
	// proven control of its email address.
	ErrNotVerified = errors.New("email not verified")

	// ErrInvalidChallenge covers a missing, expired, superseded, consumed
	// or mismatched verification code, and an invalid reset token.
	ErrInvalidChallenge = errors.New("invalid or expired code")

	// ErrAlreadyVerified is returned when a verification code is requested
	// for an account that is already verified.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrResendThrottled is returned when a new challenge is requested
	// before the resend cooldown for the previous one has elapsed.
	ErrResendThrottled = errors.New("a code was sent recently, try again later")

	// ErrUnknownAssignee is returned when a work item references an
	// assignee that does not resolve to an existing verified account.
	ErrUnknownAssignee = errors.New("unknown assignee")
)
