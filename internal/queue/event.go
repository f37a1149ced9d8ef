// Package queue defines message payloads exchanged over the message broker.
package queue

// ChallengeIssuedEvent is published whenever a verification or password-reset
// code is issued for an account. The mail worker consumes it to deliver the
// code; the HTTP request path never blocks on delivery.
type ChallengeIssuedEvent struct {
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Purpose   string `json:"purpose"` // email_verification | password_reset
	Code      string `json:"code"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}
