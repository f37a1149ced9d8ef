package config

import (
	"os"
	"strings"
	"time"
)

// ChallengeConfig defines the policy for verification and password-reset
// challenges.  CodeTTL bounds how long a 6-digit code stays valid.
// ResetTokenTTL bounds the short-lived capability token minted after a reset
// code is validated.  ResendCooldown is the minimum gap between two issued
// challenges of the same purpose for the same account; zero disables the
// cooldown (the Redis rate limiter still applies when configured).
type ChallengeConfig struct {
	CodeTTL        time.Duration
	ResetTokenTTL  time.Duration
	ResendCooldown time.Duration
}

// LoadChallengeConfig reads environment variables to build a ChallengeConfig.
// Defaults are used when variables are not set.
func LoadChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		CodeTTL:        parseDur(getenv("CHALLENGE_CODE_TTL", "15m")),
		ResetTokenTTL:  parseDur(getenv("CHALLENGE_RESET_TOKEN_TTL", "10m")),
		ResendCooldown: parseDur(getenv("CHALLENGE_RESEND_COOLDOWN", "60s")),
	}
}

// Helper functions shared with redis.go and ratelimit.go.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return time.Second
	}
	return d
}
