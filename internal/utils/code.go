package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewChallengeCode returns a 6-digit decimal challenge code drawn from
// crypto/rand.  The result is always exactly 6 ASCII digits; leading zeros
// are preserved ("007123" and "7123" are different codes) and comparison is
// an exact string match everywhere in the system.
func NewChallengeCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
