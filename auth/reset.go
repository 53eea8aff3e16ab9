package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const ResetTokenTTL = 10 * time.Minute

// NewResetToken returns the raw token for the user and the hash to store.
func NewResetToken() (raw, hash string, err error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}

func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
