// Package token issues and validates the single-use tokens embedded in
// emailed links and session cookies. Only the SHA-256 hash of a token is
// ever persisted; the raw value leaves the process once, inside a link or
// a cookie.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	InviteTTL       = 7 * 24 * time.Hour
	VerificationTTL = 24 * time.Hour
	SessionTTL      = 90 * 24 * time.Hour
)

// rawBytes is the amount of entropy in every token (256 bits).
const rawBytes = 32

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenUsed    = errors.New("token already used")
	ErrTokenExpired = errors.New("token expired")
)

// Issue returns a fresh random token and its hash.
func Issue() (raw, hash string, err error) {
	b := make([]byte, rawBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, Hash(raw), nil
}

// Hash returns the hex-encoded SHA-256 of a raw token.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Check reports whether a stored token may still be redeemed at now.
// A used token wins over an expired one.
func Check(usedAt *time.Time, expiresAt, now time.Time) error {
	if usedAt != nil {
		return ErrTokenUsed
	}
	if expiresAt.Before(now) {
		return ErrTokenExpired
	}
	return nil
}
