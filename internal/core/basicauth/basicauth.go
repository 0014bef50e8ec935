// Package basicauth generates and recognizes the bcrypt hashes that guard
// the public entry. Hashes are Caddy-compatible and never logged.
package basicauth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used when the caller picks nothing.
// Deliberately above the library default: hashing happens once per deploy,
// verification happens at the edge proxy.
const DefaultCost = 14

var (
	// ErrEmptyPassword is returned when there is nothing to hash.
	ErrEmptyPassword = errors.New("password must be non-empty")

	// ErrBadCost is returned for a cost outside the bcrypt range.
	ErrBadCost = errors.New("bcrypt cost out of range")
)

// HashPassword computes a bcrypt hash at the given cost (4-31).
// Pass cost 0 for DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = DefaultCost
	}
	// GenerateFromPassword silently promotes a too-low cost, so bound it here.
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrBadCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// LooksLikeHash reports whether s is already a bcrypt hash rather than a
// plaintext password. Compose-escaped hashes ($$2...) count: they only need
// normalizing, not hashing.
func LooksLikeHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$", "$$2"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// ComposeEscape doubles dollar signs so the hash survives compose-file
// variable interpolation.
func ComposeEscape(hash string) string {
	return strings.ReplaceAll(hash, "$", "$$")
}

// Normalize collapses a compose-escaped hash back to its plain form and
// returns everything else unchanged.
func Normalize(s string) string {
	if strings.HasPrefix(s, "$$2") {
		return strings.ReplaceAll(s, "$$", "$")
	}
	return s
}
