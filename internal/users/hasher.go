package users

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces and verifies one-way password digests. The raw
// value can never be recovered from the digest.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Verify(hash, raw string) bool
}

// BcryptHasher hashes passwords with bcrypt and a per-password salt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a hasher with the default bcrypt cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash returns the salted digest of the raw password.
func (h *BcryptHasher) Hash(raw string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether raw matches the stored digest.
func (h *BcryptHasher) Verify(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
