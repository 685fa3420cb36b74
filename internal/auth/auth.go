// Package auth guards tenant-wide routes with a single admin key whose
// bcrypt hash is configured at startup.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "mf_"

// Guard verifies admin keys against a bcrypt hash. Verified keys are
// remembered by SHA-256 digest so bcrypt runs once per distinct key.
type Guard struct {
	hash     []byte
	mu       sync.RWMutex
	verified map[string]struct{}
}

// NewGuard returns a Guard for hash. An empty hash disables the guard.
func NewGuard(hash string) (*Guard, error) {
	g := &Guard{verified: make(map[string]struct{})}
	if hash == "" {
		return g, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("parsing admin key hash: %w", err)
	}
	g.hash = []byte(hash)
	return g, nil
}

// Enabled reports whether a key is required.
func (g *Guard) Enabled() bool {
	return g != nil && len(g.hash) > 0
}

// Check reports whether key matches the configured hash.
func (g *Guard) Check(key string) bool {
	if !g.Enabled() {
		return true
	}
	if key == "" {
		return false
	}
	digest := digest(key)

	g.mu.RLock()
	_, ok := g.verified[digest]
	g.mu.RUnlock()
	if ok {
		return true
	}

	if bcrypt.CompareHashAndPassword(g.hash, []byte(key)) != nil {
		return false
	}
	g.mu.Lock()
	g.verified[digest] = struct{}{}
	g.mu.Unlock()
	return true
}

// GenerateKey returns a new random admin key: "mf_" followed by 32 URL-safe
// characters.
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashKey returns the bcrypt hash to put in auth.admin_key_hash.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing admin key: %w", err)
	}
	return string(h), nil
}

func digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
