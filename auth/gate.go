package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptySecret = errors.New("api key must not be empty")

// Gate guards deletion with a single process-wide shared secret.
type Gate struct {
	hash []byte
}

// NewGate accepts either the plaintext key or a bcrypt hash of it.
func NewGate(secret string) (*Gate, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	if isBcryptHash(secret) {
		if _, err := bcrypt.Cost([]byte(secret)); err != nil {
			return nil, fmt.Errorf("invalid api key hash: %w", err)
		}
		return &Gate{hash: []byte(secret)}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}
	return &Gate{hash: hash}, nil
}

func (g *Gate) IsAuthorized(secret string) bool {
	return bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) == nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
