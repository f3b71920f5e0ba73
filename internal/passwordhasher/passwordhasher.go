// Package passwordhasher turns plaintext passwords into salted bcrypt hashes
// and verifies candidates against stored hashes.
package passwordhasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for every stored password.
const DefaultCost = 10

// PasswordHasher hashes and verifies passwords with a fixed bcrypt cost.
type PasswordHasher struct {
	cost int
}

type initOptions struct {
	cost int
}

// InitOption configures a PasswordHasher.
type InitOption func(*initOptions)

// WithCost overrides the bcrypt cost. Intended for tests.
func WithCost(cost int) InitOption {
	return func(options *initOptions) {
		options.cost = cost
	}
}

// New creates a PasswordHasher using DefaultCost unless overridden.
func New(optionsProto ...InitOption) *PasswordHasher {
	options := &initOptions{
		cost: DefaultCost,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &PasswordHasher{
		cost: options.cost,
	}
}

// Hash returns a bcrypt hash of plaintext with an embedded random salt.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf(
			"in internal/passwordhasher/passwordhasher.go/Hash(): error while `bcrypt.GenerateFromPassword()` calling: %w",
			err,
		)
	}

	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a mismatch.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
