// Package cryptox implements one-way password hashing and constant-time
// verification for account credentials.
//
// Two algorithms are available: bcrypt (the default) and argon2id. Encoded
// hashes are self-describing, so a MultiHasher can verify hashes produced by
// either algorithm while new hashes use the configured one. This lets an
// operator switch algorithms without invalidating stored credentials.
package cryptox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by NewHasher.
const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmArgon2 = "argon2id"
)

// MaxPasswordBytes is the longest password accepted, in bytes. bcrypt
// ignores input past this length.
const MaxPasswordBytes = 72

// ErrUnknownHashFormat is returned when a stored hash was not produced by
// any supported algorithm.
var ErrUnknownHashFormat = errors.New("unknown hash format")

// Hasher hashes passwords and verifies candidates against stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher. Costs outside bcrypt's accepted
// range are replaced by bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("bcrypt verify: %w", err)
}

// Argon2Hasher hashes with argon2id using encoded (PHC-style) output.
type Argon2Hasher struct {
	cfg argon2.Config
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{cfg: argon2.DefaultConfig()}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("argon2 hash: %w", err)
	}
	return string(encoded), nil
}

func (h *Argon2Hasher) Verify(hash, password string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(hash))
	if err != nil {
		return false, fmt.Errorf("argon2 verify: %w", err)
	}
	return ok, nil
}

// MultiHasher hashes with a primary hasher and verifies any supported format.
type MultiHasher struct {
	primary Hasher
	bcrypt  Hasher
	argon2  Hasher
}

// NewHasher builds a MultiHasher whose new hashes use the named algorithm.
func NewHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(),
	}

	switch algorithm {
	case AlgorithmBcrypt, "":
		m.primary = m.bcrypt
	case AlgorithmArgon2:
		m.primary = m.argon2
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	return m, nil
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *MultiHasher) Verify(hash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2"):
		return m.argon2.Verify(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return m.bcrypt.Verify(hash, password)
	default:
		return false, ErrUnknownHashFormat
	}
}
