// Package auth implements password hashing and stateless session tokens.
//
// Both PasswordHasher and TokenService are immutable after construction and
// safe for concurrent use by any number of request handlers.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor used when none is configured.
	DefaultIterations = 30000

	hashScheme = "pbkdf2-sha256"
	saltSize   = 16
	keySize    = 32

	// minIterations guards Verify against hashes with a trivially low cost.
	minIterations = 1000
)

// ab64 is the "adapted base64" alphabet used by passlib: standard base64
// with '.' instead of '+' and no padding.
var ab64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").WithPadding(base64.NoPadding)

var errMalformedHash = errors.New("malformed password hash")

// PasswordHasher hashes passwords with PBKDF2-HMAC-SHA256.
//
// Hashes are encoded as
//
//	$pbkdf2-sha256$<iterations>$<salt>$<checksum>
//
// which is the format passlib uses, so credentials created by earlier
// deployments keep working.
type PasswordHasher struct {
	iterations int
	dummy      string
}

// NewPasswordHasher returns a hasher using the given iteration count.
// A non-positive value selects DefaultIterations.
func NewPasswordHasher(iterations int) (*PasswordHasher, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if iterations < minIterations {
		return nil, fmt.Errorf("pbkdf2 iterations must be at least %d, got %d", minIterations, iterations)
	}
	h := &PasswordHasher{iterations: iterations}

	// A hash of random bytes nobody knows, used to equalize login timing
	// for unknown users.
	var secret [keySize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("generate dummy secret: %w", err)
	}
	dummy, err := h.Hash(ab64.EncodeToString(secret[:]))
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Iterations reports the work factor applied to new hashes.
func (h *PasswordHasher) Iterations() int {
	return h.iterations
}

// Hash derives a salted hash of password. Two calls with the same password
// produce different output.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := pbkdf2.Key([]byte(password), salt, h.iterations, keySize, sha256.New)
	return encodeHash(h.iterations, salt, sum), nil
}

// Verify reports whether password matches hash. A malformed hash is treated
// as a mismatch.
func (h *PasswordHasher) Verify(password, hash string) bool {
	iterations, salt, want, err := decodeHash(hash)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// DummyVerify spends the same work as Verify against a hash that can never
// match. Login calls it when the username is unknown.
func (h *PasswordHasher) DummyVerify(password string) {
	_ = h.Verify(password, h.dummy)
}

func encodeHash(iterations int, salt, sum []byte) string {
	return fmt.Sprintf("$%s$%d$%s$%s", hashScheme, iterations, ab64.EncodeToString(salt), ab64.EncodeToString(sum))
}

func decodeHash(hash string) (int, []byte, []byte, error) {
	// "", scheme, iterations, salt, checksum
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != hashScheme {
		return 0, nil, nil, errMalformedHash
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations < minIterations {
		return 0, nil, nil, errMalformedHash
	}
	salt, err := ab64.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, errMalformedHash
	}
	sum, err := ab64.DecodeString(parts[4])
	if err != nil || len(sum) == 0 {
		return 0, nil, nil, errMalformedHash
	}
	return iterations, salt, sum, nil
}
