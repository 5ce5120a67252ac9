package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"garnizon.org/internal/fault"
)

func encodeB64(b []byte) string { return base64.RawStdEncoding.EncodeToString(b) }

func decodeB64(s string) ([]byte, error) { return base64.RawStdEncoding.DecodeString(s) }

const (
	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

// PasswordHasher hashes and verifies passwords with argon2id. A
// server-side pepper is mixed into the hash input so leaked hashes alone
// are not crackable offline.
type PasswordHasher struct {
	pepper []byte
}

func NewPasswordHasher(pepper string) (*PasswordHasher, error) {
	if strings.TrimSpace(pepper) == "" {
		return nil, errors.New("auth: password pepper is required")
	}
	return &PasswordHasher{pepper: []byte(pepper)}, nil
}

// Hash returns a PHC-encoded argon2id hash of the peppered password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fault.New(fault.InvalidArgument, "password is required")
	}
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fault.Wrap(fault.Internal, "generate salt", err)
	}
	key := argon2.IDKey(h.peppered(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory,
		argonIterations,
		argonParallelism,
		encodeB64(salt),
		encodeB64(key),
	), nil
}

// Verify reports whether password matches the stored encoded hash. A
// mismatch is (false, nil); only a malformed hash is an error.
func (h *PasswordHasher) Verify(encoded, password string) (bool, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, fault.Wrap(fault.Internal, "malformed password hash", err)
	}
	candidate := argon2.IDKey(h.peppered(password), salt, params.iterations, params.memory, params.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func (h *PasswordHasher) peppered(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}

type argonParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

func decodeHash(encoded string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, errors.New("unexpected hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return argonParams{}, nil, nil, err
	}
	if version != argon2.Version {
		return argonParams{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}
	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return argonParams{}, nil, nil, err
	}
	salt, err := decodeB64(parts[4])
	if err != nil {
		return argonParams{}, nil, nil, err
	}
	key, err := decodeB64(parts[5])
	if err != nil {
		return argonParams{}, nil, nil, err
	}
	return p, salt, key, nil
}
