package kdf

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const SaltSize = 16

type (
	// Argon2Params are stored next to a locked key so it can be re-derived.
	Argon2Params struct {
		Variant     string `json:"variant"`
		Iterations  uint32 `json:"iterations"`
		Memory      uint32 `json:"memory"`
		Parallelism uint8  `json:"parallelism"`
	}
)

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Variant:     "id",
		Iterations:  3,
		Memory:      64 * 1024,
		Parallelism: 4,
	}
}

// Argon2 derives a 32 byte key from password and salt.
func Argon2(password, salt []byte, p Argon2Params) ([]byte, error) {
	switch p.Variant {
	case "id", "":
		return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, 32), nil
	case "i":
		return argon2.Key(password, salt, p.Iterations, p.Memory, p.Parallelism, 32), nil
	default:
		return nil, fmt.Errorf("unknown argon2 variant %q", p.Variant)
	}
}

func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("rand.Read salt: %w", err)
	}
	return salt, nil
}
