package model

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

const (
	KeySize  = 32
	HashSize = 64
)

type (
	// Key is a Curve25519 public key identifying a recipient.
	Key [KeySize]byte

	// MessageHash is the SHA3-512 digest that addresses a stored payload.
	MessageHash [HashSize]byte

	// OptionalKey is a key that may be absent.
	OptionalKey struct {
		key   Key
		valid bool
	}
)

func SomeKey(k Key) OptionalKey {
	return OptionalKey{key: k, valid: true}
}

func NoKey() OptionalKey {
	return OptionalKey{}
}

func (o OptionalKey) Get() (Key, bool) {
	return o.key, o.valid
}

// OrElse returns the held key, or def when absent.
func (o OptionalKey) OrElse(def Key) Key {
	if o.valid {
		return o.key
	}
	return def
}

func (k Key) Bytes() []byte {
	return k[:]
}

func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

func (k Key) Less(other Key) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid key length %d, want %d", len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// ParseKey decodes a base64 public key.
func ParseKey(s string) (Key, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}
	return KeyFromBytes(b)
}

// ParseOptionalKey treats the empty string as an absent key.
func ParseOptionalKey(s string) (OptionalKey, error) {
	if s == "" {
		return NoKey(), nil
	}
	k, err := ParseKey(s)
	if err != nil {
		return NoKey(), err
	}
	return SomeKey(k), nil
}

func (h MessageHash) Bytes() []byte {
	return h[:]
}

func (h MessageHash) String() string {
	return base64.StdEncoding.EncodeToString(h[:])
}

func (h MessageHash) IsZero() bool {
	return h == MessageHash{}
}

func HashFromBytes(b []byte) (MessageHash, error) {
	var h MessageHash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash accepts standard and URL-safe base64, since hashes also travel in paths.
func ParseHash(s string) (MessageHash, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return MessageHash{}, fmt.Errorf("decode hash: %w", err)
	}
	return HashFromBytes(b)
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 %q", s)
}
