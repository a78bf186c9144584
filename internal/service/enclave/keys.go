package enclave

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"txmanager/internal/cryptographic/dh"
	"txmanager/internal/cryptographic/encryption"
	"txmanager/internal/cryptographic/kdf"
	"txmanager/internal/model"
)

const (
	KeyTypeUnlocked = "unlocked"
	KeyTypeLocked   = "argon2aead"
)

type (
	PrivateKeyData struct {
		Bytes      string            `json:"bytes"`
		Salt       string            `json:"salt,omitempty"`
		Argon2Opts *kdf.Argon2Params `json:"argon2Options,omitempty"`
	}

	// PrivateKeyFile is the on-disk shape of a private key.
	PrivateKeyFile struct {
		Data PrivateKeyData `json:"data"`
		Type string         `json:"type"`
	}
)

var ErrPasswordRequired = errors.New("private key is locked and no password was given")

func GenerateKeyPair() (KeyPair, error) {
	priv, pub, err := dh.NewX25519KeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: model.Key(pub), Private: priv}, nil
}

// LockPrivateKey renders kp's private key, sealed under password when it is
// not empty.
func LockPrivateKey(kp KeyPair, password string, params kdf.Argon2Params) (PrivateKeyFile, error) {
	if password == "" {
		return PrivateKeyFile{
			Type: KeyTypeUnlocked,
			Data: PrivateKeyData{Bytes: base64.StdEncoding.EncodeToString(kp.Private[:])},
		}, nil
	}

	salt, err := kdf.NewSalt()
	if err != nil {
		return PrivateKeyFile{}, err
	}
	key, err := kdf.Argon2([]byte(password), salt, params)
	if err != nil {
		return PrivateKeyFile{}, err
	}
	sealed, err := encryption.AEADEncrypt(key, kp.Private[:], kp.Public[:])
	if err != nil {
		return PrivateKeyFile{}, err
	}
	return PrivateKeyFile{
		Type: KeyTypeLocked,
		Data: PrivateKeyData{
			Bytes:      base64.StdEncoding.EncodeToString(sealed),
			Salt:       base64.StdEncoding.EncodeToString(salt),
			Argon2Opts: &params,
		},
	}, nil
}

// UnlockPrivateKey recovers the private key belonging to pub.
func UnlockPrivateKey(f PrivateKeyFile, pub model.Key, password string) ([32]byte, error) {
	var priv [32]byte

	raw, err := base64.StdEncoding.DecodeString(f.Data.Bytes)
	if err != nil {
		return priv, fmt.Errorf("decode private key: %w", err)
	}

	switch f.Type {
	case KeyTypeUnlocked, "":
	case KeyTypeLocked:
		if password == "" {
			return priv, ErrPasswordRequired
		}
		salt, err := base64.StdEncoding.DecodeString(f.Data.Salt)
		if err != nil {
			return priv, fmt.Errorf("decode salt: %w", err)
		}
		params := kdf.DefaultArgon2Params()
		if f.Data.Argon2Opts != nil {
			params = *f.Data.Argon2Opts
		}
		key, err := kdf.Argon2([]byte(password), salt, params)
		if err != nil {
			return priv, err
		}
		raw, err = encryption.AEADDecrypt(key, raw, pub[:])
		if err != nil {
			return priv, fmt.Errorf("unlock private key: %w", err)
		}
	default:
		return priv, fmt.Errorf("unknown private key type %q", f.Type)
	}

	if len(raw) != len(priv) {
		return priv, fmt.Errorf("invalid private key length %d", len(raw))
	}
	copy(priv[:], raw)

	if dh.PublicKey(priv) != [32]byte(pub) {
		return priv, fmt.Errorf("private key does not match public key %s", pub)
	}
	return priv, nil
}

// LoadKeyPair reads a base64 public key file and a JSON private key file.
func LoadKeyPair(publicKeyPath, privateKeyPath, password string) (KeyPair, error) {
	pubData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return KeyPair{}, fmt.Errorf("read public key: %w", err)
	}
	pub, err := model.ParseKey(strings.TrimSpace(string(pubData)))
	if err != nil {
		return KeyPair{}, fmt.Errorf("parse public key %s: %w", publicKeyPath, err)
	}

	privData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return KeyPair{}, fmt.Errorf("read private key: %w", err)
	}
	var f PrivateKeyFile
	if err := json.Unmarshal(privData, &f); err != nil {
		return KeyPair{}, fmt.Errorf("parse private key %s: %w", privateKeyPath, err)
	}

	priv, err := UnlockPrivateKey(f, pub, password)
	if err != nil {
		return KeyPair{}, fmt.Errorf("load %s: %w", privateKeyPath, err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// WriteKeyPair writes <base>.pub and <base>.key and returns their paths.
func WriteKeyPair(base string, kp KeyPair, password string, params kdf.Argon2Params) (string, string, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0700); err != nil {
		return "", "", err
	}

	f, err := LockPrivateKey(kp, password, params)
	if err != nil {
		return "", "", err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", "", err
	}

	pubPath, privPath := base+".pub", base+".key"
	if err := os.WriteFile(pubPath, []byte(kp.Public.String()), 0644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(privPath, data, 0600); err != nil {
		return "", "", err
	}
	return pubPath, privPath, nil
}
