package enclave

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmanager/internal/cryptographic/kdf"
)

var fastArgon2 = kdf.Argon2Params{Variant: "id", Iterations: 1, Memory: 1024, Parallelism: 1}

func TestWriteAndLoadUnlocked(t *testing.T) {
	kp := newPair(t)
	pubPath, privPath, err := WriteKeyPair(filepath.Join(t.TempDir(), "node"), kp, "", fastArgon2)
	require.NoError(t, err)

	loaded, err := LoadKeyPair(pubPath, privPath, "")
	require.NoError(t, err)
	assert.Equal(t, kp, loaded)
}

func TestWriteAndLoadLocked(t *testing.T) {
	kp := newPair(t)
	pubPath, privPath, err := WriteKeyPair(filepath.Join(t.TempDir(), "keys", "node"), kp, "secret", fastArgon2)
	require.NoError(t, err)

	_, err = LoadKeyPair(pubPath, privPath, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = LoadKeyPair(pubPath, privPath, "wrong")
	assert.Error(t, err)

	loaded, err := LoadKeyPair(pubPath, privPath, "secret")
	require.NoError(t, err)
	assert.Equal(t, kp, loaded)
}

func TestUnlockRejectsForeignPublicKey(t *testing.T) {
	kp, other := newPair(t), newPair(t)
	f, err := LockPrivateKey(kp, "", fastArgon2)
	require.NoError(t, err)

	_, err = UnlockPrivateKey(f, other.Public, "")
	assert.Error(t, err)
}

func TestUnlockUnknownType(t *testing.T) {
	kp := newPair(t)
	f, err := LockPrivateKey(kp, "", fastArgon2)
	require.NoError(t, err)
	f.Type = "vault"

	_, err = UnlockPrivateKey(f, kp.Public, "")
	assert.Error(t, err)
}
