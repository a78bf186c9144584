package enclave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmanager/internal/model"
)

func newPair(t *testing.T) KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestSealOpenEveryRecipient(t *testing.T) {
	sender, r1, r2 := newPair(t), newPair(t), newPair(t)

	senderNode, err := New([]KeyPair{sender})
	require.NoError(t, err)

	msg := []byte("private transaction")
	p, err := senderNode.Seal(msg, sender.Public, []model.Key{r1.Public, r2.Public})
	require.NoError(t, err)

	assert.Equal(t, []model.Key{r1.Public, r2.Public}, p.RecipientKeys)
	require.Len(t, p.RecipientBoxes, 2)
	assert.Len(t, p.CipherTextNonce, NonceSize)
	assert.Len(t, p.RecipientNonce, NonceSize)
	assert.NotEqual(t, msg, p.CipherText)

	for i, kp := range []KeyPair{r1, r2} {
		node, err := New([]KeyPair{kp})
		require.NoError(t, err)
		plain, err := node.Open(p, p.RecipientBoxes[i], kp.Public)
		require.NoError(t, err)
		assert.Equal(t, msg, plain)
	}
}

func TestOpenWrongBox(t *testing.T) {
	sender, r1, r2 := newPair(t), newPair(t), newPair(t)
	senderNode, err := New([]KeyPair{sender})
	require.NoError(t, err)

	p, err := senderNode.Seal([]byte("m"), sender.Public, []model.Key{r1.Public, r2.Public})
	require.NoError(t, err)

	node, err := New([]KeyPair{r1})
	require.NoError(t, err)
	_, err = node.Open(p, p.RecipientBoxes[1], r1.Public)
	assert.ErrorIs(t, err, model.ErrAuthenticationFailure)
}

func TestOpenTamperedCipherText(t *testing.T) {
	sender, r1 := newPair(t), newPair(t)
	senderNode, err := New([]KeyPair{sender})
	require.NoError(t, err)

	p, err := senderNode.Seal([]byte("m"), sender.Public, []model.Key{r1.Public})
	require.NoError(t, err)
	p.CipherText[0] ^= 0xff

	node, err := New([]KeyPair{r1})
	require.NoError(t, err)
	_, err = node.Open(p, p.RecipientBoxes[0], r1.Public)
	assert.ErrorIs(t, err, model.ErrAuthenticationFailure)
}

func TestSealUnknownSender(t *testing.T) {
	node, err := New([]KeyPair{newPair(t)})
	require.NoError(t, err)

	_, err = node.Seal([]byte("m"), newPair(t).Public, []model.Key{newPair(t).Public})
	assert.ErrorIs(t, err, model.ErrKeyNotFound)
}

func TestSenderCanOpenOwnBox(t *testing.T) {
	sender := newPair(t)
	node, err := New([]KeyPair{sender})
	require.NoError(t, err)

	p, err := node.Seal([]byte("self"), sender.Public, []model.Key{sender.Public})
	require.NoError(t, err)

	plain, err := node.Open(p, p.RecipientBoxes[0], sender.Public)
	require.NoError(t, err)
	assert.Equal(t, []byte("self"), plain)
}

func TestHashIgnoresRecipientBoxes(t *testing.T) {
	sender, r1, r2 := newPair(t), newPair(t), newPair(t)
	node, err := New([]KeyPair{sender})
	require.NoError(t, err)

	p, err := node.Seal([]byte("m"), sender.Public, []model.Key{r1.Public, r2.Public})
	require.NoError(t, err)
	stripped, ok := p.StripTo(r2.Public)
	require.True(t, ok)

	assert.Equal(t,
		node.Hash(p.SenderKey, p.CipherText, p.CipherTextNonce),
		node.Hash(stripped.SenderKey, stripped.CipherText, stripped.CipherTextNonce),
	)
}

func TestNewRejectsDuplicates(t *testing.T) {
	kp := newPair(t)
	_, err := New([]KeyPair{kp, kp})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestDefaultKeyIsFirst(t *testing.T) {
	a, b := newPair(t), newPair(t)
	node, err := New([]KeyPair{a, b})
	require.NoError(t, err)

	assert.Equal(t, a.Public, node.DefaultKey())
	assert.Equal(t, []model.Key{a.Public, b.Public}, node.PublicKeys())
	assert.True(t, node.HasKey(b.Public))
}
