package enclave

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/sha3"

	"txmanager/internal/model"
)

const (
	NonceSize     = 24
	MasterKeySize = 32
)

type (
	KeyPair struct {
		Public  model.Key
		Private [32]byte
	}

	// NaclEnclave seals payloads with a random master key under secretbox and
	// hands that master key to each recipient through a NaCl box.
	NaclEnclave struct {
		pairs   []KeyPair
		private map[model.Key]*[32]byte
		rand    io.Reader
	}
)

// New builds an enclave over pairs. The first pair provides the default key.
func New(pairs []KeyPair) (*NaclEnclave, error) {
	if len(pairs) == 0 {
		return nil, errors.New("enclave needs at least one key pair")
	}

	e := &NaclEnclave{
		pairs:   make([]KeyPair, 0, len(pairs)),
		private: make(map[model.Key]*[32]byte, len(pairs)),
		rand:    rand.Reader,
	}
	for _, kp := range pairs {
		if _, dup := e.private[kp.Public]; dup {
			return nil, fmt.Errorf("duplicate key pair %s", kp.Public)
		}
		priv := kp.Private
		e.private[kp.Public] = &priv
		e.pairs = append(e.pairs, kp)
	}
	return e, nil
}

func (e *NaclEnclave) DefaultKey() model.Key {
	return e.pairs[0].Public
}

func (e *NaclEnclave) PublicKeys() []model.Key {
	keys := make([]model.Key, 0, len(e.pairs))
	for _, kp := range e.pairs {
		keys = append(keys, kp.Public)
	}
	return keys
}

func (e *NaclEnclave) HasKey(k model.Key) bool {
	_, ok := e.private[k]
	return ok
}

// Seal encrypts message for recipients. The cipher text and the recipient
// boxes use separate nonces; every box shares the recipient nonce.
func (e *NaclEnclave) Seal(message []byte, sender model.Key, recipients []model.Key) (*model.EncodedPayloadWithRecipients, error) {
	senderPriv, ok := e.private[sender]
	if !ok {
		return nil, fmt.Errorf("sender %s is not managed by this node: %w", sender, model.ErrKeyNotFound)
	}

	var masterKey [MasterKeySize]byte
	if _, err := io.ReadFull(e.rand, masterKey[:]); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	nonce, err := e.nonce()
	if err != nil {
		return nil, err
	}
	recipientNonce, err := e.nonce()
	if err != nil {
		return nil, err
	}

	payload := &model.EncodedPayloadWithRecipients{
		SenderKey:       sender,
		CipherText:      secretbox.Seal(nil, message, nonce, &masterKey),
		CipherTextNonce: nonce[:],
		RecipientBoxes:  make([][]byte, 0, len(recipients)),
		RecipientNonce:  recipientNonce[:],
		RecipientKeys:   append([]model.Key(nil), recipients...),
	}
	for _, r := range recipients {
		pub := [32]byte(r)
		payload.RecipientBoxes = append(payload.RecipientBoxes, box.Seal(nil, masterKey[:], recipientNonce, &pub, senderPriv))
	}
	return payload, nil
}

// Open recovers the plain text of p using sealedBox, which must belong to the
// local key recipient.
func (e *NaclEnclave) Open(p *model.EncodedPayloadWithRecipients, sealedBox []byte, recipient model.Key) ([]byte, error) {
	priv, ok := e.private[recipient]
	if !ok {
		return nil, fmt.Errorf("recipient %s is not managed by this node: %w", recipient, model.ErrKeyNotFound)
	}
	if len(p.RecipientNonce) != NonceSize || len(p.CipherTextNonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce length: %w", model.ErrAuthenticationFailure)
	}

	senderPub := [32]byte(p.SenderKey)
	masterKey, ok := box.Open(nil, sealedBox, (*[NonceSize]byte)(p.RecipientNonce), &senderPub, priv)
	if !ok || len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("open recipient box: %w", model.ErrAuthenticationFailure)
	}

	plain, ok := secretbox.Open(nil, p.CipherText, (*[NonceSize]byte)(p.CipherTextNonce), (*[MasterKeySize]byte)(masterKey))
	if !ok {
		return nil, fmt.Errorf("open cipher text: %w", model.ErrAuthenticationFailure)
	}
	return plain, nil
}

// Hash is the SHA3-512 digest of sender || cipherText || nonce.
func (e *NaclEnclave) Hash(sender model.Key, cipherText, nonce []byte) model.MessageHash {
	return Hash(sender, cipherText, nonce)
}

func Hash(sender model.Key, cipherText, nonce []byte) model.MessageHash {
	h := sha3.New512()
	h.Write(sender[:])
	h.Write(cipherText)
	h.Write(nonce)

	var out model.MessageHash
	copy(out[:], h.Sum(nil))
	return out
}

func (e *NaclEnclave) nonce() (*[NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := io.ReadFull(e.rand, n[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &n, nil
}
