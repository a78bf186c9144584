package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
	"txmanager/internal/utils/log"
)

type (
	// Enclave holds the private keys and performs all box operations.
	Enclave interface {
		Seal(message []byte, sender model.Key, recipients []model.Key) (*model.EncodedPayloadWithRecipients, error)
		Open(p *model.EncodedPayloadWithRecipients, sealedBox []byte, recipient model.Key) ([]byte, error)
		Hash(sender model.Key, cipherText, nonce []byte) model.MessageHash
		PublicKeys() []model.Key
		DefaultKey() model.Key
		HasKey(k model.Key) bool
	}

	// PayloadStore is content-addressed persistence. Get returns nil when the
	// hash is absent.
	PayloadStore interface {
		Put(ctx context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error
		Get(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error)
		Delete(ctx context.Context, hash model.MessageHash) (bool, error)
		AllForRecipient(ctx context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error)
	}

	// Resolver maps a recipient key to the URL of the node managing it.
	Resolver interface {
		GetURLFromRecipientKey(key model.Key) (string, error)
	}

	// Publisher delivers a payload to a peer node.
	Publisher interface {
		PushPayload(ctx context.Context, url string, p *model.EncodedPayloadWithRecipients) error
	}

	// Listener is told about payloads stored on behalf of peers.
	Listener func(hash model.MessageHash, p *model.EncodedPayloadWithRecipients)

	Service struct {
		enclave   Enclave
		store     PayloadStore
		resolver  Resolver
		publisher Publisher

		mu        sync.RWMutex
		listeners map[int]Listener
		nextID    int
	}
)

func NewService(enclave Enclave, store PayloadStore, resolver Resolver, publisher Publisher) *Service {
	return &Service{
		enclave:   enclave,
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function removing it.
func (s *Service) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// EncryptPayload seals message from sender for recipients, keeping their order.
func (s *Service) EncryptPayload(message []byte, sender model.Key, recipients []model.Key) (*model.EncodedPayloadWithRecipients, error) {
	if len(recipients) == 0 {
		return nil, model.ErrNoRecipients
	}

	p, err := s.enclave.Seal(message, sender, recipients)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}
	if len(p.RecipientBoxes) != len(recipients) {
		return nil, fmt.Errorf("enclave returned %d boxes for %d recipients", len(p.RecipientBoxes), len(recipients))
	}
	p.RecipientKeys = append([]model.Key(nil), recipients...)
	return p, nil
}

// Store encrypts message, persists it and publishes a copy to the node of
// every remote recipient. The sender is always made a recipient. A non-nil
// hash comes back even when publishing fails; the error is then a
// *model.PublishError and the payload stays stored.
func (s *Service) Store(ctx context.Context, sender model.OptionalKey, recipients []model.Key, message []byte) (model.MessageHash, error) {
	senderKey := sender.OrElse(s.enclave.DefaultKey())

	list := make([]model.Key, 0, len(recipients)+1)
	seen := make(map[model.Key]bool, len(recipients)+1)
	for _, k := range append(append([]model.Key(nil), recipients...), senderKey) {
		if !seen[k] {
			seen[k] = true
			list = append(list, k)
		}
	}

	p, err := s.EncryptPayload(message, senderKey, list)
	if err != nil {
		return model.MessageHash{}, err
	}

	hash, err := s.StoreEncodedPayload(ctx, p)
	if err != nil {
		return model.MessageHash{}, err
	}

	perr := &model.PublishError{}
	for _, r := range list {
		if s.enclave.HasKey(r) {
			continue
		}
		if err := s.PublishPayload(ctx, p, r); err != nil {
			perr.Add(r, "", err)
		}
	}

	if err := perr.OrNil(); err != nil {
		log.Warn("transaction stored with publish failures",
			zap.String("hash", hash.String()),
			zap.Error(err),
		)
		return hash, err
	}
	log.Debug("transaction stored", zap.String("hash", hash.String()), zap.Int("recipients", len(list)))
	return hash, nil
}

// StoreEncodedPayload persists p unmodified under its content hash.
func (s *Service) StoreEncodedPayload(ctx context.Context, p *model.EncodedPayloadWithRecipients) (model.MessageHash, error) {
	hash := s.enclave.Hash(p.SenderKey, p.CipherText, p.CipherTextNonce)
	if err := s.store.Put(ctx, hash, p); err != nil {
		return model.MessageHash{}, fmt.Errorf("persist payload %s: %w", hash, err)
	}
	return hash, nil
}

// StorePayload decodes a payload pushed by a peer and persists it.
func (s *Service) StorePayload(ctx context.Context, raw []byte) (model.MessageHash, error) {
	p, err := codec.DecodePayload(raw)
	if err != nil {
		return model.MessageHash{}, fmt.Errorf("decode payload: %w", err)
	}

	hash, err := s.StoreEncodedPayload(ctx, p)
	if err != nil {
		return model.MessageHash{}, err
	}

	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(hash, p)
	}
	return hash, nil
}

// RetrievePayload returns the payload at hash, pruned to our own box when
// one of our keys is a recipient.
func (s *Service) RetrievePayload(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	p, err := s.load(ctx, hash)
	if err != nil {
		return nil, err
	}

	for _, k := range s.enclave.PublicKeys() {
		if stripped, ok := p.StripTo(k); ok {
			return stripped, nil
		}
	}
	return p, nil
}

// RetrieveUnencryptedTransaction decrypts the payload at hash with one of our
// keys. A given sender must match the payload's sender.
func (s *Service) RetrieveUnencryptedTransaction(ctx context.Context, hash model.MessageHash, sender model.OptionalKey) ([]byte, error) {
	p, err := s.load(ctx, hash)
	if err != nil {
		return nil, err
	}

	if want, ok := sender.Get(); ok && want != p.SenderKey {
		return nil, fmt.Errorf("%s: %w", hash, model.ErrSenderMismatch)
	}

	for _, k := range s.enclave.PublicKeys() {
		if p.HasRecipient(k) {
			return s.open(p, k)
		}
	}
	if len(p.RecipientKeys) == 0 {
		return s.openAnonymous(hash, p, s.enclave.PublicKeys())
	}
	return nil, fmt.Errorf("no local key can open %s: %w", hash, model.ErrTransactionNotFound)
}

// Receive decrypts the payload at hash for to, or for the default key.
func (s *Service) Receive(ctx context.Context, hash model.MessageHash, to model.OptionalKey) ([]byte, error) {
	recipient, ok := to.Get()
	if !ok {
		recipient = s.enclave.DefaultKey()
	}
	if !s.enclave.HasKey(recipient) {
		return nil, fmt.Errorf("%s is not managed by this node: %w", recipient, model.ErrKeyNotFound)
	}

	p, err := s.load(ctx, hash)
	if err != nil {
		return nil, err
	}

	if p.HasRecipient(recipient) {
		return s.open(p, recipient)
	}
	if len(p.RecipientKeys) == 0 {
		return s.openAnonymous(hash, p, []model.Key{recipient})
	}
	return nil, fmt.Errorf("%s is not a recipient of %s: %w", recipient, hash, model.ErrTransactionNotFound)
}

// PublishPayload sends p, stripped to recipient's box, to the node managing
// recipient. Our own keys are never published to.
func (s *Service) PublishPayload(ctx context.Context, p *model.EncodedPayloadWithRecipients, recipient model.Key) error {
	if s.enclave.HasKey(recipient) {
		return nil
	}

	url, err := s.resolver.GetURLFromRecipientKey(recipient)
	if err != nil {
		return err
	}

	stripped, ok := p.StripTo(recipient)
	if !ok {
		return fmt.Errorf("%s has no box in payload: %w", recipient, model.ErrKeyNotFound)
	}

	if err := s.publisher.PushPayload(ctx, url, stripped); err != nil {
		return fmt.Errorf("push to %s: %w: %w", url, model.ErrPropagationFailure, err)
	}
	return nil
}

// ResendAll republishes every payload that lists key to all of its recipients.
func (s *Service) ResendAll(ctx context.Context, key model.Key) error {
	payloads, err := s.store.AllForRecipient(ctx, key)
	if err != nil {
		return fmt.Errorf("list payloads for %s: %w", key, err)
	}

	perr := &model.PublishError{}
	for _, p := range payloads {
		for _, r := range p.RecipientKeys {
			if err := s.PublishPayload(ctx, p, r); err != nil {
				perr.Add(r, "", err)
			}
		}
	}

	log.Info("resend finished",
		zap.String("key", key.String()),
		zap.Int("payloads", len(payloads)),
		zap.Int("failures", len(perr.Failures)),
	)
	return perr.OrNil()
}

// FetchTransactionForRecipient serves a peer's recovery request. The payload
// is only returned, pruned to the recipient's box, when recipient is one of
// its recipients.
func (s *Service) FetchTransactionForRecipient(ctx context.Context, hash model.MessageHash, recipient model.Key) (*model.EncodedPayloadWithRecipients, error) {
	p, err := s.load(ctx, hash)
	if err != nil {
		return nil, err
	}

	stripped, ok := p.StripTo(recipient)
	if !ok {
		return nil, fmt.Errorf("%s is not a recipient of %s: %w", recipient, hash, model.ErrTransactionNotFound)
	}
	return stripped, nil
}

// RetrieveAllForRecipient lists every stored payload that names key.
func (s *Service) RetrieveAllForRecipient(ctx context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error) {
	return s.store.AllForRecipient(ctx, key)
}

// Delete removes hash. Deleting an absent hash succeeds.
func (s *Service) Delete(ctx context.Context, hash model.MessageHash) error {
	existed, err := s.store.Delete(ctx, hash)
	if err != nil {
		return fmt.Errorf("delete %s: %w", hash, err)
	}
	log.Debug("transaction deleted", zap.String("hash", hash.String()), zap.Bool("existed", existed))
	return nil
}

func (s *Service) load(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	p, err := s.store.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", hash, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: %w", hash, model.ErrTransactionNotFound)
	}
	return p, nil
}

func (s *Service) open(p *model.EncodedPayloadWithRecipients, recipient model.Key) ([]byte, error) {
	idx := p.IndexOfRecipient(recipient)
	if idx < 0 || idx >= len(p.RecipientBoxes) {
		return nil, fmt.Errorf("%s has no box: %w", recipient, model.ErrTransactionNotFound)
	}
	return s.enclave.Open(p, p.RecipientBoxes[idx], recipient)
}

// openAnonymous handles payloads whose recipient list was cleared: every box
// is tried with every candidate key.
func (s *Service) openAnonymous(hash model.MessageHash, p *model.EncodedPayloadWithRecipients, keys []model.Key) ([]byte, error) {
	if len(p.RecipientBoxes) == 0 {
		return nil, fmt.Errorf("%s carries no recipient box: %w", hash, model.ErrTransactionNotFound)
	}

	lastErr := fmt.Errorf("%s: %w", hash, model.ErrTransactionNotFound)
	for _, box := range p.RecipientBoxes {
		for _, k := range keys {
			plain, err := s.enclave.Open(p, box, k)
			if err == nil {
				return plain, nil
			}
			lastErr = err
		}
	}
	if errors.Is(lastErr, model.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", hash, model.ErrTransactionNotFound)
	}
	return nil, lastErr
}
