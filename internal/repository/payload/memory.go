package payload

import (
	"context"
	"sync"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
)

type (
	// MemoryStore keeps encoded payloads in a map. Values are stored encoded
	// so callers can never alias stored slices.
	MemoryStore struct {
		mu       sync.RWMutex
		payloads map[model.MessageHash][]byte
	}
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[model.MessageHash][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error {
	data := codec.EncodePayload(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[hash] = data
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	s.mu.RLock()
	data, ok := s.payloads[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return codec.DecodePayload(data)
}

func (s *MemoryStore) Delete(_ context.Context, hash model.MessageHash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.payloads[hash]
	delete(s.payloads, hash)
	return ok, nil
}

func (s *MemoryStore) AllForRecipient(_ context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.EncodedPayloadWithRecipients
	for _, data := range s.payloads {
		p, err := codec.DecodePayload(data)
		if err != nil {
			return nil, err
		}
		if p.HasRecipient(key) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}
