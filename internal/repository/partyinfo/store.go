package partyinfo

import (
	"sync"

	"txmanager/internal/model"
)

type (
	// Store is the single in-process slot holding the current registry
	// snapshot. Snapshots are cloned on the way in and out.
	Store struct {
		mu   sync.RWMutex
		info model.PartyInfo
	}
)

func NewStore(url string) *Store {
	return &Store{
		info: model.NewPartyInfo(url, nil, nil),
	}
}

func (s *Store) Get() model.PartyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Clone()
}

func (s *Store) Replace(info model.PartyInfo) {
	info = info.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}
