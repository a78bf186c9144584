package partyinfo

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/utils/log"
)

type (
	// Store holds the single authoritative registry snapshot.
	Store interface {
		Get() model.PartyInfo
		Replace(model.PartyInfo)
	}

	// KeySource lists the public keys this node manages.
	KeySource interface {
		PublicKeys() []model.Key
	}

	// Service owns every read-modify-write of the registry. Callers only see
	// whole snapshots and atomic merges.
	Service struct {
		mu     sync.Mutex
		store  Store
		keys   KeySource
		ourURL string
		peers  []string
		seeded bool
	}
)

func NewService(store Store, keys KeySource, ourURL string, peers []string) *Service {
	return &Service{
		store:  store,
		keys:   keys,
		ourURL: NormalizeURL(ourURL),
		peers:  append([]string(nil), peers...),
	}
}

func (s *Service) OurURL() string {
	return s.ourURL
}

// GetPartyInfo returns the current snapshot. The first call registers our
// own keys under our URL and the configured peers as parties.
func (s *Service) GetPartyInfo() model.PartyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// UpdatePartyInfo merges incoming into the registry and returns the
// recipients that were not known before the merge.
func (s *Service) UpdatePartyInfo(incoming model.PartyInfo) []model.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.currentLocked()
	unsaved := unsavedRecipients(current, incoming)

	merged := current.Merge(incoming)
	if u := NormalizeURL(incoming.URL); u != "" && u != s.ourURL {
		merged.Parties[model.Party{URL: u}] = struct{}{}
	}
	s.store.Replace(merged)

	if len(unsaved) > 0 {
		log.Debug("registry merged new recipients",
			zap.String("from", incoming.URL),
			zap.Int("new", len(unsaved)),
		)
	}
	return unsaved
}

// FindUnsavedRecipients returns incoming.Recipients minus the registry's.
func (s *Service) FindUnsavedRecipients(incoming model.PartyInfo) []model.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unsavedRecipients(s.currentLocked(), incoming)
}

// GetURLFromRecipientKey resolves the node managing key. When several nodes
// advertise the same key the smallest URL wins, so every node resolves the
// conflict the same way.
func (s *Service) GetURLFromRecipientKey(key model.Key) (string, error) {
	info := s.GetPartyInfo()

	var urls []string
	for r := range info.Recipients {
		if r.Key == key {
			urls = append(urls, r.URL)
		}
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("%s: %w", key, model.ErrKeyNotFound)
	}

	sort.Strings(urls)
	if len(urls) > 1 {
		log.Warn("recipient key advertised by several nodes",
			zap.String("key", key.String()),
			zap.Strings("urls", urls),
		)
	}
	return urls[0], nil
}

func (s *Service) currentLocked() model.PartyInfo {
	if s.seeded {
		return s.store.Get()
	}

	keys := s.keys.PublicKeys()
	recipients := make([]model.Recipient, 0, len(keys))
	for _, k := range keys {
		recipients = append(recipients, model.Recipient{Key: k, URL: s.ourURL})
	}
	parties := make([]model.Party, 0, len(s.peers))
	for _, p := range s.peers {
		if u := NormalizeURL(p); u != "" {
			parties = append(parties, model.Party{URL: u})
		}
	}

	seed := model.NewPartyInfo(s.ourURL, recipients, parties)
	current := s.store.Get()
	merged := seed.Merge(current)
	s.store.Replace(merged)
	s.seeded = true

	log.Info("registry seeded",
		zap.String("url", s.ourURL),
		zap.Int("keys", len(recipients)),
		zap.Int("peers", len(parties)),
	)
	return merged
}

func unsavedRecipients(current, incoming model.PartyInfo) []model.Recipient {
	var out []model.Recipient
	for _, r := range incoming.RecipientList() {
		if !current.HasRecipient(r) {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeURL drops surrounding space and trailing slashes so the same node
// is never registered twice.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
