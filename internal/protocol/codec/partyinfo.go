package codec

import (
	"fmt"

	"txmanager/internal/model"
)

// EncodePartyInfo lays out a snapshot as url | recipients(key, url) | parties(url).
// Sets are written in sorted order so equal snapshots encode identically.
func EncodePartyInfo(pi model.PartyInfo) []byte {
	w := &writer{}
	w.string(pi.URL)

	recipients := pi.RecipientList()
	w.uint64(uint64(len(recipients)))
	for _, r := range recipients {
		w.bytes(r.Key[:])
		w.string(r.URL)
	}

	parties := pi.PartyList()
	w.uint64(uint64(len(parties)))
	for _, p := range parties {
		w.string(p.URL)
	}
	return w.buf
}

func DecodePartyInfo(data []byte) (model.PartyInfo, error) {
	r := &reader{buf: data}

	url, err := r.string()
	if err != nil {
		return model.PartyInfo{}, fmt.Errorf("decode url: %w", err)
	}

	n, err := r.count()
	if err != nil {
		return model.PartyInfo{}, fmt.Errorf("decode recipient count: %w", err)
	}
	recipients := make([]model.Recipient, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.bytes()
		if err != nil {
			return model.PartyInfo{}, fmt.Errorf("decode recipient %d key: %w", i, err)
		}
		k, err := model.KeyFromBytes(raw)
		if err != nil {
			return model.PartyInfo{}, fmt.Errorf("decode recipient %d key: %w", i, err)
		}
		u, err := r.string()
		if err != nil {
			return model.PartyInfo{}, fmt.Errorf("decode recipient %d url: %w", i, err)
		}
		recipients = append(recipients, model.Recipient{Key: k, URL: u})
	}

	n, err = r.count()
	if err != nil {
		return model.PartyInfo{}, fmt.Errorf("decode party count: %w", err)
	}
	parties := make([]model.Party, 0, n)
	for i := 0; i < n; i++ {
		u, err := r.string()
		if err != nil {
			return model.PartyInfo{}, fmt.Errorf("decode party %d: %w", i, err)
		}
		parties = append(parties, model.Party{URL: u})
	}

	if err := r.done(); err != nil {
		return model.PartyInfo{}, err
	}
	return model.NewPartyInfo(url, recipients, parties), nil
}
