package model

import (
	"sort"
)

type (
	// Party is a peer node, identified by its URL.
	Party struct {
		URL string
	}

	// Recipient records that Key is managed by the node at URL.
	Recipient struct {
		Key Key
		URL string
	}

	// PartyInfo is a registry snapshot. Sets are keyed by value, so they can
	// never hold duplicates.
	PartyInfo struct {
		URL        string
		Recipients map[Recipient]struct{}
		Parties    map[Party]struct{}
	}
)

func NewPartyInfo(url string, recipients []Recipient, parties []Party) PartyInfo {
	pi := PartyInfo{
		URL:        url,
		Recipients: make(map[Recipient]struct{}, len(recipients)),
		Parties:    make(map[Party]struct{}, len(parties)),
	}
	for _, r := range recipients {
		pi.Recipients[r] = struct{}{}
	}
	for _, p := range parties {
		pi.Parties[p] = struct{}{}
	}
	return pi
}

// Clone returns a snapshot that shares no maps with pi.
func (pi PartyInfo) Clone() PartyInfo {
	return NewPartyInfo(pi.URL, pi.RecipientList(), pi.PartyList())
}

// Merge returns the union of pi and other. The URL of pi is kept.
func (pi PartyInfo) Merge(other PartyInfo) PartyInfo {
	merged := pi.Clone()
	for r := range other.Recipients {
		merged.Recipients[r] = struct{}{}
	}
	for p := range other.Parties {
		merged.Parties[p] = struct{}{}
	}
	return merged
}

func (pi PartyInfo) HasRecipient(r Recipient) bool {
	_, ok := pi.Recipients[r]
	return ok
}

func (pi PartyInfo) HasParty(p Party) bool {
	_, ok := pi.Parties[p]
	return ok
}

// RecipientList returns the recipients sorted by key, then URL.
func (pi PartyInfo) RecipientList() []Recipient {
	out := make([]Recipient, 0, len(pi.Recipients))
	for r := range pi.Recipients {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key.Less(out[j].Key)
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// PartyList returns the parties sorted by URL.
func (pi PartyInfo) PartyList() []Party {
	out := make([]Party, 0, len(pi.Parties))
	for p := range pi.Parties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].URL < out[j].URL
	})
	return out
}

// Equal reports whether both snapshots hold the same URL, recipients and parties.
func (pi PartyInfo) Equal(other PartyInfo) bool {
	if pi.URL != other.URL || len(pi.Recipients) != len(other.Recipients) || len(pi.Parties) != len(other.Parties) {
		return false
	}
	for r := range pi.Recipients {
		if !other.HasRecipient(r) {
			return false
		}
	}
	for p := range pi.Parties {
		if !other.HasParty(p) {
			return false
		}
	}
	return true
}
