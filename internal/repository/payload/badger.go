package payload

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
)

var (
	payloadPrefix   = []byte("p/")
	recipientPrefix = []byte("r/")
)

type (
	// BadgerStore keeps payloads under p/<hash> and a recipient index under
	// r/<key><hash>.
	BadgerStore struct {
		db *badger.DB
	}
)

// OpenBadger opens a store at path. An empty path runs badger in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return NewBadgerStore(db), nil
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Put(_ context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.dropIndexLocked(txn, hash); err != nil {
			return err
		}
		if err := txn.Set(payloadKey(hash), codec.EncodePayload(p)); err != nil {
			return err
		}
		for _, k := range p.RecipientKeys {
			if err := txn.Set(indexKey(k, hash), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Get(_ context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	var p *model.EncodedPayloadWithRecipients
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getPayload(txn, hash)
		return err
	})
	return p, err
}

func (s *BadgerStore) Delete(_ context.Context, hash model.MessageHash) (bool, error) {
	var existed bool
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(payloadKey(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		if err := s.dropIndexLocked(txn, hash); err != nil {
			return err
		}
		return txn.Delete(payloadKey(hash))
	})
	return existed, err
}

func (s *BadgerStore) AllForRecipient(_ context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error) {
	var out []*model.EncodedPayloadWithRecipients
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append(append([]byte{}, recipientPrefix...), key[:]...)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			hash, err := model.HashFromBytes(it.Item().KeyCopy(nil)[len(prefix):])
			if err != nil {
				return err
			}
			p, err := getPayload(txn, hash)
			if err != nil {
				return err
			}
			if p != nil {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// dropIndexLocked removes index entries of the payload currently stored at hash.
func (s *BadgerStore) dropIndexLocked(txn *badger.Txn, hash model.MessageHash) error {
	old, err := getPayload(txn, hash)
	if err != nil || old == nil {
		return err
	}
	for _, k := range old.RecipientKeys {
		if err := txn.Delete(indexKey(k, hash)); err != nil {
			return err
		}
	}
	return nil
}

func getPayload(txn *badger.Txn, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	item, err := txn.Get(payloadKey(hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return codec.DecodePayload(data)
}

func payloadKey(hash model.MessageHash) []byte {
	return append(append(make([]byte, 0, len(payloadPrefix)+model.HashSize), payloadPrefix...), hash[:]...)
}

func indexKey(k model.Key, hash model.MessageHash) []byte {
	out := make([]byte, 0, len(recipientPrefix)+model.KeySize+model.HashSize)
	out = append(out, recipientPrefix...)
	out = append(out, k[:]...)
	return append(out, hash[:]...)
}
