package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
	"txmanager/internal/repository/payload"
	"txmanager/internal/service/enclave"
)

type mapResolver map[model.Key]string

func (m mapResolver) GetURLFromRecipientKey(k model.Key) (string, error) {
	url, ok := m[k]
	if !ok {
		return "", fmt.Errorf("%s: %w", k, model.ErrKeyNotFound)
	}
	return url, nil
}

type push struct {
	url     string
	payload *model.EncodedPayloadWithRecipients
}

type recordingPublisher struct {
	mu     sync.Mutex
	pushes []push
	fail   map[string]bool
}

func (r *recordingPublisher) PushPayload(_ context.Context, url string, p *model.EncodedPayloadWithRecipients) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, push{url: url, payload: p})
	if r.fail[url] {
		return errors.New("connection refused")
	}
	return nil
}

func (r *recordingPublisher) to(url string) []*model.EncodedPayloadWithRecipients {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EncodedPayloadWithRecipients
	for _, p := range r.pushes {
		if p.url == url {
			out = append(out, p.payload)
		}
	}
	return out
}

// networkPublisher delivers pushes straight into the service registered for a URL.
type networkPublisher struct {
	nodes map[string]*Service
}

func (n *networkPublisher) PushPayload(ctx context.Context, url string, p *model.EncodedPayloadWithRecipients) error {
	node, ok := n.nodes[url]
	if !ok {
		return fmt.Errorf("no node at %s", url)
	}
	_, err := node.StorePayload(ctx, codec.EncodePayload(p))
	return err
}

type testNode struct {
	keys      []enclave.KeyPair
	enclave   *enclave.NaclEnclave
	store     *payload.MemoryStore
	resolver  mapResolver
	publisher *recordingPublisher
	service   *Service
}

func newTestNode(t *testing.T, keyCount int) *testNode {
	t.Helper()
	n := &testNode{
		store:     payload.NewMemoryStore(),
		resolver:  mapResolver{},
		publisher: &recordingPublisher{fail: map[string]bool{}},
	}
	for i := 0; i < keyCount; i++ {
		n.keys = append(n.keys, newKeyPair(t))
	}
	var err error
	n.enclave, err = enclave.New(n.keys)
	require.NoError(t, err)
	n.service = NewService(n.enclave, n.store, n.resolver, n.publisher)
	return n
}

func (n *testNode) key(i int) model.Key {
	return n.keys[i].Public
}

func newKeyPair(t *testing.T) enclave.KeyPair {
	t.Helper()
	kp, err := enclave.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}
