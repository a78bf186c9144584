package payload

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txmanager/internal/model"
	redisSvc "txmanager/internal/service/redis"
)

type store interface {
	Put(ctx context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error
	Get(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error)
	Delete(ctx context.Context, hash model.MessageHash) (bool, error)
	AllForRecipient(ctx context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error)
}

func key(b byte) model.Key {
	var k model.Key
	k[0] = b
	return k
}

func hash(b byte) model.MessageHash {
	var h model.MessageHash
	h[0] = b
	return h
}

func payloadFor(ct string, recipients ...model.Key) *model.EncodedPayloadWithRecipients {
	boxes := make([][]byte, 0, len(recipients))
	for range recipients {
		boxes = append(boxes, []byte("box"))
	}
	return &model.EncodedPayloadWithRecipients{
		SenderKey:       key(1),
		CipherText:      []byte(ct),
		CipherTextNonce: []byte("nonce"),
		RecipientBoxes:  boxes,
		RecipientNonce:  []byte("rnonce"),
		RecipientKeys:   recipients,
	}
}

func runStoreSuite(t *testing.T, s store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		p, err := s.Get(ctx, hash(99))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("put get", func(t *testing.T) {
		p := payloadFor("one", key(2), key(3))
		require.NoError(t, s.Put(ctx, hash(1), p))

		got, err := s.Get(ctx, hash(1))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("put is idempotent", func(t *testing.T) {
		p := payloadFor("two", key(2))
		require.NoError(t, s.Put(ctx, hash(2), p))
		require.NoError(t, s.Put(ctx, hash(2), p))

		all, err := s.AllForRecipient(ctx, key(2))
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("overwrite moves recipient index", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, hash(3), payloadFor("three", key(4))))
		require.NoError(t, s.Put(ctx, hash(3), payloadFor("three", key(5))))

		all, err := s.AllForRecipient(ctx, key(4))
		require.NoError(t, err)
		assert.Empty(t, all)

		all, err = s.AllForRecipient(ctx, key(5))
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("all for recipient", func(t *testing.T) {
		all, err := s.AllForRecipient(ctx, key(3))
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, []byte("one"), all[0].CipherText)

		all, err = s.AllForRecipient(ctx, key(42))
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := s.Delete(ctx, hash(1))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Delete(ctx, hash(1))
		require.NoError(t, err)
		assert.False(t, ok)

		p, err := s.Get(ctx, hash(1))
		require.NoError(t, err)
		assert.Nil(t, p)

		all, err := s.AllForRecipient(ctx, key(3))
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	runStoreSuite(t, s)
	assert.Equal(t, 2, s.Len())
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	defer s.Close()

	runStoreSuite(t, s)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, hash(7), payloadFor("durable", key(2))))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, hash(7))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("durable"), got.CipherText)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	runStoreSuite(t, NewRedisStore(redisSvc.NewRedis(rdb)))
}

// TestMongoStore runs only against a live server named by MONGO_URI.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database("txmanager_test_" + time.Now().Format("150405"))
	defer db.Drop(context.Background())

	s := NewMongoStore(db)
	require.NoError(t, s.EnsureIndexes(ctx))
	runStoreSuite(t, s)
}
