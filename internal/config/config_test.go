package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  url: http://node1.example:9001/
  listen: 0.0.0.0:9001
peers:
  - url: http://node2.example:9001
  - url: http://node3.example:9001
keys:
  - publicKeyPath: keys/node1.pub
    privateKeyPath: keys/node1.key
    password: secret
storage:
  type: redis
  redisAddr: redis:6379
  redisDB: 2
partyInfoInterval: 30s
logLevel: debug
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "http://node1.example:9001/", cfg.Server.URL)
	assert.Equal(t, "0.0.0.0:9001", cfg.Server.Listen)
	assert.Equal(t, []string{"http://node2.example:9001", "http://node3.example:9001"}, cfg.PeerURLs())
	require.Len(t, cfg.Keys, 1)
	assert.Equal(t, "secret", cfg.Keys[0].Password)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.PartyInfoInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost:9000", cfg.Server.Listen)
	assert.Equal(t, "http://localhost:9000", cfg.Server.URL)
	assert.Equal(t, StorageBadger, cfg.Storage.Type)
	assert.Equal(t, "data", cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.PartyInfoInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.PeerURLs())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "node1:9000"
	cfg.Storage.Type = "etcd"
	cfg.Peers = []PeerConfig{{}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.url")
	assert.Contains(t, err.Error(), "at least one key pair")
	assert.Contains(t, err.Error(), "peers[0]")
	assert.Contains(t, err.Error(), "etcd")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node1.example:9001/", cfg.Server.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
