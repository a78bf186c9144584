// Package config loads the node configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

type (
	Config struct {
		Server            ServerConfig  `yaml:"server"`
		Peers             []PeerConfig  `yaml:"peers"`
		Keys              []KeyConfig   `yaml:"keys"`
		Storage           StorageConfig `yaml:"storage"`
		PartyInfoInterval time.Duration `yaml:"partyInfoInterval"`
		LogLevel          string        `yaml:"logLevel"`
	}

	ServerConfig struct {
		// URL is how peers reach this node; it is advertised in party info.
		URL    string `yaml:"url"`
		Listen string `yaml:"listen"`
	}

	PeerConfig struct {
		URL string `yaml:"url"`
	}

	KeyConfig struct {
		PublicKeyPath  string `yaml:"publicKeyPath"`
		PrivateKeyPath string `yaml:"privateKeyPath"`
		Password       string `yaml:"password"`
	}

	StorageConfig struct {
		Type          string `yaml:"type"`
		Path          string `yaml:"path"`
		RedisAddr     string `yaml:"redisAddr"`
		RedisPassword string `yaml:"redisPassword"`
		RedisDB       int    `yaml:"redisDB"`
		MongoURI      string `yaml:"mongoURI"`
		MongoDatabase string `yaml:"mongoDatabase"`
	}
)

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals data and fills in defaults for anything left empty.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "localhost:9000"
	}
	if c.Server.URL == "" {
		c.Server.URL = "http://" + c.Server.Listen
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageBadger
	}
	if c.Storage.Type == StorageBadger && c.Storage.Path == "" {
		c.Storage.Path = "data"
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = "localhost:6379"
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = "mongodb://localhost:27017"
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = "txmanager"
	}
	if c.PartyInfoInterval == 0 {
		c.PartyInfoInterval = 5 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) PeerURLs() []string {
	urls := make([]string, 0, len(c.Peers))
	for _, p := range c.Peers {
		urls = append(urls, p.URL)
	}
	return urls
}

func (c *Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		errs = append(errs, fmt.Errorf("server.url %q must be an http(s) url", c.Server.URL))
	}
	if len(c.Keys) == 0 {
		errs = append(errs, errors.New("at least one key pair is required"))
	}
	for i, k := range c.Keys {
		if k.PublicKeyPath == "" || k.PrivateKeyPath == "" {
			errs = append(errs, fmt.Errorf("keys[%d]: publicKeyPath and privateKeyPath are required", i))
		}
	}
	for i, p := range c.Peers {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("peers[%d]: url is required", i))
		}
	}
	switch c.Storage.Type {
	case StorageMemory, StorageBadger, StorageRedis, StorageMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	if c.PartyInfoInterval < 0 {
		errs = append(errs, errors.New("partyInfoInterval must be positive"))
	}
	return errors.Join(errs...)
}
