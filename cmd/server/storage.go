package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txmanager/internal/config"
	"txmanager/internal/repository/payload"
	redisSvc "txmanager/internal/service/redis"
	"txmanager/internal/service/transaction"
)

func openStore(ctx context.Context, cfg config.StorageConfig) (transaction.PayloadStore, func() error, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return payload.NewMemoryStore(), func() error { return nil }, nil

	case config.StorageBadger:
		s, err := payload.OpenBadger(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		svc := redisSvc.NewRedis(rdb)
		if err := svc.Ping(ctx); err != nil {
			svc.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return payload.NewRedisStore(svc), svc.Close, nil

	case config.StorageMongo:
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		s := payload.NewMongoStore(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return s, func() error { return client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
