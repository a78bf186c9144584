package payload

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
	redisSvc "txmanager/internal/service/redis"
)

type (
	// RedisStore keeps each payload under payload:<hash> and a set of hashes
	// per recipient under recipient:<key>.
	RedisStore struct {
		redisService *redisSvc.RedisService
	}
)

func NewRedisStore(redisService *redisSvc.RedisService) *RedisStore {
	return &RedisStore{
		redisService: redisService,
	}
}

func (s *RedisStore) Put(ctx context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error {
	old, err := s.Get(ctx, hash)
	if err != nil {
		return err
	}

	return s.redisService.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old != nil {
			for _, k := range old.RecipientKeys {
				pipe.SRem(ctx, recipientKey(k), hash.String())
			}
		}
		pipe.Set(ctx, payloadRedisKey(hash), codec.EncodePayload(p), 0)
		for _, k := range p.RecipientKeys {
			pipe.SAdd(ctx, recipientKey(k), hash.String())
		}
		return nil
	})
}

func (s *RedisStore) Get(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	data, err := s.redisService.GetBytes(ctx, payloadRedisKey(hash))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodePayload(data)
}

func (s *RedisStore) Delete(ctx context.Context, hash model.MessageHash) (bool, error) {
	old, err := s.Get(ctx, hash)
	if err != nil {
		return false, err
	}
	if old == nil {
		return false, nil
	}

	err = s.redisService.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, payloadRedisKey(hash))
		for _, k := range old.RecipientKeys {
			pipe.SRem(ctx, recipientKey(k), hash.String())
		}
		return nil
	})
	return err == nil, err
}

func (s *RedisStore) AllForRecipient(ctx context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error) {
	members, err := s.redisService.SMembers(ctx, recipientKey(key))
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, "payload:"+m)
	}
	vals, err := s.redisService.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	var out []*model.EncodedPayloadWithRecipients
	for i, v := range vals {
		// index entries can outlive a payload removed by another writer
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value type %T for %s", v, keys[i])
		}
		p, err := codec.DecodePayload([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func payloadRedisKey(hash model.MessageHash) string {
	return "payload:" + hash.String()
}

func recipientKey(k model.Key) string {
	return "recipient:" + k.String()
}
