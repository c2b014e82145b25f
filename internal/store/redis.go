package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kokukuma/openid4vp-verifier/document"
)

const keyPrefix = "presentation_request"

type requestDocument StoredRequest

func (d *requestDocument) MarshalBinary() ([]byte, error) {
	return json.Marshal((*StoredRequest)(d))
}

// RedisStore shares presentation requests between verifier instances.
// Keys outlive the request by the retention window so an expired id is still reported as expired once.
type RedisStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl, retention time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		retention: retention,
		now:       time.Now,
	}
}

func (s *RedisStore) Create(ctx context.Context, descriptor *document.QueryDescriptor) (*StoredRequest, error) {
	rec, err := newStoredRequest(descriptor, s.now().UTC(), s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, resolveRedisKey(rec.ID), (*requestDocument)(rec), s.ttl+s.retention).Err(); err != nil {
		return nil, fmt.Errorf("presentation request set: %w", err)
	}

	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*StoredRequest, LookupStatus, error) {
	key := resolveRedisKey(id)

	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, StatusNotFound, nil
		}
		return nil, StatusNotFound, fmt.Errorf("find presentation request: %w", err)
	}

	rec := &StoredRequest{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, StatusNotFound, fmt.Errorf("get and decode: %w", err)
	}

	status := Lookup(rec, s.now())
	if status != StatusExpired {
		return rec, status, nil
	}

	// Only the reader that removes the key reports the expiry.
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return nil, StatusNotFound, fmt.Errorf("delete expired presentation request: %w", err)
	}
	if deleted == 0 {
		return nil, StatusNotFound, nil
	}
	return nil, StatusExpired, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, resolveRedisKey(id)).Err(); err != nil {
		return fmt.Errorf("delete presentation request: %w", err)
	}
	return nil
}

func resolveRedisKey(id string) string {
	return fmt.Sprintf("%s-%s", keyPrefix, id)
}
