package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// ReplayStore keeps the first successful response per client key, namespaced
// by scope so two endpoints never share a key space.
type ReplayStore struct {
	client *redis.Client
	scope  string
}

func NewReplayStore(client *redis.Client, scope string) *ReplayStore {
	return &ReplayStore{client: client, scope: scope}
}

type StoredResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

func (s *ReplayStore) key(k string) string {
	return "idemp:" + s.scope + ":" + k
}

func (s *ReplayStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get stored response")
	}
	var resp StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "decode stored response")
	}
	return &resp, nil
}

// Set is first-writer-wins: a concurrent duplicate submission never
// overwrites the response already recorded.
func (s *ReplayStore) Set(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "encode stored response")
	}
	if err := s.client.SetNX(ctx, s.key(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "store response")
	}
	return nil
}
