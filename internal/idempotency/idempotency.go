package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/redis"
)

const MinKeyLength = 16

// Store persists replayable responses.
type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.StoredResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.StoredResponse, ttl time.Duration) error
}

// Idempotency replays the first response recorded under a client key.
// A nil *Idempotency is valid and never replays.
type Idempotency struct {
	redis Store
	ttl   time.Duration
}

func NewIdempotency(redis Store, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if i == nil || key == "" {
		return nil, nil
	}
	got, err := i.redis.Get(ctx, key)
	if err != nil || got == nil {
		return nil, err
	}
	return &Response{Status: got.Status, Result: got.Body}, nil
}

// Set stores only successful responses so a client may retry after a failure.
func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if i == nil || key == "" || resp.Status >= 300 {
		return nil
	}
	return i.redis.Set(ctx, key, redisadapter.StoredResponse{Status: resp.Status, Body: resp.Result}, i.ttl)
}
