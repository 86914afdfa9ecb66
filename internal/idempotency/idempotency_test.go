package idempotency

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[string]redisadapter.StoredResponse

func (m memStore) Get(_ context.Context, key string) (*redisadapter.StoredResponse, error) {
	r, ok := m[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m memStore) Set(_ context.Context, key string, resp redisadapter.StoredResponse, _ time.Duration) error {
	m[key] = resp
	return nil
}

func TestIdempotency_ReplaysSuccessOnly(t *testing.T) {
	mem := memStore{}
	i := &Idempotency{redis: mem, ttl: time.Hour}
	ctx := context.Background()

	require.NoError(t, i.Set(ctx, "k-failed-00000001", Response{Status: 500, Result: []byte("x")}))
	got, err := i.Get(ctx, "k-failed-00000001")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, i.Set(ctx, "k-ok-000000000001", Response{Status: 200, Result: []byte(`{"a":1}`)}))
	got, err = i.Get(ctx, "k-ok-000000000001")
	require.NoError(t, err)
	assert.Equal(t, &Response{Status: 200, Result: []byte(`{"a":1}`)}, got)
}

func TestIdempotency_NilIsNoop(t *testing.T) {
	var i *Idempotency
	got, err := i.Get(context.Background(), "anything-at-all-1")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, i.Set(context.Background(), "anything-at-all-1", Response{Status: 200}))
}
