package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Connect returns nil when addr is empty or the server does not answer, so
// callers can run without the cache.
func Connect(ctx context.Context, addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil
	}
	return client
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func holdKey(eventTitle, seat string) string {
	return "hold:" + eventTitle + ":" + seat
}

// HoldSeats reserves seats for owner during checkout. Seats already held by
// someone else are returned as conflicts, in which case nothing new is held.
func (c *Cache) HoldSeats(ctx context.Context, eventTitle string, seats []string, owner string, ttl time.Duration) ([]string, error) {
	var acquired, conflicts []string
	for _, seat := range seats {
		key := holdKey(eventTitle, seat)
		ok, err := c.client.SetNX(ctx, key, owner, ttl).Result()
		if err != nil {
			c.release(ctx, eventTitle, acquired)
			return nil, errors.Wrapf(err, "hold seat %s", seat)
		}
		if ok {
			acquired = append(acquired, seat)
			continue
		}

		holder, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET; retry once
			if ok, err = c.client.SetNX(ctx, key, owner, ttl).Result(); err == nil && ok {
				acquired = append(acquired, seat)
				continue
			}
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.release(ctx, eventTitle, acquired)
			return nil, errors.Wrapf(err, "read hold %s", seat)
		}
		if holder == owner {
			c.client.Expire(ctx, key, ttl)
			continue
		}
		conflicts = append(conflicts, seat)
	}

	if len(conflicts) > 0 {
		c.release(ctx, eventTitle, acquired)
	}
	return conflicts, nil
}

func (c *Cache) release(ctx context.Context, eventTitle string, seats []string) {
	if len(seats) == 0 {
		return
	}
	keys := make([]string, len(seats))
	for i, s := range seats {
		keys[i] = holdKey(eventTitle, s)
	}
	c.client.Del(ctx, keys...)
}

// Seen reports whether key was marked done and has not expired.
func (c *Cache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, "done:"+key).Result()
	return n > 0, err
}

// MarkDone records key as completed for ttl.
func (c *Cache) MarkDone(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, "done:"+key, 1, ttl).Err()
}
