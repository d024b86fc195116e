package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReviewLock is a best-effort SetNX lock keyed by review id. It keeps
// concurrent redeliveries of the same submitted-event from running the
// compliance check twice; the TTL bounds how long a crashed worker can
// hold a key.
type ReviewLock struct {
	client *redis.Client
}

func New(addr, password string, db int) *ReviewLock {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db, PoolSize: 50})
	return &ReviewLock{client: c}
}

func (l *ReviewLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, fmt.Sprintf("%d", time.Now().UnixNano()), ttl).Result()
	return ok, err
}

func (l *ReviewLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

func (l *ReviewLock) Close() error {
	return l.client.Close()
}
