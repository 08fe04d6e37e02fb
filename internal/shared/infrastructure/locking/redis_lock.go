// Package locking provides a Redis-backed advisory lock used to guarantee a
// single writer per entity across worker instances.
package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it is still held by the caller.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker acquires short-lived advisory locks.
type Locker interface {
	// Acquire tries to take the lock for key. It returns a release function
	// and true on success, or nil and false when the lock is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// RedisLocker implements Locker with SET NX + a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a locker. Keys are namespaced with prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes the lock for key with the given TTL.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	fullKey := l.namespaceKey(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		// Best effort: an expired lock has already been released by TTL.
		_ = l.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err()
	}
	return release, true, nil
}

func (l *RedisLocker) namespaceKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

// NoopLocker always grants the lock. Used when Redis is not configured
// (single-instance development runs).
type NoopLocker struct{}

// Acquire always succeeds.
func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}
