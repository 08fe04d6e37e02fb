package locking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_NamespaceKey(t *testing.T) {
	l := NewRedisLocker(nil, "shipment:lock")
	assert.Equal(t, "shipment:lock:abc", l.namespaceKey("abc"))

	bare := NewRedisLocker(nil, "")
	assert.Equal(t, "abc", bare.namespaceKey("abc"))
}

func TestNoopLocker_AlwaysAcquires(t *testing.T) {
	var l Locker = NoopLocker{}

	release, acquired, err := l.Acquire(context.Background(), "any", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, release)
	release(context.Background())
}
