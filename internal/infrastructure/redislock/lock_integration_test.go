//go:build integration

package redislock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_Exclusive(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := NewClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb, "test:"+uuid.NewString()+":")

	release, ok, err := l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))

	release, ok, err = l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, release(ctx))
}
