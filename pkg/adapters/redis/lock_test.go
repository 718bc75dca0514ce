package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_MutualExclusion(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "account:alice", time.Minute)
	require.NoError(t, err)

	// A second holder must wait until released.
	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "account:alice", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "account:alice", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_IndependentKeys(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	u1, err := locker.Lock(ctx, "account:alice", time.Minute)
	require.NoError(t, err)
	u2, err := locker.Lock(ctx, "account:bob", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, u1(ctx))
	assert.NoError(t, u2(ctx))
}
