package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "atlas/internal/adapters/redis"
	redisrepo "atlas/internal/repository/redis"
	"atlas/internal/testsupport"
)

func newTestLock(t *testing.T, ttl time.Duration) *redisrepo.AccountLock {
	t.Helper()

	dbConfigs := testsupport.LoadDatabaseConfigsFromEnv(t)

	// The testsupport client flushes the database and registers cleanup;
	// the adapter client reuses the same instance for the code under test.
	testsupport.NewRedisClient(t, dbConfigs.Redis)

	client, err := redisadapter.NewClient(dbConfigs.Redis)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return redisrepo.NewAccountLock(client, ttl)
}

func TestAccountLock_AcquireRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	lock := newTestLock(t, time.Minute)
	ctx := context.Background()
	accountID := uuid.New()

	ok, err := lock.Acquire(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Held lock denies a concurrent cycle for the same account
	ok, err = lock.Acquire(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different account is an independent slot
	ok, err = lock.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, accountID))

	ok, err = lock.Acquire(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccountLock_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	lock := newTestLock(t, 100*time.Millisecond)
	ctx := context.Background()
	accountID := uuid.New()

	ok, err := lock.Acquire(ctx, accountID)
	require.NoError(t, err)
	require.True(t, ok)

	// The TTL bounds how long a crashed holder can block the account
	time.Sleep(200 * time.Millisecond)

	ok, err = lock.Acquire(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, ok)
}
