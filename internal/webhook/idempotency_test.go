package webhook

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestGuard(t *testing.T) (*miniredis.Miniredis, *Guard) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, NewGuard(adapter, GuardConfig{
		LockTTL:      time.Second,
		ProcessedTTL: time.Hour,
	})
}

func TestGuard_AcquireAndMark(t *testing.T) {
	_, guard := setupTestGuard(t)

	require.NoError(t, guard.Acquire("pay-1"))

	// the lock blocks a concurrent duplicate
	assert.ErrorIs(t, guard.Acquire("pay-1"), ErrDeliveryLocked)

	guard.MarkSettled("pay-1")

	// settled marker answers replays even after the lock is gone
	assert.ErrorIs(t, guard.Acquire("pay-1"), ErrAlreadySettled)

	settled, err := guard.IsSettled("pay-1")
	require.NoError(t, err)
	assert.True(t, settled)
}

func TestGuard_ReleaseAllowsRetry(t *testing.T) {
	_, guard := setupTestGuard(t)

	require.NoError(t, guard.Acquire("pay-2"))
	guard.Release("pay-2")

	// released without marking: the payment can be processed again
	assert.NoError(t, guard.Acquire("pay-2"))

	settled, err := guard.IsSettled("pay-2")
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestGuard_LockExpires(t *testing.T) {
	mr, guard := setupTestGuard(t)

	require.NoError(t, guard.Acquire("pay-3"))

	// a crashed consumer's lock goes away with the TTL
	mr.FastForward(2 * time.Second)
	assert.NoError(t, guard.Acquire("pay-3"))
}

func TestGuard_IndependentPayments(t *testing.T) {
	_, guard := setupTestGuard(t)

	require.NoError(t, guard.Acquire("pay-a"))
	require.NoError(t, guard.Acquire("pay-b"))
}
