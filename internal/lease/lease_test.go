package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	l := NewLocal()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, err := l.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "post-interest", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	other, err := l.Acquire(ctx, "update-dormancy", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, release.Release(ctx))
	again, err := l.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	stolen, err := l.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err, "expired leases can be taken over")

	require.NoError(t, again.Release(ctx), "stale release is a no-op")
	_, err = l.Acquire(ctx, "post-interest", time.Minute)
	assert.ErrorIs(t, err, ErrHeld, "stale release must not free the new holder")
	require.NoError(t, stolen.Release(ctx))
}

func TestLocal_Renew(t *testing.T) {
	l := NewLocal()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	held, err := l.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	require.NoError(t, held.Renew(ctx, time.Minute))
	now = now.Add(50 * time.Second)
	_, err = l.Acquire(ctx, "post-interest", time.Minute)
	assert.ErrorIs(t, err, ErrHeld, "renewed lease outlives its first ttl")

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, held.Renew(ctx, time.Minute), ErrLost, "expired lease cannot be renewed")

	taker, err := l.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, held.Renew(ctx, time.Minute), ErrLost)
	require.NoError(t, taker.Renew(ctx, time.Minute))
	require.NoError(t, taker.Release(ctx))
	assert.ErrorIs(t, taker.Renew(ctx, time.Minute), ErrLost, "released lease cannot be renewed")
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client)
}

func TestRedis_AcquireRelease(t *testing.T) {
	mr, r := newRedis(t)
	ctx := context.Background()

	release, err := r.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"post-interest"))

	_, err = r.Acquire(ctx, "post-interest", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, release.Release(ctx))
	assert.False(t, mr.Exists(keyPrefix+"post-interest"))

	_, err = r.Acquire(ctx, "post-interest", time.Minute)
	assert.NoError(t, err)
}

func TestRedis_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	mr, r := newRedis(t)
	ctx := context.Background()

	first, err := r.Acquire(ctx, "update-dormancy", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	second, err := r.Acquire(ctx, "update-dormancy", time.Minute)
	require.NoError(t, err)

	require.NoError(t, first.Release(ctx))
	assert.True(t, mr.Exists(keyPrefix+"update-dormancy"), "old token must not delete the new lease")

	require.NoError(t, second.Release(ctx))
	assert.False(t, mr.Exists(keyPrefix+"update-dormancy"))
}

func TestRedis_Renew(t *testing.T) {
	mr, r := newRedis(t)
	ctx := context.Background()

	held, err := r.Acquire(ctx, "post-interest", 10*time.Second)
	require.NoError(t, err)

	mr.FastForward(8 * time.Second)
	require.NoError(t, held.Renew(ctx, 10*time.Second))
	assert.Equal(t, 10*time.Second, mr.TTL(keyPrefix+"post-interest"))

	mr.FastForward(8 * time.Second)
	assert.True(t, mr.Exists(keyPrefix+"post-interest"), "renewed lease outlives its first ttl")

	mr.FastForward(5 * time.Second)
	assert.ErrorIs(t, held.Renew(ctx, 10*time.Second), ErrLost)

	taker, err := r.Acquire(ctx, "post-interest", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, held.Renew(ctx, 10*time.Second), ErrLost, "old token must not extend the new lease")
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"post-interest"))
	require.NoError(t, taker.Release(ctx))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := Dial(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	mr.Close()
	_, err = Dial(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}
