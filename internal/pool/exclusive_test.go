package pool

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, max int) *Exclusive {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	p := NewExclusive(rdb, max, zap.NewNop())
	t.Cleanup(p.Close)
	return p
}

func TestAcquireRelease(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Ping(ctx).Err())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 1, stats.InUse)
	assert.Equal(t, 1, stats.Available)
	assert.Equal(t, 2, stats.Max)

	conn.Release()
	stats = p.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 2, stats.Available)
}

func TestAcquireReusesIdleConn(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release()

	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	assert.Equal(t, 1, p.Stats().Size)
}

func TestAcquireTimeout(t *testing.T) {
	p := newTestPool(t, 1)
	p.SetAcquireTimeout(50 * time.Millisecond)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolTimeout)

	conn.Release()
	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := newTestPool(t, 1)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release()
	conn.Release()

	stats := p.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Max)
}

func TestReapIdleConnections(t *testing.T) {
	p := newTestPool(t, 2)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release()
	require.Equal(t, 1, p.Stats().Size)

	p.mu.Lock()
	p.idle[0].lastUsed = time.Now().Add(-10 * time.Minute)
	p.mu.Unlock()
	p.reapIdle(time.Now())

	assert.Equal(t, 0, p.Stats().Size)
}

func TestAcquireAfterClose(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := NewExclusive(rdb, 1, zap.NewNop())
	p.Close()

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
