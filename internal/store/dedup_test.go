package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

type stubExists struct {
	keys map[string]bool
	err  error

	calls int
}

func (s *stubExists) Exists(_ context.Context, key string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.keys[key], nil
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestDedupRecordThenSeen(t *testing.T) {
	_, rdb := testRedis(t)
	backing := &stubExists{}
	d := NewDedupIndex(rdb, backing, logger.Nop())
	ctx := context.Background()

	d.Record(ctx, "https://example.org/a.pdf")

	assert.True(t, d.Seen(ctx, "https://example.org/a.pdf"))
	assert.Zero(t, backing.calls, "cache hit must not touch the store")
}

func TestDedupCacheMissFallsThroughAndWarms(t *testing.T) {
	mr, rdb := testRedis(t)
	backing := &stubExists{keys: map[string]bool{"https://example.org/a.pdf": true}}
	d := NewDedupIndex(rdb, backing, logger.Nop())
	ctx := context.Background()

	assert.True(t, d.Seen(ctx, "https://example.org/a.pdf"))
	assert.Equal(t, 1, backing.calls)

	// The store answer was cached; the next check stays in Redis.
	warmed, err := mr.SIsMember("harvester:seen", "https://example.org/a.pdf")
	require.NoError(t, err)
	assert.True(t, warmed)

	assert.True(t, d.Seen(ctx, "https://example.org/a.pdf"))
	assert.Equal(t, 1, backing.calls)
}

func TestDedupUnseenKey(t *testing.T) {
	_, rdb := testRedis(t)
	d := NewDedupIndex(rdb, &stubExists{}, logger.Nop())

	assert.False(t, d.Seen(context.Background(), "https://example.org/new.pdf"))
}

func TestDedupStoreErrorAnswersNotSeen(t *testing.T) {
	_, rdb := testRedis(t)
	backing := &stubExists{err: errors.New("connection reset")}
	d := NewDedupIndex(rdb, backing, logger.Nop())

	// Wrong answers must err toward redundant work, never toward
	// skipping a genuinely new document.
	assert.False(t, d.Seen(context.Background(), "https://example.org/a.pdf"))
}

func TestDedupWithoutRedis(t *testing.T) {
	backing := &stubExists{keys: map[string]bool{"https://example.org/a.pdf": true}}
	d := NewDedupIndex(nil, backing, logger.Nop())
	ctx := context.Background()

	assert.True(t, d.Seen(ctx, "https://example.org/a.pdf"))
	assert.False(t, d.Seen(ctx, "https://example.org/b.pdf"))

	// Record is a no-op without a cache; must not panic.
	d.Record(ctx, "https://example.org/b.pdf")
}

func TestDedupRedisDownFallsThrough(t *testing.T) {
	mr, rdb := testRedis(t)
	mr.Close()

	backing := &stubExists{keys: map[string]bool{"https://example.org/a.pdf": true}}
	d := NewDedupIndex(rdb, backing, logger.Nop())

	assert.True(t, d.Seen(context.Background(), "https://example.org/a.pdf"))
	assert.Equal(t, 1, backing.calls)
}
