package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

const seenSetKey = "harvester:seen"

// existsChecker is the authoritative membership source behind the cache.
type existsChecker interface {
	Exists(ctx context.Context, identityKey string) (bool, error)
}

// DedupIndex is the cheap pre-fetch membership check. Redis answers fast;
// a cache miss falls through to the store. It is advisory only: the
// authoritative check is the unique index enforced at persist time, so a
// wrong answer here costs redundant work, never a duplicate record.
type DedupIndex struct {
	rdb    *redis.Client
	store  existsChecker
	logger logger.Logger
}

func NewDedupIndex(rdb *redis.Client, store existsChecker, log logger.Logger) *DedupIndex {
	return &DedupIndex{rdb: rdb, store: store, logger: log.Named("dedup")}
}

// Seen reports whether identityKey was already ingested. Any backend
// trouble answers false: processing an item again is safe, skipping a new
// one is not.
func (d *DedupIndex) Seen(ctx context.Context, identityKey string) bool {
	if d.rdb != nil {
		hit, err := d.rdb.SIsMember(ctx, seenSetKey, identityKey).Result()
		if err == nil && hit {
			return true
		}
		if err != nil && err != redis.Nil {
			d.logger.Warn("dedup cache read failed", logger.Error(err))
		}
	}

	seen, err := d.store.Exists(ctx, identityKey)
	if err != nil {
		d.logger.Warn("dedup store read failed",
			logger.String("key", identityKey),
			logger.Error(err),
		)
		return false
	}
	if seen && d.rdb != nil {
		// Warm the cache so the next run skips before fetching.
		if err := d.rdb.SAdd(ctx, seenSetKey, identityKey).Err(); err != nil {
			d.logger.Warn("dedup cache warm failed", logger.Error(err))
		}
	}
	return seen
}

// Record marks identityKey as ingested after a successful persist.
// Best-effort: the store already holds the truth.
func (d *DedupIndex) Record(ctx context.Context, identityKey string) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.SAdd(ctx, seenSetKey, identityKey).Err(); err != nil {
		d.logger.Warn("dedup cache write failed",
			logger.String("key", identityKey),
			logger.Error(err),
		)
	}
}
