package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/qfeng2015/speech-harvester/internal/models"
)

// counters aggregates run outcomes across concurrent workers.
type counters struct {
	discovered atomic.Int64
	fetched    atomic.Int64
	extracted  atomic.Int64
	persisted  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot(runID string, startedAt, finishedAt time.Time) *models.RunReport {
	return &models.RunReport{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Discovered: c.discovered.Load(),
		Fetched:    c.fetched.Load(),
		Extracted:  c.extracted.Load(),
		Persisted:  c.persisted.Load(),
		Duplicates: c.duplicates.Load(),
		Failed:     c.failed.Load(),
	}
}
