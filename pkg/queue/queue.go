// Package queue carries on-demand ingest requests from the API to the
// worker over asynq/Redis. Scheduled full runs bypass it entirely.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeSourceIngest asks a worker to crawl one source now.
const TaskTypeSourceIngest = "ingest:source"

// SourceIngestPayload is the task body.
type SourceIngestPayload struct {
	SourceID    string    `json:"source_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Client enqueues ingest requests.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string, redisDB int) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, DB: redisDB}),
	}
}

// EnqueueSourceIngest schedules a crawl of sourceID. The task id pins one
// pending ingest per source; re-requests while one is queued are no-ops.
func (c *Client) EnqueueSourceIngest(ctx context.Context, sourceID string) error {
	payload, err := json.Marshal(SourceIngestPayload{
		SourceID:    sourceID,
		RequestedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("can't marshal ingest payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeSourceIngest, payload,
		asynq.TaskID("ingest:"+sourceID),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
	)
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("can't enqueue ingest for %s: %w", sourceID, err)
	}
	return nil
}

func (c *Client) Close() error { return c.client.Close() }
