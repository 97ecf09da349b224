// Package worker consumes on-demand ingest tasks and runs the pipeline
// for the requested source.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/queue"
)

// SourceRunner is the pipeline entry point the worker invokes.
type SourceRunner interface {
	RunSource(ctx context.Context, sourceID string) (*models.RunReport, error)
}

type Config struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
}

// IngestWorker wraps the asynq server and routes ingest tasks to the
// pipeline.
type IngestWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner SourceRunner
	logger logger.Logger
}

func NewIngestWorker(cfg *Config, runner SourceRunner, log logger.Logger) *IngestWorker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &IngestWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: runner,
		logger: log.Named("worker"),
	}
	w.mux.HandleFunc(queue.TaskTypeSourceIngest, w.handleSourceIngest)
	return w
}

func (w *IngestWorker) handleSourceIngest(ctx context.Context, t *asynq.Task) error {
	var payload queue.SourceIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("can't unmarshal ingest payload: %w", err)
	}
	if payload.SourceID == "" {
		return fmt.Errorf("ingest task without source id")
	}

	w.logger.Info("ingest task received", logger.String("source", payload.SourceID))

	report, err := w.runner.RunSource(ctx, payload.SourceID)
	if err != nil {
		w.logger.Error("ingest task failed",
			logger.String("source", payload.SourceID),
			logger.Error(err),
		)
		return err
	}

	w.logger.Info("ingest task finished",
		logger.String("source", payload.SourceID),
		logger.Int64("persisted", report.Persisted),
		logger.Int64("duplicates", report.Duplicates),
		logger.Int64("failed", report.Failed),
	)
	return nil
}

// Start runs the server until ctx is cancelled.
func (w *IngestWorker) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	return w.server.Run(w.mux)
}
