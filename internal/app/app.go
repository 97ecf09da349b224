// Package app wires the pipeline's components from configuration. Shared
// by the crawler, the worker and anything else that needs a ready-to-run
// coordinator.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/qfeng2015/speech-harvester/internal/classify"
	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/extract"
	"github.com/qfeng2015/speech-harvester/internal/fetch"
	"github.com/qfeng2015/speech-harvester/internal/pipeline"
	"github.com/qfeng2015/speech-harvester/internal/source"
	"github.com/qfeng2015/speech-harvester/internal/store"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Pipeline bundles the coordinator with the resources that need closing.
type Pipeline struct {
	Coordinator *pipeline.Coordinator
	Store       *store.Store
	Redis       *redis.Client
}

// Build constructs the full ingest pipeline. The store must be reachable;
// Redis and MinIO are optional accelerators and degrade to nil.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	st, err := store.NewStore(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, dedup cache disabled", logger.Error(err))
			rdb = nil
		}
	}

	fetcher, err := fetch.NewClient(cfg.Retry, cfg.UserAgents, cfg.Proxies, log)
	if err != nil {
		return nil, fmt.Errorf("can't build fetch client: %w", err)
	}

	adapters, err := source.BuildAll(cfg.Sources, fetcher, log)
	if err != nil {
		return nil, fmt.Errorf("can't build source adapters: %w", err)
	}

	var archive pipeline.Archiver
	if cfg.Minio.Enabled {
		a, err := store.NewArchive(ctx, cfg.Minio, log)
		if err != nil {
			log.Warn("artifact archive unavailable, continuing without it", logger.Error(err))
		} else {
			archive = a
		}
	}

	coordinator := pipeline.NewCoordinator(
		cfg,
		adapters,
		classify.New(fetcher, log),
		fetcher,
		extract.NewRegistry(log),
		store.NewDedupIndex(rdb, st, log),
		st,
		archive,
		log,
	)

	return &Pipeline{Coordinator: coordinator, Store: st, Redis: rdb}, nil
}

// Close releases the pipeline's backend connections.
func (p *Pipeline) Close(ctx context.Context) {
	if p.Redis != nil {
		p.Redis.Close()
	}
	if p.Store != nil {
		p.Store.Close(ctx)
	}
}
