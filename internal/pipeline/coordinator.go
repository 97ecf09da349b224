// Package pipeline drives one crawl-and-ingest run: discovery across all
// sources, classification, fetch, extraction, dedup and persistence, with
// per-item failures logged and skipped, never aborting the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/extract"
	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/internal/source"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/metrics"
	"github.com/qfeng2015/speech-harvester/pkg/urlkey"
)

// Classifier tags a URL with its content type.
type Classifier interface {
	Classify(ctx context.Context, url string) models.ContentType
}

// ExtractorRegistry resolves the extractor for a content type.
type ExtractorRegistry interface {
	ForType(tag models.ContentType) (extract.Extractor, bool)
}

// Gateway is the persistence boundary consumed by the coordinator.
type Gateway interface {
	UpsertSpeech(ctx context.Context, doc *models.Speech) error
	LoadRunState(ctx context.Context) (*models.RunState, error)
	SaveRunState(ctx context.Context, state *models.RunState) error
	AppendError(ctx context.Context, rec *models.ErrorRecord)
	SaveRunReport(ctx context.Context, report *models.RunReport) error
}

// Deduper is the advisory pre-fetch membership index.
type Deduper interface {
	Seen(ctx context.Context, identityKey string) bool
	Record(ctx context.Context, identityKey string)
}

// Archiver stores raw fetched bytes outside the document store. Optional.
type Archiver interface {
	Put(ctx context.Context, identityKey string, body []byte) error
}

// Coordinator owns one pipeline run at a time. It is the only writer of
// the resumable run state; workers never touch it.
type Coordinator struct {
	cfg        *config.Config
	adapters   []source.Adapter
	classifier Classifier
	fetcher    source.Fetcher
	registry   ExtractorRegistry
	dedup      Deduper
	gateway    Gateway
	archive    Archiver
	logger     logger.Logger
	now        func() time.Time
}

func NewCoordinator(
	cfg *config.Config,
	adapters []source.Adapter,
	classifier Classifier,
	fetcher source.Fetcher,
	registry ExtractorRegistry,
	dedup Deduper,
	gateway Gateway,
	archive Archiver,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		adapters:   adapters,
		classifier: classifier,
		fetcher:    fetcher,
		registry:   registry,
		dedup:      dedup,
		gateway:    gateway,
		archive:    archive,
		logger:     log.Named("pipeline"),
		now:        time.Now,
	}
}

// Run executes one full ingest run. Year partitions completed in earlier
// runs are skipped unless force is set; cancellation is honored at
// partition boundaries and already-completed partitions stay recorded.
// Only non-item-scoped failures (store unreachable) return an error.
func (c *Coordinator) Run(ctx context.Context, force bool) (*models.RunReport, error) {
	runID := uuid.New().String()
	counts := newCounters()
	startedAt := c.now()
	log := c.logger.With(logger.String("run_id", runID))

	state, err := c.gateway.LoadRunState(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load run state: %w", err)
	}

	firstYear := c.cfg.StartYear
	if state != nil && !force && state.LastYear >= firstYear {
		firstYear = state.LastYear + 1
	}
	lastYear := c.now().Year()

	log.Info("run starting",
		logger.Int("first_year", firstYear),
		logger.Int("last_year", lastYear),
		logger.Bool("force", force),
	)

	var runErr error

partitions:
	for year := firstYear; year <= lastYear; year++ {
		select {
		case <-ctx.Done():
			log.Warn("run cancelled at partition boundary", logger.Int("year", year))
			break partitions
		default:
		}

		if err := c.runPartition(ctx, runID, year, counts, log); err != nil {
			runErr = err
			break
		}

		// Single writer: only the coordinator advances the marker,
		// and only after the whole partition completed.
		if err := c.gateway.SaveRunState(ctx, &models.RunState{
			LastYear:  year,
			UpdatedAt: c.now(),
		}); err != nil {
			log.Error("can't save run state", logger.Int("year", year), logger.Error(err))
		}
	}

	if runErr == nil && ctx.Err() == nil {
		runErr = c.runUnpartitioned(ctx, runID, counts, log)
	}

	report := counts.snapshot(runID, startedAt, c.now())
	if err := c.gateway.SaveRunReport(ctx, report); err != nil {
		log.Error("can't save run report", logger.Error(err))
	}

	log.Info("run finished",
		logger.Int64("discovered", report.Discovered),
		logger.Int64("fetched", report.Fetched),
		logger.Int64("extracted", report.Extracted),
		logger.Int64("persisted", report.Persisted),
		logger.Int64("duplicates", report.Duplicates),
		logger.Int64("failed", report.Failed),
	)

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// RunSource ingests a single source on demand, ignoring the resumable
// marker. Used by the on-demand worker.
func (c *Coordinator) RunSource(ctx context.Context, sourceID string) (*models.RunReport, error) {
	var target source.Adapter
	for _, a := range c.adapters {
		if a.Definition().ID == sourceID {
			target = a
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}

	runID := uuid.New().String()
	counts := newCounters()
	startedAt := c.now()
	log := c.logger.With(
		logger.String("run_id", runID),
		logger.String("source", sourceID),
	)

	var runErr error
	if target.Definition().Partitioned() {
		for year := c.cfg.StartYear; year <= c.now().Year(); year++ {
			if ctx.Err() != nil {
				break
			}
			if err := c.processSource(ctx, runID, target, year, counts, log); err != nil {
				runErr = err
				break
			}
		}
	} else {
		runErr = c.processSource(ctx, runID, target, 0, counts, log)
	}

	report := counts.snapshot(runID, startedAt, c.now())
	if err := c.gateway.SaveRunReport(ctx, report); err != nil {
		log.Error("can't save run report", logger.Error(err))
	}
	return report, runErr
}

// runPartition processes one year across all partitioned sources, bounded
// by the source-level concurrency limit.
func (c *Coordinator) runPartition(ctx context.Context, runID string, year int, counts *counters, log logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency.Sources)

	for _, a := range c.adapters {
		if !a.Definition().Partitioned() {
			continue
		}
		adapter := a
		g.Go(func() error {
			return c.processSource(gctx, runID, adapter, year, counts, log)
		})
	}
	return g.Wait()
}

// runUnpartitioned processes the sources that have no year structure,
// once per run.
func (c *Coordinator) runUnpartitioned(ctx context.Context, runID string, counts *counters, log logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency.Sources)

	for _, a := range c.adapters {
		if a.Definition().Partitioned() {
			continue
		}
		adapter := a
		g.Go(func() error {
			return c.processSource(gctx, runID, adapter, 0, counts, log)
		})
	}
	return g.Wait()
}

// processSource discovers one source's candidates and runs them through
// the item pipeline. Discovery failure is isolated: logged, counted, and
// the source yields zero candidates. The returned error is non-nil only
// for run-fatal conditions.
func (c *Coordinator) processSource(ctx context.Context, runID string, a source.Adapter, year int, counts *counters, log logger.Logger) error {
	def := a.Definition()

	candidates, err := a.Discover(ctx, year)
	if err != nil {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageDiscover)).Inc()
		c.recordError(ctx, runID, def.BaseURL, models.StageDiscover, err)
		log.Warn("discovery failed, skipping source",
			logger.String("source", def.ID),
			logger.Int("year", year),
			logger.Error(err),
		)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency.PerSource)

	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			return c.processCandidate(gctx, runID, cand, counts, log)
		})
	}
	return g.Wait()
}

// processCandidate runs one item through classify → fetch → extract →
// persist. Every failure is converted to an ErrorRecord at the stage it
// happened and the item is dropped; only a dead store propagates.
func (c *Coordinator) processCandidate(ctx context.Context, runID string, cand models.Candidate, counts *counters, log logger.Logger) error {
	counts.discovered.Add(1)

	key, err := urlkey.Canonical(cand.URL)
	if err != nil {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageDiscover)).Inc()
		c.recordError(ctx, runID, cand.URL, models.StageDiscover, err)
		return nil
	}

	// Cheap pre-fetch check; the authoritative one happens at persist.
	if c.dedup.Seen(ctx, key) {
		counts.duplicates.Add(1)
		metrics.DuplicateSkips.Inc()
		return nil
	}

	tag := c.classifier.Classify(ctx, cand.URL)
	if tag == models.TypeUnknown {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageClassify)).Inc()
		c.recordError(ctx, runID, key, models.StageClassify, errors.New("unclassifiable content type"))
		return nil
	}

	extractor, ok := c.registry.ForType(tag)
	if !ok {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageExtract)).Inc()
		c.recordError(ctx, runID, key, models.StageExtract,
			fmt.Errorf("unsupported content type %s", tag))
		return nil
	}

	body, err := c.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageFetch)).Inc()
		c.recordError(ctx, runID, key, models.StageFetch, err)
		return nil
	}
	counts.fetched.Add(1)

	artifact := &models.FetchedArtifact{
		Candidate:   cand,
		ContentType: tag,
		Body:        body,
		FetchedAt:   c.now(),
	}

	if c.archive != nil && tag == models.TypePDF {
		if err := c.archive.Put(ctx, key, body); err != nil {
			log.Warn("raw artifact archive failed", logger.String("key", key), logger.Error(err))
		}
	}

	pages, err := extractor.Extract(ctx, artifact)
	if err != nil {
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StageExtract)).Inc()
		c.recordError(ctx, runID, key, models.StageExtract, err)
		return nil
	}
	counts.extracted.Add(1)

	title := cand.Title
	if title == "" {
		title = key
	}
	doc := &models.Speech{
		IdentityKey: key,
		SourceID:    cand.SourceID,
		Title:       title,
		Speaker:     cand.Speaker,
		Date:        cand.Date,
		Pages:       pages,
		PageCount:   len(pages),
		FetchURL:    cand.URL,
		IngestedAt:  c.now(),
	}

	switch err := c.gateway.UpsertSpeech(ctx, doc); {
	case err == nil:
		c.dedup.Record(ctx, key)
		counts.persisted.Add(1)
		metrics.ItemsPersisted.Inc()
	case errors.Is(err, models.ErrDuplicate):
		// Lost a race to a concurrent worker: benign.
		counts.duplicates.Add(1)
		metrics.DuplicateSkips.Inc()
	case errors.Is(err, models.ErrStoreUnavailable):
		return err
	default:
		counts.failed.Add(1)
		metrics.ItemFailures.WithLabelValues(string(models.StagePersist)).Inc()
		c.recordError(ctx, runID, key, models.StagePersist, err)
	}
	return nil
}

func (c *Coordinator) recordError(ctx context.Context, runID, key string, stage models.Stage, err error) {
	c.gateway.AppendError(ctx, &models.ErrorRecord{
		ID:        uuid.New().String(),
		RunID:     runID,
		Key:       key,
		Stage:     stage,
		Message:   err.Error(),
		Timestamp: c.now(),
	})
}
