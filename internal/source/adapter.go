// Package source holds the discovery adapters. One Adapter implementation
// exists per listing strategy, not per institution: site-specific structure
// lives in the declarative AdapterConfig, never in code.
package source

import (
	"context"
	"fmt"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Fetcher is the slice of the fetch client adapters use to pull listing
// pages. Kept narrow so tests can stub it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Adapter enumerates candidate documents for one source. Discovery is
// idempotent: re-running it is safe, dedup happens downstream. A failure
// inside one adapter never affects other sources; the coordinator logs it
// and moves on.
type Adapter interface {
	// Definition returns the static source this adapter serves.
	Definition() models.SourceDefinition

	// Discover lists candidates for the given year partition. Adapters
	// for unpartitioned sources ignore the year.
	Discover(ctx context.Context, year int) ([]models.Candidate, error)
}

// New builds the adapter matching the source's configured strategy.
func New(def models.SourceDefinition, f Fetcher, log logger.Logger) (Adapter, error) {
	log = log.Named("source").With(logger.String("source", def.ID))
	switch def.Adapter.Strategy {
	case models.StrategyYearList:
		return newYearListAdapter(def, f, log), nil
	case models.StrategyLinkScrape:
		return newLinkScrapeAdapter(def, f, log), nil
	case models.StrategyJSONFeed:
		return newJSONFeedAdapter(def, f, log), nil
	default:
		return nil, fmt.Errorf("source %s: unknown discovery strategy %q", def.ID, def.Adapter.Strategy)
	}
}

// BuildAll constructs one adapter per source definition.
func BuildAll(defs []models.SourceDefinition, f Fetcher, log logger.Logger) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(defs))
	for _, def := range defs {
		a, err := New(def, f, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
