package source

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/urlkey"
)

// jsonFeedAdapter reads candidates from an embedded JSON payload, the way
// corporate IR sites ship their event lists. Paths into the payload are
// gjson expressions from the adapter config.
type jsonFeedAdapter struct {
	def     models.SourceDefinition
	fetcher Fetcher
	logger  logger.Logger
}

func newJSONFeedAdapter(def models.SourceDefinition, f Fetcher, log logger.Logger) *jsonFeedAdapter {
	return &jsonFeedAdapter{def: def, fetcher: f, logger: log}
}

func (a *jsonFeedAdapter) Definition() models.SourceDefinition { return a.def }

func (a *jsonFeedAdapter) Discover(ctx context.Context, _ int) ([]models.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, a.def.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: feed %s: %w", a.def.ID, a.def.BaseURL, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("source %s: feed is not valid json", a.def.ID)
	}

	cfg := a.def.Adapter
	itemsPath := cfg.ItemsPath
	if itemsPath == "" {
		itemsPath = "@this"
	}
	urlPath := cfg.URLPath
	if urlPath == "" {
		urlPath = "url"
	}

	items := gjson.GetBytes(body, itemsPath)
	if !items.Exists() {
		return nil, fmt.Errorf("source %s: items path %q matched nothing", a.def.ID, itemsPath)
	}

	var candidates []models.Candidate
	items.ForEach(func(_, item gjson.Result) bool {
		raw := item.Get(urlPath).String()
		if raw == "" {
			return true
		}
		abs, err := urlkey.Resolve(a.def.BaseURL, raw)
		if err != nil {
			return true
		}
		c := models.Candidate{
			SourceID:        a.def.ID,
			URL:             abs,
			ContentSelector: cfg.ContentSelector,
		}
		if cfg.TitlePath != "" {
			c.Title = item.Get(cfg.TitlePath).String()
		}
		if cfg.DatePath != "" {
			c.Date = item.Get(cfg.DatePath).String()
		}
		candidates = append(candidates, c)
		return true
	})

	a.logger.Debug("feed parsed", logger.Int("candidates", len(candidates)))
	return candidates, nil
}
