package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/urlkey"
)

// linkScrapeAdapter scrapes anchors off a single listing page and keeps
// the ones passing the configured href filters. Used for sources with no
// predictable document-path convention.
type linkScrapeAdapter struct {
	def     models.SourceDefinition
	fetcher Fetcher
	logger  logger.Logger
}

func newLinkScrapeAdapter(def models.SourceDefinition, f Fetcher, log logger.Logger) *linkScrapeAdapter {
	return &linkScrapeAdapter{def: def, fetcher: f, logger: log}
}

func (a *linkScrapeAdapter) Definition() models.SourceDefinition { return a.def }

func (a *linkScrapeAdapter) Discover(ctx context.Context, _ int) ([]models.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, a.def.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: listing %s: %w", a.def.ID, a.def.BaseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: can't parse listing: %w", a.def.ID, err)
	}

	links := collectLinks(doc, a.def.Adapter, a.def.BaseURL)
	a.logger.Debug("listing parsed", logger.Int("links", len(links)))

	candidates := make([]models.Candidate, 0, len(links))
	for _, l := range links {
		candidates = append(candidates, models.Candidate{
			SourceID:        a.def.ID,
			URL:             l.href,
			Title:           l.text,
			LinkText:        l.text,
			ContentSelector: a.def.Adapter.ContentSelector,
		})
	}
	return candidates, nil
}

type link struct {
	href string
	text string
}

// collectLinks applies the adapter's selector and href filters to a
// parsed listing document, absolutizing and de-duplicating hrefs. Shared
// by the yearlist and linkscrape strategies.
func collectLinks(doc *goquery.Document, cfg models.AdapterConfig, baseURL string) []link {
	selector := cfg.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}

	seen := make(map[string]bool)
	var out []link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if cfg.HrefContains != "" && !strings.Contains(href, cfg.HrefContains) {
			return
		}
		if cfg.HrefPrefix != "" && !strings.HasPrefix(href, cfg.HrefPrefix) {
			return
		}
		if cfg.HrefSuffix != "" && !strings.HasSuffix(href, cfg.HrefSuffix) {
			return
		}
		abs, err := urlkey.Resolve(baseURL, href)
		if err != nil {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, link{href: abs, text: strings.TrimSpace(s.Text())})
	})
	return out
}
