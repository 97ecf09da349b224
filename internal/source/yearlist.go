package source

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/urlkey"
)

// yearListAdapter discovers via a deterministic per-year listing URL,
// e.g. {base}/newsevents/speech/{year}-speeches.htm. Each anchor passing
// the href filters becomes a candidate speech page; with ResolvePDF set
// the adapter drills into the page and emits the PDF link whose href
// contains the page basename instead.
type yearListAdapter struct {
	def     models.SourceDefinition
	fetcher Fetcher
	logger  logger.Logger
}

func newYearListAdapter(def models.SourceDefinition, f Fetcher, log logger.Logger) *yearListAdapter {
	return &yearListAdapter{def: def, fetcher: f, logger: log}
}

func (a *yearListAdapter) Definition() models.SourceDefinition { return a.def }

func (a *yearListAdapter) Discover(ctx context.Context, year int) ([]models.Candidate, error) {
	listingURL := strings.ReplaceAll(a.def.Adapter.URLTemplate, "{year}", strconv.Itoa(year))
	if !strings.HasPrefix(listingURL, "http") {
		var err error
		listingURL, err = urlkey.Resolve(a.def.BaseURL, listingURL)
		if err != nil {
			return nil, err
		}
	}

	body, err := a.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: listing %s: %w", a.def.ID, listingURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: can't parse listing %s: %w", a.def.ID, listingURL, err)
	}

	links := collectLinks(doc, a.def.Adapter, a.def.BaseURL)
	a.logger.Debug("listing parsed",
		logger.String("url", listingURL),
		logger.Int("links", len(links)),
	)

	candidates := make([]models.Candidate, 0, len(links))
	for _, l := range links {
		c := models.Candidate{
			SourceID:        a.def.ID,
			URL:             l.href,
			Title:           l.text,
			LinkText:        l.text,
			Year:            year,
			ContentSelector: a.def.Adapter.ContentSelector,
		}
		if a.def.Adapter.ResolvePDF {
			resolved, err := a.resolvePDF(ctx, c)
			if err != nil {
				// One page failing to resolve must not sink the
				// partition; fall back to the page itself.
				a.logger.Warn("pdf resolution failed, keeping page candidate",
					logger.String("url", c.URL),
					logger.Error(err),
				)
				candidates = append(candidates, c)
				continue
			}
			candidates = append(candidates, resolved...)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// resolvePDF fetches a speech page and returns candidates for the PDF
// links matching the page's basename, carrying over title, speaker and
// date scraped with the per-source selectors.
func (a *yearListAdapter) resolvePDF(ctx context.Context, page models.Candidate) ([]models.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := page.Title
	if sel := a.def.Adapter.TitleSelector; sel != "" {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			title = t
		}
	}
	speaker := firstText(doc, a.def.Adapter.SpeakerSelector)
	date := firstText(doc, a.def.Adapter.DateSelector)

	basename := strings.TrimSuffix(path.Base(page.URL), path.Ext(page.URL))

	var out []models.Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasSuffix(href, ".pdf") || !strings.Contains(href, basename) {
			return
		}
		abs, err := urlkey.Resolve(page.URL, href)
		if err != nil {
			return
		}
		out = append(out, models.Candidate{
			SourceID:        page.SourceID,
			URL:             abs,
			Title:           title,
			Speaker:         speaker,
			Date:            date,
			LinkText:        strings.TrimSpace(s.Text()),
			Year:            page.Year,
			ContentSelector: page.ContentSelector,
		})
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching pdf link on %s", page.URL)
	}
	return out, nil
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
