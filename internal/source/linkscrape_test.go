package source

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

func TestLinkScrapeDiscover(t *testing.T) {
	listing := `<html><body>
<div class="news">
<a href="/newsevents/speeches/2024/wil240105">Remarks at Economic Club</a>
<a href="https://example.org/newsevents/speeches/2024/wil240220">Outlook Briefing</a>
<a href="/aboutthefed/contact">Contact</a>
<a href="javascript:void(0)">Menu</a>
</div>
</body></html>`

	def := models.SourceDefinition{
		ID:      "fed-newyork",
		Kind:    models.KindRegional,
		BaseURL: "https://example.org/press",
		Adapter: models.AdapterConfig{
			Strategy:        models.StrategyLinkScrape,
			HrefContains:    "/newsevents/speeches/",
			ContentSelector: "div.ts-article-text",
		},
	}
	f := &stubFetcher{pages: map[string]string{"https://example.org/press": listing}}
	a := newLinkScrapeAdapter(def, f, logger.Nop())

	got, err := a.Discover(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.org/newsevents/speeches/2024/wil240105", got[0].URL)
	assert.Equal(t, "Remarks at Economic Club", got[0].Title)
	assert.Equal(t, "div.ts-article-text", got[0].ContentSelector)
	assert.Equal(t, "https://example.org/newsevents/speeches/2024/wil240220", got[1].URL)
}

func TestCollectLinksSelectorAndFilters(t *testing.T) {
	page := `<html><body>
<div class="content">
<a href="/news/speeches/a.htm">A</a>
<a href="/news/speeches/b.pdf">B</a>
</div>
<aside><a href="/news/speeches/c.htm">C (outside selector)</a></aside>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(page)))
	require.NoError(t, err)

	cfg := models.AdapterConfig{
		LinkSelector: "div.content a[href]",
		HrefSuffix:   ".htm",
	}
	links := collectLinks(doc, cfg, "https://example.org")
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.org/news/speeches/a.htm", links[0].href)
	assert.Equal(t, "A", links[0].text)
}
