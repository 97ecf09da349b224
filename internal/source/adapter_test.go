package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// stubFetcher serves canned bodies by URL; unmapped URLs fail.
type stubFetcher struct {
	pages map[string]string
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no canned page for %s", url)
	}
	return []byte(body), nil
}

func TestNewUnknownStrategy(t *testing.T) {
	def := models.SourceDefinition{
		ID:      "bad",
		Adapter: models.AdapterConfig{Strategy: "rss"},
	}
	_, err := New(def, &stubFetcher{}, logger.Nop())
	assert.Error(t, err)
}

func TestBuildAll(t *testing.T) {
	defs := []models.SourceDefinition{
		{ID: "a", Adapter: models.AdapterConfig{Strategy: models.StrategyLinkScrape}},
		{ID: "b", Adapter: models.AdapterConfig{Strategy: models.StrategyJSONFeed}},
		{ID: "c", Adapter: models.AdapterConfig{Strategy: models.StrategyYearList, URLTemplate: "/{year}.htm"}},
	}
	adapters, err := BuildAll(defs, &stubFetcher{}, logger.Nop())
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.Equal(t, "a", adapters[0].Definition().ID)
	assert.True(t, adapters[2].Definition().Partitioned())
	assert.False(t, adapters[0].Definition().Partitioned())
}
