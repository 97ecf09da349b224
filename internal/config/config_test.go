package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalSources = `
sources:
  - id: fed-board
    kind: institutional
    base_url: https://example.org
    adapter:
      strategy: yearlist
      url_template: /speeches/{year}.htm
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalSources))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "speeches", cfg.Mongo.Collection)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, float64(2), cfg.Retry.BackoffMultiplier)
	assert.Equal(t, 4, cfg.Concurrency.Sources)
	assert.Equal(t, 3, cfg.Concurrency.PerSource)
	assert.Equal(t, 2017, cfg.StartYear)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
start_year: 2020
retry:
  max_retries: 5
  base_delay: 1s
concurrency:
  sources: 2
  per_source: 8
`+minimalSources))
	require.NoError(t, err)

	assert.Equal(t, 2020, cfg.StartYear)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 2, cfg.Concurrency.Sources)
	assert.Equal(t, 8, cfg.Concurrency.PerSource)

	require.Len(t, cfg.Sources, 1)
	src := cfg.Sources[0]
	assert.Equal(t, models.KindInstitutional, src.Kind)
	assert.Equal(t, models.StrategyYearList, src.Adapter.Strategy)
	assert.True(t, src.Partitioned())
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("REDIS_ADDR", "cache.internal:6379")

	cfg, err := Load(writeConfig(t, minimalSources))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no sources", "start_year: 2020\n"},
		{"empty source id", `
sources:
  - id: ""
    adapter:
      strategy: linkscrape
`},
		{"duplicate source id", `
sources:
  - id: dup
    adapter:
      strategy: linkscrape
  - id: dup
    adapter:
      strategy: linkscrape
`},
		{"yearlist without template", `
sources:
  - id: fed
    adapter:
      strategy: yearlist
`},
		{"unknown strategy", `
sources:
  - id: fed
    adapter:
      strategy: sitemap
`},
		{"bad concurrency", `
concurrency:
  sources: 0
` + minimalSources},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
