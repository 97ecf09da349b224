package models

import "time"

// SourceKind classifies where a source sits institutionally.
type SourceKind string

const (
	KindInstitutional SourceKind = "institutional"
	KindRegional      SourceKind = "regional"
	KindCorporate     SourceKind = "corporate"
)

// DiscoveryStrategy selects how an adapter enumerates candidates.
type DiscoveryStrategy string

const (
	// StrategyYearList builds one listing URL per year from a template.
	StrategyYearList DiscoveryStrategy = "yearlist"
	// StrategyLinkScrape scrapes anchors off a single listing page.
	StrategyLinkScrape DiscoveryStrategy = "linkscrape"
	// StrategyJSONFeed reads candidates out of an embedded JSON payload.
	StrategyJSONFeed DiscoveryStrategy = "jsonfeed"
)

// AdapterConfig is the declarative, per-source half of a SourceAdapter.
// Heterogeneous site structures live here as data, not as code paths.
type AdapterConfig struct {
	Strategy DiscoveryStrategy `yaml:"strategy"`

	// yearlist: listing URL template, {year} is substituted.
	URLTemplate string `yaml:"url_template,omitempty"`

	// linkscrape: anchor selector plus href filters.
	LinkSelector string `yaml:"link_selector,omitempty"`
	HrefContains string `yaml:"href_contains,omitempty"`
	HrefPrefix   string `yaml:"href_prefix,omitempty"`
	HrefSuffix   string `yaml:"href_suffix,omitempty"`

	// jsonfeed: gjson paths into the listing payload.
	ItemsPath string `yaml:"items_path,omitempty"`
	URLPath   string `yaml:"url_path,omitempty"`
	TitlePath string `yaml:"title_path,omitempty"`
	DatePath  string `yaml:"date_path,omitempty"`

	// Per-source extraction selectors for HTML documents.
	ContentSelector string `yaml:"content_selector,omitempty"`
	TitleSelector   string `yaml:"title_selector,omitempty"`
	SpeakerSelector string `yaml:"speaker_selector,omitempty"`
	DateSelector    string `yaml:"date_selector,omitempty"`

	// ResolvePDF makes the adapter drill into each discovered page and
	// emit the PDF link matching the page basename instead of the page.
	ResolvePDF bool `yaml:"resolve_pdf,omitempty"`
}

// SourceDefinition is loaded at startup and immutable during a run.
type SourceDefinition struct {
	ID      string        `yaml:"id"`
	Kind    SourceKind    `yaml:"kind"`
	BaseURL string        `yaml:"base_url"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// Partitioned reports whether the source is discovered year by year.
func (s SourceDefinition) Partitioned() bool {
	return s.Adapter.Strategy == StrategyYearList
}

// Candidate is a discovered but not-yet-fetched document reference.
// Ephemeral; it feeds the pipeline and is never persisted directly.
type Candidate struct {
	SourceID string
	URL      string
	Title    string
	Speaker  string
	Date     string
	LinkText string
	Year     int

	// ContentSelector is stamped by the adapter so the HTML extractor
	// knows where this source keeps its article body.
	ContentSelector string
}

// ContentType tags a candidate with the extraction strategy to use.
type ContentType string

const (
	TypePDF     ContentType = "pdf"
	TypeHTML    ContentType = "html"
	TypeImage   ContentType = "image"
	TypeWord    ContentType = "word"
	TypePPT     ContentType = "ppt"
	TypeArchive ContentType = "archive"
	TypeJSON    ContentType = "json"
	TypeText    ContentType = "text"
	TypeUnknown ContentType = "unknown"
)

// FetchedArtifact holds downloaded bytes for the duration of one item's
// trip through the pipeline. Raw bytes are never persisted to the
// document store.
type FetchedArtifact struct {
	Candidate   Candidate
	ContentType ContentType
	Body        []byte
	FetchedAt   time.Time
}

// Speech is the persisted document record. IdentityKey is the canonical
// URL and the unique persistence key.
type Speech struct {
	IdentityKey string    `bson:"identity_key" json:"identity_key"`
	SourceID    string    `bson:"source_id" json:"source_id"`
	Title       string    `bson:"title" json:"title"`
	Speaker     string    `bson:"speaker" json:"speaker"`
	Date        string    `bson:"date" json:"date"`
	Pages       []string  `bson:"pages" json:"pages"`
	PageCount   int       `bson:"page_count" json:"page_count"`
	FetchURL    string    `bson:"fetch_url" json:"fetch_url"`
	IngestedAt  time.Time `bson:"ingested_at" json:"ingested_at"`
}

// RunState is the resumable marker persisted between runs. A new run
// skips years up to and including LastYear unless forced.
type RunState struct {
	LastYear  int       `bson:"last_year" json:"last_year"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Stage names the pipeline phase an item-level failure occurred in.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageClassify Stage = "classify"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
)

// ErrorRecord is one entry in the append-only item failure log.
type ErrorRecord struct {
	ID        string    `bson:"_id" json:"id"`
	RunID     string    `bson:"run_id" json:"run_id"`
	Key       string    `bson:"key" json:"key"`
	Stage     Stage     `bson:"stage" json:"stage"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// RunReport aggregates the outcome counts of one pipeline run.
type RunReport struct {
	RunID      string    `bson:"run_id" json:"run_id"`
	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	FinishedAt time.Time `bson:"finished_at" json:"finished_at"`
	Discovered int64     `bson:"discovered" json:"discovered"`
	Fetched    int64     `bson:"fetched" json:"fetched"`
	Extracted  int64     `bson:"extracted" json:"extracted"`
	Persisted  int64     `bson:"persisted" json:"persisted"`
	Duplicates int64     `bson:"duplicates" json:"duplicates"`
	Failed     int64     `bson:"failed" json:"failed"`
}
