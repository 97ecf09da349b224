// Package extract turns fetched bytes into the ordered page sequence of a
// document. One extractor per content type; unsupported types have no
// extractor and the pipeline logs and drops the item.
package extract

import (
	"context"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Extractor produces the ordered pages of one artifact. Page order is
// significant and must never be changed: paragraph and page numbers are
// used downstream as stable sub-document references.
type Extractor interface {
	CanExtract(tag models.ContentType) bool
	Extract(ctx context.Context, artifact *models.FetchedArtifact) ([]string, error)
}

// Registry maps content types to extractors.
type Registry struct {
	extractors []Extractor
}

// NewRegistry wires the default PDF and HTML extractors.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		extractors: []Extractor{
			NewPDFExtractor(log),
			NewHTMLExtractor(log),
		},
	}
}

// ForType returns the extractor handling tag, or false when the type is
// unsupported.
func (r *Registry) ForType(tag models.ContentType) (Extractor, bool) {
	for _, e := range r.extractors {
		if e.CanExtract(tag) {
			return e, true
		}
	}
	return nil, false
}
