// Package speech is the query-side service: it looks stored documents up
// and reconstructs them as PDF streams. Glue around the store, no
// pipeline logic.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Finder is the store lookup the service depends on.
type Finder interface {
	FindByTitleOrKey(ctx context.Context, query string) (*models.Speech, error)
	RecentRunReports(ctx context.Context, limit int) ([]models.RunReport, error)
}

type Service struct {
	finder Finder
	logger logger.Logger
}

func NewService(finder Finder, log logger.Logger) *Service {
	return &Service{finder: finder, logger: log.Named("speech")}
}

// Find returns the stored document matching title (or identity key).
func (s *Service) Find(ctx context.Context, query string) (*models.Speech, error) {
	doc, err := s.finder.FindByTitleOrKey(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	if doc.PageCount == 0 {
		return nil, models.ErrNotFound
	}
	return doc, nil
}

const maxReportLimit = 50

// RecentReports returns the latest run reports, newest first.
func (s *Service) RecentReports(ctx context.Context, limit int) ([]models.RunReport, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	return s.finder.RecentRunReports(ctx, limit)
}

// RenderPDF rebuilds the document's page sequence into a PDF binary
// stream, one stored page per rendered page, in stored order.
func (s *Service) RenderPDF(doc *models.Speech) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetFont("Helvetica", "", 12)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, sanitize(doc.Title), "", "C", false)
	if doc.Speaker != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, sanitize(doc.Speaker), "", "C", false)
	}
	if doc.Date != "" {
		pdf.MultiCell(0, 6, sanitize(doc.Date), "", "C", false)
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 12)

	for i, page := range doc.Pages {
		if i > 0 {
			pdf.AddPage()
		}
		pdf.MultiCell(0, 6, sanitize(page), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("can't render pdf for %s: %w", doc.IdentityKey, err)
	}
	return buf.Bytes(), nil
}

// sanitize maps text into the latin-1 range the core PDF fonts support.
func sanitize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r < 256 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
