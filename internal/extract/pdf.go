package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// pdfPageWorkers bounds concurrent page extraction within one document.
const pdfPageWorkers = 4

// PDFExtractor pulls per-page plain text out of a PDF byte stream. Pages
// are extracted in parallel but written to their positional slot, so the
// output order always matches the document order.
type PDFExtractor struct {
	logger logger.Logger
}

func NewPDFExtractor(log logger.Logger) *PDFExtractor {
	return &PDFExtractor{logger: log.Named("extract.pdf")}
}

func (p *PDFExtractor) CanExtract(tag models.ContentType) bool {
	return tag == models.TypePDF
}

func (p *PDFExtractor) Extract(ctx context.Context, artifact *models.FetchedArtifact) ([]string, error) {
	reader := bytes.NewReader(artifact.Body)
	doc, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, &models.ExtractionError{
			Key:    artifact.Candidate.URL,
			Type:   models.TypePDF,
			Reason: "can't open pdf",
			Err:    err,
		}
	}

	numPages := doc.NumPage()
	pages := make([]string, numPages)

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, pdfPageWorkers)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			page := doc.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNum, err)
			}
			pages[pageNum-1] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &models.ExtractionError{
			Key:    artifact.Candidate.URL,
			Type:   models.TypePDF,
			Reason: "page extraction failed",
			Err:    err,
		}
	}
	return pages, nil
}
