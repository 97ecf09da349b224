package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// threePagePDF renders one marker word per page.
func threePagePDF(t *testing.T, markers ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	for _, m := range markers {
		doc.AddPage()
		doc.Cell(0, 10, m)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestPDFExtractPreservesPageOrder(t *testing.T) {
	p := NewPDFExtractor(logger.Nop())
	artifact := &models.FetchedArtifact{
		Candidate:   models.Candidate{URL: "https://example.org/a.pdf"},
		ContentType: models.TypePDF,
		Body:        threePagePDF(t, "Alpha", "Bravo", "Charlie"),
	}

	pages, err := p.Extract(context.Background(), artifact)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Contains(t, pages[0], "Alpha")
	assert.Contains(t, pages[1], "Bravo")
	assert.Contains(t, pages[2], "Charlie")
}

func TestPDFExtractRejectsGarbage(t *testing.T) {
	p := NewPDFExtractor(logger.Nop())
	artifact := &models.FetchedArtifact{
		Candidate:   models.Candidate{URL: "https://example.org/a.pdf"},
		ContentType: models.TypePDF,
		Body:        []byte("<html>this is not a pdf</html>"),
	}

	_, err := p.Extract(context.Background(), artifact)
	require.Error(t, err)

	var ee *models.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.TypePDF, ee.Type)
	assert.Equal(t, "https://example.org/a.pdf", ee.Key)
}

func TestPDFCanExtract(t *testing.T) {
	p := NewPDFExtractor(logger.Nop())
	assert.True(t, p.CanExtract(models.TypePDF))
	assert.False(t, p.CanExtract(models.TypeHTML))
	assert.False(t, p.CanExtract(models.TypeImage))
}

func TestRegistryForType(t *testing.T) {
	r := NewRegistry(logger.Nop())

	e, ok := r.ForType(models.TypePDF)
	require.True(t, ok)
	assert.IsType(t, &PDFExtractor{}, e)

	e, ok = r.ForType(models.TypeHTML)
	require.True(t, ok)
	assert.IsType(t, &HTMLExtractor{}, e)

	e, ok = r.ForType(models.TypeText)
	require.True(t, ok)
	assert.IsType(t, &HTMLExtractor{}, e)

	_, ok = r.ForType(models.TypeImage)
	assert.False(t, ok)
	_, ok = r.ForType(models.TypeWord)
	assert.False(t, ok)
}
