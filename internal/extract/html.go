package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

const (
	// minParagraphLen is roughly one printed line. Shorter fragments
	// are almost always navigation or footnote noise.
	minParagraphLen = 120

	// footnoteMarker flags the back-link paragraph trailing a footnote.
	footnoteMarker = "Return to text"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// HTMLExtractor pulls paragraph-level text blocks out of the per-source
// content container. Each surviving paragraph becomes one "page", keeping
// paragraph numbering usable as a stable provenance reference.
type HTMLExtractor struct {
	logger logger.Logger
}

func NewHTMLExtractor(log logger.Logger) *HTMLExtractor {
	return &HTMLExtractor{logger: log.Named("extract.html")}
}

func (h *HTMLExtractor) CanExtract(tag models.ContentType) bool {
	return tag == models.TypeHTML || tag == models.TypeText
}

func (h *HTMLExtractor) Extract(_ context.Context, artifact *models.FetchedArtifact) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(artifact.Body))
	if err != nil {
		return nil, &models.ExtractionError{
			Key:    artifact.Candidate.URL,
			Type:   models.TypeHTML,
			Reason: "can't parse html",
			Err:    err,
		}
	}

	container := doc.Selection
	if sel := artifact.Candidate.ContentSelector; sel != "" {
		found := doc.Find(sel)
		if found.Length() == 0 {
			return nil, &models.ExtractionError{
				Key:    artifact.Candidate.URL,
				Type:   models.TypeHTML,
				Reason: "content selector matched nothing: " + sel,
			}
		}
		container = found.First()
	}

	var pages []string
	container.Find("p").Each(func(_ int, s *goquery.Selection) {
		// Classed paragraphs are chrome (timestamps, bylines, nav),
		// not speech body.
		if _, classed := s.Attr("class"); classed {
			return
		}
		text := reWhitespace.ReplaceAllString(strings.TrimSpace(s.Text()), " ")
		if len(text) < minParagraphLen {
			return
		}
		if strings.Contains(text, footnoteMarker) {
			return
		}
		pages = append(pages, text)
	})

	if len(pages) == 0 {
		return nil, &models.ExtractionError{
			Key:    artifact.Candidate.URL,
			Type:   models.TypeHTML,
			Reason: "no qualifying paragraphs",
		}
	}
	return pages, nil
}
