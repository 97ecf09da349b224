// Package classify tags candidate URLs with a content type so the
// pipeline can pick an extraction strategy. Classification never fails
// loudly: any network trouble degrades to TypeUnknown.
package classify

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// prober is the slice of the fetch client the classifier needs.
type prober interface {
	Head(ctx context.Context, url string) (*http.Response, error)
	ProbeGet(ctx context.Context, url string) (*http.Response, error)
}

var extensionTable = map[string]models.ContentType{
	".pdf":  models.TypePDF,
	".htm":  models.TypeHTML,
	".html": models.TypeHTML,
	".png":  models.TypeImage,
	".jpg":  models.TypeImage,
	".jpeg": models.TypeImage,
	".gif":  models.TypeImage,
	".bmp":  models.TypeImage,
	".tiff": models.TypeImage,
	".svg":  models.TypeImage,
	".doc":  models.TypeWord,
	".docx": models.TypeWord,
	".ppt":  models.TypePPT,
	".pptx": models.TypePPT,
	".zip":  models.TypeArchive,
	".tar":  models.TypeArchive,
	".gz":   models.TypeArchive,
	".rar":  models.TypeArchive,
	".json": models.TypeJSON,
}

// mimeTable is matched in order; the first substring hit wins.
var mimeTable = []struct {
	substr string
	tag    models.ContentType
}{
	{"application/pdf", models.TypePDF},
	{"text/html", models.TypeHTML},
	{"image/", models.TypeImage},
	{"application/msword", models.TypeWord},
	{"wordprocessingml", models.TypeWord},
	{"vnd.ms-powerpoint", models.TypePPT},
	{"presentationml", models.TypePPT},
	{"application/zip", models.TypeArchive},
	{"application/x-tar", models.TypeArchive},
	{"json", models.TypeJSON},
}

type Classifier struct {
	prober prober
	logger logger.Logger
}

func New(p prober, log logger.Logger) *Classifier {
	return &Classifier{prober: p, logger: log.Named("classify")}
}

// Classify resolves the content type of rawURL. Order: the URL path
// extension table first, then a HEAD probe (GET fallback when HEAD is
// rejected) against the MIME table. An unrecognized MIME type on a
// successful probe means TypeText; a failed probe means TypeUnknown.
func (c *Classifier) Classify(ctx context.Context, rawURL string) models.ContentType {
	if tag, ok := ByExtension(rawURL); ok {
		return tag
	}

	resp, err := c.prober.Head(ctx, rawURL)
	if err != nil || resp.StatusCode >= 400 {
		resp, err = c.prober.ProbeGet(ctx, rawURL)
	}
	if err != nil {
		c.logger.Warn("probe failed, tagging unknown",
			logger.String("url", rawURL),
			logger.Error(err),
		)
		return models.TypeUnknown
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("probe rejected, tagging unknown",
			logger.String("url", rawURL),
			logger.Int("status", resp.StatusCode),
		)
		return models.TypeUnknown
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, m := range mimeTable {
		if strings.Contains(contentType, m.substr) {
			return m.tag
		}
	}
	return models.TypeText
}

// ByExtension matches only the URL path extension, no network probe.
func ByExtension(rawURL string) (models.ContentType, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.TypeUnknown, false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	tag, ok := extensionTable[ext]
	return tag, ok
}
