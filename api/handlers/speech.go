package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/internal/service/speech"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/queue"
)

type SpeechHandler struct {
	svc    *speech.Service
	queue  *queue.Client
	logger logger.Logger
}

func NewSpeechHandler(svc *speech.Service, q *queue.Client, log logger.Logger) *SpeechHandler {
	return &SpeechHandler{svc: svc, queue: q, logger: log.Named("api")}
}

// GetSpeech returns the stored metadata and pages as JSON.
func (h *SpeechHandler) GetSpeech(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title query parameter is required"})
		return
	}

	doc, err := h.svc.Find(c.Request.Context(), title)
	if err != nil {
		h.respondLookupError(c, title, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetSpeechPDF reconstructs the stored page sequence as a PDF stream.
func (h *SpeechHandler) GetSpeechPDF(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title query parameter is required"})
		return
	}

	doc, err := h.svc.Find(c.Request.Context(), title)
	if err != nil {
		h.respondLookupError(c, title, err)
		return
	}

	pdfBytes, err := h.svc.RenderPDF(doc)
	if err != nil {
		h.logger.Error("pdf rendering failed",
			logger.String("key", doc.IdentityKey),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render document"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="speech.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// GetRunReports lists recent ingest runs, newest first. The optional
// limit query parameter caps the page size.
func (h *SpeechHandler) GetRunReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	reports, err := h.svc.RecentReports(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("can't list run reports", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": reports})
}

// TriggerIngest enqueues an on-demand crawl of one source.
func (h *SpeechHandler) TriggerIngest(c *gin.Context) {
	var req struct {
		SourceID string `json:"source_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id is required"})
		return
	}

	if err := h.queue.EnqueueSourceIngest(c.Request.Context(), req.SourceID); err != nil {
		h.logger.Error("can't enqueue ingest",
			logger.String("source", req.SourceID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue ingest"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "source_id": req.SourceID})
}

// Health is the liveness probe.
func (h *SpeechHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SpeechHandler) respondLookupError(c *gin.Context, query string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	h.logger.Error("lookup failed", logger.String("query", query), logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
}
