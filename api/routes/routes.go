package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/qfeng2015/speech-harvester/api/handlers"
	"github.com/qfeng2015/speech-harvester/api/middleware"
	"github.com/qfeng2015/speech-harvester/pkg/metrics"
)

// SetupRoutes wires the query API.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Speech.Health)

		speeches := v1.Group("/speeches")
		{
			speeches.GET("", h.Speech.GetSpeech)
			speeches.GET("/pdf", h.Speech.GetSpeechPDF)
		}

		v1.GET("/runs", h.Speech.GetRunReports)
		v1.POST("/ingest", h.Speech.TriggerIngest)
	}
}
