package handlers

import (
	"github.com/qfeng2015/speech-harvester/internal/service/speech"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/queue"
)

type Handlers struct {
	Speech *SpeechHandler
}

func NewHandlers(svc *speech.Service, q *queue.Client, log logger.Logger) *Handlers {
	return &Handlers{
		Speech: NewSpeechHandler(svc, q, log),
	}
}
