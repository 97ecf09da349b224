package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/queue"
)

type stubRunner struct {
	report  *models.RunReport
	err     error
	sources []string
}

func (s *stubRunner) RunSource(_ context.Context, sourceID string) (*models.RunReport, error) {
	s.sources = append(s.sources, sourceID)
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func ingestTask(t *testing.T, payload queue.SourceIngestPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskTypeSourceIngest, data)
}

func testWorker(runner SourceRunner) *IngestWorker {
	return &IngestWorker{
		mux:    asynq.NewServeMux(),
		runner: runner,
		logger: logger.Nop(),
	}
}

func TestHandleSourceIngest(t *testing.T) {
	runner := &stubRunner{report: &models.RunReport{Persisted: 4}}
	w := testWorker(runner)

	err := w.handleSourceIngest(context.Background(),
		ingestTask(t, queue.SourceIngestPayload{SourceID: "fed-board"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"fed-board"}, runner.sources)
}

func TestHandleSourceIngestPropagatesRunError(t *testing.T) {
	runner := &stubRunner{err: errors.New("store down")}
	w := testWorker(runner)

	err := w.handleSourceIngest(context.Background(),
		ingestTask(t, queue.SourceIngestPayload{SourceID: "fed-board"}))
	assert.Error(t, err)
}

func TestHandleSourceIngestRejectsEmptySource(t *testing.T) {
	runner := &stubRunner{}
	w := testWorker(runner)

	err := w.handleSourceIngest(context.Background(),
		ingestTask(t, queue.SourceIngestPayload{}))

	assert.Error(t, err)
	assert.Empty(t, runner.sources)
}

func TestHandleSourceIngestRejectsMalformedPayload(t *testing.T) {
	w := testWorker(&stubRunner{})

	err := w.handleSourceIngest(context.Background(),
		asynq.NewTask(queue.TaskTypeSourceIngest, []byte("{not json")))
	assert.Error(t, err)
}
