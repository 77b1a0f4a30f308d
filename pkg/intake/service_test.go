package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/extraction/tabular"
	"github.com/neurotrace/intake/pkg/prediction"
	"github.com/neurotrace/intake/pkg/schema"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type stubPredictor struct {
	resp models.PredictionResponse
	err  error
	got  prediction.Submission
}

func (p *stubPredictor) Submit(_ context.Context, sub prediction.Submission) (prediction.Mode, models.PredictionResponse, error) {
	p.got = sub
	if p.err != nil {
		return "", models.PredictionResponse{}, p.err
	}
	mode, err := sub.Mode()
	return mode, p.resp, err
}

type recordingRecorder struct {
	entries []prediction.PredictionLog
}

func (r *recordingRecorder) RecordPrediction(_ context.Context, entry prediction.PredictionLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newTestService(pub EventPublisher, pred Predictor, rec PredictionRecorder) *Service {
	o := extraction.NewOrchestrator(extraction.NewTabularExtractor(tabular.NewParser(), nil), nil)
	return NewService(&Pipeline{Orchestrator: o}, pub, pred, rec, nil)
}

func TestServiceExtractPublishesCounts(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(pub, nil, nil)

	resp, err := svc.Extract(context.Background(), extraction.Upload{
		Name: "patient.csv",
		Data: []byte("Age,Sex,BMI,smoking,Clinic\n72,Female,27.4,Yes,North\n"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.UploadID)
	assert.Equal(t, ModeDoctor, resp.Mode)
	assert.Equal(t, 4, resp.Populated())
	assert.InDelta(t, 0.45, resp.Confidence, 1e-9)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, models.EventIntakeExtracted, ev.Type)
	assert.Equal(t, resp.UploadID, ev.Data["upload_id"])
	assert.Equal(t, 4, ev.Data["fields"])
	assert.Equal(t, 28, ev.Data["missing"])
	assert.Equal(t, []string{"Clinic"}, ev.Data["unmapped"])
	for _, v := range ev.Data {
		assert.NotEqual(t, 72.0, v, "event must not carry field values")
	}
}

func TestServiceExtractTagsPipelineLogs(t *testing.T) {
	hook := logtest.NewLocal(logger.Log)
	defer hook.Reset()

	resp, err := newTestService(nil, nil, nil).Extract(context.Background(), extraction.Upload{
		Name: "patient.csv",
		Data: []byte("Age\n70\n"),
	})
	require.NoError(t, err)

	var tagged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "extraction completed" {
			tagged = true
			assert.Equal(t, resp.UploadID, entry.Data["upload_id"])
		}
	}
	assert.True(t, tagged)
}

func TestServiceExtractFailureStillPublishes(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(pub, nil, nil)

	resp, err := svc.Extract(context.Background(), extraction.Upload{Name: "scan.docx", Data: []byte("PK")})
	require.NoError(t, err)
	assert.True(t, resp.Failed())
	assert.Len(t, resp.MissingFields, schema.FieldCount)
	require.Len(t, pub.events, 1)
	assert.Equal(t, true, pub.events[0].Data["failed"])
}

func TestServiceExtractRejectsBadMode(t *testing.T) {
	svc := newTestService(nil, nil, nil)
	_, err := svc.Extract(context.Background(), extraction.Upload{Name: "a.csv", Data: []byte("Age\n70\n"), Mode: "nurse"})
	assert.True(t, IsValidationError(err))

	resp, err := svc.Extract(context.Background(), extraction.Upload{Name: "a.csv", Data: []byte("Age\n70\n"), Mode: " Patient "})
	require.NoError(t, err)
	assert.Equal(t, ModePatient, resp.Mode)
}

func TestServicePredictRecordsLog(t *testing.T) {
	pred := &stubPredictor{resp: models.PredictionResponse{Prediction: 0, Confidence: 0.91, Probs: []float64{0.91, 0.09}}}
	rec := &recordingRecorder{}
	pub := &recordingPublisher{}
	svc := newTestService(pub, pred, rec)

	features := schema.DefaultRecord()
	resp, err := svc.Predict(context.Background(), "req-1", prediction.Submission{Features: features})
	require.NoError(t, err)
	assert.Equal(t, prediction.ModeFeatures, resp.Mode)
	assert.Equal(t, "Low", resp.Summary.RiskLevel)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "req-1", rec.entries[0].RequestID)
	assert.Equal(t, schema.FieldCount, rec.entries[0].Request["fields"])
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventPredictionCompleted, pub.events[0].Type)
}

func TestServicePredictErrors(t *testing.T) {
	svc := newTestService(nil, &stubPredictor{err: prediction.ErrInvalidFeatures}, nil)
	_, err := svc.Predict(context.Background(), "", prediction.Submission{Features: schema.Record{schema.Age: 70}})
	assert.True(t, IsValidationError(err))

	svc = newTestService(nil, &stubPredictor{err: prediction.ErrServer}, nil)
	_, err = svc.Predict(context.Background(), "", prediction.Submission{Features: schema.DefaultRecord()})
	assert.ErrorIs(t, err, prediction.ErrServer)
	assert.False(t, IsValidationError(err))

	svc = newTestService(nil, &stubPredictor{}, nil)
	_, err = svc.Predict(context.Background(), "", prediction.Submission{Image: &prediction.Image{Data: []byte("not an image")}})
	assert.True(t, IsValidationError(err))
}

func TestAuditFromEvent(t *testing.T) {
	res := extraction.Result{
		Kind:          extraction.KindCSV,
		Features:      schema.Record{schema.Age: 70},
		Confidence:    0.41,
		MissingFields: make([]schema.Key, 31),
		Errors:        []string{"x"},
		Unmapped:      []string{"Clinic"},
	}
	ev := models.Event{ID: "ev-1", Type: models.EventIntakeExtracted, Data: extractionEventData("up-1", ModeDoctor, res)}

	audit, err := AuditFromEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", audit.EventID)
	assert.Equal(t, "up-1", audit.UploadID)
	assert.Equal(t, "csv", audit.Kind)
	assert.Equal(t, 1, audit.Fields)
	assert.Equal(t, 31, audit.Missing)
	assert.Equal(t, 1, audit.ErrorCount)
	assert.JSONEq(t, `["Clinic"]`, string(audit.Unmapped))

	_, err = AuditFromEvent(models.Event{Type: models.EventPredictionCompleted})
	assert.Error(t, err)
}

func TestNewPipelineFromConfig(t *testing.T) {
	p, err := NewPipeline(&config.Config{})
	require.NoError(t, err)
	require.NotNil(t, p.Resolver)

	res := p.Orchestrator.Extract(context.Background(), extraction.Upload{Name: "p.csv", Data: []byte("patient_age,mmse_score\n81,17\n")})
	assert.Equal(t, schema.Record{schema.Age: 81, schema.MMSE: 17}, res.Features)

	_, err = NewPipeline(&config.Config{AliasFile: "testdata/does-not-exist.yaml"})
	assert.Error(t, err)
}
