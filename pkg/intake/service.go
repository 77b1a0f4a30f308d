package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neurotrace/intake/pkg/common/kafka"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/observability/metrics"
	"github.com/neurotrace/intake/pkg/prediction"
	"github.com/neurotrace/intake/pkg/schema"
)

const eventSource = "intake-service"

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Predictor is satisfied by *prediction.Client.
type Predictor interface {
	Submit(ctx context.Context, sub prediction.Submission) (prediction.Mode, models.PredictionResponse, error)
}

// PredictionRecorder is satisfied by *prediction.Repository.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, entry prediction.PredictionLog) error
}

// AuditReader is satisfied by *AuditRepository.
type AuditReader interface {
	GetByUpload(ctx context.Context, uploadID string) (*ExtractionAudit, error)
}

var categoryOrder = []schema.Category{
	schema.CategoryDemographic,
	schema.CategoryLifestyle,
	schema.CategoryMedical,
	schema.CategoryCognitive,
	schema.CategoryFunctional,
}

type Service struct {
	orchestrator *extraction.Orchestrator
	resolver     *schema.Resolver
	publisher    EventPublisher
	predictor    Predictor
	recorder     PredictionRecorder
	audits       AuditReader
}

// NewService wires the pipeline. publisher, recorder and audits may be nil.
func NewService(pipeline *Pipeline, publisher EventPublisher, predictor Predictor, recorder PredictionRecorder, audits AuditReader) *Service {
	resolver := pipeline.Resolver
	if resolver == nil {
		resolver = schema.DefaultResolver()
	}
	return &Service{
		orchestrator: pipeline.Orchestrator,
		resolver:     resolver,
		publisher:    publisher,
		predictor:    predictor,
		recorder:     recorder,
		audits:       audits,
	}
}

// Schema describes every feature with the column spellings the pipeline
// accepts for it.
func (s *Service) Schema() SchemaResponse {
	features := schema.Features()
	resp := SchemaResponse{
		FieldCount: schema.FieldCount,
		Features:   make([]SchemaField, 0, len(features)),
		Categories: make(map[schema.Category][]schema.Key, len(categoryOrder)),
	}
	for _, f := range features {
		resp.Features = append(resp.Features, SchemaField{Feature: f, Aliases: s.resolver.Aliases(f.Key)})
	}
	for _, cat := range categoryOrder {
		for _, f := range schema.ByCategory(cat) {
			resp.Categories[cat] = append(resp.Categories[cat], f.Key)
		}
	}
	return resp
}

// Audit returns the stored outcome of an earlier extraction.
func (s *Service) Audit(ctx context.Context, uploadID string) (*ExtractionAudit, error) {
	if s.audits == nil {
		return nil, ErrNotFound
	}
	return s.audits.GetByUpload(ctx, uploadID)
}

// Extract runs one upload through the pipeline. Only a malformed request is
// an error; extraction failures are reported inside the response.
func (s *Service) Extract(ctx context.Context, up extraction.Upload) (*ExtractResponse, error) {
	mode, err := normalizeMode(up.Mode)
	if err != nil {
		return nil, err
	}
	if len(up.Data) == 0 && up.Name == "" {
		return nil, invalid(errMissingFile)
	}
	up.Mode = mode
	up.ID = uuid.New().String()
	uploadID := up.ID

	res := s.orchestrator.Extract(ctx, up)
	metrics.ObserveExtraction(string(res.Kind), res.Populated(), res.Confidence, res.Failed())

	logger.WithUpload(uploadID, up.Name).WithFields(map[string]interface{}{
		"kind":       res.Kind,
		"mode":       mode,
		"fields":     res.Populated(),
		"confidence": res.Confidence,
		"failed":     res.Failed(),
	}).Info("upload processed")

	s.publish(ctx, models.EventIntakeExtracted, extractionEventData(uploadID, mode, res))

	return &ExtractResponse{UploadID: uploadID, Mode: mode, Result: res}, nil
}

// Predict forwards a confirmed submission to the prediction service.
func (s *Service) Predict(ctx context.Context, requestID string, sub prediction.Submission) (*PredictResponse, error) {
	if s.predictor == nil {
		return nil, errors.New("prediction service not configured")
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if sub.Image != nil {
		if _, err := prediction.ValidateImage(*sub.Image); err != nil {
			return nil, invalid(err)
		}
	}

	start := time.Now()
	mode, resp, err := s.predictor.Submit(ctx, sub)
	latency := time.Since(start)
	if err != nil {
		metrics.ObservePrediction(true)
		if errors.Is(err, prediction.ErrInvalidFeatures) || errors.Is(err, prediction.ErrEmptySubmission) {
			return nil, invalid(err)
		}
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	metrics.ObservePrediction(false)

	summary := prediction.Summarize(resp)
	if s.recorder != nil {
		entry := prediction.NewPredictionLog(requestID, sub, mode, resp, latency)
		if err := s.recorder.RecordPrediction(ctx, entry); err != nil {
			logger.Log.WithError(err).WithField("request_id", requestID).Error("failed to record prediction")
		} else {
			metrics.ObserveAuditRow()
		}
	}

	s.publish(ctx, models.EventPredictionCompleted, map[string]interface{}{
		"request_id": requestID,
		"mode":       string(mode),
		"prediction": resp.Prediction,
		"confidence": resp.Confidence,
		"risk_level": summary.RiskLevel,
	})

	return &PredictResponse{RequestID: requestID, Mode: mode, Result: resp, Summary: summary}, nil
}

// publish never fails the caller; a lost event only costs an audit row.
func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, kafka.NewEvent(eventType, eventSource, data))
	metrics.ObserveEvent(err != nil)
	if err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish intake event")
	}
}
