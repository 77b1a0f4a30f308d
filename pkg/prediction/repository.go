package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/neurotrace/intake/pkg/common/models"
)

// PredictionLog records that a submission was scored. Feature values and image
// bytes are not stored; Request only describes the submission's shape.
type PredictionLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	RequestID  string            `gorm:"column:request_id;index"`
	Mode       string            `gorm:"column:mode"`
	Request    datatypes.JSONMap `gorm:"column:request"`
	Prediction int               `gorm:"column:prediction"`
	Confidence float64           `gorm:"column:confidence"`
	RiskLevel  string            `gorm:"column:risk_level"`
	ModelType  string            `gorm:"column:model_type"`
	LatencyMs  float64           `gorm:"column:latency_ms"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
}

func (PredictionLog) TableName() string {
	return "prediction_logs"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

// NewPredictionLog builds the row for a completed prediction.
func NewPredictionLog(requestID string, sub Submission, mode Mode, resp models.PredictionResponse, latency time.Duration) PredictionLog {
	shape := map[string]interface{}{
		"fields":    sub.Features.Populated(),
		"has_image": sub.Image != nil,
	}
	return PredictionLog{
		ID:         uuid.New(),
		RequestID:  requestID,
		Mode:       string(mode),
		Request:    datatypes.JSONMap(shape),
		Prediction: resp.Prediction,
		Confidence: resp.Confidence,
		RiskLevel:  Summarize(resp).RiskLevel,
		ModelType:  resp.ModelType,
		LatencyMs:  float64(latency.Microseconds()) / 1000.0,
		CreatedAt:  time.Now().UTC(),
	}
}

func (r *Repository) RecordPrediction(ctx context.Context, entry PredictionLog) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
