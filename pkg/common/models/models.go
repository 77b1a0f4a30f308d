package models

import (
	"time"
)

// Event types published on the intake topic.
const (
	EventIntakeExtracted     = "intake.extracted"
	EventPredictionCompleted = "intake.predicted"
)

// Event is the envelope for everything written to Kafka. Data carries counts,
// keys and scores only; extracted field values are never published.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// PredictionResponse is the prediction service's answer for any input shape.
type PredictionResponse struct {
	Prediction     int       `json:"prediction"` // 0 = no dementia, 1 = dementia
	Confidence     float64   `json:"confidence"`
	Probs          []float64 `json:"probs"`
	ProcessingTime float64   `json:"processing_time,omitempty"`
	ModelType      string    `json:"model_type,omitempty"`
	Status         string    `json:"status,omitempty"`
}

// PredictionSummary is the display form of a PredictionResponse.
type PredictionSummary struct {
	Result     string `json:"result"`
	Confidence string `json:"confidence"`
	RiskLevel  string `json:"risk_level"`
	Color      string `json:"color"`
	NoDementia string `json:"no_dementia"`
	Dementia   string `json:"dementia"`
}
