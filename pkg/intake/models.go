package intake

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/prediction"
	"github.com/neurotrace/intake/pkg/schema"
)

// ExtractResponse is the body of POST /extract.
type ExtractResponse struct {
	UploadID string `json:"upload_id"`
	Mode     string `json:"mode"`
	extraction.Result
}

type PredictResponse struct {
	RequestID string                    `json:"request_id"`
	Mode      prediction.Mode           `json:"mode"`
	Result    models.PredictionResponse `json:"result"`
	Summary   models.PredictionSummary  `json:"summary"`
}

// SchemaField is a feature definition plus its accepted column spellings.
type SchemaField struct {
	schema.Feature
	Aliases []string `json:"aliases"`
}

type SchemaResponse struct {
	FieldCount int                              `json:"field_count"`
	Features   []SchemaField                    `json:"features"`
	Categories map[schema.Category][]schema.Key `json:"categories"`
}

type ValidateRequest struct {
	Features map[string]float64 `json:"features"`
	Complete bool               `json:"complete"`
}

type ValidateResponse struct {
	Valid         bool         `json:"valid"`
	Errors        []string     `json:"errors"`
	MissingFields []schema.Key `json:"missing_fields"`
}

// ExtractionAudit is one row per processed upload. It holds counts and the
// names of unmapped columns, never extracted values.
type ExtractionAudit struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	EventID     string         `gorm:"column:event_id;uniqueIndex"`
	UploadID    string         `gorm:"column:upload_id;index"`
	Kind        string         `gorm:"column:kind"`
	Mode        string         `gorm:"column:mode"`
	Fields      int            `gorm:"column:fields"`
	Missing     int            `gorm:"column:missing"`
	Confidence  float64        `gorm:"column:confidence"`
	Failed      bool           `gorm:"column:failed"`
	ErrorCount  int            `gorm:"column:error_count"`
	RowsIgnored int            `gorm:"column:rows_ignored"`
	Unmapped    datatypes.JSON `gorm:"column:unmapped"`
	ExtractedAt time.Time      `gorm:"column:extracted_at"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (ExtractionAudit) TableName() string {
	return "extraction_audits"
}
