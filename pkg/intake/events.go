package intake

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/extraction"
)

// extractionEventData summarizes a result for the event bus.
func extractionEventData(uploadID, mode string, res extraction.Result) map[string]interface{} {
	unmapped := res.Unmapped
	if unmapped == nil {
		unmapped = []string{}
	}
	return map[string]interface{}{
		"upload_id":    uploadID,
		"kind":         string(res.Kind),
		"mode":         mode,
		"fields":       res.Populated(),
		"missing":      len(res.MissingFields),
		"confidence":   res.Confidence,
		"failed":       res.Failed(),
		"error_count":  len(res.Errors),
		"rows_ignored": res.RowsIgnored,
		"unmapped":     unmapped,
	}
}

// AuditFromEvent decodes an intake.extracted event into its audit row.
func AuditFromEvent(event models.Event) (*ExtractionAudit, error) {
	if event.Type != models.EventIntakeExtracted {
		return nil, fmt.Errorf("unexpected event type %q", event.Type)
	}

	// Data went through JSON, so numbers arrive as float64.
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var data struct {
		UploadID    string   `json:"upload_id"`
		Kind        string   `json:"kind"`
		Mode        string   `json:"mode"`
		Fields      int      `json:"fields"`
		Missing     int      `json:"missing"`
		Confidence  float64  `json:"confidence"`
		Failed      bool     `json:"failed"`
		ErrorCount  int      `json:"error_count"`
		RowsIgnored int      `json:"rows_ignored"`
		Unmapped    []string `json:"unmapped"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", event.ID, err)
	}
	if data.UploadID == "" {
		return nil, fmt.Errorf("event %s has no upload_id", event.ID)
	}
	if data.Unmapped == nil {
		data.Unmapped = []string{}
	}
	unmapped, err := json.Marshal(data.Unmapped)
	if err != nil {
		return nil, err
	}

	extractedAt := event.Timestamp
	if extractedAt.IsZero() {
		extractedAt = time.Now().UTC()
	}

	return &ExtractionAudit{
		ID:          uuid.New(),
		EventID:     event.ID,
		UploadID:    data.UploadID,
		Kind:        data.Kind,
		Mode:        data.Mode,
		Fields:      data.Fields,
		Missing:     data.Missing,
		Confidence:  data.Confidence,
		Failed:      data.Failed,
		ErrorCount:  data.ErrorCount,
		RowsIgnored: data.RowsIgnored,
		Unmapped:    unmapped,
		ExtractedAt: extractedAt.UTC(),
	}, nil
}
