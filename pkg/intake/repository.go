package intake

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("extraction audit not found")

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ExtractionAudit{})
}

// Create inserts the row; redelivered events with a known event id are ignored.
func (r *AuditRepository) Create(ctx context.Context, rec *ExtractionAudit) error {
	rec.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(rec).Error
}

func (r *AuditRepository) GetByUpload(ctx context.Context, uploadID string) (*ExtractionAudit, error) {
	var rec ExtractionAudit
	result := r.db.WithContext(ctx).First(&rec, "upload_id = ?", uploadID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, result.Error
}

func (r *AuditRepository) CleanupExpired(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&ExtractionAudit{}).Error
}
