package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// AuditRepository append-only audit log store. There is no update or delete.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a new AuditRepository with the given transaction
func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Create inserts an entry
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns entries, newest first, with optional actor/action filters
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditLogFilter) ([]*domain.AuditLogEntry, int64, error) {
	var entries []*domain.AuditLogEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.AuditLogEntry{})
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&entries).Error
	return entries, total, err
}

// CountByResource counts entries for an action on one resource
func (r *AuditRepository) CountByResource(ctx context.Context, action, resourceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.AuditLogEntry{}).
		Where("action = ? AND resource_id = ?", action, resourceID).
		Count(&count).Error
	return count, err
}
