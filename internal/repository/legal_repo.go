package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// LegalRepository handles takedown inquiries
type LegalRepository struct {
	db *gorm.DB
}

// NewLegalRepository creates a new LegalRepository
func NewLegalRepository(db *gorm.DB) *LegalRepository {
	return &LegalRepository{db: db}
}

// WithTx returns a new LegalRepository with the given transaction
func (r *LegalRepository) WithTx(tx *gorm.DB) *LegalRepository {
	return &LegalRepository{db: tx}
}

// DB returns the underlying database instance
func (r *LegalRepository) DB() *gorm.DB {
	return r.db
}

// Create inserts an inquiry
func (r *LegalRepository) Create(ctx context.Context, inquiry *domain.LegalInquiry) error {
	return r.db.WithContext(ctx).Create(inquiry).Error
}

// FindByID finds an inquiry by ID
func (r *LegalRepository) FindByID(ctx context.Context, id uint64) (*domain.LegalInquiry, error) {
	var inquiry domain.LegalInquiry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inquiry).Error; err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// Exists reports whether an inquiry row is present
func (r *LegalRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.LegalInquiry{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List returns inquiries, newest first, optionally filtered by status
func (r *LegalRepository) List(ctx context.Context, status domain.LegalStatus, page, perPage int) ([]*domain.LegalInquiry, int64, error) {
	var inquiries []*domain.LegalInquiry
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.LegalInquiry{})
	if status != "" {
		query = query.Where("legal_status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(perPage).Find(&inquiries).Error
	return inquiries, total, err
}

// CompareAndSetStatus moves legal_status from expected to next in a single conditional
// UPDATE. Returns false when no row matched (absent or stale).
func (r *LegalRepository) CompareAndSetStatus(ctx context.Context, id uint64, expected, next domain.LegalStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{
		"legal_status": next,
		"updated_at":   now,
	}
	if expected == domain.LegalReceived && next == domain.LegalInquirySent {
		updates["inquiry_sent_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&domain.LegalInquiry{}).
		Where("id = ? AND legal_status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
