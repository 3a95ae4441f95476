package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// BroadcastRepository handles scheduled broadcast jobs
type BroadcastRepository struct {
	db *gorm.DB
}

// NewBroadcastRepository creates a new BroadcastRepository
func NewBroadcastRepository(db *gorm.DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

// CreateJob inserts the job and one pending recipient per target in one transaction
func (r *BroadcastRepository) CreateJob(ctx context.Context, job *domain.BroadcastJob, userIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job.TargetCount = len(userIDs)
		if err := tx.Omit("Recipients").Create(job).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		recipients := make([]domain.BroadcastRecipient, len(userIDs))
		for i, id := range userIDs {
			recipients[i] = domain.BroadcastRecipient{JobID: job.ID, UserID: id, Status: domain.RecipientPending}
		}
		if err := tx.Create(&recipients).Error; err != nil {
			return err
		}
		job.Recipients = recipients
		return nil
	})
}

// FindByID finds a job with its recipients
func (r *BroadcastRepository) FindByID(ctx context.Context, id uint64) (*domain.BroadcastJob, error) {
	var job domain.BroadcastJob
	err := r.db.WithContext(ctx).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Exists reports whether a job row is present
func (r *BroadcastRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BroadcastJob{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListBySender returns a sender's jobs, newest schedule first
func (r *BroadcastRepository) ListBySender(ctx context.Context, senderID string) ([]*domain.BroadcastJob, error) {
	var jobs []*domain.BroadcastJob
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("scheduled_at DESC, id DESC").
		Find(&jobs).Error
	return jobs, err
}

// DueJobIDs returns ids of pending jobs scheduled at or before now
func (r *BroadcastRepository) DueJobIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&domain.BroadcastJob{}).
		Where("status = ? AND scheduled_at <= ?", domain.JobStatusPending, now).
		Order("scheduled_at ASC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// Claim moves a job from pending to processing. Returns false when another worker
// claimed it first or it was canceled.
func (r *BroadcastRepository) Claim(ctx context.Context, id uint64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.BroadcastJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusProcessing,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeletePending removes a job (and its recipients) only while it is still pending.
// Returns false when the job is absent or no longer pending.
func (r *BroadcastRepository) DeletePending(ctx context.Context, id uint64, senderID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ? AND status = ?", id, domain.JobStatusPending)
		if senderID != "" {
			query = query.Where("sender_id = ?", senderID)
		}
		result := query.Delete(&domain.BroadcastJob{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("job_id = ?", id).Delete(&domain.BroadcastRecipient{}).Error
	})
	return deleted, err
}

// recipientErrorMaxLen broadcast_recipients.error 컬럼 길이 (문자 수)
const recipientErrorMaxLen = 500

// truncateRunes cuts s to at most n characters without splitting a rune
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// UpdateRecipient records the outcome for one recipient
func (r *BroadcastRepository) UpdateRecipient(ctx context.Context, jobID uint64, userID string, status domain.RecipientStatus, roomID, errMsg string) error {
	errMsg = truncateRunes(errMsg, recipientErrorMaxLen)
	return r.db.WithContext(ctx).Model(&domain.BroadcastRecipient{}).
		Where("job_id = ? AND user_id = ?", jobID, userID).
		Updates(map[string]interface{}{
			"status":  status,
			"room_id": roomID,
			"error":   errMsg,
		}).Error
}

// Finish sets the final status of a processing job
func (r *BroadcastRepository) Finish(ctx context.Context, id uint64, status domain.BroadcastJobStatus, delivered int, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.BroadcastJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":          status,
			"delivered_count": delivered,
			"sent_at":         at,
		}).Error
}
