package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository handles messages and read cursors
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a new MessageRepository with the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// DB returns the underlying database instance
func (r *MessageRepository) DB() *gorm.DB {
	return r.db
}

// Create inserts a message
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(ctx context.Context, id uint64) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByClientMsgID finds a message written earlier with the same idempotency key
func (r *MessageRepository) FindByClientMsgID(ctx context.Context, roomID, senderID, clientMsgID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND sender_id = ? AND client_msg_id = ?", roomID, senderID, clientMsgID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByRoom returns the full history of a room in display order
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// Delete removes a message and its read cursors
func (r *MessageRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&domain.ReadCursor{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Message{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// unreadQuery messages in roomID authored by others without a cursor for userID
func (r *MessageRepository) unreadQuery(ctx context.Context, roomID, userID string) *gorm.DB {
	read := r.db.Model(&domain.ReadCursor{}).
		Select("1").
		Where("message_reads.message_id = messages.id AND message_reads.user_id = ?", userID)
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("room_id = ? AND sender_id <> ?", roomID, userID).
		Where("NOT EXISTS (?)", read)
}

// UnreadMessageIDs returns ids that MarkRead would cover
func (r *MessageRepository) UnreadMessageIDs(ctx context.Context, roomID, userID string) ([]uint64, error) {
	var ids []uint64
	err := r.unreadQuery(ctx, roomID, userID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// CountUnread counts messages by others the user has not read
func (r *MessageRepository) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	var count int64
	err := r.unreadQuery(ctx, roomID, userID).Count(&count).Error
	return count, err
}

// CountUnreadByRoom counts unread messages for every given room in one query.
// Rooms with nothing unread are absent from the map.
func (r *MessageRepository) CountUnreadByRoom(ctx context.Context, roomIDs []string, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}
	read := r.db.Model(&domain.ReadCursor{}).
		Select("1").
		Where("message_reads.message_id = messages.id AND message_reads.user_id = ?", userID)

	var rows []struct {
		RoomID string
		Unread int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("room_id, COUNT(*) AS unread").
		Where("room_id IN ? AND sender_id <> ?", roomIDs, userID).
		Where("NOT EXISTS (?)", read).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.RoomID] = row.Unread
	}
	return counts, nil
}

// InsertReadCursors inserts cursors in one batch; existing (message,user) pairs are ignored.
// Returns the number of rows actually inserted.
func (r *MessageRepository) InsertReadCursors(ctx context.Context, cursors []domain.ReadCursor) (int64, error) {
	if len(cursors) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cursors)
	return result.RowsAffected, result.Error
}

// CountReadCursors counts cursors of a user in a room
func (r *MessageRepository) CountReadCursors(ctx context.Context, roomID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ReadCursor{}).
		Joins("JOIN messages ON messages.id = message_reads.message_id").
		Where("messages.room_id = ? AND message_reads.user_id = ?", roomID, userID).
		Count(&count).Error
	return count, err
}
