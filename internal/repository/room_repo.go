package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository handles rooms and memberships
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new RoomRepository
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// WithTx returns a new RoomRepository with the given transaction
func (r *RoomRepository) WithTx(tx *gorm.DB) *RoomRepository {
	return &RoomRepository{db: tx}
}

// DB returns the underlying database instance
func (r *RoomRepository) DB() *gorm.DB {
	return r.db
}

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC, user_id ASC")
}

// FindByID finds a room with its members
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		Where("id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByDMKey finds the DM room of a pair
func (r *RoomRepository) FindByDMKey(ctx context.Context, dmKey string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		Where("dm_key = ?", dmKey).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateWithMembers inserts the room and its memberships in one transaction.
// A duplicate dm_key surfaces as gorm.ErrDuplicatedKey when TranslateError is on.
func (r *RoomRepository) CreateWithMembers(ctx context.Context, room *domain.Room, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return err
		}
		members := make([]domain.RoomMember, len(memberIDs))
		for i, id := range memberIDs {
			members[i] = domain.RoomMember{RoomID: room.ID, UserID: id, JoinedAt: room.CreatedAt}
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
		room.Members = members
		return nil
	})
}

// ReplaceMembers renames the room and swaps its full membership in one transaction
func (r *RoomRepository) ReplaceMembers(ctx context.Context, roomID, name string, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Room{}).Where("id = ?", roomID).
			Updates(map[string]interface{}{"name": name, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ? AND user_id NOT IN ?", roomID, memberIDs).
			Delete(&domain.RoomMember{}).Error; err != nil {
			return err
		}
		members := make([]domain.RoomMember, len(memberIDs))
		for i, id := range memberIDs {
			members[i] = domain.RoomMember{RoomID: roomID, UserID: id}
		}
		// 기존 멤버는 joined_at 유지
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
}

// AddMember inserts a membership; an existing membership is left untouched
func (r *RoomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	member := &domain.RoomMember{RoomID: roomID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

// RemoveMember deletes a membership and reports whether a row was removed
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomMember{})
	return result.RowsAffected > 0, result.Error
}

// IsMember reports whether userID belongs to roomID
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// Members returns the member ids of a room
func (r *RoomRepository) Members(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ListForUser returns rooms the user belongs to, most recently active first
func (r *RoomRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Room, error) {
	var rooms []*domain.Room
	sub := r.db.Model(&domain.RoomMember{}).Select("room_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		Where("id IN (?)", sub).
		Order("updated_at DESC, id ASC").
		Find(&rooms).Error
	return rooms, err
}

// Touch bumps updated_at so the room sorts first in room lists
func (r *RoomRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("updated_at", at).Error
}

// Search returns rooms containing targetUserID.
// roomType narrows by type when non-empty; coMemberIDs must all be present in group rooms
// and are ignored for DM rooms.
func (r *RoomRepository) Search(ctx context.Context, targetUserID string, roomType domain.RoomType, coMemberIDs []string) ([]*domain.Room, error) {
	var rooms []*domain.Room

	targetRooms := r.db.Model(&domain.RoomMember{}).Select("room_id").Where("user_id = ?", targetUserID)
	query := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		Where("id IN (?)", targetRooms)

	if roomType != "" {
		query = query.Where("type = ?", roomType)
	}

	coMembers := domain.NormalizeMembers("", coMemberIDs)
	if len(coMembers) > 0 {
		// 그룹은 모든 공동 멤버를 포함해야 함
		withAll := r.db.Model(&domain.RoomMember{}).
			Select("room_id").
			Where("user_id IN ?", coMembers).
			Group("room_id").
			Having("COUNT(DISTINCT user_id) = ?", len(coMembers))
		query = query.Where("(type = ? OR id IN (?))", domain.RoomTypeDM, withAll)
	}

	err := query.Order("updated_at DESC, id ASC").Find(&rooms).Error
	return rooms, err
}
