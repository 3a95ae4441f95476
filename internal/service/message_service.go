package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/damoang/angple-messenger/pkg/logger"
	"gorm.io/gorm"
)

// publishTimeout bounds live fan-out of an already committed message
const publishTimeout = 5 * time.Second

// ObjectStore deletes uploaded media referenced by messages
type ObjectStore interface {
	Delete(ctx context.Context, objectURL string) error
}

// AppendInput a message to write
type AppendInput struct {
	RoomID      string
	SenderID    string
	Content     string
	Type        domain.MessageType
	LinkURL     string
	ClientMsgID string // optional idempotency key, unique per (room, sender)
}

// MessageService message store and live sync
type MessageService interface {
	Append(ctx context.Context, in AppendInput) (*domain.Message, error)
	History(ctx context.Context, roomID string) ([]*domain.Message, error)
	Subscribe(ctx context.Context, roomID string) (*ws.Subscription, error)
	MarkRead(ctx context.Context, roomID, userID string) (int64, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int64, error)
	UnreadCounts(ctx context.Context, roomIDs []string, userID string) (map[string]int64, error)
	Remove(ctx context.Context, actorID string, messageID uint64) error
}

type messageService struct {
	repo    *repository.MessageRepository
	rooms   *repository.RoomRepository
	hub     *ws.Hub
	objects ObjectStore
	now     func() time.Time
}

// NewMessageService creates a new MessageService. hub and objects may be nil.
func NewMessageService(repo *repository.MessageRepository, rooms *repository.RoomRepository, hub *ws.Hub, objects ObjectStore) MessageService {
	return &messageService{
		repo:    repo,
		rooms:   rooms,
		hub:     hub,
		objects: objects,
		now:     time.Now,
	}
}

func validateAppend(in *AppendInput) error {
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if !in.Type.Valid() {
		return common.NewValidationError("type", "지원하지 않는 메시지 형식입니다")
	}

	if in.Type.IsObjectReference() {
		in.Content = strings.TrimSpace(in.Content)
		if !common.IsResolvableReference(in.Content) {
			return common.NewValidationError("content", "파일 URL이 올바르지 않습니다")
		}
	} else if strings.TrimSpace(in.Content) == "" {
		return common.NewValidationError("content", "메시지 내용을 입력해주세요")
	}

	if err := common.ValidateLinkURL(in.LinkURL); err != nil {
		return err
	}
	in.ClientMsgID = strings.TrimSpace(in.ClientMsgID)
	return nil
}

// requireMember distinguishes a missing room from a non-member caller
func (s *messageService) requireMember(ctx context.Context, roomID, userID string) error {
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.rooms.FindByID(ctx, roomID); errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrRoomNotFound
	} else if err != nil {
		return err
	}
	return common.ErrNotRoomMember
}

// Append validates and writes a message, bumps the room's updated_at, then publishes it
func (s *messageService) Append(ctx context.Context, in AppendInput) (*domain.Message, error) {
	if err := validateAppend(&in); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, in.RoomID, in.SenderID); err != nil {
		return nil, err
	}

	if in.ClientMsgID != "" {
		existing, err := s.repo.FindByClientMsgID(ctx, in.RoomID, in.SenderID, in.ClientMsgID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	msg := &domain.Message{
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		Type:      in.Type,
		LinkURL:   in.LinkURL,
		CreatedAt: s.now(),
	}
	if in.ClientMsgID != "" {
		key := in.ClientMsgID
		msg.ClientMsgID = &key
	}

	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.rooms.WithTx(tx).Touch(ctx, msg.RoomID, msg.CreatedAt)
	})
	if err != nil {
		if in.ClientMsgID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			// 같은 키로 동시에 들어온 재시도
			return s.repo.FindByClientMsgID(ctx, in.RoomID, in.SenderID, in.ClientMsgID)
		}
		return nil, err
	}

	messagesAppended.WithLabelValues(string(msg.Type)).Inc()
	if s.hub != nil {
		// 커밋된 메시지는 호출자가 끊겨도 실시간 전파
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		s.hub.Publish(pubCtx, msg)
		cancel()
	}
	return msg, nil
}

// History returns the full room history ordered by created_at, then id
func (s *messageService) History(ctx context.Context, roomID string) ([]*domain.Message, error) {
	return s.repo.ListByRoom(ctx, roomID)
}

// Subscribe opens a live feed: history first, then new messages, deduplicated by id
func (s *messageService) Subscribe(ctx context.Context, roomID string) (*ws.Subscription, error) {
	if s.hub == nil {
		return nil, ws.ErrHubStopped
	}
	if _, err := s.rooms.FindByID(ctx, roomID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRoomNotFound
	} else if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, roomID, func(ctx context.Context) ([]*domain.Message, error) {
		return s.History(ctx, roomID)
	})
}

// MarkRead inserts missing read cursors for messages by others. Safe to repeat.
func (s *messageService) MarkRead(ctx context.Context, roomID, userID string) (int64, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}

	ids, err := s.repo.UnreadMessageIDs(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.now()
	cursors := make([]domain.ReadCursor, len(ids))
	for i, id := range ids {
		cursors[i] = domain.ReadCursor{MessageID: id, UserID: userID, ReadAt: now}
	}
	return s.repo.InsertReadCursors(ctx, cursors)
}

// UnreadCount counts messages by others the user has not read
func (s *messageService) UnreadCount(ctx context.Context, roomID, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, roomID, userID)
}

// UnreadCounts returns unread counts keyed by room id; missing rooms have none
func (s *messageService) UnreadCounts(ctx context.Context, roomIDs []string, userID string) (map[string]int64, error) {
	return s.repo.CountUnreadByRoom(ctx, roomIDs, userID)
}

// Remove deletes a message by its sender. Media cleanup is best-effort.
func (s *messageService) Remove(ctx context.Context, actorID string, messageID uint64) error {
	msg, err := s.repo.FindByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return common.ErrNotSender
	}

	if err := s.repo.Delete(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrMessageNotFound
		}
		return err
	}

	if msg.Type.IsObjectReference() && s.objects != nil {
		if err := s.objects.Delete(ctx, msg.Content); err != nil {
			storageCleanupFailures.Inc()
			logger.GetLogger().Warn().Err(err).
				Uint64("message_id", msg.ID).
				Str("room_id", msg.RoomID).
				Str("object_url", msg.Content).
				Msg("storage cleanup failed after message delete")
		}
	}
	return nil
}
