package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInspectorStep is returned when an action does not fit the session's current step
var ErrInspectorStep = fmt.Errorf("inspector step does not allow this action: %w", common.ErrConflict)

// InspectorService audit-gated message inspection for administrators.
// Message content is only returned after the audit entry is committed.
type InspectorService interface {
	Search(ctx context.Context, q domain.InspectorQuery) ([]*domain.InspectorRoom, error)
	Open(ctx context.Context, adminID string) (*domain.InspectorSession, error)
	Get(ctx context.Context, adminID, sessionID string) (*domain.InspectorSession, error)
	Select(ctx context.Context, adminID, sessionID string, req domain.SelectRoomRequest) (*domain.InspectorSession, error)
	Submit(ctx context.Context, adminID, sessionID string, req domain.AccessRequest, meta domain.AuditMeta) (*domain.InspectorSession, error)
	Reset(ctx context.Context, adminID, sessionID string) (*domain.InspectorSession, error)
}

type inspectorService struct {
	rooms    *repository.RoomRepository
	messages *repository.MessageRepository
	audit    *repository.AuditRepository
	sessions *InspectorSessionStore
	now      func() time.Time
}

// NewInspectorService creates a new InspectorService
func NewInspectorService(
	rooms *repository.RoomRepository,
	messages *repository.MessageRepository,
	audit *repository.AuditRepository,
	sessions *InspectorSessionStore,
) InspectorService {
	return &inspectorService{
		rooms:    rooms,
		messages: messages,
		audit:    audit,
		sessions: sessions,
		now:      time.Now,
	}
}

func toInspectorRoom(r *domain.Room) *domain.InspectorRoom {
	return &domain.InspectorRoom{
		RoomID:    r.ID,
		Type:      r.Type,
		Name:      r.Name,
		MemberIDs: r.MemberIDs(),
		UpdatedAt: r.UpdatedAt,
	}
}

// Search filters room metadata only; no message content is read
func (s *inspectorService) Search(ctx context.Context, q domain.InspectorQuery) ([]*domain.InspectorRoom, error) {
	q.TargetUserID = strings.TrimSpace(q.TargetUserID)
	if q.TargetUserID == "" {
		return nil, common.NewValidationError("target_user_id", "대상 사용자 ID를 입력해주세요")
	}

	roomType, _ := q.ChatType.RoomType()
	rooms, err := s.rooms.Search(ctx, q.TargetUserID, roomType, q.CoMemberIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.InspectorRoom, len(rooms))
	for i, r := range rooms {
		out[i] = toInspectorRoom(r)
	}
	return out, nil
}

// Open starts a new session in SEARCH
func (s *inspectorService) Open(ctx context.Context, adminID string) (*domain.InspectorSession, error) {
	sess := &domain.InspectorSession{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		Step:      domain.StepSearch,
		UpdatedAt: s.now(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns a session owned by adminID
func (s *inspectorService) Get(ctx context.Context, adminID, sessionID string) (*domain.InspectorSession, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// 다른 관리자의 세션은 존재하지 않는 것으로 취급
	if sess.AdminID != adminID {
		return nil, common.ErrSessionNotFound
	}
	return sess, nil
}

// Select picks a room containing the target user and moves to CONFIRM_ACCESS
func (s *inspectorService) Select(ctx context.Context, adminID, sessionID string, req domain.SelectRoomRequest) (*domain.InspectorSession, error) {
	sess, err := s.Get(ctx, adminID, sessionID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAdvanceInspector(sess.Step, domain.StepConfirmAccess) {
		return nil, ErrInspectorStep
	}

	room, err := s.rooms.FindByID(ctx, req.RoomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if !room.HasMember(req.TargetUserID) {
		return nil, common.NewValidationError("room_id", "대상 사용자가 참여한 대화방이 아닙니다")
	}

	sess.Step = domain.StepConfirmAccess
	sess.TargetUserID = req.TargetUserID
	sess.Room = toInspectorRoom(room)
	sess.Request = nil
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Submit validates the justification, then in one transaction writes the audit
// entry and loads the history. Content is returned only if the transaction commits.
func (s *inspectorService) Submit(ctx context.Context, adminID, sessionID string, req domain.AccessRequest, meta domain.AuditMeta) (*domain.InspectorSession, error) {
	sess, err := s.Get(ctx, adminID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step != domain.StepConfirmAccess || sess.Room == nil {
		return nil, ErrInspectorStep
	}

	req.Normalize()
	if err := common.ValidateStruct(&req); err != nil {
		return nil, err
	}

	var (
		entry    *domain.AuditLogEntry
		history  []*domain.Message
		snapshot *domain.Room
	)
	err = s.rooms.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.rooms.WithTx(tx).FindByID(ctx, sess.Room.RoomID)
		if err != nil {
			return err
		}
		snapshot = room

		entry, err = domain.NewAuditEntry(adminID, domain.AuditInspectorAccessGranted, "room", room.ID, meta,
			domain.InspectorAccessMetadata{
				AdminID:      adminID,
				TargetUserID: sess.TargetUserID,
				RoomID:       room.ID,
				MemberIDs:    room.MemberIDs(),
				Reason:       req.Reason,
				ReferenceID:  req.ReferenceID,
				Note:         req.Note,
			})
		if err != nil {
			return err
		}
		// 감사 기록이 먼저, 실패하면 열람도 실패
		if err := s.audit.WithTx(tx).Create(ctx, entry); err != nil {
			return fmt.Errorf("write audit entry: %w", err)
		}

		history, err = s.messages.WithTx(tx).ListByRoom(ctx, room.ID)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	inspectorGrants.WithLabelValues(string(req.Reason)).Inc()
	logger.GetLogger().Info().
		Str("admin_id", adminID).
		Str("room_id", snapshot.ID).
		Str("reason", string(req.Reason)).
		Uint64("audit_id", entry.ID).
		Msg("inspector access granted")

	sess.Step = domain.StepViewer
	sess.Room = toInspectorRoom(snapshot)
	sess.Request = &req
	sess.AuditID = entry.ID
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		// 감사 기록은 이미 남았으므로 내용은 반환
		logger.GetLogger().Warn().Err(err).Str("session_id", sess.ID).Msg("inspector session save failed")
	}
	sess.Messages = history
	return sess, nil
}

// Reset returns to SEARCH and drops loaded content. Audit entries stay.
func (s *inspectorService) Reset(ctx context.Context, adminID, sessionID string) (*domain.InspectorSession, error) {
	sess, err := s.Get(ctx, adminID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Reset()
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
