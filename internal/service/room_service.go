package service

import (
	"context"
	"errors"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomService room directory: DM resolution, groups and membership
type RoomService interface {
	ResolveOrCreateDM(ctx context.Context, a, b string) (*domain.Room, error)
	CreateGroup(ctx context.Context, actor *domain.Profile, name string, memberIDs []string) (*domain.Room, error)
	UpdateGroup(ctx context.Context, actor *domain.Profile, roomID, name string, memberIDs []string) (*domain.Room, error)
	AddMember(ctx context.Context, actor *domain.Profile, roomID, userID string) error
	RemoveMember(ctx context.Context, actor *domain.Profile, roomID, userID string) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]*domain.Room, error)
	Members(ctx context.Context, roomID string) ([]string, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

type roomService struct {
	repo  *repository.RoomRepository
	cache cache.Service
}

// NewRoomService creates a new RoomService. cacheSvc may be nil.
func NewRoomService(repo *repository.RoomRepository, cacheSvc cache.Service) RoomService {
	return &roomService{repo: repo, cache: cacheSvc}
}

// ResolveOrCreateDM returns the unique DM room of a and b, creating it on first use.
// Concurrent callers for (a,b) and (b,a) converge on the same room via the dm_key unique index.
func (s *roomService) ResolveOrCreateDM(ctx context.Context, a, b string) (*domain.Room, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, common.NewValidationError("peer_id", "대화 상대가 필요합니다")
	}
	if a == b {
		return nil, common.NewValidationError("peer_id", "자기 자신과의 대화방은 만들 수 없습니다")
	}

	key := domain.DMKey(a, b)
	if room, ok := s.cachedDM(ctx, key); ok {
		return room, nil
	}

	room, err := s.repo.FindByDMKey(ctx, key)
	if err == nil {
		s.rememberDM(ctx, key, room.ID)
		return room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = &domain.Room{
		ID:    uuid.NewString(),
		Type:  domain.RoomTypeDM,
		DMKey: &key,
	}
	if err := s.repo.CreateWithMembers(ctx, room, []string{a, b}); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// 동시 생성 경합에서 진 경우 승자의 방을 다시 읽음
		room, err = s.repo.FindByDMKey(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	s.rememberDM(ctx, key, room.ID)
	return room, nil
}

func (s *roomService) cachedDM(ctx context.Context, key string) (*domain.Room, bool) {
	if s.cache == nil || !s.cache.IsAvailable() {
		return nil, false
	}
	roomID, err := s.cache.GetDMRoom(ctx, key)
	if err != nil {
		return nil, false
	}
	room, err := s.repo.FindByID(ctx, roomID)
	if err != nil {
		// 캐시가 오래된 경우 DB 조회로 진행
		_ = s.cache.Delete(ctx, cache.PrefixDMRoom+key)
		return nil, false
	}
	return room, true
}

func (s *roomService) rememberDM(ctx context.Context, key, roomID string) {
	if s.cache == nil || !s.cache.IsAvailable() {
		return
	}
	if err := s.cache.SetDMRoom(ctx, key, roomID); err != nil {
		logger.GetLogger().Debug().Err(err).Str("dm_key", key).Msg("dm room cache write failed")
	}
}

// CreateGroup creates a group owned by actor; the owner is always a member
func (s *roomService) CreateGroup(ctx context.Context, actor *domain.Profile, name string, memberIDs []string) (*domain.Room, error) {
	if actor == nil || !domain.CanAccess(actor.Role, domain.ResourceGroupManage) {
		return nil, common.ErrUnauthorizedMutation
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("name", "그룹 이름을 입력해주세요")
	}

	if actor.ID == "" {
		return nil, common.ErrInvalidMemberSet
	}

	members := domain.NormalizeMembers(actor.ID, memberIDs)
	room := &domain.Room{
		ID:      uuid.NewString(),
		Type:    domain.RoomTypeGroup,
		Name:    name,
		OwnerID: actor.ID,
	}
	if err := s.repo.CreateWithMembers(ctx, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// loadMutableGroup returns the group if actor may change its membership
func (s *roomService) loadMutableGroup(ctx context.Context, actor *domain.Profile, roomID string) (*domain.Room, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Type != domain.RoomTypeGroup {
		return nil, common.ErrUnauthorizedMutation
	}
	// 생성 권한과 같은 조건: group.manage 를 가진 소유자만
	if actor == nil || actor.ID != room.OwnerID || !domain.CanAccess(actor.Role, domain.ResourceGroupManage) {
		return nil, common.ErrUnauthorizedMutation
	}
	return room, nil
}

// UpdateGroup replaces name and full membership atomically; the owner is retained
func (s *roomService) UpdateGroup(ctx context.Context, actor *domain.Profile, roomID, name string, memberIDs []string) (*domain.Room, error) {
	room, err := s.loadMutableGroup(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("name", "그룹 이름을 입력해주세요")
	}

	members := domain.NormalizeMembers(room.OwnerID, memberIDs)
	if len(members) == 0 {
		return nil, common.ErrInvalidMemberSet
	}

	if err := s.repo.ReplaceMembers(ctx, roomID, name, members); err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, roomID)
}

// AddMember adds userID to a group owned by actor
func (s *roomService) AddMember(ctx context.Context, actor *domain.Profile, roomID, userID string) error {
	if _, err := s.loadMutableGroup(ctx, actor, roomID); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return common.ErrInvalidMemberSet
	}
	return s.repo.AddMember(ctx, roomID, userID)
}

// RemoveMember removes userID from a group owned by actor. The owner cannot be removed.
func (s *roomService) RemoveMember(ctx context.Context, actor *domain.Profile, roomID, userID string) error {
	room, err := s.loadMutableGroup(ctx, actor, roomID)
	if err != nil {
		return err
	}
	if userID == room.OwnerID {
		return common.ErrInvalidMemberSet
	}
	// 이미 없는 멤버 제거는 성공으로 처리
	_, err = s.repo.RemoveMember(ctx, roomID, userID)
	return err
}

// GetRoom returns a room with its members
func (s *roomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.repo.FindByID(ctx, roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns the user's rooms, most recent activity first
func (s *roomService) ListRoomsForUser(ctx context.Context, userID string) ([]*domain.Room, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Members returns the member ids of a room
func (s *roomService) Members(ctx context.Context, roomID string) ([]string, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.MemberIDs(), nil
}

// IsMember reports whether userID belongs to roomID
func (s *roomService) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.repo.IsMember(ctx, roomID, userID)
}
