package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreateDM_ConcurrentPairsShareOneRoom(t *testing.T) {
	env := newTestEnv(t)
	// 캐시 없이 DB 제약만으로 수렴하는지 확인
	rooms := NewRoomService(env.roomRepo, nil)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			a, b := "u1", "u2"
			if i%2 == 1 {
				a, b = b, a
			}
			room, err := rooms.ResolveOrCreateDM(ctx, a, b)
			errs[i] = err
			if err == nil {
				ids[i] = room.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), env.count(t, &domain.Room{}, "type = ?", domain.RoomTypeDM))
	assert.Equal(t, int64(2), env.count(t, &domain.RoomMember{}, "room_id = ?", ids[0]))
}

func TestResolveOrCreateDM_UsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.dm(t, "u1", "u2")

	cached, err := env.cache.GetDMRoom(ctx, domain.DMKey("u1", "u2"))
	require.NoError(t, err)
	assert.Equal(t, room.ID, cached)

	again := env.dm(t, "u2", "u1")
	assert.Equal(t, room.ID, again.ID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, again.MemberIDs())
}

func TestResolveOrCreateDM_StaleCacheFallsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.SetDMRoom(ctx, domain.DMKey("u1", "u2"), "gone"))
	room := env.dm(t, "u1", "u2")
	assert.NotEqual(t, "gone", room.ID)
}

func TestResolveOrCreateDM_RejectsSelf(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.rooms.ResolveOrCreateDM(context.Background(), "u1", "u1")
	var vErr *common.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "peer_id", vErr.Field)
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.group(t, "store-1", "u1", "u2", "u1")
	assert.Equal(t, domain.RoomTypeGroup, room.Type)
	assert.Equal(t, "store-1", room.OwnerID)
	assert.Equal(t, []string{"store-1", "u1", "u2"}, room.MemberIDs())

	_, err := env.rooms.CreateGroup(ctx, &domain.Profile{ID: "u9", Role: domain.RoleUser}, "x", nil)
	assert.ErrorIs(t, err, common.ErrUnauthorizedMutation)

	// 관리할 수 없는 그룹은 만들 수도 없다
	_, err = env.rooms.CreateGroup(ctx, &domain.Profile{ID: "admin-1", Role: domain.RoleAdmin}, "x", []string{"u1"})
	assert.ErrorIs(t, err, common.ErrUnauthorizedMutation)

	_, err = env.rooms.CreateGroup(ctx, &domain.Profile{ID: "store-1", Role: domain.RoleStore}, "  ", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpdateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := &domain.Profile{ID: "store-1", Role: domain.RoleStore}
	room := env.group(t, "store-1", "u1", "u2")

	updated, err := env.rooms.UpdateGroup(ctx, owner, room.ID, "VIP", []string{"u3"})
	require.NoError(t, err)
	assert.Equal(t, "VIP", updated.Name)
	assert.ElementsMatch(t, []string{"store-1", "u3"}, updated.MemberIDs())

	_, err = env.rooms.UpdateGroup(ctx, &domain.Profile{ID: "u3", Role: domain.RoleStore}, room.ID, "x", nil)
	assert.ErrorIs(t, err, common.ErrUnauthorizedMutation)

	_, err = env.rooms.UpdateGroup(ctx, owner, "missing", "x", nil)
	assert.ErrorIs(t, err, common.ErrRoomNotFound)
}

func TestGroupCreatorCanAlwaysManageIt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleCast, domain.RoleStore, domain.RoleAdmin} {
		actor := &domain.Profile{ID: string(role) + "-owner", Role: role}
		room, err := env.rooms.CreateGroup(ctx, actor, "g", []string{"u1"})
		if err != nil {
			assert.ErrorIs(t, err, common.ErrUnauthorizedMutation, role)
			continue
		}
		assert.NoError(t, env.rooms.AddMember(ctx, actor, room.ID, "u2"), role)
		_, err = env.rooms.UpdateGroup(ctx, actor, room.ID, "g2", []string{"u3"})
		assert.NoError(t, err, role)
		assert.NoError(t, env.rooms.RemoveMember(ctx, actor, room.ID, "u3"), role)
	}
}

func TestMembershipMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := &domain.Profile{ID: "store-1", Role: domain.RoleStore}
	room := env.group(t, "store-1", "u1")

	require.NoError(t, env.rooms.AddMember(ctx, owner, room.ID, "u2"))
	members, err := env.rooms.Members(ctx, room.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"store-1", "u1", "u2"}, members)

	require.NoError(t, env.rooms.RemoveMember(ctx, owner, room.ID, "u1"))
	ok, err := env.rooms.IsMember(ctx, room.ID, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// owner cannot be removed
	assert.ErrorIs(t, env.rooms.RemoveMember(ctx, owner, room.ID, "store-1"), common.ErrInvalidMemberSet)

	// non-owner
	assert.ErrorIs(t, env.rooms.AddMember(ctx, &domain.Profile{ID: "u2", Role: domain.RoleUser}, room.ID, "u5"),
		common.ErrUnauthorizedMutation)

	// admin is not the owner either
	assert.ErrorIs(t, env.rooms.AddMember(ctx, &domain.Profile{ID: "admin-1", Role: domain.RoleAdmin}, room.ID, "u5"),
		common.ErrUnauthorizedMutation)

	// DM rooms are immutable
	dm := env.dm(t, "store-1", "u7")
	assert.ErrorIs(t, env.rooms.AddMember(ctx, owner, dm.ID, "u8"), common.ErrUnauthorizedMutation)
}

func TestListRoomsForUser_MostRecentFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.dm(t, "u1", "u2")
	second := env.dm(t, "u1", "u3")
	env.send(t, second.ID, "u3", "hi")
	env.send(t, first.ID, "u2", "later")

	rooms, err := env.rooms.ListRoomsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID)
	assert.Equal(t, second.ID, rooms[1].ID)
}
