package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRooms fails DM resolution for the listed peers
type failingRooms struct {
	RoomService
	fail map[string]bool
}

func (f *failingRooms) ResolveOrCreateDM(ctx context.Context, a, b string) (*domain.Room, error) {
	if f.fail[a] || f.fail[b] {
		return nil, errors.New("room store unavailable")
	}
	return f.RoomService.ResolveOrCreateDM(ctx, a, b)
}

func (e *testEnv) broadcastFailingFor(ids ...string) BroadcastService {
	fail := make(map[string]bool, len(ids))
	for _, id := range ids {
		fail[id] = true
	}
	return NewBroadcastService(e.jobRepo, e.profiles, &failingRooms{RoomService: e.rooms, fail: fail}, e.messages, 4)
}

func TestSendNow_OneDMPerTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.broadcast.SendNow(ctx, SendInput{
		SenderID:      "store-1",
		TargetUserIDs: []string{"u1", "u2", "u1", "store-1"},
		Content:       "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Delivered)
	assert.Nil(t, result.Failures())

	for _, target := range []string{"u1", "u2"} {
		room, err := env.roomRepo.FindByDMKey(ctx, domain.DMKey("store-1", target))
		require.NoError(t, err)
		history, err := env.messages.History(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "Hello", history[0].Content)
		assert.Equal(t, domain.MessageTypeText, history[0].Type)
	}
	assert.Equal(t, int64(2), env.count(t, &domain.Room{}, "type = ?", domain.RoomTypeDM))
}

func TestSendNow_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := env.broadcastFailingFor("u3")

	result, err := svc.SendNow(context.Background(), SendInput{
		SenderID:      "store-1",
		TargetUserIDs: []string{"u1", "u2", "u3", "u4", "u5"},
		Content:       "sale today",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Delivered)

	failures := result.Failures()
	require.NotNil(t, failures)
	assert.Equal(t, []string{"u3"}, failures.FailedIDs())
	assert.Equal(t, 4, failures.Delivered)
	assert.Equal(t, int64(4), env.count(t, &domain.Message{}, ""))
}

// cancelAfterFirst cancels the caller's context once the first DM resolves
type cancelAfterFirst struct {
	RoomService
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) ResolveOrCreateDM(ctx context.Context, a, b string) (*domain.Room, error) {
	room, err := c.RoomService.ResolveOrCreateDM(ctx, a, b)
	c.once.Do(c.cancel)
	return room, err
}

func TestSendNow_CallerCancelDoesNotStopDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// u3 의 방은 미리 만들고 구독
	live := env.dm(t, "store-1", "u3")
	sub, err := env.messages.Subscribe(context.Background(), live.ID)
	require.NoError(t, err)
	defer sub.Close()

	rooms := &cancelAfterFirst{RoomService: env.rooms, cancel: cancel}
	svc := NewBroadcastService(env.jobRepo, env.profiles, rooms, env.messages, 1)

	targets := []string{"u1", "u2", "u3", "u4", "u5"}
	result, err := svc.SendNow(ctx, SendInput{
		SenderID:      "store-1",
		TargetUserIDs: targets,
		Content:       "오픈 안내",
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 5, result.Delivered)
	assert.Nil(t, result.Failures())

	for _, target := range targets {
		room, err := env.roomRepo.FindByDMKey(context.Background(), domain.DMKey("store-1", target))
		require.NoError(t, err, target)
		history, err := env.messages.History(context.Background(), room.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1, target)
	}

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "오픈 안내", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("committed message was not published")
	}
}

func TestSendNow_ImageBeforeText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.broadcast.SendNow(ctx, SendInput{
		SenderID:      "store-1",
		TargetUserIDs: []string{"u1"},
		Content:       "new menu",
		ImageURL:      "https://cdn.example.com/menu.png",
		LinkURL:       "https://example.com/menu",
	})
	require.NoError(t, err)

	room, err := env.roomRepo.FindByDMKey(ctx, domain.DMKey("store-1", "u1"))
	require.NoError(t, err)
	history, err := env.messages.History(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, domain.MessageTypeImage, history[0].Type)
	assert.Empty(t, history[0].LinkURL)
	assert.Equal(t, domain.MessageTypeText, history[1].Type)
	assert.Equal(t, "https://example.com/menu", history[1].LinkURL)
}

func TestSendNow_ImageOnlyCarriesLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.broadcast.SendNow(ctx, SendInput{
		SenderID:      "store-1",
		TargetUserIDs: []string{"u1"},
		ImageURL:      "https://cdn.example.com/menu.png",
		LinkURL:       "https://example.com/menu",
	})
	require.NoError(t, err)

	room, err := env.roomRepo.FindByDMKey(ctx, domain.DMKey("store-1", "u1"))
	require.NoError(t, err)
	history, err := env.messages.History(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "https://example.com/menu", history[0].LinkURL)
}

func TestSendNow_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.broadcast.SendNow(ctx, SendInput{SenderID: "store-1", TargetUserIDs: []string{"u1"}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = env.broadcast.SendNow(ctx, SendInput{SenderID: "store-1", TargetUserIDs: []string{"store-1"}, Content: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = env.broadcast.SendNow(ctx, SendInput{
		SenderID: "store-1", TargetUserIDs: []string{"u1"}, Content: "x", LinkURL: "javascript:alert(1)",
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.Zero(t, env.count(t, &domain.Room{}, ""))
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.broadcast.Schedule(ctx, ScheduleInput{
		SendInput:   SendInput{SenderID: "store-1", TargetUserIDs: []string{"u1"}, Content: "x"},
		ScheduledAt: time.Now().Add(-time.Minute),
	})
	var vErr *common.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "scheduled_at", vErr.Field)

	jobID, err := env.broadcast.Schedule(ctx, ScheduleInput{
		SendInput:   SendInput{SenderID: "store-1", TargetUserIDs: []string{"u1", "u2", "u2"}, Content: "later"},
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	job, err := env.broadcast.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.TargetCount)
	require.Len(t, job.Recipients, 2)
	for _, r := range job.Recipients {
		assert.Equal(t, domain.RecipientPending, r.Status)
	}

	// 예약만 하고 아무것도 보내지 않음
	assert.Zero(t, env.count(t, &domain.Message{}, ""))
	assert.Zero(t, env.count(t, &domain.Room{}, ""))
}

func scheduleJob(t *testing.T, env *testEnv, targets ...string) uint64 {
	t.Helper()
	id, err := env.broadcast.Schedule(context.Background(), ScheduleInput{
		SendInput:   SendInput{SenderID: "store-1", TargetUserIDs: targets, Content: "scheduled"},
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return id
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := &domain.Profile{ID: "store-1", Role: domain.RoleStore}

	t.Run("other sender is forbidden", func(t *testing.T) {
		id := scheduleJob(t, env, "u1")
		err := env.broadcast.Cancel(ctx, &domain.Profile{ID: "store-2", Role: domain.RoleStore}, id)
		assert.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("sender cancels pending", func(t *testing.T) {
		id := scheduleJob(t, env, "u1")
		require.NoError(t, env.broadcast.Cancel(ctx, store, id))
		_, err := env.broadcast.GetJob(ctx, id)
		assert.ErrorIs(t, err, common.ErrJobNotFound)
		assert.Zero(t, env.count(t, &domain.BroadcastRecipient{}, "job_id = ?", id))
	})

	t.Run("admin cancels", func(t *testing.T) {
		id := scheduleJob(t, env, "u1")
		require.NoError(t, env.broadcast.Cancel(ctx, &domain.Profile{ID: "admin-1", Role: domain.RoleAdmin}, id))
	})

	t.Run("claimed job is not pending", func(t *testing.T) {
		id := scheduleJob(t, env, "u1")
		ok, err := env.jobRepo.Claim(ctx, id, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		assert.ErrorIs(t, env.broadcast.Cancel(ctx, store, id), common.ErrJobNotPending)
	})

	t.Run("absent job", func(t *testing.T) {
		assert.ErrorIs(t, env.broadcast.Cancel(ctx, store, 9999), common.ErrJobNotFound)
	})
}

func TestClaimDue_OneWinnerPerJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		scheduleJob(t, env, "u1")
	}
	due := time.Now().Add(2 * time.Hour)

	const workers = 4
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		claimed = map[uint64]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs, err := env.broadcast.ClaimDue(ctx, due, 10)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, j := range jobs {
				claimed[j.ID]++
				assert.Equal(t, domain.JobStatusProcessing, j.Status)
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, 3)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %d claimed more than once", id)
	}

	// 아직 예약 시간이 안 된 작업은 가져가지 않음
	scheduleJob(t, env, "u2")
	jobs, err := env.broadcast.ClaimDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	due := time.Now().Add(2 * time.Hour)

	t.Run("partial delivery ends sent", func(t *testing.T) {
		id := scheduleJob(t, env, "u1", "u3")
		jobs, err := env.broadcast.ClaimDue(ctx, due, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		svc := env.broadcastFailingFor("u3")
		result, err := svc.Execute(ctx, jobs[0])
		require.NoError(t, err)
		assert.Equal(t, 1, result.Delivered)

		job, err := env.broadcast.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSent, job.Status)
		assert.Equal(t, 1, job.DeliveredCount)
		assert.NotNil(t, job.SentAt)

		statuses := map[string]domain.RecipientStatus{}
		for _, r := range job.Recipients {
			statuses[r.UserID] = r.Status
			if r.UserID == "u3" {
				assert.Contains(t, r.Error, "room store unavailable")
			}
		}
		assert.Equal(t, domain.RecipientSent, statuses["u1"])
		assert.Equal(t, domain.RecipientFailed, statuses["u3"])

		room, err := env.roomRepo.FindByDMKey(ctx, domain.DMKey("store-1", "u1"))
		require.NoError(t, err)
		var msg domain.Message
		require.NoError(t, env.db.Where("room_id = ?", room.ID).First(&msg).Error)
		require.NotNil(t, msg.ClientMsgID)
		assert.Contains(t, *msg.ClientMsgID, "-u1-txt")
	})

	t.Run("every recipient failing ends failed", func(t *testing.T) {
		id := scheduleJob(t, env, "u3")
		jobs, err := env.broadcast.ClaimDue(ctx, due, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		_, err = env.broadcastFailingFor("u3").Execute(ctx, jobs[0])
		require.NoError(t, err)

		job, err := env.broadcast.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Zero(t, job.DeliveredCount)
	})

	t.Run("pending job is rejected", func(t *testing.T) {
		id := scheduleJob(t, env, "u1")
		job, err := env.broadcast.GetJob(ctx, id)
		require.NoError(t, err)
		_, err = env.broadcast.Execute(ctx, job)
		assert.ErrorIs(t, err, common.ErrJobNotPending)
	})
}

func TestResolveTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, migration.SeedDemo(env.db))

	targets, err := env.broadcast.ResolveTargets(ctx, "store-1")
	require.NoError(t, err)

	direct := make([]string, len(targets.DirectUsers))
	for i, u := range targets.DirectUsers {
		direct[i] = u.ID
	}
	assert.ElementsMatch(t, []string{"u1", "u2"}, direct)

	require.Len(t, targets.CastGroups, 1)
	assert.Equal(t, "cast-1", targets.CastGroups[0].Cast.ID)
	// 대기 중인 연결(u2)은 제외
	assert.Equal(t, []string{"u3"}, targets.CastGroups[0].UserIDs)

	castTargets, err := env.broadcast.ResolveTargets(ctx, "cast-1")
	require.NoError(t, err)
	assert.Len(t, castTargets.DirectUsers, 1)
	assert.Empty(t, castTargets.CastGroups)

	_, err = env.broadcast.ResolveTargets(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
