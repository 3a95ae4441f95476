package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.BroadcastJob, error) {
	args := m.Called(ctx, now, limit)
	jobs, _ := args.Get(0).([]*domain.BroadcastJob)
	return jobs, args.Error(1)
}

func (m *mockRunner) Execute(ctx context.Context, job *domain.BroadcastJob) (*service.BroadcastResult, error) {
	args := m.Called(ctx, job)
	result, _ := args.Get(0).(*service.BroadcastResult)
	return result, args.Error(1)
}

func TestNewDispatcher_RejectsBadCron(t *testing.T) {
	_, err := NewDispatcher(new(mockRunner), "every minute", 10)
	assert.Error(t, err)

	d, err := NewDispatcher(new(mockRunner), "*/5 * * * *", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, d.batchSize)
}

func TestTick_ExecutesClaimedJobs(t *testing.T) {
	runner := new(mockRunner)
	d, err := NewDispatcher(runner, "* * * * *", 5)
	require.NoError(t, err)

	jobs := []*domain.BroadcastJob{{ID: 1, Status: domain.JobStatusProcessing}, {ID: 2, Status: domain.JobStatusProcessing}}
	runner.On("ClaimDue", mock.Anything, mock.Anything, 5).Return(jobs, nil)
	runner.On("Execute", mock.Anything, jobs[0]).Return(&service.BroadcastResult{Delivered: 3}, nil)
	runner.On("Execute", mock.Anything, jobs[1]).Return(&service.BroadcastResult{}, errors.New("recipient update failed"))

	n, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	runner.AssertExpectations(t)

	status := d.Status()
	assert.Equal(t, int64(1), status.RunCount)
	assert.Equal(t, int64(2), status.Executed)
	assert.Nil(t, status.LastError)
}

func TestTick_ClaimErrorIsRecorded(t *testing.T) {
	runner := new(mockRunner)
	d, err := NewDispatcher(runner, "* * * * *", 5)
	require.NoError(t, err)

	runner.On("ClaimDue", mock.Anything, mock.Anything, 5).Return(nil, errors.New("db down"))

	n, err := d.Tick(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	require.NotNil(t, d.Status().LastError)
	assert.Contains(t, *d.Status().LastError, "db down")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))
	return db
}

func TestTick_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	hub := ws.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	roomRepo := repository.NewRoomRepository(db)
	jobRepo := repository.NewBroadcastRepository(db)
	rooms := service.NewRoomService(roomRepo, nil)
	messages := service.NewMessageService(repository.NewMessageRepository(db), roomRepo, hub, nil)
	broadcast := service.NewBroadcastService(jobRepo, repository.NewProfileRepository(db), rooms, messages, 2)

	ctx := context.Background()
	jobID, err := broadcast.Schedule(ctx, service.ScheduleInput{
		SendInput:   service.SendInput{SenderID: "store-1", TargetUserIDs: []string{"u1", "u2"}, Content: "open at 6"},
		ScheduledAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	d, err := NewDispatcher(broadcast, "* * * * *", 10)
	require.NoError(t, err)

	// 예약 시간 전에는 아무것도 실행하지 않음
	n, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	d.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := broadcast.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSent, job.Status)
	assert.Equal(t, 2, job.DeliveredCount)

	// 두 번째 tick 에서 같은 job 을 다시 실행하지 않음
	n, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
