package service

import (
	"context"
	"testing"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 하나의 커넥션 = 하나의 in-memory DB
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migration.Run(db))
	return db
}

// MockObjectStore is a mock implementation of ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Delete(ctx context.Context, objectURL string) error {
	args := m.Called(ctx, objectURL)
	return args.Error(0)
}

type testEnv struct {
	db        *gorm.DB
	hub       *ws.Hub
	objects   *MockObjectStore
	roomRepo  *repository.RoomRepository
	msgRepo   *repository.MessageRepository
	jobRepo   *repository.BroadcastRepository
	profiles  *repository.ProfileRepository
	auditRepo *repository.AuditRepository
	legalRepo *repository.LegalRepository
	cache     cache.Service

	rooms     RoomService
	messages  MessageService
	broadcast BroadcastService
	legal     LegalService
	inspector InspectorService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	hub := ws.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	env := &testEnv{
		db:        db,
		hub:       hub,
		objects:   new(MockObjectStore),
		roomRepo:  repository.NewRoomRepository(db),
		msgRepo:   repository.NewMessageRepository(db),
		jobRepo:   repository.NewBroadcastRepository(db),
		profiles:  repository.NewProfileRepository(db),
		auditRepo: repository.NewAuditRepository(db),
		legalRepo: repository.NewLegalRepository(db),
		cache:     cache.NewMemoryService(),
	}
	env.rooms = NewRoomService(env.roomRepo, env.cache)
	env.messages = NewMessageService(env.msgRepo, env.roomRepo, hub, env.objects)
	env.broadcast = NewBroadcastService(env.jobRepo, env.profiles, env.rooms, env.messages, 4)
	env.legal = NewLegalService(env.legalRepo, env.auditRepo)
	env.inspector = NewInspectorService(env.roomRepo, env.msgRepo, env.auditRepo,
		NewInspectorSessionStore(env.cache, 0))
	return env
}

func (e *testEnv) dm(t *testing.T, a, b string) *domain.Room {
	t.Helper()
	room, err := e.rooms.ResolveOrCreateDM(context.Background(), a, b)
	require.NoError(t, err)
	return room
}

func (e *testEnv) group(t *testing.T, owner string, members ...string) *domain.Room {
	t.Helper()
	room, err := e.rooms.CreateGroup(context.Background(),
		&domain.Profile{ID: owner, Role: domain.RoleStore}, owner+"-group", members)
	require.NoError(t, err)
	return room
}

func (e *testEnv) send(t *testing.T, roomID, sender, content string) *domain.Message {
	t.Helper()
	msg, err := e.messages.Append(context.Background(), AppendInput{
		RoomID: roomID, SenderID: sender, Content: content, Type: domain.MessageTypeText,
	})
	require.NoError(t, err)
	return msg
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
