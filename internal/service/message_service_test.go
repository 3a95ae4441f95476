package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAppend_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")

	tests := []struct {
		name  string
		input AppendInput
		want  error
	}{
		{
			name:  "empty text",
			input: AppendInput{RoomID: room.ID, SenderID: "u1", Content: "   ", Type: domain.MessageTypeText},
			want:  common.ErrInvalidInput,
		},
		{
			name:  "image without url",
			input: AppendInput{RoomID: room.ID, SenderID: "u1", Content: "photo.png", Type: domain.MessageTypeImage},
			want:  common.ErrInvalidInput,
		},
		{
			name:  "unknown type",
			input: AppendInput{RoomID: room.ID, SenderID: "u1", Content: "x", Type: "video"},
			want:  common.ErrInvalidInput,
		},
		{
			name:  "bad link",
			input: AppendInput{RoomID: room.ID, SenderID: "u1", Content: "x", LinkURL: "http://localhost/admin"},
			want:  common.ErrInvalidInput,
		},
		{
			name:  "non member",
			input: AppendInput{RoomID: room.ID, SenderID: "u9", Content: "x"},
			want:  common.ErrNotRoomMember,
		},
		{
			name:  "missing room",
			input: AppendInput{RoomID: "nope", SenderID: "u1", Content: "x"},
			want:  common.ErrRoomNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.messages.Append(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Zero(t, env.count(t, &domain.Message{}, ""))
}

func TestAppend_BumpsRoomAndDefaultsToText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")

	msg, err := env.messages.Append(ctx, AppendInput{RoomID: room.ID, SenderID: "u1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeText, msg.Type)

	reloaded, err := env.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, msg.CreatedAt, reloaded.UpdatedAt, time.Millisecond)

	image, err := env.messages.Append(ctx, AppendInput{
		RoomID: room.ID, SenderID: "u2", Content: "https://cdn.example.com/chat/a.png", Type: domain.MessageTypeImage,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeImage, image.Type)
}

func TestAppend_ClientMsgIDIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")

	in := AppendInput{RoomID: room.ID, SenderID: "u1", Content: "once", ClientMsgID: "c-42"}
	first, err := env.messages.Append(ctx, in)
	require.NoError(t, err)
	second, err := env.messages.Append(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), env.count(t, &domain.Message{}, "room_id = ?", room.ID))
}

func TestHistory_Ordered(t *testing.T) {
	env := newTestEnv(t)
	room := env.dm(t, "u1", "u2")
	a := env.send(t, room.ID, "u1", "a")
	b := env.send(t, room.ID, "u2", "b")
	c := env.send(t, room.ID, "u1", "c")

	history, err := env.messages.History(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []uint64{a.ID, b.ID, c.ID}, []uint64{history[0].ID, history[1].ID, history[2].ID})
}

func TestMarkRead_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")
	env.send(t, room.ID, "u1", "a")
	env.send(t, room.ID, "u1", "b")
	env.send(t, room.ID, "u2", "own message")

	unread, err := env.messages.UnreadCount(ctx, room.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	inserted, err := env.messages.MarkRead(ctx, room.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	inserted, err = env.messages.MarkRead(ctx, room.ID, "u2")
	require.NoError(t, err)
	assert.Zero(t, inserted)

	assert.Equal(t, int64(2), env.count(t, &domain.ReadCursor{}, "user_id = ?", "u2"))

	_, err = env.messages.MarkRead(ctx, room.ID, "u9")
	assert.ErrorIs(t, err, common.ErrNotRoomMember)
}

func TestMarkRead_ConcurrentTabs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")
	for i := 0; i < 5; i++ {
		env.send(t, room.ID, "u1", "m")
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.messages.MarkRead(ctx, room.ID, "u2")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(5), env.count(t, &domain.ReadCursor{}, "user_id = ?", "u2"))
}

func TestRemove_SenderOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")
	msg := env.send(t, room.ID, "u1", "oops")

	assert.ErrorIs(t, env.messages.Remove(ctx, "u2", msg.ID), common.ErrNotSender)
	require.NoError(t, env.messages.Remove(ctx, "u1", msg.ID))
	assert.ErrorIs(t, env.messages.Remove(ctx, "u1", msg.ID), common.ErrMessageNotFound)

	// text messages never touch object storage
	env.objects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRemove_ObjectDeleteFailureIsOnlyAWarning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")

	url := "https://cdn.example.com/chat/voice.m4a"
	msg, err := env.messages.Append(ctx, AppendInput{RoomID: room.ID, SenderID: "u1", Content: url, Type: domain.MessageTypeAudio})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	env.objects.On("Delete", mock.Anything, url).Return(errors.New("s3 unavailable"))

	require.NoError(t, env.messages.Remove(ctx, "u1", msg.ID))
	env.objects.AssertExpectations(t)

	assert.Zero(t, env.count(t, &domain.Message{}, "id = ?", msg.ID))
	assert.Contains(t, buf.String(), "storage cleanup failed")
	assert.Contains(t, buf.String(), "s3 unavailable")
}

func TestSubscribe_HistoryThenLive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.dm(t, "u1", "u2")
	old := env.send(t, room.ID, "u1", "before")

	sub, err := env.messages.Subscribe(ctx, room.ID)
	require.NoError(t, err)
	defer sub.Close()

	next := func() *domain.Message {
		select {
		case msg := <-sub.Messages():
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for feed")
			return nil
		}
	}

	assert.Equal(t, old.ID, next().ID)

	live := env.send(t, room.ID, "u2", "after")
	assert.Equal(t, live.ID, next().ID)

	_, err = env.messages.Subscribe(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrRoomNotFound)
}
