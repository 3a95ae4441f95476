package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/damoang/angple-messenger/internal/domain"
)

// ErrHubStopped is returned when subscribing to a stopped hub
var ErrHubStopped = errors.New("realtime hub stopped")

// HistoryFunc loads the full ordered history of a room
type HistoryFunc func(ctx context.Context) ([]*domain.Message, error)

// Subscription live feed of one room: full history first, then new messages.
// Each message id is delivered at most once. Close (or canceling the context
// passed to Subscribe) must be called to release the hub listener.
type Subscription struct {
	roomID string
	out    chan *domain.Message
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe registers on the hub before loading history so no insert committed
// after the history read is missed; overlap is removed by id.
func (h *Hub) Subscribe(ctx context.Context, roomID string, history HistoryFunc) (*Subscription, error) {
	l, ok := h.listen(roomID)
	if !ok {
		return nil, ErrHubStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		roomID: roomID,
		out:    make(chan *domain.Message),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, h, l, history)
	return s, nil
}

func (s *Subscription) run(ctx context.Context, h *Hub, l *listener, history HistoryFunc) {
	defer close(s.done)
	defer close(s.out)
	defer h.unlisten(l)

	seen := make(map[uint64]bool)
	emit := func(msg *domain.Message) bool {
		if seen[msg.ID] {
			return true
		}
		seen[msg.ID] = true
		select {
		case s.out <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	messages, err := history(ctx)
	if err != nil {
		s.setErr(err)
		return
	}
	for _, msg := range messages {
		if !emit(msg) {
			return
		}
	}

	for {
		select {
		case msg, ok := <-l.send:
			if !ok {
				// 허브가 구독을 끊음 (느린 소비자 또는 종료)
				s.setErr(ErrHubStopped)
				return
			}
			if !emit(msg) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// RoomID returns the subscribed room
func (s *Subscription) RoomID() string {
	return s.roomID
}

// Messages returns the feed. It is closed when the subscription ends.
func (s *Subscription) Messages() <-chan *domain.Message {
	return s.out
}

// Err reports why the feed ended; nil after a normal Close
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes and waits for the feed goroutine to exit
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}
