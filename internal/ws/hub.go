package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const (
	redisPubSubChannel = "messenger:rooms"
	listenerBuffer     = 256
)

var activeSubscriptions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "messenger_active_subscriptions",
		Help: "Number of live room subscriptions on this instance",
	},
)

// listener receives live messages of one room
type listener struct {
	roomID string
	send   chan *domain.Message
}

// Hub fans out appended messages to room listeners, across instances via Redis
type Hub struct {
	// Registered listeners grouped by room ID
	rooms map[string]map[*listener]bool

	register   chan *listener
	unregister chan *listener
	broadcast  chan *domain.Message

	instanceID  string
	mu          sync.RWMutex
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHub creates a new Hub. redisClient may be nil for single-instance mode.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:       make(map[string]map[*listener]bool),
		register:    make(chan *listener),
		unregister:  make(chan *listener),
		broadcast:   make(chan *domain.Message, 256),
		instanceID:  uuid.NewString(),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case l := <-h.register:
			h.mu.Lock()
			if h.rooms[l.roomID] == nil {
				h.rooms[l.roomID] = make(map[*listener]bool)
			}
			h.rooms[l.roomID][l] = true
			h.mu.Unlock()
			activeSubscriptions.Inc()

		case l := <-h.unregister:
			h.remove(l)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for l := range h.rooms[msg.RoomID] {
				select {
				case l.send <- msg:
				default:
					// 느린 구독자는 끊고 재구독 시 히스토리로 복구
					h.dropLocked(l)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for _, listeners := range h.rooms {
				for l := range listeners {
					h.dropLocked(l)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(l)
}

// dropLocked closes l and removes it; h.mu must be held
func (h *Hub) dropLocked(l *listener) {
	listeners, ok := h.rooms[l.roomID]
	if !ok || !listeners[l] {
		return
	}
	delete(listeners, l)
	close(l.send)
	if len(listeners) == 0 {
		delete(h.rooms, l.roomID)
	}
	activeSubscriptions.Dec()
}

// listen registers a listener for roomID. Returns false once the hub is stopped.
func (h *Hub) listen(roomID string) (*listener, bool) {
	if h.ctx.Err() != nil {
		return nil, false
	}
	l := &listener{roomID: roomID, send: make(chan *domain.Message, listenerBuffer)}
	select {
	case h.register <- l:
		return l, true
	case <-h.ctx.Done():
		return nil, false
	}
}

// unlisten removes a listener; safe after the hub stopped
func (h *Hub) unlisten(l *listener) {
	select {
	case h.unregister <- l:
	case <-h.ctx.Done():
	}
}

// Listeners returns the number of local listeners of a room
func (h *Hub) Listeners(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Publish delivers msg to local listeners and other instances
func (h *Hub) Publish(ctx context.Context, msg *domain.Message) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
		return
	case <-ctx.Done():
		return
	}

	// Publish to Redis for multi-instance support
	if h.redisClient != nil {
		data, err := json.Marshal(&redisMessage{Origin: h.instanceID, Message: msg})
		if err != nil {
			return
		}
		if err := h.redisClient.Publish(ctx, redisPubSubChannel, data).Err(); err != nil {
			logger.GetLogger().Warn().Err(err).Str("room_id", msg.RoomID).Msg("room publish to redis failed")
		}
	}
}

type redisMessage struct {
	Origin  string          `json:"origin"`
	Message *domain.Message `json:"message"`
}

// subscribeRedis listens for messages published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil || rm.Message == nil {
				continue
			}
			if rm.Origin == h.instanceID {
				continue
			}
			// Only local broadcast (don't re-publish to Redis)
			select {
			case h.broadcast <- rm.Message:
			case <-h.ctx.Done():
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
