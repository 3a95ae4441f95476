package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler streams a room's live feed over WebSocket
type WSHandler struct {
	messages       service.MessageService
	rooms          service.RoomService
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(messages service.MessageService, rooms service.RoomService, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		messages:       messages,
		rooms:          rooms,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}
	if len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed || allowed == "*" {
			return true
		}
	}
	return false
}

// Connect handles GET /ws/rooms/:id: history replay, then live messages
// @Summary 대화방 실시간 구독 WebSocket
// @Tags messages
// @Param id path string true "대화방 ID"
// @Router /ws/rooms/{id} [get]
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := requireRoomMember(c.Request.Context(), h.rooms, roomID, userID); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	// 구독은 요청이 끝난 뒤에도 연결이 닫힐 때까지 유지
	sub, err := h.messages.Subscribe(context.WithoutCancel(c.Request.Context()), roomID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		logger.GetLogger().Warn().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, sub, userID)
	go client.WritePump()
	go client.ReadPump()
}
