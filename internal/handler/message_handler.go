package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// MessageHandler handles room message HTTP requests
type MessageHandler struct {
	messages service.MessageService
	rooms    service.RoomService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages service.MessageService, rooms service.RoomService) *MessageHandler {
	return &MessageHandler{messages: messages, rooms: rooms}
}

// ListMessages handles GET /rooms/:id/messages
// @Summary 대화방 메시지 내역 (오래된 순)
// @Tags messages
// @Produce json
// @Param id path string true "대화방 ID"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /rooms/{id}/messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	if err := requireRoomMember(ctx, h.rooms, roomID, middleware.GetUserID(c)); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	history, err := h.messages.History(ctx, roomID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	out := make([]*domain.MessageResponse, len(history))
	for i, m := range history {
		out[i] = m.ToResponse()
	}
	common.Success(c, out)
}

// SendMessage handles POST /rooms/:id/messages
// @Summary 메시지 보내기
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "대화방 ID"
// @Param request body domain.SendMessageRequest true "메시지"
// @Success 201 {object} common.APIResponse{data=domain.MessageResponse}
// @Router /rooms/{id}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), service.AppendInput{
		RoomID:      c.Param("id"),
		SenderID:    middleware.GetUserID(c),
		Content:     req.Content,
		Type:        req.Type,
		LinkURL:     req.LinkURL,
		ClientMsgID: req.ClientMsgID,
	})
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Created(c, msg.ToResponse())
}

// MarkRead handles POST /rooms/:id/read
// @Summary 대화방 읽음 처리
// @Tags messages
// @Produce json
// @Param id path string true "대화방 ID"
// @Success 200 {object} common.APIResponse
// @Router /rooms/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	marked, err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, gin.H{"marked": marked})
}

// UnreadCount handles GET /rooms/:id/unread
// @Summary 안 읽은 메시지 수
// @Tags messages
// @Produce json
// @Param id path string true "대화방 ID"
// @Success 200 {object} common.APIResponse
// @Router /rooms/{id}/unread [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	userID := middleware.GetUserID(c)
	if err := requireRoomMember(ctx, h.rooms, roomID, userID); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	unread, err := h.messages.UnreadCount(ctx, roomID, userID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, gin.H{"room_id": roomID, "unread": unread})
}

// DeleteMessage handles DELETE /messages/:id
// @Summary 내가 보낸 메시지 삭제
// @Tags messages
// @Param id path int true "메시지 ID"
// @Success 204
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 메시지 ID입니다", nil)
		return
	}

	if err := h.messages.Remove(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		common.ErrorFrom(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
