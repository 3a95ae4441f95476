package handler

import (
	"context"
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// RoomHandler handles room directory HTTP requests
type RoomHandler struct {
	rooms    service.RoomService
	messages service.MessageService
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(rooms service.RoomService, messages service.MessageService) *RoomHandler {
	return &RoomHandler{rooms: rooms, messages: messages}
}

// requireRoomMember distinguishes a missing room from a room the caller is not in
func requireRoomMember(ctx context.Context, rooms service.RoomService, roomID, userID string) error {
	ok, err := rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := rooms.GetRoom(ctx, roomID); err != nil {
		return err
	}
	return common.ErrNotRoomMember
}

// ListRooms handles GET /rooms
// @Summary 내 대화방 목록 (최근 메시지 순)
// @Tags rooms
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.RoomResponse}
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	rooms, err := h.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	unread, err := h.messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	out := make([]*domain.RoomResponse, len(rooms))
	for i, r := range rooms {
		out[i] = r.ToResponse()
		out[i].Unread = unread[r.ID]
	}
	common.Success(c, out)
}

// OpenDM handles POST /rooms/dm
// @Summary 1:1 대화방 열기 (없으면 생성)
// @Tags rooms
// @Accept json
// @Produce json
// @Param request body domain.OpenDMRequest true "상대 사용자"
// @Success 200 {object} common.APIResponse{data=domain.RoomResponse}
// @Router /rooms/dm [post]
func (h *RoomHandler) OpenDM(c *gin.Context) {
	var req domain.OpenDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	room, err := h.rooms.ResolveOrCreateDM(c.Request.Context(), middleware.GetUserID(c), req.PeerID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, room.ToResponse())
}

// CreateGroup handles POST /rooms/groups
// @Summary 그룹 대화방 생성 (매장/관리자)
// @Tags rooms
// @Accept json
// @Produce json
// @Param request body domain.CreateGroupRequest true "그룹 정보"
// @Success 201 {object} common.APIResponse{data=domain.RoomResponse}
// @Router /rooms/groups [post]
func (h *RoomHandler) CreateGroup(c *gin.Context) {
	var req domain.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	room, err := h.rooms.CreateGroup(c.Request.Context(), middleware.GetActor(c), req.Name, req.MemberIDs)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Created(c, room.ToResponse())
}

// UpdateGroup handles PUT /rooms/groups/:id
// @Summary 그룹 이름/멤버 수정 (소유 매장만)
// @Tags rooms
// @Accept json
// @Produce json
// @Param id path string true "대화방 ID"
// @Param request body domain.UpdateGroupRequest true "그룹 정보"
// @Success 200 {object} common.APIResponse{data=domain.RoomResponse}
// @Router /rooms/groups/{id} [put]
func (h *RoomHandler) UpdateGroup(c *gin.Context) {
	var req domain.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	room, err := h.rooms.UpdateGroup(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.Name, req.MemberIDs)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, room.ToResponse())
}

// AddMember handles POST /rooms/groups/:id/members
// @Summary 그룹 멤버 추가
// @Tags rooms
// @Accept json
// @Param id path string true "대화방 ID"
// @Param request body domain.AddMemberRequest true "추가할 사용자"
// @Success 200 {object} common.APIResponse
// @Router /rooms/groups/{id}/members [post]
func (h *RoomHandler) AddMember(c *gin.Context) {
	var req domain.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	if err := h.rooms.AddMember(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.UserID); err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, gin.H{"room_id": c.Param("id"), "user_id": req.UserID})
}

// RemoveMember handles DELETE /rooms/groups/:id/members/:user_id
// @Summary 그룹 멤버 제거
// @Tags rooms
// @Param id path string true "대화방 ID"
// @Param user_id path string true "제거할 사용자"
// @Success 204
// @Router /rooms/groups/{id}/members/{user_id} [delete]
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	if err := h.rooms.RemoveMember(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Param("user_id")); err != nil {
		common.ErrorFrom(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
