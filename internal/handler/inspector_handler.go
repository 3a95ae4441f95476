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

// InspectorHandler handles the admin message inspector.
// Message content only ever leaves through Submit.
type InspectorHandler struct {
	service service.InspectorService
	audit   *middleware.AuditLogger
}

// NewInspectorHandler creates a new InspectorHandler
func NewInspectorHandler(service service.InspectorService, audit *middleware.AuditLogger) *InspectorHandler {
	return &InspectorHandler{service: service, audit: audit}
}

// InspectorSessionResponse session with content rendered for the viewer
type InspectorSessionResponse struct {
	*domain.InspectorSession
	Messages []*domain.MessageResponse `json:"messages,omitempty"`
}

func toSessionResponse(s *domain.InspectorSession) *InspectorSessionResponse {
	resp := &InspectorSessionResponse{InspectorSession: s}
	if len(s.Messages) > 0 {
		resp.Messages = make([]*domain.MessageResponse, len(s.Messages))
		for i, m := range s.Messages {
			resp.Messages[i] = m.ToResponse()
		}
	}
	return resp
}

// Search handles GET /admin/inspector/rooms
// @Summary 대상 사용자의 대화방 검색 (메타데이터만)
// @Tags admin-inspector
// @Produce json
// @Param target_user_id query string true "대상 사용자 ID"
// @Param chat_type query string false "ALL | DM | GROUP"
// @Param co_member_ids query []string false "함께 참여한 사용자 (그룹만 적용)"
// @Success 200 {object} common.APIResponse{data=[]domain.InspectorRoom}
// @Router /admin/inspector/rooms [get]
func (h *InspectorHandler) Search(c *gin.Context) {
	rooms, err := h.service.Search(c.Request.Context(), domain.InspectorQuery{
		TargetUserID: c.Query("target_user_id"),
		ChatType:     domain.ParseChatTypeFilter(c.Query("chat_type")),
		CoMemberIDs:  ginutil.QueryList(c, "co_member_ids"),
	})
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, rooms)
}

// Open handles POST /admin/inspector/sessions
// @Summary 열람 세션 시작
// @Tags admin-inspector
// @Produce json
// @Success 201 {object} common.APIResponse{data=InspectorSessionResponse}
// @Router /admin/inspector/sessions [post]
func (h *InspectorHandler) Open(c *gin.Context) {
	sess, err := h.service.Open(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Created(c, toSessionResponse(sess))
}

// Get handles GET /admin/inspector/sessions/:id
// @Summary 열람 세션 상태
// @Tags admin-inspector
// @Produce json
// @Param id path string true "세션 ID"
// @Success 200 {object} common.APIResponse{data=InspectorSessionResponse}
// @Router /admin/inspector/sessions/{id} [get]
func (h *InspectorHandler) Get(c *gin.Context) {
	sess, err := h.service.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, toSessionResponse(sess))
}

// Select handles POST /admin/inspector/sessions/:id/select
// @Summary 대화방 선택 → 열람 사유 입력 단계
// @Tags admin-inspector
// @Accept json
// @Produce json
// @Param id path string true "세션 ID"
// @Param request body domain.SelectRoomRequest true "대화방 + 대상 사용자"
// @Success 200 {object} common.APIResponse{data=InspectorSessionResponse}
// @Router /admin/inspector/sessions/{id}/select [post]
func (h *InspectorHandler) Select(c *gin.Context) {
	var req domain.SelectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	sess, err := h.service.Select(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, toSessionResponse(sess))
}

// Submit handles POST /admin/inspector/sessions/:id/submit
// @Summary 열람 사유 제출. 감사 기록이 저장된 뒤에만 메시지를 반환
// @Tags admin-inspector
// @Accept json
// @Produce json
// @Param id path string true "세션 ID"
// @Param request body domain.AccessRequest true "사유 / 참조 번호 / 메모"
// @Success 200 {object} common.APIResponse{data=InspectorSessionResponse}
// @Failure 400 {object} common.APIResponse "필수 항목 누락"
// @Router /admin/inspector/sessions/{id}/submit [post]
func (h *InspectorHandler) Submit(c *gin.Context) {
	var req domain.AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	sess, err := h.service.Submit(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req, middleware.AuditMeta(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, toSessionResponse(sess))
}

// Reset handles POST /admin/inspector/sessions/:id/reset
// @Summary 검색 단계로 초기화 (감사 기록은 유지)
// @Tags admin-inspector
// @Produce json
// @Param id path string true "세션 ID"
// @Success 200 {object} common.APIResponse{data=InspectorSessionResponse}
// @Router /admin/inspector/sessions/{id}/reset [post]
func (h *InspectorHandler) Reset(c *gin.Context) {
	sess, err := h.service.Reset(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	h.audit.Log(c, domain.AuditInspectorReset, "inspector_session", sess.ID, nil)
	common.Success(c, toSessionResponse(sess))
}
