package handler

import (
	"net/http"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// LegalHandler handles takedown inquiry HTTP requests
type LegalHandler struct {
	service service.LegalService
}

// NewLegalHandler creates a new LegalHandler
func NewLegalHandler(service service.LegalService) *LegalHandler {
	return &LegalHandler{service: service}
}

// File handles POST /legal/inquiries
// @Summary 게시중단(권리침해) 요청 접수
// @Tags legal
// @Accept json
// @Produce json
// @Param request body domain.FileLegalInquiryRequest true "요청 내용"
// @Success 201 {object} common.APIResponse{data=domain.LegalInquiryResponse}
// @Router /legal/inquiries [post]
func (h *LegalHandler) File(c *gin.Context) {
	var req domain.FileLegalInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	inquiry, err := h.service.File(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Created(c, inquiry.ToResponse(time.Now()))
}

// List handles GET /admin/legal/inquiries
// @Summary 게시중단 요청 목록 (관리자)
// @Tags admin-legal
// @Produce json
// @Param status query string false "RECEIVED | INQUIRY_SENT | AGREED_DELETE | REFUSED_DELETE | COMPLETED"
// @Param page query int false "페이지"
// @Param per_page query int false "페이지 크기"
// @Success 200 {object} common.APIResponse{data=[]domain.LegalInquiryResponse}
// @Router /admin/legal/inquiries [get]
func (h *LegalHandler) List(c *gin.Context) {
	page := ginutil.QueryInt(c, "page", 1)
	perPage := ginutil.QueryInt(c, "per_page", 20)

	inquiries, meta, err := h.service.List(c.Request.Context(), domain.LegalStatus(c.Query("status")), page, perPage)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	now := time.Now()
	out := make([]*domain.LegalInquiryResponse, len(inquiries))
	for i, inq := range inquiries {
		out[i] = inq.ToResponse(now)
	}
	common.SuccessWithMeta(c, out, meta)
}

// Get handles GET /admin/legal/inquiries/:id
// @Summary 게시중단 요청 상세 (회신 기한 포함)
// @Tags admin-legal
// @Produce json
// @Param id path int true "요청 ID"
// @Success 200 {object} common.APIResponse{data=domain.LegalInquiryResponse}
// @Router /admin/legal/inquiries/{id} [get]
func (h *LegalHandler) Get(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 요청 ID입니다", nil)
		return
	}

	inquiry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, inquiry.ToResponse(time.Now()))
}

// Transition handles POST /admin/legal/inquiries/:id/transition
// @Summary 처리 상태 전이. expected 가 현재 상태와 다르면 409
// @Tags admin-legal
// @Accept json
// @Produce json
// @Param id path int true "요청 ID"
// @Param request body domain.LegalTransitionRequest true "현재 상태 → 다음 상태"
// @Success 200 {object} common.APIResponse{data=domain.LegalInquiryResponse}
// @Failure 409 {object} common.APIResponse "다른 관리자가 먼저 변경함"
// @Router /admin/legal/inquiries/{id}/transition [post]
func (h *LegalHandler) Transition(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 요청 ID입니다", nil)
		return
	}

	var req domain.LegalTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}

	inquiry, err := h.service.Transition(c.Request.Context(), middleware.GetUserID(c), id,
		req.Expected, req.Next, middleware.AuditMeta(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, inquiry.ToResponse(time.Now()))
}
