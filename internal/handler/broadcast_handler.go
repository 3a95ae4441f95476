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

// BroadcastHandler handles broadcast HTTP requests (store/cast only)
type BroadcastHandler struct {
	service service.BroadcastService
	audit   *middleware.AuditLogger
}

// NewBroadcastHandler creates a new BroadcastHandler
func NewBroadcastHandler(service service.BroadcastService, audit *middleware.AuditLogger) *BroadcastHandler {
	return &BroadcastHandler{service: service, audit: audit}
}

// FailedTarget one recipient that could not be delivered
type FailedTarget struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// BroadcastSendResponse result of an immediate broadcast
type BroadcastSendResponse struct {
	Delivered int            `json:"delivered"`
	Failed    []FailedTarget `json:"failed"`
}

// Targets handles GET /broadcasts/targets
// @Summary 발송 가능한 대상 (직접 연결 + 소속 캐스트별 연결)
// @Tags broadcasts
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.BroadcastTargets}
// @Router /broadcasts/targets [get]
func (h *BroadcastHandler) Targets(c *gin.Context) {
	targets, err := h.service.ResolveTargets(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Success(c, targets)
}

// Send handles POST /broadcasts
// @Summary 즉시 발송. 일부 대상 실패는 failed 목록으로 반환
// @Tags broadcasts
// @Accept json
// @Produce json
// @Param request body domain.SendBroadcastRequest true "발송 내용"
// @Success 200 {object} common.APIResponse{data=BroadcastSendResponse}
// @Router /broadcasts [post]
func (h *BroadcastHandler) Send(c *gin.Context) {
	var req domain.SendBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}
	if err := common.ValidateStruct(&req); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	result, err := h.service.SendNow(c.Request.Context(), service.SendInput{
		SenderID:      middleware.GetUserID(c),
		TargetUserIDs: req.TargetUserIDs,
		Content:       req.Content,
		ImageURL:      req.ImageURL,
		LinkURL:       req.LinkURL,
	})
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	resp := BroadcastSendResponse{Delivered: result.Delivered, Failed: []FailedTarget{}}
	if failures := result.Failures(); failures != nil {
		for _, id := range failures.FailedIDs() {
			ft := FailedTarget{UserID: id}
			if cause := failures.Failed[id]; cause != nil {
				ft.Error = cause.Error()
			}
			resp.Failed = append(resp.Failed, ft)
		}
	}
	common.Success(c, resp)
}

// Schedule handles POST /broadcasts/scheduled
// @Summary 예약 발송 등록
// @Tags broadcasts
// @Accept json
// @Produce json
// @Param request body domain.ScheduleBroadcastRequest true "발송 내용 + 예약 시각"
// @Success 201 {object} common.APIResponse{data=domain.BroadcastJobResponse}
// @Router /broadcasts/scheduled [post]
func (h *BroadcastHandler) Schedule(c *gin.Context) {
	var req domain.ScheduleBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", nil)
		return
	}
	if err := common.ValidateStruct(&req); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	ctx := c.Request.Context()
	jobID, err := h.service.Schedule(ctx, service.ScheduleInput{
		SendInput: service.SendInput{
			SenderID:      middleware.GetUserID(c),
			TargetUserIDs: req.TargetUserIDs,
			Content:       req.Content,
			ImageURL:      req.ImageURL,
			LinkURL:       req.LinkURL,
		},
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	job, err := h.service.GetJob(ctx, jobID)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}
	common.Created(c, job.ToResponse())
}

// ListScheduled handles GET /broadcasts/scheduled
// @Summary 내 예약 발송 목록
// @Tags broadcasts
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.BroadcastJobResponse}
// @Router /broadcasts/scheduled [get]
func (h *BroadcastHandler) ListScheduled(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	out := make([]*domain.BroadcastJobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = j.ToResponse()
	}
	common.Success(c, out)
}

// Cancel handles DELETE /broadcasts/scheduled/:id
// @Summary 대기 중인 예약 발송 취소
// @Tags broadcasts
// @Param id path int true "예약 ID"
// @Success 204
// @Failure 409 {object} common.APIResponse "이미 발송 중이거나 완료됨"
// @Router /broadcasts/scheduled/{id} [delete]
func (h *BroadcastHandler) Cancel(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 예약 ID입니다", nil)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		common.ErrorFrom(c, err)
		return
	}

	h.audit.Log(c, domain.AuditBroadcastCanceled, "broadcast_job", c.Param("id"), gin.H{"job_id": id})
	c.Status(http.StatusNoContent)
}
