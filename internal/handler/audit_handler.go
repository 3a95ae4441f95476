package handler

import (
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the audit trail to admins
type AuditHandler struct {
	audit *middleware.AuditLogger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *middleware.AuditLogger) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /admin/audit-logs
// @Summary 감사 로그 조회
// @Tags admin-audit
// @Produce json
// @Param actor_id query string false "수행자"
// @Param action query string false "inspector.access_granted | legal.transition | ..."
// @Param page query int false "페이지"
// @Param per_page query int false "페이지 크기"
// @Success 200 {object} common.APIResponse{data=[]domain.AuditLogEntry}
// @Router /admin/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := domain.AuditLogFilter{
		ActorID: c.Query("actor_id"),
		Action:  c.Query("action"),
		Page:    ginutil.QueryInt(c, "page", 1),
		PerPage: ginutil.QueryInt(c, "per_page", 50),
	}

	entries, total, err := h.audit.ListAuditLogs(c.Request.Context(), filter)
	if err != nil {
		common.ErrorFrom(c, err)
		return
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 50
	}
	common.SuccessWithMeta(c, entries, common.NewMeta(filter.Page, filter.PerPage, total))
}
