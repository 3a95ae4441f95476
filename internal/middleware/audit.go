package middleware

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AuditMeta copies the request context that audit entries carry
func AuditMeta(c *gin.Context) domain.AuditMeta {
	return domain.AuditMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: GetRequestID(c),
	}
}

// AuditLogger writes audit entries for actions whose success does not depend on
// the audit write (cancels, resets). Access grants and legal transitions write
// their entry inside the service transaction instead.
type AuditLogger struct {
	repo    *repository.AuditRepository
	timeout time.Duration
}

// NewAuditLogger creates a new AuditLogger
func NewAuditLogger(repo *repository.AuditRepository) *AuditLogger {
	return &AuditLogger{repo: repo, timeout: 5 * time.Second}
}

// Log writes an entry in the background; failures are only logged
func (a *AuditLogger) Log(c *gin.Context, action, resource, resourceID string, metadata any) {
	if a == nil || a.repo == nil {
		return
	}

	entry, err := domain.NewAuditEntry(GetUserID(c), action, resource, resourceID, AuditMeta(c), metadata)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("action", action).Msg("audit entry build failed")
		return
	}

	// 요청 컨텍스트가 끝나도 기록은 남도록 별도 컨텍스트 사용
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.repo.Create(ctx, entry); err != nil {
			logger.GetLogger().Error().Err(err).
				Str("action", action).
				Str("user_id", entry.ActorID).
				Msg("audit log write failed")
		}
	}()
}

// ListAuditLogs retrieves paginated audit logs with optional filters
func (a *AuditLogger) ListAuditLogs(ctx context.Context, filter domain.AuditLogFilter) ([]*domain.AuditLogEntry, int64, error) {
	return a.repo.List(ctx, filter)
}
