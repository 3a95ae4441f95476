package routes

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers every HTTP handler the API exposes
type Handlers struct {
	Room      *handler.RoomHandler
	Message   *handler.MessageHandler
	WS        *handler.WSHandler
	Broadcast *handler.BroadcastHandler
	Legal     *handler.LegalHandler
	Inspector *handler.InspectorHandler
	Audit     *handler.AuditHandler
}

// Options route-level settings
type Options struct {
	RedisClient       *redis.Client // nil disables rate limiting
	MessagesPerMinute int
}

// Setup configures all API routes
func Setup(router *gin.Engine, h *Handlers, jwtManager *jwt.Manager, opts Options) {
	auth := middleware.JWTAuth(jwtManager)
	chat := middleware.RequireAccess(domain.ResourceChat)

	// 실시간 구독 (토큰은 헤더 또는 ?token=)
	router.GET("/ws/rooms/:id", auth, chat, h.WS.Connect)

	api := router.Group("/api/v1", auth)

	// 대화방
	rooms := api.Group("/rooms", chat)
	{
		rooms.GET("", h.Room.ListRooms)
		rooms.POST("/dm", h.Room.OpenDM)

		groups := rooms.Group("/groups", middleware.RequireAccess(domain.ResourceGroupManage))
		groups.POST("", h.Room.CreateGroup)
		groups.PUT("/:id", h.Room.UpdateGroup)
		groups.POST("/:id/members", h.Room.AddMember)
		groups.DELETE("/:id/members/:user_id", h.Room.RemoveMember)

		rooms.GET("/:id/messages", h.Message.ListMessages)
		rooms.POST("/:id/messages",
			middleware.RateLimitPerUser(opts.RedisClient, middleware.MessageRateLimitConfig(opts.MessagesPerMinute)),
			h.Message.SendMessage)
		rooms.POST("/:id/read", h.Message.MarkRead)
		rooms.GET("/:id/unread", h.Message.UnreadCount)
	}
	api.DELETE("/messages/:id", chat, h.Message.DeleteMessage)

	// 단체 발송 (매장/캐스트)
	broadcasts := api.Group("/broadcasts", middleware.RequireAccess(domain.ResourceBroadcast))
	{
		broadcasts.GET("/targets", h.Broadcast.Targets)
		broadcasts.POST("", h.Broadcast.Send)
		broadcasts.POST("/scheduled", h.Broadcast.Schedule)
		broadcasts.GET("/scheduled", h.Broadcast.ListScheduled)
		broadcasts.DELETE("/scheduled/:id", h.Broadcast.Cancel)
	}

	// 게시중단 요청 접수
	api.POST("/legal/inquiries", middleware.RequireAccess(domain.ResourceLegalFile), h.Legal.File)

	// 관리자
	admin := api.Group("/admin")
	{
		legal := admin.Group("/legal/inquiries", middleware.RequireAccess(domain.ResourceAdminLegal))
		legal.GET("", h.Legal.List)
		legal.GET("/:id", h.Legal.Get)
		legal.POST("/:id/transition", h.Legal.Transition)

		inspector := admin.Group("/inspector", middleware.RequireAccess(domain.ResourceAdminInspector))
		inspector.GET("/rooms", h.Inspector.Search)
		inspector.POST("/sessions", h.Inspector.Open)
		inspector.GET("/sessions/:id", h.Inspector.Get)
		inspector.POST("/sessions/:id/select", h.Inspector.Select)
		inspector.POST("/sessions/:id/submit", h.Inspector.Submit)
		inspector.POST("/sessions/:id/reset", h.Inspector.Reset)

		admin.GET("/audit-logs", middleware.RequireAccess(domain.ResourceAdminAudit), h.Audit.List)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "요청한 경로를 찾을 수 없습니다"},
		})
	})
}
