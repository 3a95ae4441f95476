package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/worker"
	"github.com/damoang/angple-messenger/internal/ws"
	pkgcache "github.com/damoang/angple-messenger/pkg/cache"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	pkgredis "github.com/damoang/angple-messenger/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 예약 발송 워커: cron 주기마다 due job 을 claim 하여 발송한다.
func main() {
	statusPort := flag.Int("status-port", 8084, "port for /health and /metrics (0 disables)")
	once := flag.Bool("once", false, "run a single tick and exit")
	flag.Parse()

	config.LoadDotEnv()
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis 가 있으면 hub 가 다른 API 인스턴스로 메시지를 전파한다
	redisClient, err := pkgredis.NewClient(pkgredis.Options{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	var cacheService pkgcache.Service
	if err != nil {
		pkglogger.Warn("Redis unavailable: %v (live delivery limited to this process)", err)
		redisClient = nil
		cacheService = pkgcache.NewMemoryService()
	} else {
		cacheService = pkgcache.NewService(redisClient)
	}

	hub := ws.NewHub(redisClient)
	go hub.Run()
	defer hub.Stop()

	roomRepo := repository.NewRoomRepository(db)
	rooms := service.NewRoomService(roomRepo, cacheService)
	messages := service.NewMessageService(repository.NewMessageRepository(db), roomRepo, hub, nil)
	broadcasts := service.NewBroadcastService(
		repository.NewBroadcastRepository(db),
		repository.NewProfileRepository(db),
		rooms,
		messages,
		cfg.Broadcast.Parallelism,
	)

	dispatcher, err := worker.NewDispatcher(broadcasts, cfg.Broadcast.Cron, cfg.Broadcast.BatchSize)
	if err != nil {
		log.Fatalf("Failed to create dispatcher: %v", err)
	}

	if *once {
		n, err := dispatcher.Tick(context.Background())
		if err != nil {
			log.Fatalf("Tick failed: %v", err)
		}
		pkglogger.Info("executed %d broadcast jobs", n)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)

	var srv *http.Server
	if *statusPort > 0 {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":     "ok",
				"service":    "angple-messenger-worker",
				"dispatcher": dispatcher.Status(),
			})
		})
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", *statusPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				pkglogger.Warn("status server stopped: %v", err)
			}
		}()
	}

	pkglogger.Info("Broadcast worker started (cron=%q, batch=%d)", cfg.Broadcast.Cron, cfg.Broadcast.BatchSize)
	<-ctx.Done()
	pkglogger.Info("Shutting down worker...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	dispatcher.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
