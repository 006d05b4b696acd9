package api

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/internal/api/handlers"
	"github.com/lujainibrahim/dyad-study/internal/api/middleware"
	"github.com/lujainibrahim/dyad-study/internal/config"
	"github.com/lujainibrahim/dyad-study/internal/websocket"
	jwtutil "github.com/lujainibrahim/dyad-study/pkg/jwt"
	"github.com/lujainibrahim/dyad-study/pkg/ratelimit"
)

// Scheduler 등록/조회 + 관리자 스냅샷
type Scheduler interface {
	handlers.ScheduleService
	handlers.ScheduleMonitor
}

// Dependencies 라우터가 쓰는 서비스 묶음
type Dependencies struct {
	Sessions     handlers.SessionMonitor
	Scheduler    Scheduler
	Hub          *websocket.Hub
	ScheduleRate ratelimit.Limiter
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	configHandler := handlers.NewConfigHandler(cfg)
	scheduleHandler := handlers.NewScheduleHandler(deps.Scheduler, cfg.Timezone)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// 정적 파일 서빙
	router.Static("/static", cfg.StaticDir)
	router.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticDir, "index.html"))
	})

	// WebSocket endpoint
	if deps.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(deps.Hub)
		router.GET("/ws", wsHandler.HandleWebSocket)
	}

	router.GET("/config", configHandler.GetConfig)
	router.GET("/timeslots", scheduleHandler.TimeSlots)

	if deps.ScheduleRate != nil {
		router.POST("/schedule", middleware.RateLimit(deps.ScheduleRate, middleware.IPKeyFunc), scheduleHandler.Register)
	} else {
		router.POST("/schedule", scheduleHandler.Register)
	}

	// Admin routes (비밀번호 해시가 설정된 경우만)
	if cfg.AdminPasswordHash != "" {
		jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

		var connections func() int
		if deps.Hub != nil {
			connections = deps.Hub.Count
		}
		adminHandler := handlers.NewAdminHandler(deps.Sessions, deps.Scheduler, connections, jwtManager, cfg.AdminPasswordHash)

		admin := router.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.AdminAuth(jwtManager))
			{
				protected.GET("/stats", adminHandler.Stats)
				protected.GET("/pairs", adminHandler.Pairs)
				protected.GET("/schedule", adminHandler.Schedule)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
