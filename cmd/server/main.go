package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lujainibrahim/dyad-study/internal/api"
	"github.com/lujainibrahim/dyad-study/internal/config"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/internal/notify"
	"github.com/lujainibrahim/dyad-study/internal/repository"
	"github.com/lujainibrahim/dyad-study/internal/service"
	"github.com/lujainibrahim/dyad-study/internal/websocket"
	"github.com/lujainibrahim/dyad-study/pkg/database"
	"github.com/lujainibrahim/dyad-study/pkg/distributed"
	"github.com/lujainibrahim/dyad-study/pkg/events"
	"github.com/lujainibrahim/dyad-study/pkg/logger"
	"github.com/lujainibrahim/dyad-study/pkg/prolific"
	"github.com/lujainibrahim/dyad-study/pkg/ratelimit"
	"github.com/lujainibrahim/dyad-study/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting dyad-study server",
		"port", cfg.Port,
		"env", cfg.Env,
		"matchPolicy", cfg.MatchPolicy,
		"turnTaking", cfg.TurnTaking,
		"minMessages", cfg.MinMessages,
	)

	issuer, err := service.NewCompletionCodeIssuer(cfg)
	if err != nil {
		logger.Fatal("Failed to create completion code issuer", "error", err)
	}

	// Redis 연결 (스케줄 저장소 또는 rate limit 공유용)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
	}

	// 채팅 로그 싱크
	sinks := []service.NamedSink{
		{Name: "file", Sink: repository.NewChatLogFileRepository(storage.NewStorage(cfg.ChatLogDir))},
	}

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.EnsureChatLogSchema(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to prepare chat log schema", "error", err)
		}
		sinks = append(sinks, service.NamedSink{Name: "postgres", Sink: repository.NewChatLogPostgresRepository(db)})
	}

	if cfg.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.NATSURL, cfg.NATSToken, logger.Named("nats"))
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "error", err)
		}
		defer publisher.Close()
		sinks = append(sinks, service.NamedSink{Name: "nats", Sink: repository.NewChatLogEventRepository(publisher, cfg.NATSSubject)})
	}

	asyncSink := service.NewAsyncSink(
		service.NewMultiSink(logger.Named("sink"), sinks...),
		64,
		30*time.Second,
		logger.Named("sink"),
	)

	// 스케줄러
	scheduleStore, tickLocker := newScheduleStore(cfg, redisClient)
	scheduler := service.NewScheduler(scheduleStore, newDelivery(cfg), service.SchedulerConfig{
		Interval:          cfg.SchedulerInterval,
		Tolerance:         cfg.ScheduleTolerance,
		Lookahead:         cfg.ScheduleLookahead,
		ReservationWindow: cfg.ReservationWindow,
		InviteLinks: map[models.Role]string{
			models.RoleA: cfg.InviteLinkA,
			models.RoleB: cfg.InviteLinkB,
		},
		Location:      cfg.Location(),
		SlotInterval:  cfg.TimeslotInterval,
		SlotHorizon:   cfg.TimeslotHorizon,
		SlotStartHour: cfg.TimeslotStartHour,
		SlotEndHour:   cfg.TimeslotEndHour,
	}, logger.Named("scheduler"))
	if tickLocker != nil {
		scheduler.SetLocker(tickLocker)
	}

	// 라이브 세션 코어
	registry := service.NewParticipantRegistry()
	matchmaker := service.NewMatchmaker(models.MatchPolicy(cfg.MatchPolicy), cfg.WaitingTimeout, logger.Named("matchmaker"))
	matchmaker.SetReservations(scheduler)

	coordinator := service.NewSessionCoordinator(
		registry,
		matchmaker,
		issuer,
		asyncSink,
		service.PolicyFromConfig(cfg),
		logger.Named("coordinator"),
	)

	dispatcher := service.NewDispatcher(coordinator, 1024, logger.Named("dispatcher"))
	matchmaker.SetExpireHandler(dispatcher.ExpireHandler())

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub(dispatcher, cfg.CORSAllowedOrigins, logger.Named("websocket"))
	go hub.Run(hubCtx)

	scheduler.Start()

	// 라우터 설정
	router := api.SetupRouter(cfg, api.Dependencies{
		Sessions:     coordinator,
		Scheduler:    scheduler,
		Hub:          hub,
		ScheduleRate: newScheduleLimiter(cfg, redisClient),
	})

	// 서버 설정 (WebSocket 때문에 WriteTimeout 없음)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// 순서: 연결 -> 스케줄러 -> 디스패처 -> 로그 싱크
	stopHub()
	scheduler.Stop()
	stopDispatch()
	<-dispatcher.Done()
	asyncSink.Close()

	logger.Info("Server exited")
}

func newScheduleStore(cfg *config.Config, redisClient *redis.Client) (service.ScheduleStore, service.TickLocker) {
	if cfg.ScheduleStore == "redis" {
		lockTTL := cfg.SchedulerInterval
		if lockTTL < 30*time.Second {
			lockTTL = 30 * time.Second
		}
		store := repository.NewScheduleRedisRepository(redisClient, cfg.ScheduleRedisKey)
		locker := repository.NewScheduleTickLock(
			distributed.NewRedisLockManager(redisClient),
			cfg.ScheduleRedisKey+":tick",
			lockTTL,
		)
		logger.Info("Using redis schedule store", "key", cfg.ScheduleRedisKey)
		return store, locker
	}

	logger.Info("Using file schedule store", "file", cfg.ScheduleFile)
	dir, name := filepath.Split(cfg.ScheduleFile)
	if dir == "" {
		dir = "."
	}
	return repository.NewScheduleFileRepository(storage.NewStorage(dir), name), nil
}

func newDelivery(cfg *config.Config) service.MessageDelivery {
	if cfg.ProlificAPIToken == "" {
		logger.Warn("PROLIFIC_API_TOKEN not set, session invites will only be logged")
		return notify.NewLogDelivery(logger.Named("delivery"))
	}

	client, err := prolific.NewClient(cfg.ProlificAPIURL, cfg.ProlificAPIToken)
	if err != nil {
		logger.Fatal("Failed to create Prolific client", "error", err)
	}
	return notify.NewProlificDelivery(client, cfg.ProlificStudyA, cfg.ProlificStudyB)
}

func newScheduleLimiter(cfg *config.Config, redisClient *redis.Client) ratelimit.Limiter {
	if cfg.ScheduleRateLimit <= 0 {
		return nil
	}
	if redisClient != nil {
		return ratelimit.NewRedisRateLimiter(redisClient, "dyad:ratelimit:schedule:", cfg.ScheduleRateLimit, time.Minute)
	}
	return ratelimit.NewRateLimiter(cfg.ScheduleRateLimit, time.Minute)
}
