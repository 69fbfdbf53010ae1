package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/debate-arena/debate-arena-backend/internal/api/handlers"
	"github.com/debate-arena/debate-arena-backend/internal/api/middleware"
	"github.com/debate-arena/debate-arena-backend/internal/config"
	"github.com/debate-arena/debate-arena-backend/internal/metrics"
	"github.com/debate-arena/debate-arena-backend/internal/repository"
	"github.com/debate-arena/debate-arena-backend/internal/service"
	"github.com/debate-arena/debate-arena-backend/internal/websocket"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
	"github.com/debate-arena/debate-arena-backend/pkg/distributed"
	"github.com/debate-arena/debate-arena-backend/pkg/logger"
	"github.com/debate-arena/debate-arena-backend/pkg/ratelimit"
	"github.com/debate-arena/debate-arena-backend/pkg/speechgen"
	"github.com/debate-arena/debate-arena-backend/pkg/storage"
)

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, db *database.DB, redisClient *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Metrics 초기화
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.Metrics(collector))

	// Transcript archive 초기화
	archive := storage.NewArchive(cfg.ArchivePath)

	// Speech 생성기 / 심판 클라이언트 초기화
	speechClient := speechgen.NewClient(cfg.SpeechGenURL, cfg.SpeechGenTimeout)

	// Repository 초기화
	userRepo := repository.NewUserRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// 분산 조율 (change feed + sweep 락)
	eventBus := distributed.NewEventBus(redisClient, logger.Desugar())
	lockManager := distributed.NewRedisLockManager(redisClient)

	// Service 초기화
	userService := service.NewUserService(userRepo)
	sessionService := service.NewSessionService(
		sessionRepo,
		participantRepo,
		speechClient,
		archive,
		wsHub,
		eventBus,
	)
	ratingService := service.NewRatingService(submissionRepo, ratingRepo, sessionRepo, participantRepo)

	// Matchmaking Service 초기화 및 시작
	matchmakingService := service.NewMatchmakingService(
		queueRepo,
		sessionRepo,
		participantRepo,
		wsHub,
		eventBus,
		lockManager,
		cfg.MatchmakingInterval,
		cfg.RatingRange,
		cfg.MaxRatingRange,
		cfg.AIFallbackWait,
		cfg.LivenessWindow,
	)
	matchmakingService.Start()
	logger.Info("MatchmakingService started", "interval", cfg.MatchmakingInterval)

	queueService := service.NewQueueService(queueRepo, ratingService, matchmakingService, cfg.AIFallbackWait)

	// 연결 끊김은 세션 서비스가 처리 (live 세션은 abandoned)
	wsHub.OnDisconnect = sessionService.HandleDisconnect

	// Change feed 수신 시작. 다른 인스턴스가 커밋한 변경을 이
	// 인스턴스의 websocket 클라이언트로 내보낸다.
	go func() {
		err := eventBus.Start(context.Background(), fanOutEvent(eventBus, wsHub, queueRepo))
		if err != nil {
			logger.Error("Event bus stopped with error", "error", err)
		}
	}()

	// Redis 기반 rate limiter
	rateLimiter := ratelimit.NewRedisRateLimiter(redisClient, "debate:ratelimit")

	// Handler 초기화
	authHandler := handlers.NewAuthHandler(userService, cfg)
	userHandler := handlers.NewUserHandler(userService, ratingService)
	queueHandler := handlers.NewQueueHandler(queueService, collector)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	ratingHandler := handlers.NewRatingHandler(ratingService, collector)
	leaderboardHandler := handlers.NewLeaderboardHandler(ratingService)
	wsHandler := handlers.NewWebSocketHandler(wsHub)

	// Health check
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadyCheck(db))

	// Prometheus 스크레이프
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	// 보관된 transcript 서빙
	router.Static("/storage", cfg.ArchivePath)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.GeneralAPIRateLimit())
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Auth routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit(rateLimiter))
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
		}

		// Queue routes
		queue := v1.Group("/queue")
		queue.Use(middleware.Auth(cfg))
		{
			queue.POST("", middleware.EnqueueRateLimit(rateLimiter), queueHandler.Join)
			queue.GET("/:id", queueHandler.Status)
			queue.POST("/:id/heartbeat", queueHandler.Heartbeat)
			queue.DELETE("/:id", queueHandler.Cancel)
		}

		// Session routes
		sessions := v1.Group("/sessions")
		sessions.Use(middleware.Auth(cfg))
		{
			sessions.GET("/:id", sessionHandler.Get)
			sessions.POST("/:id/join", sessionHandler.Join)
			sessions.GET("/:id/timer", sessionHandler.Timer)
			sessions.POST("/:id/advance", sessionHandler.Advance)
			sessions.POST("/:id/speeches", sessionHandler.SubmitSpeech)
			sessions.POST("/:id/leave", sessionHandler.Leave)
			sessions.GET("/:id/transcript", sessionHandler.Transcript)
			sessions.GET("/:id/feedback", sessionHandler.Feedback)

			// 결과 선언 및 정산 조회
			sessions.POST("/:id/result", middleware.ResultRateLimit(rateLimiter), ratingHandler.SubmitResult)
			sessions.GET("/:id/result", ratingHandler.GetSettlement)
		}

		// Leaderboard routes
		leaderboard := v1.Group("/leaderboard")
		{
			leaderboard.GET("", leaderboardHandler.GetLeaderboard)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.Auth(cfg))
		{
			users.GET("/me", userHandler.GetCurrentUser)
			users.PUT("/me", userHandler.UpdateCurrentUser)
			users.GET("/me/ratings/:format", ratingHandler.GetMyRating)
			users.GET("/me/history", ratingHandler.GetMyHistory)
		}
	}

	return router
}

// fanOutEvent change feed 이벤트를 로컬 websocket 클라이언트로 중계한다.
// 자기 자신이 발행한 이벤트는 이미 Notifier 경로로 푸시됐으므로 거른다.
func fanOutEvent(bus *distributed.EventBus, hub *websocket.Hub, queueRepo *repository.QueueRepository) func(distributed.Event) {
	return func(event distributed.Event) {
		if event.Origin == bus.InstanceID() {
			return
		}

		switch event.Type {
		case distributed.EventSessionPhase:
			phase, _ := event.Data["phase"].(string)
			remaining, _ := event.Data["remaining_seconds"].(float64)
			hub.SendPhaseChange(event.SessionID, phase, int(remaining))

		case distributed.EventSessionStatus:
			status, _ := event.Data["status"].(string)
			reason, _ := event.Data["reason"].(string)
			hub.SendSessionStatus(event.SessionID, status, reason)

		case distributed.EventQueueMatched:
			entry, err := queueRepo.FindByID(event.EntryID)
			if err != nil || entry == nil {
				return
			}
			hub.SendMatchFound(entry.ParticipantID, event.EntryID, event.SessionID)

		case distributed.EventQueueExpired:
			entry, err := queueRepo.FindByID(event.EntryID)
			if err != nil || entry == nil {
				return
			}
			hub.SendToUser(entry.ParticipantID, "queue_expired", gin.H{"entryId": event.EntryID})

		case distributed.EventSpeechAdded:
			hub.SendToSession(event.SessionID, "speech_added", event.Data)
		}
	}
}
