package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dilshadmohammed/quiz-ai/internal/config"
	"github.com/dilshadmohammed/quiz-ai/internal/handler"
	redisRepo "github.com/dilshadmohammed/quiz-ai/internal/repository/redis"
	"github.com/dilshadmohammed/quiz-ai/internal/service"
	"github.com/dilshadmohammed/quiz-ai/internal/service/quizrunner"
	ws "github.com/dilshadmohammed/quiz-ai/internal/websocket"
	"github.com/dilshadmohammed/quiz-ai/pkg/auth"
	"github.com/dilshadmohammed/quiz-ai/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Контекст жизни процесса: по нему завершаются фоновые горутины
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	userService := service.NewUserService()

	// Redis опционален: без него вопросы генерируются заново на каждую викторину
	var cacheRepo *redisRepo.CacheRepo
	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		log.Println("Successfully connected to Redis")

		cacheRepo, err = redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Printf("Failed to initialize CacheRepo: %v", err)
			os.Exit(1)
		}
	}

	// Источник вопросов: Gemini, при включенном Redis - с кешем по теме
	geminiSource := service.NewGeminiQuestionSource(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.Quiz.QuestionCount)
	var questionSource service.QuestionGenerator = geminiSource
	if cacheRepo != nil {
		questionSource = service.NewCachedQuestionSource(geminiSource, cacheRepo, time.Duration(cfg.Quiz.CacheTTLMin)*time.Minute)
	}

	// Реестр комнат с периодической очисткой заброшенных
	registry := service.NewRoomRegistry(
		userService,
		time.Duration(cfg.Quiz.SweepIntervalSec)*time.Second,
		time.Duration(cfg.Quiz.IdleThresholdMin)*time.Minute,
	)
	go registry.RunSweeper(ctx)

	// WebSocket: хаб соединений и менеджер сообщений
	hub := ws.NewHub()
	wsManager := ws.NewManager(hub)

	// Цикл викторины
	runnerConfig := quizrunner.DefaultConfig()
	runnerConfig.QuestionCount = cfg.Quiz.QuestionCount
	runnerConfig.CountdownTicks = cfg.Quiz.QuestionSeconds
	runnerConfig.SettleTicks = cfg.Quiz.SettleSeconds
	runner := quizrunner.NewRunner(runnerConfig, &quizrunner.Dependencies{
		Rooms:       registry,
		Source:      questionSource,
		Broadcaster: wsManager,
	})

	// Удаление комнаты (вытеснение, sweep) немедленно гасит ее викторину
	registry.SetDeleteHook(runner.CancelRoom)

	// Обработчики
	userHandler := handler.NewUserHandler(userService, jwtService)
	wsHandler := handler.NewWSHandler(hub, wsManager, registry, runner, jwtService, userService, cfg.Server.AllowedOrigins)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS (список доменов синхронизирован с CheckOrigin в WSHandler)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"rooms":     registry.RoomCount(),
			"users":     userService.Count(),
			"websocket": wsManager.GetMetrics(),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/user", userHandler.Register)
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// Ждем сигнал остановки, затем гасим викторины и сервер
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()
	runner.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
