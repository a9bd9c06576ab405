package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/config"
	"github.com/qishuigrab/api/internal/handler"
	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/storage"
	"github.com/qishuigrab/api/internal/transcode"
	"github.com/qishuigrab/api/internal/worker"
	ws "github.com/qishuigrab/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Transient asset directory
	store, err := storage.NewStore(cfg.Storage.TempDir)
	if err != nil {
		log.Fatalf("Failed to initialize temp storage: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; delayed cleanup degrades to in-process timers
	// when it is missing, so this is a warning, not a failure.
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisAvailable = false
		log.Printf("Warning: Redis not available, cleanup falls back to timers: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Provider client and transcoder
	pageClient := client.NewPageClient(&cfg.Provider)
	transcoder := transcode.NewFFmpegTranscoder(&cfg.FFmpeg)

	// Initialize services
	grace := time.Duration(cfg.Storage.CleanupGrace) * time.Second
	janitor := service.NewJanitor(asynqClient, store, grace)
	playlistService := service.NewPlaylistService(pageClient, cfg.Provider.BaseURL)
	packageService := service.NewPackageService(pageClient, transcoder, store)
	extractService := service.NewExtractService(pageClient, transcoder, store, janitor)
	lyricsService := service.NewLyricsService(pageClient, cfg.Provider.BaseURL, store)

	// Initialize handlers
	playlistHandler := handler.NewPlaylistHandler(playlistService, hub)
	packageHandler := handler.NewPackageHandler(packageService, hub, validate)
	downloadHandler := handler.NewDownloadHandler(pageClient)
	extractHandler := handler.NewExtractHandler(extractService, hub)
	lyricsHandler := handler.NewLyricsHandler(lyricsService)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    redisAvailable,
				"ffmpeg":   cfg.FFmpeg.BinPath != "",
				"provider": cfg.Provider.BaseURL != "",
			},
		})
	})

	// Finished archives and extracted audio are fetched by reference
	app.Static(storage.PublicMount, cfg.Storage.TempDir)

	// API routes
	api := app.Group("/api")
	api.Get("/playlist", playlistHandler.Playlist)
	api.Post("/packageSelected", packageHandler.PackageSelected)
	api.Get("/downloadFile", downloadHandler.DownloadFile)
	api.Get("/extractAudio", extractHandler.ExtractAudio)
	api.Get("/lyrics", lyricsHandler.Lyrics)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/progress/:token", websocket.New(func(c *websocket.Conn) {
		token := c.Params("token")
		hub.HandleConnection(c, token)
	}))

	// Start Asynq worker server and sweep scheduler
	go startWorkerServer(cfg, store)
	go startScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, store *storage.Store) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 2,
			LogLevel:    asynqLogLevel,
		},
	)

	cleanupWorker := worker.NewCleanupWorker(store, time.Duration(cfg.Storage.SweepTTL)*time.Second)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeCleanupFiles, cleanupWorker.ProcessFiles)
	mux.HandleFunc(service.TaskTypeCleanupSweep, cleanupWorker.ProcessSweep)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	if _, err := scheduler.Register(
		cfg.Storage.SweepInterval,
		asynq.NewTask(service.TaskTypeCleanupSweep, nil),
	); err != nil {
		log.Printf("Failed to register temp sweep: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
