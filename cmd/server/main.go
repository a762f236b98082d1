package main

import (
	"context"
	"log"
	"os"
	"os/signal"
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

	"github.com/Tim-Alpha/video-description-api/internal/client"
	"github.com/Tim-Alpha/video-description-api/internal/config"
	"github.com/Tim-Alpha/video-description-api/internal/handler"
	"github.com/Tim-Alpha/video-description-api/internal/ingest"
	"github.com/Tim-Alpha/video-description-api/internal/middleware"
	"github.com/Tim-Alpha/video-description-api/internal/pipeline"
	"github.com/Tim-Alpha/video-description-api/internal/service"
	"github.com/Tim-Alpha/video-description-api/internal/store"
	"github.com/Tim-Alpha/video-description-api/internal/worker"
	ws "github.com/Tim-Alpha/video-description-api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
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

	// Task store, Redis-backed with bounded retention
	taskStore := store.NewRedisStore(redisClient, time.Duration(cfg.Worker.RetentionHours)*time.Hour)

	// Ingestion adapter
	ingestor, err := ingest.NewIngestor(cfg.Storage.MediaDir, time.Duration(cfg.Pipeline.FetchTimeout)*time.Second)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	// External AI capabilities; an unconfigured key falls back to mocks
	aiClient := client.NewOpenAIClient(client.OpenAIOptions{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		ChatModel:       cfg.OpenAI.ChatModel,
		VisionModel:     cfg.OpenAI.VisionModel,
		TranscribeModel: cfg.OpenAI.TranscribeModel,
	})
	if !aiClient.IsConfigured() {
		log.Println("Warning: OPENAI_API_KEY not set, serving mock analysis results")
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Analysis pipeline
	analysisPipeline := pipeline.New(pipeline.Options{
		Store:       taskStore,
		Ingestor:    ingestor,
		Transcriber: aiClient,
		Vision:      aiClient,
		Generator:   aiClient,
		Hub:         hub,
		CallTimeout: time.Duration(cfg.Pipeline.CallTimeout) * time.Second,
		FrameCount:  cfg.Pipeline.FrameCount,
	})

	// Services and handlers
	analysisService := service.NewAnalysisService(taskStore, ingestor, worker.NewAsynqEnqueuer(asynqClient))
	analysisHandler := handler.NewAnalysisHandler(analysisService, validate)
	flicAuth := middleware.NewFlicTokenMiddleware(cfg.Share.FlicToken)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    200 * 1024 * 1024, // 200MB uploads
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,flic_token",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api/v1")
	api.Post("/analyze_video", analysisHandler.AnalyzeVideo)
	api.Get("/analysis_result/:taskId", analysisHandler.GetAnalysisResult)
	api.Post("/share_url", flicAuth.Require(), analysisHandler.ShareURL)

	// WebSocket progress stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tasks/:taskId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("taskId"))
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, analysisPipeline)

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

func startWorkerServer(cfg *config.Config, analysisPipeline *pipeline.Pipeline) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				worker.QueueAnalysis: 10,
			},
		},
	)

	analysisWorker := worker.NewAnalysisWorker(analysisPipeline)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeVideoAnalysis, analysisWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
