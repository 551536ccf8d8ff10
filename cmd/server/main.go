package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"policypal/internal/config"
	"policypal/internal/database"
	"policypal/internal/handlers"
	"policypal/internal/logging"
	"policypal/internal/openai"
	"policypal/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting PolicyPal Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.DatabasePath)

	if cfg.OpenAIBaseURL == "" || cfg.OpenAIAPIKey == "" {
		log.Fatal("❌ OPENAI_BASE_URL and OPENAI_API_KEY environment variables are required")
	}

	// Initialize SQLite database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize platform client
	client, err := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIAPIVersion)
	if err != nil {
		log.Fatalf("❌ Failed to create platform client: %v", err)
	}
	log.Println("✅ Platform client initialized")

	// Initialize services
	resolver := services.NewResponseResolver(client, cfg.PollInterval, cfg.PollMaxAttempts)
	analyzer := services.NewAnalysisService(client, cfg.OpenAIDeployment)
	chatService := services.NewChatService(db, client, client, client, resolver, analyzer,
		cfg.AssistantName, cfg.OpenAIDeployment)
	log.Println("✅ Chat service initialized")

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	uploadHandler := handlers.NewUploadHandler(chatService)
	chatHandler := handlers.NewChatHandler(chatService)

	app := fiber.New(fiber.Config{
		AppName:   "PolicyPal",
		BodyLimit: 25 * 1024 * 1024, // PDFs plus rasterized page images
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
	}))

	// Prometheus metrics
	prometheus := fiberprometheus.New("policypal")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Routes
	app.Get("/health", healthHandler.Handle)
	api := app.Group("/api")
	api.Post("/upload", uploadHandler.Handle)
	api.Post("/chat", chatHandler.Send)
	api.Get("/messages", chatHandler.Messages)
	api.Get("/policies", chatHandler.Policies)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Server listening on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}

	log.Println("✅ Server stopped")
}
