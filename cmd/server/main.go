package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"autopilot/internal/config"
	"autopilot/internal/database"
	"autopilot/internal/handlers"
	"autopilot/internal/jobs"
	"autopilot/internal/logging"
	"autopilot/internal/middleware"
	"autopilot/internal/services"
	"autopilot/pkg/auth"
)

func main() {
	// Load .env if present (production uses real env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()

	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	// Database
	db, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	cancelInit()

	// Redis
	redisService, err := services.NewRedisService(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	// Auth
	jwtAuth, err := auth.NewJWTAuth(cfg.JWTSecret, 15*time.Minute)
	if err != nil {
		log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
	}

	// Metrics
	metrics := services.InitMetrics()

	// Services
	llm := services.NewLLMClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.EmbeddingModel)
	rag := services.NewRAGService(llm, cfg.PineconeAPIKey, cfg.PineconeIndexHost)
	sessionService := services.NewSessionService(db, cfg.SessionExpiryDays)
	discoveryService := services.NewDiscoveryService(db)
	profileService := services.NewProfileService(db)
	conversationService := services.NewConversationService(db)
	extractionService := services.NewExtractionService(llm, conversationService, sessionService, discoveryService, metrics)
	agentService := services.NewAgentService(llm, conversationService, sessionService, discoveryService, extractionService, metrics, cfg.MaxContextMessages)
	robotService := services.NewRobotService(db, rag)
	roiService := services.NewROIService()
	recommendationService := services.NewRecommendationService(robotService, roiService, rag)
	checkoutService := services.NewCheckoutService(
		cfg.StripeSecretKey, cfg.StripeWebhookSecret,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL,
		db, robotService, metrics,
	)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionService, profileService, metrics, cfg)
	discoveryHandler := handlers.NewDiscoveryHandler(discoveryService, profileService)
	conversationHandler := handlers.NewConversationHandler(conversationService, agentService, sessionService, profileService)
	robotHandler := handlers.NewRobotHandler(robotService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, profileService)
	webhookHandler := handlers.NewWebhookHandler(checkoutService)
	roiHandler := handlers.NewROIHandler(roiService, recommendationService, robotService, discoveryService, profileService)
	profileHandler := handlers.NewProfileHandler(profileService)
	healthHandler := handlers.NewHealthHandler(db, redisService)

	// Background jobs
	scheduler := jobs.NewScheduler()
	scheduler.Register("session_cleanup", jobs.NewSessionCleanupJob(sessionService, metrics))
	scheduler.Start()

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Autopilot v1.0",
		ReadTimeout:  180 * time.Second, // LLM replies can take a while
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  180 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("autopilot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Fiber's CORS middleware rejects AllowCredentials with wildcard origins,
	// and the session cookie needs credentials.
	allowCredentials := cfg.AllowedOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization," + middleware.SessionTokenHeader,
		ExposeHeaders:    middleware.SessionTokenHeader + ",X-RateLimit-Limit,X-RateLimit-Remaining",
		AllowCredentials: allowCredentials,
	}))

	app.Get("/health", healthHandler.Health)

	// Auth middlewares
	dualAuth := middleware.DualAuth(jwtAuth, sessionService, cfg)
	requireUser := middleware.RequireUser(jwtAuth, cfg)
	requireSession := middleware.RequireSession(sessionService, cfg)
	rateLimit := middleware.TieredRateLimiter(redisService, cfg)

	api := app.Group("/api")

	// Webhooks: signature-verified, no auth or rate limiting
	api.Post("/webhooks/stripe", webhookHandler.HandleStripe)

	// Public catalog
	api.Get("/robots", rateLimit, robotHandler.List)
	api.Get("/robots/filters", rateLimit, robotHandler.FilterOptions)
	api.Get("/robots/:id", rateLimit, robotHandler.Get)

	// Sessions
	api.Post("/sessions", rateLimit, sessionHandler.Create)
	api.Get("/sessions/me", requireSession, rateLimit, sessionHandler.GetMe)
	api.Put("/sessions/me", requireSession, rateLimit, sessionHandler.UpdateMe)
	api.Post("/sessions/claim", requireUser, rateLimit, sessionHandler.Claim)

	// Discovery profile (auth-only)
	api.Get("/discovery", requireUser, rateLimit, discoveryHandler.Get)
	api.Put("/discovery", requireUser, rateLimit, discoveryHandler.Update)

	// Conversations (dual-auth, auto-provisioning)
	api.Post("/conversations", dualAuth, rateLimit, conversationHandler.Create)
	api.Get("/conversations", dualAuth, rateLimit, conversationHandler.List)
	api.Get("/conversations/:id", dualAuth, rateLimit, conversationHandler.Get)
	api.Delete("/conversations/:id", dualAuth, rateLimit, conversationHandler.Delete)
	api.Get("/conversations/:id/messages", dualAuth, rateLimit, conversationHandler.Messages)
	api.Post("/conversations/:id/messages", dualAuth, rateLimit, conversationHandler.SendMessage)

	// Checkout and orders (dual-auth)
	api.Post("/checkout/session", dualAuth, rateLimit, checkoutHandler.CreateSession)
	api.Get("/orders", dualAuth, rateLimit, checkoutHandler.ListOrders)
	api.Get("/orders/:id", dualAuth, rateLimit, checkoutHandler.GetOrder)

	// ROI (dual-auth)
	api.Post("/roi/calculate", dualAuth, rateLimit, roiHandler.Calculate)
	api.Post("/roi/recommendations", dualAuth, rateLimit, roiHandler.Recommendations)

	// Profile (auth-only)
	api.Get("/profiles/me", requireUser, rateLimit, profileHandler.GetMe)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		scheduler.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Close(shutdownCtx); err != nil {
			log.Printf("⚠️ Error closing MongoDB: %v", err)
		}
		if err := redisService.Close(); err != nil {
			log.Printf("⚠️ Error closing Redis: %v", err)
		}
	}()

	log.Printf("🚀 Autopilot backend listening on :%s (%s)", cfg.Port, cfg.Environment)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
