package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/edulink/edulink-backend/internal/config"
	"github.com/edulink/edulink-backend/internal/database"
	"github.com/edulink/edulink-backend/internal/handlers"
	"github.com/edulink/edulink-backend/internal/middleware"
	"github.com/edulink/edulink-backend/internal/routes"
	"github.com/edulink/edulink-backend/internal/services"
)

func main() {
	// Load env
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// Connect to PostgreSQL (identity store: teachers, students)
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis (event fan-out, cache, sessions, rate limiting)
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (messages, chat lists, notifications)
	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	// Initialize Cloudinary for chat media uploads
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		if err := handlers.InitCloudinaryService(cfg); err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Media uploads will not be available")
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Media uploads will not be available")
	}

	// Wire the chat subsystem
	cache := services.NewRecentMessageCache(database.RedisClient)
	messages := services.NewMongoMessageStore(database.DB, cache)
	chatLists := services.NewMongoChatListStore(database.DB)
	notifications := services.NewMongoNotificationSink(database.DB)
	identities := services.NewPostgresIdentityResolver(database.PostgresDB)
	hub := services.NewChatHub(database.RedisClient)

	coordinator := services.NewChatCoordinator(messages, chatLists, notifications, identities, hub)

	handlers.InitChatHandlers(coordinator, hub)
	handlers.InitContactHandlers(identities)

	// Ensure MongoDB indexes for messages and chat lists
	if err := messages.EnsureMessageIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure message indexes: %v", err)
	} else if err := chatLists.EnsureChatListIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure chat list indexes: %v", err)
	} else {
		log.Println("✅ MongoDB chat indexes ensured")
	}

	// Start the cross-instance event subscriber
	hub.StartSubscriber(context.Background())

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
		// CORS request logging is development-only noise.
		Debug: !cfg.IsProduction(),
	}))

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.ChatReadRateLimit)

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r)

	log.Println("📋 Registered routes:")
	log.Println("  GET    /health")
	log.Println("  POST   /api/chat/initiate")
	log.Println("  GET    /api/chat/messages")
	log.Println("  GET    /api/chat/list")
	log.Println("  POST   /api/chat/message")
	log.Println("  POST   /api/chat/reaction")
	log.Println("  DELETE /api/chat/message")
	log.Println("  GET    /api/contacts")
	log.Println("  POST   /api/upload")
	log.Println("  GET    /ws/chat")

	log.Printf("🚀 EduLink backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
