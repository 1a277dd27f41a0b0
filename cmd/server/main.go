package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/config"
	"github.com/DiscordEmotes/website/internal/middleware"
	"github.com/DiscordEmotes/website/internal/services/admin"
	"github.com/DiscordEmotes/website/internal/services/auth"
	"github.com/DiscordEmotes/website/internal/services/discord"
	"github.com/DiscordEmotes/website/internal/services/emote"
	"github.com/DiscordEmotes/website/internal/services/guild"
	"github.com/DiscordEmotes/website/pkg/database"
	"github.com/DiscordEmotes/website/pkg/encryption"
	"github.com/DiscordEmotes/website/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Info().Bool("botConfigured", cfg.Discord.BotToken != "").Msg("Discord configuration loaded")

	// Connect to PostgreSQL
	db, err := database.NewPostgresPool(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()
	log.Info().Msg("Connected to PostgreSQL")

	// Connect to Redis
	redisClient, err := database.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info().Msg("Connected to Redis")

	// Connect to MinIO
	files, err := storage.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MinIO")
	}
	log.Info().Msg("Connected to MinIO")

	// Decode encryption key
	encKey, err := encryption.KeyFromHex(cfg.Encryption.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode encryption key (must be hex)")
	}

	// Initialize services
	discordClient := discord.NewClient(cfg, redisClient)
	authService := auth.NewService(cfg, redisClient, discordClient, encKey)
	guildService := guild.NewService(db, discordClient, authService)

	dispatcher := emote.NewDispatcher()
	dispatcher.Register(emote.CleanupHook(files))
	dispatcher.Register(emote.NotifyHook(discordClient))
	emoteService := emote.NewService(emote.NewStore(db), files, guildService, dispatcher)

	adminService := admin.NewService(db, cfg, emoteService)

	// Initialize handlers
	authHandler := auth.NewHandler(authService, cfg.Environment == "production")
	guildHandler := guild.NewHandler(guildService)
	emoteHandler := emote.NewHandler(emoteService)
	adminHandler := admin.NewHandler(adminService)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RedirectSlashes)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Origin"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Debug:            cfg.Environment == "development",
	}))

	// Security headers
	r.Use(middleware.SecurityHeadersMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
	})

	// Emote image delivery, cacheable and session-free
	r.Mount("/i", emoteHandler.FileRoutes())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Use(middleware.SessionMiddleware(cfg.Session.Secret))
		r.Use(middleware.RateLimitMiddleware(redisClient, cfg.Server.RateLimitRPS))

		r.Mount("/auth", authHandler.Routes())
		r.Mount("/guilds", guildHandler.Routes())
		r.Mount("/emotes", emoteHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	// Create HTTP server
	server := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Server.Port,
		Handler: r,
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting emote server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
