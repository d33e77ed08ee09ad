package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"chatd/internal/chat"
	"chatd/internal/config"
	"chatd/internal/db"
	"chatd/internal/middleware"
	"chatd/internal/schedule"
	"chatd/internal/user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           log.DebugLevel,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cm, err := config.NewConfigManager(*configPath)
	if err != nil {
		logger.Error("Error getting config file", "error", err)
		os.Exit(1)
	}
	c := cm.GetConfig()
	if err := c.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded",
		"env", c.GeneralParams.Env,
		"http_addr", c.GeneralParams.HTTPAddress,
		"database", c.DBParams.Name,
		"redis", c.RedisParams.Addr != "",
		"tick", c.SchedulerParams.TickInterval(),
	)

	// Database
	database, err := db.NewDatabase(c.DBParams.GetDSN())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Conn.Close()

	if err := database.AutoMigrate(); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Database schema initialized")

	// Chat core: one registry instance owns all live connections and is
	// handed to everything that needs it.
	registry := chat.NewRegistry()
	presence := chat.NewPresence(registry, logger)
	messageRepo := chat.NewRepository(database.Conn)
	dispatcher := chat.NewDispatcher(registry, messageRepo, logger)
	readState := chat.NewReadState(messageRepo)

	// Optional cross-instance bridge for the public room.
	var bridge *chat.Bridge
	if c.RedisParams.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     c.RedisParams.Addr,
			Password: c.RedisParams.Password,
		})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		bridge = chat.NewBridge(redisClient, dispatcher, logger)
		dispatcher.SetBridge(bridge)
		bridge.Start()
		logger.Info("Redis bridge started", "addr", c.RedisParams.Addr)
	}

	// Scheduled delivery
	scheduleRepo := schedule.NewRepository(database.Conn)
	scheduleService := schedule.NewService(scheduleRepo)
	engine := schedule.NewEngine(scheduleRepo, dispatcher, logger,
		schedule.WithInterval(c.SchedulerParams.TickInterval()))
	engine.Start()

	// Users and auth
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, scheduleRepo, c.GeneralParams.SecretKey)
	userHandler := user.NewHandler(userService)

	chatHandler := chat.NewHandler(presence, dispatcher, readState, messageRepo, logger)
	scheduleHandler := schedule.NewHandler(scheduleService, engine)
	authMiddleware := middleware.NewAuth(userService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/ws", chatHandler.ServeWS)

		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Delete("/api/users/me", userHandler.DeleteAccount)

		r.Get("/api/messages", chatHandler.GetHistory)
		r.Get("/api/messages/public", chatHandler.GetPublicHistory)
		r.Get("/api/messages/unread", chatHandler.GetUnreadCount)
		r.Post("/api/messages/read", chatHandler.MarkConversationRead)
		r.Get("/api/presence", chatHandler.GetPresence)

		r.Post("/api/schedules", scheduleHandler.Create)
		r.Get("/api/schedules", scheduleHandler.List)
		r.Delete("/api/schedules/{id}", scheduleHandler.Cancel)
		r.Post("/api/schedules/run", scheduleHandler.Trigger)
	})

	server := &http.Server{
		Addr:    c.GeneralParams.HTTPAddress,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", "addr", c.GeneralParams.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown failed", "error", err)
	}
	if bridge != nil {
		bridge.Stop()
	}
	logger.Info("Server stopped")
}
