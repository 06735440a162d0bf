package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourboymarti/poker-everest/api/handlers"
	"github.com/yourboymarti/poker-everest/internal/config"
	"github.com/yourboymarti/poker-everest/internal/db"
	"github.com/yourboymarti/poker-everest/internal/model"
	"github.com/yourboymarti/poker-everest/internal/repository"
	"github.com/yourboymarti/poker-everest/internal/room"
	"github.com/yourboymarti/poker-everest/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Ensure the data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create database directory", "error", err)
		os.Exit(1)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	// Initialize archive repository
	historyRepo := repository.NewHistoryRepository(database)
	recorder := repository.NewRecorder(historyRepo)

	// Initialize broadcast service
	wsService := ws.NewService(cfg.ReplayCapacity)
	defer wsService.Close()

	// Every committed delta reaches the hubs and, for closed rounds, the
	// archive recorder.
	publisher := room.PublisherFunc(func(d model.Delta) {
		wsService.Publish(d)
		recorder.Publish(d)
	})

	// Initialize room registry
	registry := room.NewRegistry(room.Config{
		UndoWindow:      cfg.UndoWindow,
		ReconnectGrace:  cfg.ReconnectGrace,
		IdleTimeout:     cfg.RoomIdleTimeout,
		SweepInterval:   cfg.SweepInterval,
		MaxParticipants: cfg.MaxParticipants,
	}, publisher)
	registry.SetOnEvict(func(roomID string) {
		wsService.RemoveRoom(roomID)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := historyRepo.CloseRoom(ctx, roomID, time.Now()); err != nil {
			slog.Error("failed to close room record", "room", roomID, "error", err)
		}
	})
	registry.Start()
	defer registry.Stop()

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(registry, historyRepo)
	wsHandler := handlers.NewWebSocketHandler(ws.NewHandler(registry, wsService))

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"rooms":  registry.RoomCount(),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		roomHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server")
		registry.Stop()
		wsService.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start server
	slog.Info("starting server", "port", cfg.Port)
	if err := r.Run(":" + strconv.Itoa(cfg.Port)); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
