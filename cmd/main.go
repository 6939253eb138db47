/*
Package main is the entry point for the MarketChat realtime server.

It is responsible for loading configuration, initializing the global logging system,
connecting the database pool and the optional NATS fan-out bridge, starting the
WebSocket hub, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/internal/app/db"
	"marketchat/internal/app/realtime"
	"marketchat/internal/app/realtime/bridge"
	"marketchat/internal/app/store"
	"marketchat/internal/configs"
	"marketchat/internal/handler"
	"marketchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("nats_enabled", cfg.NATSURL != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database pool and run migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	appStore := store.NewPostgresStore(pool)
	defer appStore.Close()

	// Initialize the live-channel hub and notification fan-out
	hub := realtime.NewHub()
	notifier := realtime.NewNotifier(hub)

	// Optional cross-instance fan-out
	if cfg.NATSURL != "" {
		natsBridge, err := bridge.NewNATSBridge(cfg.NATSURL, hub)
		if err != nil {
			logx.Fatal(err, "Failed to initialize NATS bridge")
		}
		defer natsBridge.Close()
		hub.SetBridge(natsBridge)
	}

	// Setup HTTP server and routes
	deps := &handler.AppDeps{
		Hub:      hub,
		Notifier: notifier,
		Config:   cfg,
		Store:    appStore,
	}
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("MarketChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
