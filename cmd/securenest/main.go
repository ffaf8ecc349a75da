package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/securenest/securenest/internal/config"
	"github.com/securenest/securenest/internal/database"
	"github.com/securenest/securenest/internal/logging"
	"github.com/securenest/securenest/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, cfg.Server, logger)

	// Hourly maintenance: prune stale history, flag silent children offline,
	// drop expired rate-limit entries.
	c := cron.New()
	c.AddFunc("@hourly", func() {
		cutoff := time.Now().Add(-cfg.Server.HistoryRetention)
		if n, err := srv.HistoryStore().DeleteOlderThan(cutoff); err != nil {
			logger.Error("prune location history", "error", err)
		} else if n > 0 {
			logger.Info("pruned location history", "rows", n)
		}
		srv.RateLimiter().Cleanup()
	})
	c.AddFunc("@every 30s", func() {
		cutoff := time.Now().Add(-cfg.Server.PresenceTimeout)
		if n, err := srv.ChildStore().MarkOffline(cutoff); err != nil {
			logger.Error("mark children offline", "error", err)
		} else if n > 0 {
			logger.Info("children marked offline", "count", n)
		}
	})
	c.Start()
	defer c.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("SecureNest hub listening on %s\n", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
