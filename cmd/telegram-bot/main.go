package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-day-planner/internal/app"
	"ai-day-planner/internal/config"
	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/metrics"
	"ai-day-planner/internal/places"
	"ai-day-planner/internal/planner"
	"ai-day-planner/internal/queue"
	"ai-day-planner/internal/telegram"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metricsStore, err := metrics.Open(cfg.MetricsDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize metrics store: %v", err)
	}
	defer metricsStore.Close()

	gateway, err := app.Gateway(ctx, cfg, metricsStore)
	if err != nil {
		log.Fatalf("Failed to initialize model gateway: %v", err)
	}
	defer gateway.Close()

	requests := queue.New(queue.Config{
		MinDelay:    config.Ms(cfg.Tunables.QueueMinDelayMs),
		SettleDelay: config.Ms(cfg.Tunables.QueueSettleDelayMs),
		ItemTimeout: config.Ms(cfg.Tunables.QueueItemTimeoutMs),
	})

	orchestrator := planner.NewOrchestrator(gateway,
		planner.WithNotifier(func(msg string) { log.Println(msg) }),
	)

	application := app.New(
		cfg,
		requests,
		location.NewResolver(requests, cfg.Tunables),
		environment.NewFetcher(cfg.Tunables, cfg.AQIToken),
		places.NewSearcher(requests, cfg.Tunables),
		events.NewScraper(),
		gateway,
		orchestrator,
		metricsStore,
	)

	bot, err := telegram.NewBot(cfg, application, metricsStore)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	bot.RegisterHandlers()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	application.Stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
