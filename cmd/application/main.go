package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"kaspimarket_api/config"
	"kaspimarket_api/internal/kaspi/app"
	"kaspimarket_api/metrics"
	"kaspimarket_api/pkg/dbconnect/postgres"
)

func main() {
	log.Printf("\nStarted app\n")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configPath, err)
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres = *config.GetPostgresConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.MetricsHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	connector := postgres.NewPgConnector(&cfg.Postgres)
	server := app.NewConveyorServer(connector, *cfg, os.Stdout)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Conveyor server failed: %v", err)
	}
}
