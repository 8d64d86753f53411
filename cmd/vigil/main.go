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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vigil-systems/vigil/internal/alerts"
	"github.com/vigil-systems/vigil/internal/client"
	"github.com/vigil-systems/vigil/internal/config"
	"github.com/vigil-systems/vigil/internal/counter"
	"github.com/vigil-systems/vigil/internal/detect"
	"github.com/vigil-systems/vigil/internal/eventstore"
	"github.com/vigil-systems/vigil/internal/handlers"
	"github.com/vigil-systems/vigil/internal/repository"
	"github.com/vigil-systems/vigil/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting vigil on port %d", cfg.Server.Port)
	if *configPath != "" {
		log.Printf("Loaded config from: %s", *configPath)
	}
	log.Printf("OpenSearch URL: %s", cfg.OpenSearch.URL)

	ctx := context.Background()

	// Run database migrations
	log.Println("Running database migrations...")
	m, err := migrate.New("file://migrations", cfg.Database.ConnString())
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database.ConnString())
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	osClient, err := client.NewOpenSearchClient(cfg.OpenSearch)
	if err != nil {
		log.Fatalf("Failed to create OpenSearch client: %v", err)
	}

	store := eventstore.New(osClient, cfg.OpenSearch.LogsPrefix)
	if err := store.EnsureTemplate(ctx); err != nil {
		log.Fatalf("Failed to install index template: %v", err)
	}

	// The counter is optional: a bad Redis config disables it rather than
	// blocking startup.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("Invalid Redis URL, counter disabled: %v", err)
		} else {
			redisClient = redis.NewClient(opts)
			defer redisClient.Close()
		}
	}
	ct := counter.New(redisClient, cfg.Redis.Enabled)

	if err := os.MkdirAll(cfg.Ingest.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory %s: %v", cfg.Ingest.UploadDir, err)
	}

	sink := alerts.NewSink(osClient, cfg.OpenSearch.AlertIndex, repo)
	engine := detect.NewEngine(store, sink, cfg.Detection)
	ingestor := service.NewIngestor(store, repo, ct, cfg.Ingest.SourceTag)

	handler := handlers.NewAPIHandler(ingestor, store, engine, repo, ct, osClient, cfg.Ingest)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/upload", handler.Upload)
	mux.HandleFunc("/api/v1/search", handler.Search)
	mux.HandleFunc("/api/v1/detect/run", handler.RunDetection)
	mux.HandleFunc("/api/v1/alerts", handler.ListAlerts)
	mux.HandleFunc("/api/v1/uploads", handler.ListUploads)
	mux.HandleFunc("/api/v1/stats", handler.Stats)
	mux.HandleFunc("/healthz", handler.Health)
	mux.HandleFunc("/readyz", handler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("vigil listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
