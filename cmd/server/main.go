package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sachinthra/blobserve/internal/api"
	"github.com/sachinthra/blobserve/internal/config"
	"github.com/sachinthra/blobserve/internal/crypto"
	"github.com/sachinthra/blobserve/internal/logger"
	"github.com/sachinthra/blobserve/internal/storage"
	"github.com/sachinthra/blobserve/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	appLogger.Info("starting blobserve",
		slog.Int("http_port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	key, err := crypto.DecodeKeyHex(cfg.Security.AESKeyHex)
	if err != nil {
		appLogger.Error("invalid aes key", slog.String("error", err.Error()))
		log.Fatalf("invalid aes key: %v", err)
	}

	magic, err := crypto.ParseMagic(cfg.Security.ExpectedMagic)
	if err != nil {
		appLogger.Error("invalid expected magic", slog.String("error", err.Error()))
		log.Fatalf("invalid expected magic: %v", err)
	}

	bucket, err := storage.NewBucketStore(cfg.Storage.BucketDir)
	if err != nil {
		appLogger.Error("failed to initialize bucket store", slog.String("error", err.Error()))
		log.Fatalf("failed to initialize bucket store: %v", err)
	}
	appLogger.Info("bucket store ready", slog.String("dir", cfg.Storage.BucketDir))

	uploadHandler := api.NewUploadHandler(bucket, magic, cfg.Security.MaxUploadBytes, appLogger)
	streamHandler := api.NewStreamHandler(bucket, magic, key, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/objects", func(r chi.Router) {
		r.Post("/", uploadHandler.HandleUpload)
		r.Get("/{id}", streamHandler.HandleStream)
		r.Head("/{id}", streamHandler.HandleStream)
	})

	appLogger.Info("http routes configured")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Integrity.Enabled {
		integrityWorker := worker.NewIntegrityWorker(bucket, cfg.Integrity.Interval, appLogger)
		go integrityWorker.Start(ctx)
		appLogger.Info("integrity worker started", slog.Duration("interval", cfg.Integrity.Interval))
	}

	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("http server listening", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("http server failed", slog.String("error", err.Error()))
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server forced to shutdown", slog.String("error", err.Error()))
	}

	appLogger.Info("server stopped gracefully")
}
