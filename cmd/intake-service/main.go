package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/database"
	"github.com/neurotrace/intake/pkg/common/kafka"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/gateway/middleware"
	"github.com/neurotrace/intake/pkg/intake"
	"github.com/neurotrace/intake/pkg/observability/metrics"
	"github.com/neurotrace/intake/pkg/prediction"
)

func main() {
	logger.Init()
	cfg := config.Load()

	pipeline, err := intake.NewPipeline(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build extraction pipeline")
	}

	var publisher intake.EventPublisher
	if len(cfg.KafkaBrokers) > 0 && cfg.IntakeEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.IntakeEventsTopic)
		defer producer.Close()
		publisher = producer
	}

	var recorder intake.PredictionRecorder
	var audits intake.AuditReader
	if cfg.AuditEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres()

		repo := prediction.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate prediction tables")
		}
		recorder = repo

		auditRepo := intake.NewAuditRepository(db)
		if err := auditRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate audit tables")
		}
		audits = auditRepo
	}

	predictor := prediction.NewClient(cfg)
	svc := intake.NewService(pipeline, publisher, predictor, recorder, audits)
	handler := intake.NewHTTPHandler(svc, cfg.MaxUploadBytes)

	var counter middleware.WindowCounter = middleware.NewMemoryCounter()
	if cfg.RedisHost != "" {
		counter = middleware.NewRedisCounter(database.GetRedis(cfg))
		defer database.CloseRedis()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		status, err := predictor.Health(ctx)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"not ready","prediction_service":%q}`, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready","prediction_service":%q}`, status)
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		middleware.RateLimit(counter, cfg.RateLimitPerMinute, time.Minute, cfg.TrustedProxies),
		middleware.BodyLimit(cfg.MaxUploadBytes+1<<20),
	)
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Intake Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Intake Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Intake Service stopped")
}
