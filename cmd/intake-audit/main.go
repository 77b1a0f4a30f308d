package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/database"
	"github.com/neurotrace/intake/pkg/common/kafka"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/intake"
	"github.com/neurotrace/intake/pkg/observability/metrics"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := intake.NewAuditRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit tables")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.IntakeEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := repo.CleanupExpired(ctx, cfg.AuditRetention); err != nil {
					logger.Log.WithError(err).Warn("audit cleanup failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.IntakeEventsTopic,
			"group": cfg.KafkaGroupID,
		}).Info("Intake Audit consumer started")

		done <- consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			if event.Type != models.EventIntakeExtracted {
				return nil
			}
			rec, err := intake.AuditFromEvent(event)
			if err != nil {
				// Undecodable payloads would fail forever; drop them.
				logger.Log.WithError(err).WithField("event_id", event.ID).Warn("skipping malformed event")
				return nil
			}
			if err := repo.Create(ctx, rec); err != nil {
				return err
			}
			metrics.ObserveAuditRow()
			return nil
		})
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Log.Info("Shutting down Intake Audit consumer...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}

	logger.Log.Info("Intake Audit consumer stopped")
}
