package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/eld-core/ingestor/internal/api"
	"github.com/eld-core/ingestor/internal/api/middleware"
	"github.com/eld-core/ingestor/internal/chain"
	"github.com/eld-core/ingestor/internal/config"
	"github.com/eld-core/ingestor/internal/dlq"
	"github.com/eld-core/ingestor/internal/idempotency"
	"github.com/eld-core/ingestor/internal/pipeline"
	"github.com/eld-core/ingestor/internal/retry"
	"github.com/eld-core/ingestor/internal/sequencer"
	"github.com/eld-core/ingestor/internal/storage"
	"github.com/eld-core/ingestor/internal/validator"
	"github.com/eld-core/ingestor/internal/vault"
)

const defaultDLQAlertThreshold = 50

// reingestAdapter breaks the construction cycle between dlq.New (which
// needs a Reingester) and pipeline.New (which needs the already-built
// *dlq.Service): it's handed to dlq.New empty and pointed at the real
// pipeline once it exists. Mirrors internal/api/integration_test.go's
// test-side composition.
type reingestAdapter struct {
	pipeline *pipeline.Pipeline
}

func (a *reingestAdapter) Reingest(ctx context.Context, payload []byte, sourceDeviceID string) (dlq.ReingestResult, error) {
	return a.pipeline.Reingest(ctx, payload, sourceDeviceID)
}

// compose wires every collaborator the ingestion API needs and returns
// a ready-to-start Server along with a cleanup func that releases the
// database connection and Redis client.
func compose(cfg *api.ServerConfig, logger *slog.Logger) (*api.Server, func(), error) {
	storageConfig := storage.LoadConfig()

	conn, err := storage.NewConnection(storageConfig)
	if err != nil {
		return nil, nil, err
	}

	credentialStore := storage.NewCredentialStore(conn)
	eventStore := storage.NewEventStore(conn)
	sequenceStore := storage.NewSequenceStore(conn)
	vaultStore := storage.NewVaultStore(conn)
	dlqStore := storage.NewDLQStore(conn)
	xrefStore := storage.NewXrefStore(conn)

	redisClient := redis.NewClient(&redis.Options{
		Addr: config.GetEnvStr("INGESTOR_REDIS_ADDR", "localhost:6379"),
	})

	idempotencyGate := idempotency.NewGate(
		idempotency.NewRedisStore(redisClient),
		idempotency.NewFallbackStore(),
		logger,
	)

	xref := validator.Layer3ConfigFromEnv()

	retrierConfig := retry.Config{
		MaxAttempts: config.GetEnvInt("INGESTOR_RETRY_MAX_ATTEMPTS", 0),
		BaseDelay:   config.GetEnvDuration("INGESTOR_RETRY_BASE_DELAY", 0),
		MaxDelay:    config.GetEnvDuration("INGESTOR_RETRY_MAX_DELAY", 0),
	}

	adapter := &reingestAdapter{}
	threshold := config.GetEnvInt("INGESTOR_DLQ_ALERT_THRESHOLD", defaultDLQAlertThreshold)
	dlqSvc := dlq.New(dlqStore, adapter, threshold, logger)

	pipe := pipeline.New(pipeline.Deps{
		Vault:       vault.New(vaultStore),
		Idempotency: idempotencyGate,
		Validator:   validator.New(&xref),
		Sequencer:   sequencer.NewAllocator(sequenceStore),
		Appender:    chain.NewAppender(eventStore),
		DLQ:         dlqSvc,
		Retrier:     retry.New(retrierConfig, logger),
		Resolver:    xrefStore,
		Decoder:     api.NewEventDecoder(),
		Logger:      logger,
	})
	adapter.pipeline = pipe

	rateLimiter := middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	server := api.NewServer(cfg, credentialStore, rateLimiter,
		pipe, dlqSvc, sequencer.NewAllocator(sequenceStore), chain.NewVerifier(eventStore), eventStore)

	cleanup := func() {
		rateLimiter.Close()

		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.String("error", err.Error()))
		}

		if err := conn.Close(); err != nil {
			logger.Warn("failed to close database connection", slog.String("error", err.Error()))
		}
	}

	return server, cleanup, nil
}
