package app

import (
	"context"
	"fmt"

	"github.com/riskibarqy/matchday-pipeline/external/alert"
	"github.com/riskibarqy/matchday-pipeline/external/blobstore"
	"github.com/riskibarqy/matchday-pipeline/external/jobqueue"
	"github.com/riskibarqy/matchday-pipeline/external/simworker"
	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// newWorkerTrigger returns nil without a worker URL; dispatch then runs in
// batch mode and leaves fixtures to the daily manifest.
func newWorkerTrigger(cfg config.Config, logger *logging.Logger) (usecase.WorkerTrigger, error) {
	if cfg.WorkerURL == "" {
		logger.Warn("worker url not configured, dispatch runs in batch mode")
		return nil, nil
	}
	client, err := simworker.NewClient(simworker.Config{
		URL:               cfg.WorkerURL,
		Token:             cfg.WorkerToken,
		Timeout:           cfg.WorkerTimeout,
		RequestsPerSecond: cfg.WorkerRequestsPerSecond,
		Burst:             cfg.WorkerBurst,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.WorkerCircuitEnabled,
			FailureThreshold: cfg.WorkerCircuitFailureCount,
			OpenTimeout:      cfg.WorkerCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.WorkerCircuitHalfOpenMaxReq,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build worker client: %w", err)
	}
	return client, nil
}

func newBlobStore(ctx context.Context, cfg config.Config) (usecase.BlobStore, error) {
	if cfg.BlobDriver != config.BlobS3 {
		return blobstore.NewMemoryStore(cfg.BlobMemoryBaseURL), nil
	}
	store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("build s3 store: %w", err)
	}
	return store, nil
}

func newAlerter(cfg config.Config, logger *logging.Logger) (usecase.Alerter, error) {
	sinks := []alert.Sink{alert.NewLogSink(logger)}
	if cfg.SlackWebhookURL != "" {
		slack, err := alert.NewSlackSink(cfg.SlackWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("build slack sink: %w", err)
		}
		sinks = append(sinks, slack)
	}
	return alert.NewDispatcher(logger, sinks...), nil
}

func newJobQueue(cfg config.Config, logger *logging.Logger) usecase.JobQueue {
	if !cfg.QStashEnabled {
		return usecase.NewNoopJobQueue()
	}
	return jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
		BaseURL:          cfg.QStashBaseURL,
		Token:            cfg.QStashToken,
		TargetBaseURL:    cfg.QStashTargetBaseURL,
		Retries:          cfg.QStashRetries,
		InternalJobToken: cfg.InternalJobToken,
		Timeout:          cfg.QStashTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.QStashCircuitEnabled,
			FailureThreshold: cfg.QStashCircuitFailureCount,
			OpenTimeout:      cfg.QStashCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
		},
	}, logger)
}
