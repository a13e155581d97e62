// Package scheduler fires the daily pipeline stages against the API on a
// wall-clock schedule in the pipeline time zone.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/resilience"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultRequestTimeout = 2 * time.Minute
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
)

// Job is one scheduled POST against an internal route.
type Job struct {
	Name   string
	Spec   string
	Path   string
	Secret string
}

// Secrets are the bearer tokens per stage, already resolved through the
// route group fallbacks.
type Secrets struct {
	Lock        string
	Batch       string
	Orchestrate string
	Heartbeat   string
}

// DailyJobs is the evening run: lock at 18:30, manifest at 18:45, kickoff
// at 19:00, health check at 23:30.
func DailyJobs(s Secrets) []Job {
	return []Job{
		{Name: "lock-lineups", Spec: "30 18 * * *", Path: "/v1/internal/lineups/lock", Secret: s.Lock},
		{Name: "daily-batch", Spec: "45 18 * * *", Path: "/v1/internal/batches/daily", Secret: s.Batch},
		{Name: "orchestrate", Spec: "0 19 * * *", Path: "/v1/internal/matches/orchestrate", Secret: s.Orchestrate},
		{Name: "heartbeat-watchdog", Spec: "30 23 * * *", Path: "/v1/internal/heartbeat/watchdog", Secret: s.Heartbeat},
	}
}

// Leader is held by at most one replica at a time.
type Leader interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	TTL() time.Duration
}

type Config struct {
	BaseURL        string
	Location       *time.Location
	RequestTimeout time.Duration
	// RetryAttempts bounds posts per fire, counting the first one.
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Runner owns the cron and the leadership loop. Jobs fire only while this
// replica holds the leader lock; a nil leader means a single replica.
type Runner struct {
	cfg      Config
	jobs     []Job
	leader   Leader
	client   *http.Client
	logger   *logging.Logger
	isLeader atomic.Bool
	cron     *cron.Cron
}

func NewRunner(cfg Config, jobs []Job, leader Leader, logger *logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scheduler api base url is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}

	r := &Runner{
		cfg:    cfg,
		jobs:   jobs,
		leader: leader,
		client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("scheduler"),
	}
	if leader == nil {
		r.isLeader.Store(true)
	}

	cl := cronLogger{logger: r.logger}
	r.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, job := range jobs {
		if _, err := r.cron.AddFunc(job.Spec, func() { r.fire(context.Background(), job) }); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}
	return r, nil
}

// Run blocks until ctx is done, then stops the cron, waits for running jobs
// and gives up leadership.
func (r *Runner) Run(ctx context.Context) error {
	r.campaign(ctx)
	r.cron.Start()
	r.logger.Info("scheduler started", "jobs", len(r.jobs), "timezone", r.cfg.Location.String())

	var ticks <-chan time.Time
	if r.leader != nil {
		ticker := time.NewTicker(r.leader.TTL() / 3)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			<-r.cron.Stop().Done()
			if r.leader != nil && r.isLeader.Load() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := r.leader.Release(releaseCtx); err != nil {
					r.logger.Warn("release leadership failed", "error", err)
				}
				cancel()
			}
			r.logger.Info("scheduler stopped")
			return nil
		case <-ticks:
			r.campaign(ctx)
		}
	}
}

func (r *Runner) campaign(ctx context.Context) {
	if r.leader == nil {
		return
	}
	ok, err := r.leader.Acquire(ctx)
	if err != nil {
		r.logger.Error("leader election failed", "error", err)
		ok = false
	}
	if was := r.isLeader.Swap(ok); was != ok {
		r.logger.Info("leadership changed", "leader", ok)
	}
}

// fire posts an empty JSON body. Every stage endpoint is idempotent, so
// transport errors and gateway answers are retried with backoff; anything
// else is logged and left to the next schedule or a manual retry.
func (r *Runner) fire(ctx context.Context, job Job) {
	if !r.isLeader.Load() {
		r.logger.Debug("skip job, not leader", "job", job.Name)
		return
	}
	start := time.Now()
	var (
		status int
		body   string
	)
	err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts: r.cfg.RetryAttempts,
		BaseDelay:   r.cfg.RetryBaseDelay,
		OnRetry: func(attempt int, err error) {
			r.logger.Warn("scheduled job retrying", "job", job.Name, "attempt", attempt, "error", err)
		},
	}, func(ctx context.Context) error {
		var err error
		status, body, err = r.post(ctx, job)
		if err != nil {
			return err
		}
		if retryableStatus(status) {
			return fmt.Errorf("post %s: status %d", job.Path, status)
		}
		return nil
	})
	if status == 0 {
		r.logger.Error("scheduled job failed", "job", job.Name, "path", job.Path, "error", err)
		return
	}
	if status >= http.StatusMultipleChoices {
		r.logger.Error("scheduled job rejected",
			"job", job.Name,
			"path", job.Path,
			"status", status,
			"body", body,
		)
		return
	}
	r.logger.Info("scheduled job fired",
		"job", job.Name,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// retryableStatus covers answers from a proxy in front of a replica that
// is restarting. A 500 comes from the stage itself and is not retried.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (r *Runner) post(ctx context.Context, job Job) (int, string, error) {
	payload, err := sonic.Marshal(map[string]any{})
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+job.Path, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if job.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+job.Secret)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post %s: %w", job.Path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(raw), nil
}

// cronLogger adapts the pipeline logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
