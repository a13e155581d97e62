package simworker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// ErrTransient marks failures worth counting against the breaker.
var ErrTransient = crerr.New("simulation worker transient failure")

type Config struct {
	// URL is the worker's trigger endpoint. The spec is POSTed as JSON.
	URL               string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	CircuitBreaker    resilience.CircuitBreakerConfig
}

// Client starts simulations on the external worker. The worker acknowledges
// and runs asynchronously; results come back through storage or the
// report route.
type Client struct {
	http    *fasthttp.Client
	url     string
	token   string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

var _ usecase.WorkerTrigger = (*Client)(nil)

func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, crerr.New("worker url is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http: &fasthttp.Client{
			Name:                "matchday-pipeline",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		url:     strings.TrimSpace(cfg.URL),
		token:   strings.TrimSpace(cfg.Token),
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		logger:  logger.Named("simworker"),
	}, nil
}

func (c *Client) Trigger(ctx context.Context, spec usecase.MatchSpec) error {
	body, err := sonic.Marshal(spec)
	if err != nil {
		return crerr.Wrap(err, "marshal match spec")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return crerr.Wrap(err, "worker rate limit wait")
	}

	err = c.breaker.Do(func() error {
		return c.post(ctx, spec.MatchID, body)
	}, func(err error) bool { return crerr.Is(err, ErrTransient) })
	if err != nil {
		c.logger.WarnContext(ctx, "worker trigger failed",
			"match_id", spec.MatchID,
			"league_id", spec.LeagueID,
			"dispatch", spec.Dispatch,
			"breaker_state", c.breaker.State(),
			"error", err,
		)
		return err
	}

	c.logger.InfoContext(ctx, "worker triggered", "match_id", spec.MatchID, "dispatch", spec.Dispatch)
	return nil
}

func (c *Client) post(ctx context.Context, matchID string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBody(body)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return crerr.Wrap(context.DeadlineExceeded, "worker trigger")
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return crerr.Mark(fmt.Errorf("trigger worker match=%s: %w", matchID, err), ErrTransient)
	}

	status := resp.StatusCode()
	if status/100 == 2 {
		return nil
	}
	msg := truncate(resp.Body(), 512)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return crerr.Mark(crerr.Newf("trigger worker match=%s status=%d body=%s", matchID, status, msg), ErrTransient)
	}
	return crerr.Newf("trigger worker match=%s status=%d body=%s", matchID, status, msg)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
