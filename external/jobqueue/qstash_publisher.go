package jobqueue

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errQStashTransient = crerr.New("qstash transient failure")

// HeaderInternalJobToken is forwarded by QStash to the target so the
// internal routes can authenticate queued calls.
const HeaderInternalJobToken = "X-Internal-Job-Token"

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// QStashPublisher puts delayed HTTP calls on Upstash QStash. The target is
// this service's own internal route, so a queued start or finalize task
// comes back as a normal authenticated POST.
type QStashPublisher struct {
	client           *http.Client
	baseURL          string
	token            string
	targetBaseURL    string
	retries          int
	internalJobToken string
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
}

func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) *QStashPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &QStashPublisher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		token:            strings.TrimSpace(cfg.Token),
		targetBaseURL:    strings.TrimRight(strings.TrimSpace(cfg.TargetBaseURL), "/"),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		logger:           logger.Named("qstash"),
		breaker:          resilience.NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

// Enqueue asks QStash to POST payload to the target path after delay.
// Calls sharing a deduplication id collapse into one delivery.
func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	call, err := p.newCall(path, delay, deduplicationID)
	if err != nil {
		return err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return crerr.Wrap(err, "marshal job payload")
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", call.targetURL),
			attribute.String("qstash.deduplication_id", call.header("Upstash-Deduplication-Id")),
			attribute.String("qstash.request_body", clip(string(body), maxLoggedBody)),
		)
	}
	p.logger.DebugContext(ctx, "qstash publish request", "path", call.path, "curl_preview", call.curl(clip(string(body), maxLoggedBody)))

	err = p.breaker.Do(func() error {
		return p.send(ctx, call, body)
	}, isQStashCircuitFailure)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		p.logger.WarnContext(ctx, "qstash circuit breaker rejected request", "state", p.breaker.State())
		return fmt.Errorf("qstash is temporarily unavailable: %w", err)
	}
	if err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "qstash job published", "path", call.path, "delay", delaySeconds(delay), "deduplication_id", deduplicationID)
	return nil
}

const maxLoggedBody = 4096

// publishCall is one resolved publish request. Headers keep insertion
// order so the curl preview matches what goes on the wire.
type publishCall struct {
	publishURL string
	targetURL  string
	path       string
	headers    [][2]string
}

func (p *QStashPublisher) newCall(path string, delay time.Duration, deduplicationID string) (publishCall, error) {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return publishCall{}, crerr.New("job path is required")
	}
	qstashURL, err := httpBaseURL(p.baseURL)
	if err != nil {
		return publishCall{}, crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBase, err := httpBaseURL(p.targetBaseURL)
	if err != nil {
		return publishCall{}, crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}

	call := publishCall{targetURL: targetBase + path, path: path}
	call.publishURL = qstashURL + "/v2/publish/" + call.targetURL
	call.add("Authorization", "Bearer "+p.token)
	call.add("Content-Type", "application/json")
	call.add("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		call.add("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if delay > 0 {
		call.add("Upstash-Delay", delaySeconds(delay))
	}
	if id := strings.TrimSpace(deduplicationID); id != "" {
		call.add("Upstash-Deduplication-Id", id)
	}
	if p.internalJobToken != "" {
		call.add("Upstash-Forward-"+HeaderInternalJobToken, p.internalJobToken)
	}
	return call, nil
}

func (c *publishCall) add(name, value string) {
	c.headers = append(c.headers, [2]string{name, value})
}

func (c publishCall) header(name string) string {
	for _, h := range c.headers {
		if h[0] == name {
			return h[1]
		}
	}
	return ""
}

// curl renders the call as a shell command with credentials masked.
func (c publishCall) curl(body string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("curl -X POST " + shellQuote(c.publishURL))
	for _, h := range c.headers {
		value := h[1]
		switch h[0] {
		case "Authorization":
			value = "Bearer ***"
		case "Upstash-Forward-" + HeaderInternalJobToken:
			value = "***"
		}
		_, _ = buf.WriteString(" -H " + shellQuote(h[0]+": "+value))
	}
	_, _ = buf.WriteString(" -d " + shellQuote(body))
	_, _ = buf.WriteString(" # " + shellQuote("path="+c.path))
	return buf.String()
}

func (p *QStashPublisher) send(ctx context.Context, call publishCall, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.publishURL, bytes.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	for _, h := range call.headers {
		req.Header.Set(h[0], h[1])
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: publish qstash job target_url=%s: %v", errQStashTransient, call.targetURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	err = fmt.Errorf("publish qstash job status=%d target_url=%s body=%s",
		resp.StatusCode, call.targetURL, strings.TrimSpace(string(raw)))
	if isQStashRetryableStatus(resp.StatusCode) {
		return fmt.Errorf("%w: %v", errQStashTransient, err)
	}
	return err
}

func delaySeconds(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	return strconv.Itoa(int(delay.Round(time.Second).Seconds())) + "s"
}

func httpBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	switch {
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	case parsed.Host == "":
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return strings.TrimRight(candidate, "/"), nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func clip(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}

func isQStashCircuitFailure(err error) bool {
	return stderrors.Is(err, errQStashTransient)
}

func isQStashRetryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= http.StatusInternalServerError
	}
}
