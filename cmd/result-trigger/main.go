// result-trigger Lambda forwards result objects landing in storage to the
// pipeline's finalize route.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

const resultsPrefix = "results/"

type forwarder struct {
	client      *http.Client
	finalizeURL string
	secret      string
	logger      *logging.Logger
}

// handle forwards every created result object. A failed key does not stop
// the rest; the joined error makes Lambda retry the event, and the finalize
// route is idempotent for keys already applied.
func (f *forwarder) handle(ctx context.Context, event events.S3Event) error {
	var errs []error
	forwarded := 0
	for _, key := range resultKeys(event) {
		if err := f.forward(ctx, key); err != nil {
			f.logger.ErrorContext(ctx, "forward result failed", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		forwarded++
	}
	f.logger.InfoContext(ctx, "storage event handled",
		"records", len(event.Records),
		"forwarded", forwarded,
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

func (f *forwarder) forward(ctx context.Context, key string) error {
	body, err := sonic.Marshal(map[string]string{"key": key})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.finalizeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.secret)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post finalize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("finalize returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// resultKeys keeps created objects under results/.
func resultKeys(event events.S3Event) []string {
	keys := make([]string, 0, len(event.Records))
	for _, record := range event.Records {
		if !strings.HasPrefix(record.EventName, "ObjectCreated") {
			continue
		}
		key := objectKey(record.S3.Object)
		if !strings.HasPrefix(key, resultsPrefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func objectKey(object events.S3Object) string {
	if key := strings.TrimSpace(object.URLDecodedKey); key != "" {
		return key
	}
	raw := strings.TrimSpace(object.Key)
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func main() {
	cfg, err := config.LoadTrigger()
	if err != nil {
		panic(err)
	}
	logger := logging.NewJSON(cfg.LogLevel).Named("result-trigger")
	logging.SetDefault(logger)

	f := &forwarder{
		client:      &http.Client{Timeout: cfg.Timeout},
		finalizeURL: cfg.FinalizeURL,
		secret:      cfg.Secret,
		logger:      logger,
	}
	awslambda.Start(f.handle)
}
