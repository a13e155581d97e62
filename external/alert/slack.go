package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const slackTimeout = 10 * time.Second

// SlackSink posts alerts to a Slack incoming webhook.
type SlackSink struct {
	url    string
	client *http.Client
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewSlackSink(url string) (*SlackSink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, crerr.New("slack webhook url required")
	}
	return &SlackSink{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout:   slackTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, msg Message) error {
	data, err := sonic.Marshal(buildSlackPayload(msg))
	if err != nil {
		return crerr.Wrap(err, "marshal slack payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return crerr.Wrap(err, "create slack request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return crerr.Wrap(err, "slack webhook POST failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return crerr.Newf("slack webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func buildSlackPayload(msg Message) slackPayload {
	color := "#f2c744"
	icon := ":warning:"
	if msg.Severity == "critical" {
		color = "#d40e0d"
		icon = ":rotating_light:"
	}

	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: msg.Fields[k], Short: true})
	}

	text := fmt.Sprintf("%s *%s*", icon, msg.Title)
	if msg.Text != "" {
		text += "\n" + msg.Text
	}
	return slackPayload{
		Text: text,
		Attachments: []slackAttachment{{
			Color:  color,
			Fields: fields,
			Footer: "matchday-pipeline " + msg.ID,
			Ts:     msg.At.Unix(),
		}},
	}
}
