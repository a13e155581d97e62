// Package alert delivers operational alerts to the configured sinks.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/platform/id"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// Message is an alert stamped with an id and time for delivery.
type Message struct {
	ID       string
	Severity usecase.AlertSeverity
	Title    string
	Text     string
	Fields   map[string]string
	At       time.Time
}

type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans an alert out to every sink. A failing sink does not stop
// the others; the joined error is returned after all were tried.
type Dispatcher struct {
	sinks  []Sink
	ids    id.Generator
	logger *logging.Logger
	now    func() time.Time
}

var _ usecase.Alerter = (*Dispatcher)(nil)

func NewDispatcher(logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sinks:  sinks,
		ids:    id.NewULIDGenerator(),
		logger: logger.Named("alert"),
		now:    time.Now,
	}
}

func (d *Dispatcher) Alert(ctx context.Context, a usecase.Alert) error {
	alertID, err := d.ids.NewID()
	if err != nil {
		return err
	}
	msg := Message{
		ID:       alertID,
		Severity: a.Severity,
		Title:    a.Title,
		Text:     a.Message,
		Fields:   a.Fields,
		At:       d.now().UTC(),
	}

	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			d.logger.WarnContext(ctx, "alert sink failed", "sink", sink.Name(), "alert_id", alertID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to the service log. It is always installed so an
// alert is never lost when the webhook is down or unset.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	args := []any{"alert_id", msg.ID, "severity", string(msg.Severity), "title", msg.Title, "message", msg.Text}
	for k, v := range msg.Fields {
		args = append(args, k, v)
	}
	if msg.Severity == usecase.SeverityCritical {
		s.logger.ErrorContext(ctx, "ALERT", args...)
	} else {
		s.logger.WarnContext(ctx, "ALERT", args...)
	}
	return nil
}
