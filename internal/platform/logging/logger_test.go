package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestWriterLoggerEncodesPairsAndErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, LevelInfo).With("component", "dispatch")
	logger.Debug("hidden")
	logger.Warn("dispatch failed", "match_id", "M1", "error", errors.New("boom"), "dangling")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	for _, want := range []string{`"component":"dispatch"`, `"match_id":"M1"`, `"error":"boom"`, `"dangling":null`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestContextLoggerAddsTraceIDs(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	NewWriter(&buf, LevelDebug).InfoContext(ctx, "locked")

	if !strings.Contains(buf.String(), `"trace_id":"0102030405060708090a0b0c0d0e0f10"`) {
		t.Fatalf("missing trace id: %s", buf.String())
	}
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	t.Parallel()

	var logger *Logger
	logger.Info("no panic")
	if logger.With("k", "v") == nil {
		t.Fatalf("With on nil logger must return a usable logger")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: LevelInfo},
		{in: " DEBUG ", want: LevelDebug},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "fatal", want: LevelInfo, wantErr: true},
		{in: "loud", want: LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v,%v want=%v wantErr=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
