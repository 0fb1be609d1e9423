package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"lunabot/internal/telemetry/tracing"
)

func TestCorrelatedLogger_AddsTraceAndSpanID(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.New(slog.NewTextHandler(&buf, nil)))

	tr := tracing.NewTracer(true)
	ctx, span := tr.StartSpan(context.Background(), "tick")
	defer span.End()

	log.InfoCtx(ctx, "hello", "k", "v")
	out := buf.String()
	if !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Fatalf("expected trace/span attrs in log line: %s", out)
	}
}

func TestCorrelatedLogger_NoSpanOmitsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.New(slog.NewTextHandler(&buf, nil)))
	log.InfoCtx(context.Background(), "plain")
	if strings.Contains(buf.String(), "trace_id=") {
		t.Fatalf("unexpected trace id in: %s", buf.String())
	}
}

func TestCorrelatedLogger_WarnAndErrorLevelsWork(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.New(slog.NewTextHandler(&buf, nil)))
	log.WarnCtx(context.Background(), "careful")
	log.ErrorCtx(context.Background(), "broke")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected WARN and ERROR lines: %s", out)
	}
}
