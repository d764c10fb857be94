package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNew_JSONVerboseWritesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, "json", true)

	l.Log().Info().Str("user_id", "u1").Msg("question answered")

	out := buf.String()
	if !strings.Contains(out, "question answered") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "u1") {
		t.Errorf("expected field value in output, got %q", out)
	}
}

func TestNew_ConsoleVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, "console", true)

	l.Log().Info().Msg("console line")

	if !strings.Contains(buf.String(), "console line") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestNew_QuietSuppressesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, "json", false)

	l.Log().Info().Msg("should not appear")
	l.Log().Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("info should be suppressed without verbose, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn should be written, got %q", out)
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	l.Log().Error().Msg("discarded")
}

func TestStartSpan(t *testing.T) {
	l := Nop()
	ctx, span := l.StartSpan(context.Background(), "test-span")
	defer span.End()

	if ctx == nil {
		t.Fatal("expected non-nil context from StartSpan")
	}
	if span == nil {
		t.Fatal("expected non-nil span")
	}
}
