package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newSugared(r *Ring) *zap.SugaredLogger {
	return zap.New(r.Core()).Sugar()
}

func TestRingKeepsMostRecent(t *testing.T) {
	r := NewRing(3, zapcore.DebugLevel)
	l := &Logger{ring: r, SugaredLogger: newSugared(r)}

	for _, msg := range []string{"one", "two", "three", "four"} {
		l.Infow(msg)
	}
	l.Warnw("five", "key", "value")

	got := l.Recent("")
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(got))
	}
	if got[0].Message != "three" || got[2].Message != "five" {
		t.Errorf("messages = %q, %q, %q", got[0].Message, got[1].Message, got[2].Message)
	}

	warns := l.Recent("warn")
	if len(warns) != 1 || warns[0].Fields["key"] != "value" {
		t.Errorf("warn entries = %+v", warns)
	}
}

func TestRingRespectsLevel(t *testing.T) {
	r := NewRing(10, zapcore.WarnLevel)
	l := &Logger{ring: r, SugaredLogger: newSugared(r)}

	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")

	if got := l.Recent(""); len(got) != 1 || got[0].Level != "error" {
		t.Errorf("Recent() = %+v", got)
	}
}

func TestWithComponentKeepsRing(t *testing.T) {
	l := NewNop()
	l.WithComponent("timer").Infow("tick")

	got := l.Recent("info")
	if len(got) != 1 || got[0].Fields["component"] != "timer" {
		t.Errorf("Recent() = %+v", got)
	}
}
