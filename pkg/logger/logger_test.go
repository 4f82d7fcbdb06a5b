package logger

import (
	"context"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	l := Get()
	if l == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Logging with fields must not panic.
	ctx := context.Background()
	l.Info(ctx, "test message", String("key", "value"), Int("n", 1))
	l.Named("child").Debug(ctx, "child message", Bool("ok", true))
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	for _, level := range []string{"debug", "info", "warn", "warning", "error", "", "DEBUG"} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("expected %q to parse, got %v", level, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected unknown level to fail")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l == nil {
		t.Fatal("discard logger is nil")
	}
	l.Error(context.Background(), "dropped", Error(nil))
}
