package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogNotifier_Push(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := NewLogNotifier(logger)
	if err := n.Push(context.Background(), "#ops", "hello"); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "#ops") || !strings.Contains(out, "hello") {
		t.Errorf("log output missing channel or text: %q", out)
	}
}

func TestRecorder_CapturesInOrder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	_ = r.Push(ctx, "#ops", "first")
	_ = r.Push(ctx, "#ops", "second")

	got := r.Texts()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Texts() = %v, want [first second]", got)
	}
	if msgs := r.Messages(); msgs[0].Channel != "#ops" {
		t.Errorf("channel = %q, want #ops", msgs[0].Channel)
	}
}

func TestRecorder_FailWithStillRecords(t *testing.T) {
	r := NewRecorder()
	r.FailWith(errors.New("channel gone"))

	err := r.Push(context.Background(), "#ops", "doomed")
	if err == nil {
		t.Fatal("Push() = nil error, want injected failure")
	}
	if len(r.Texts()) != 1 {
		t.Errorf("recorded %d messages, want 1", len(r.Texts()))
	}
}
