// Package notify provides Notifier implementations for the approval
// workflow. Delivery is best-effort by contract: callers log and swallow
// any error these implementations return.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LogNotifier writes notifications to the structured log. It stands in for
// a real chat-channel push in local and operator-CLI setups.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
// A nil logger uses slog.Default().
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{logger: l}
}

// Push implements approval.Notifier.
func (n *LogNotifier) Push(_ context.Context, channelRef, text string) error {
	n.logger.Info("notification", "channel", channelRef, "text", text)
	return nil
}

// Message is a recorded notification.
type Message struct {
	Channel string
	Text    string
}

// Recorder captures notifications in memory for tests and the scenario
// harness. Optionally fails every push to exercise the best-effort path.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failWith error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Push return err (and still record the
// message, so tests can assert the attempt happened).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Push implements approval.Notifier.
func (r *Recorder) Push(_ context.Context, channelRef, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Channel: channelRef, Text: text})
	return r.failWith
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Texts returns just the message texts, in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Text
	}
	return out
}
