package diagnostic

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives advisory warnings. Implementations must be safe for
// concurrent use; the projector warns from many goroutines.
type Sink interface {
	Warn(message string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(message string)

// Warn calls f(message).
func (f SinkFunc) Warn(message string) {
	f(message)
}

// Discard drops every warning.
var Discard Sink = SinkFunc(func(string) {})

// Collector is a Sink that records every warning in arrival order.
type Collector struct {
	mu       sync.Mutex
	messages []string
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Warn records message.
func (c *Collector) Warn(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, message)
}

// Messages returns a copy of the recorded warnings.
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.messages))
	copy(out, c.messages)

	return out
}

// Count returns how many times message was recorded.
func (c *Collector) Count(message string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, m := range c.messages {
		if m == message {
			n++
		}
	}

	return n
}

// Diagnostics converts the recorded warnings into a Diagnostics value.
func (c *Collector) Diagnostics(code string) Diagnostics {
	var d Diagnostics
	for _, m := range c.Messages() {
		d.AddWarning(code, m, "", "")
	}

	return d
}

// Reset clears the recorded warnings.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
}

// LogSink forwards warnings to a slog.Logger at warn level.
type LogSink struct {
	Logger *slog.Logger
}

// Warn logs message.
func (s LogSink) Warn(message string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.LogAttrs(context.Background(), slog.LevelWarn, message, slog.String("component", "presenter"))
}

// Tee fans a warning out to every sink.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(message string) {
		for _, s := range sinks {
			if s != nil {
				s.Warn(message)
			}
		}
	})
}
