package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
)

// EventWriter serializes SSE frames onto a Fiber body-stream writer
// (*bufio.Writer, from fasthttp's SetBodyStreamWriter) and implements
// KeepAliveWriter so a TickerKeepAlive can run concurrently with the
// event-consuming loop: both paths take the same mutex, so a keepalive
// comment and an event frame never interleave on the wire.
type EventWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEventWriter wraps a body-stream writer for one SSE connection.
func NewEventWriter(w *bufio.Writer) *EventWriter {
	return &EventWriter{w: w}
}

// WriteEvent writes one `event: <name>\ndata: <json(payload)>\n\n` frame
// and flushes.
func (e *EventWriter) WriteEvent(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return e.w.Flush()
}

// WriteKeepAlive writes an SSE comment line, ignored by clients, so
// intermediary proxies don't time out an idle stream while the graph is
// between events (e.g. a slow tool call).
func (e *EventWriter) WriteKeepAlive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprint(e.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	return e.w.Flush()
}

var _ KeepAliveWriter = (*EventWriter)(nil)
