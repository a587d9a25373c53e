package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event statuses.
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// AuditEvent is one immutable, append-only security event. The engine assigns
// ID (a UUID) and Timestamp; the core never mutates or deletes recorded
// events — retention and export belong to the sink's owner.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   string            `json:"actor_id,omitempty"` // empty when the actor is unknown
	Action    string            `json:"action"`
	Resource  string            `json:"resource,omitempty"`
	Status    string            `json:"status"`
	IP        string            `json:"ip,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the engine's dispatcher and returns the
// stored event's identifier. Sink errors and panics are swallowed by the
// dispatcher: audit durability is best-effort relative to the security
// decision that produced the event, never a blocking dependency.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) (string, error)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Record implements [AuditSink].
func (NoOpSink) Record(_ context.Context, event AuditEvent) (string, error) {
	return event.ID, nil
}

// ChannelSink buffers events on a channel for consumption by a collaborator
// (log shipper, database writer, test assertion).
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Record implements [AuditSink].
func (s *ChannelSink) Record(ctx context.Context, event AuditEvent) (string, error) {
	select {
	case s.events <- event:
		return event.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON-encoded event per line to an [io.Writer].
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Record implements [AuditSink].
func (s *JSONWriterSink) Record(_ context.Context, event AuditEvent) (string, error) {
	if s == nil || s.writer == nil {
		return event.ID, nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return "", err
	}
	return event.ID, nil
}
