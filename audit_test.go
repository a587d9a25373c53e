package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type panickySink struct{}

func (panickySink) Record(context.Context, AuditEvent) (string, error) {
	panic("sink exploded")
}

type failingSink struct{}

func (failingSink) Record(context.Context, AuditEvent) (string, error) {
	return "", errors.New("backend down")
}

type slowSink struct {
	release chan struct{}
}

func (s *slowSink) Record(_ context.Context, event AuditEvent) (string, error) {
	<-s.release
	return event.ID, nil
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, panickySink{})

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), AuditEvent{ID: "e", Action: auditActionLoginFailed})
	}
	d.Close()

	if d.Failed() != 3 {
		t.Fatalf("expected 3 failed deliveries, got %d", d.Failed())
	}
}

func TestDispatcherCountsSinkErrors(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, failingSink{})

	d.Emit(context.Background(), AuditEvent{ID: "e1"})
	d.Emit(context.Background(), AuditEvent{ID: "e2"})
	d.Close()

	if d.Failed() != 2 {
		t.Fatalf("expected 2 failed deliveries, got %d", d.Failed())
	}
}

func TestDispatcherShedsWhenBufferFull(t *testing.T) {
	sink := &slowSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first event occupies the worker, the second fills the buffer, the
	// rest must be shed without blocking this goroutine.
	deadline := time.After(2 * time.Second)
	for i := 0; i < 10; i++ {
		finished := make(chan struct{})
		go func() {
			d.Emit(context.Background(), AuditEvent{ID: "e"})
			close(finished)
		}()
		select {
		case <-finished:
		case <-deadline:
			t.Fatal("Emit blocked with DropIfFull set")
		}
	}

	close(sink.release)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{ID: "e", Action: auditActionLoginSuccess})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != 5 {
		t.Fatalf("expected 5 events drained on close, got %d", delivered)
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: false}, NoOpSink{})
	d.Close()

	finished := make(chan struct{})
	go func() {
		d.Emit(context.Background(), AuditEvent{ID: "e"})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked after Close")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	for _, action := range []string{auditActionLoginSuccess, auditActionAccountLocked} {
		if _, err := sink.Record(context.Background(), AuditEvent{
			ID:        "evt-" + action,
			Timestamp: testNow,
			ActorID:   "u1",
			Action:    action,
			Status:    AuditStatusSuccess,
		}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.Action != auditActionAccountLocked || event.ActorID != "u1" {
		t.Fatalf("unexpected event decoded: %+v", event)
	}
}

func TestAuditEventsCarryIDTimestampAndIP(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	env.seedAccount(t, "u1", "buyer@example.com", "Str0ngpass!")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := env.engine.Login(ctx, "buyer@example.com", "Str0ngpass!"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	event := waitEvent(t, env.sink, auditActionLoginSuccess)
	if event.ID == "" {
		t.Fatal("expected event ID assigned")
	}
	if !event.Timestamp.Equal(testNow) {
		t.Fatalf("expected timestamp %v, got %v", testNow, event.Timestamp)
	}
	if event.ActorID != "u1" || event.IP != "203.0.113.7" {
		t.Fatalf("unexpected actor/ip: %+v", event)
	}
	if event.Status != AuditStatusSuccess {
		t.Fatalf("expected success status, got %q", event.Status)
	}
}

func TestAuditFailureEventsCarryErrorCode(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	env.seedAccount(t, "u1", "buyer@example.com", "Str0ngpass!")

	env.engine.Login(context.Background(), "buyer@example.com", "wrong")

	event := waitEvent(t, env.sink, auditActionLoginFailed)
	if event.Status != AuditStatusFailure {
		t.Fatalf("expected failure status, got %q", event.Status)
	}
	if event.Error != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials code, got %q", event.Error)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false
	env, done := newTestEngine(t, cfg)
	defer done()
	env.seedAccount(t, "u1", "buyer@example.com", "Str0ngpass!")

	if _, err := env.engine.Login(context.Background(), "buyer@example.com", "Str0ngpass!"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	env.engine.Close()

	select {
	case event := <-env.sink.Events():
		t.Fatalf("expected no events with audit disabled, got %+v", event)
	default:
	}
}
