package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "revoke"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("expected 3 delivered events, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := len(sink.Events()); got != 3 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

type panickingSink struct{}

func (panickingSink) Emit(context.Context, Event) { panic("sink failure") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panickingSink{})
	d.Emit(context.Background(), Event{EventType: "revoke"})
	d.Emit(context.Background(), Event{EventType: "revoke"})
	d.Close()

	if d.Dropped() != 2 || d.Delivered() != 0 {
		t.Fatalf("expected 2 dropped 0 delivered, got %d/%d", d.Dropped(), d.Delivered())
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the stalled sink, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(ctx, Event{EventType: "c"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected a drop once the context expired")
	}

	close(sink.release)
	d.Close()
	if d.Delivered() < 2 {
		t.Fatalf("expected buffered events delivered, got %d", d.Delivered())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	NewJSONWriterSink(&buf).Emit(context.Background(), Event{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: "revoke",
		SubjectID: "42",
		TokenID:   "abc",
		Success:   true,
	})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["jti"] != "abc" || decoded["subject_id"] != "42" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestLoggerSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggerSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{EventType: "verify", Success: false, Error: "token revoked", TokenID: "t1"})
	sink.Emit(context.Background(), Event{EventType: "login_success", Success: true, SubjectID: "42"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"warn"`) || !strings.Contains(lines[0], `"jti":"t1"`) {
		t.Fatalf("unexpected failure line %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"info"`) || !strings.Contains(lines[1], `"component":"audit"`) {
		t.Fatalf("unexpected success line %s", lines[1])
	}
}
