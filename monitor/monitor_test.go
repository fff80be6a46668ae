package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureEscalation struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureEscalation) fn(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureEscalation) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func newTestMonitor(cap *captureEscalation, cfg Config) *Monitor {
	var fn EscalationFunc
	if cap != nil {
		fn = cap.fn
	}
	return New(cfg, zerolog.Nop(), fn)
}

func TestLogAssignsTimestampAndID(t *testing.T) {
	m := newTestMonitor(nil, Config{})
	m.Log(Event{Type: TokenAccess, Severity: SeverityLow})

	events := m.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Fatal("expected generated event id")
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("expected assigned timestamp")
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	m := newTestMonitor(nil, Config{Capacity: 3})
	base := time.Now()
	for i := 0; i < 5; i++ {
		m.Log(Event{ID: string(rune('a' + i)), Type: TokenExpiry, Severity: SeverityMedium, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	events := m.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(events))
	}
	if events[0].ID != "c" || events[2].ID != "e" {
		t.Fatalf("expected oldest-first eviction, got %q..%q", events[0].ID, events[2].ID)
	}
}

func TestTokenAccessBurstEscalatesOnceHigh(t *testing.T) {
	cap := &captureEscalation{}
	m := newTestMonitor(cap, Config{})

	base := time.Now()
	for i := 0; i < 5; i++ {
		m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	escalations := cap.all()
	if len(escalations) != 1 {
		t.Fatalf("expected exactly one escalation after 5 accesses, got %d", len(escalations))
	}
	if escalations[0].Severity != SeverityHigh {
		t.Fatalf("expected High severity, got %v", escalations[0].Severity)
	}

	// A sixth access inside the same window must not duplicate the escalation.
	m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: base.Add(6 * time.Second)})
	if got := len(cap.all()); got != 1 {
		t.Fatalf("expected no duplicate escalation within the window, got %d", got)
	}

	// After the window has elapsed, a fresh burst escalates again.
	later := base.Add(2 * time.Minute)
	for i := 0; i < 5; i++ {
		m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: later.Add(time.Duration(i) * time.Second)})
	}
	if got := len(cap.all()); got != 2 {
		t.Fatalf("expected a second escalation after the window elapsed, got %d", got)
	}
}

func TestTokenAccessBelowThresholdNoEscalation(t *testing.T) {
	cap := &captureEscalation{}
	m := newTestMonitor(cap, Config{})

	base := time.Now()
	for i := 0; i < 4; i++ {
		m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	if got := len(cap.all()); got != 0 {
		t.Fatalf("expected no escalation below threshold, got %d", got)
	}
}

func TestTokenAccessOutsideWindowNotCounted(t *testing.T) {
	cap := &captureEscalation{}
	m := newTestMonitor(cap, Config{})

	base := time.Now()
	// Four stale accesses, then one fresh: never five within 60s.
	for i := 0; i < 4; i++ {
		m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	m.Log(Event{Type: TokenAccess, Severity: SeverityLow, Timestamp: base.Add(5 * time.Minute)})

	if got := len(cap.all()); got != 0 {
		t.Fatalf("expected no escalation for accesses spread past the window, got %d", got)
	}
}

func TestFingerprintMismatchEscalatesImmediatelyCritical(t *testing.T) {
	cap := &captureEscalation{}
	m := newTestMonitor(cap, Config{})

	m.Log(Event{Type: FingerprintMismatch, Severity: SeverityCritical})

	escalations := cap.all()
	if len(escalations) != 1 {
		t.Fatalf("expected immediate escalation, got %d", len(escalations))
	}
	if escalations[0].Severity != SeverityCritical {
		t.Fatalf("expected Critical severity, got %v", escalations[0].Severity)
	}
}

func TestSuspiciousRequestThreshold(t *testing.T) {
	cap := &captureEscalation{}
	m := newTestMonitor(cap, Config{})

	base := time.Now()
	for i := 0; i < 3; i++ {
		m.Log(Event{Type: SuspiciousRequest, Severity: SeverityMedium, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	escalations := cap.all()
	if len(escalations) != 1 {
		t.Fatalf("expected one escalation after 3 suspicious requests in 300s, got %d", len(escalations))
	}
	if escalations[0].Severity != SeverityHigh {
		t.Fatalf("expected High severity, got %v", escalations[0].Severity)
	}
}

func TestEscalationPanicSwallowed(t *testing.T) {
	m := New(Config{}, zerolog.Nop(), func(Event) {
		panic("escalation handler exploded")
	})

	// Must not propagate: logging a security event cannot crash the request.
	m.Log(Event{Type: FingerprintMismatch, Severity: SeverityCritical})

	if m.Len() != 1 {
		t.Fatalf("expected event still buffered, got %d", m.Len())
	}
}

func TestLogPanicReleasesMutex(t *testing.T) {
	m := newTestMonitor(nil, Config{})

	// Force a panic inside the locked section.
	m.now = func() time.Time { panic("clock exploded") }
	m.Log(Event{Type: TokenAccess, Severity: SeverityLow})

	m.now = time.Now
	done := make(chan struct{})
	go func() {
		m.Log(Event{Type: TokenAccess, Severity: SeverityLow})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mutex still held after recovered panic")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 buffered event after recovery, got %d", m.Len())
	}
}

func TestSweepRemovesAgedEntriesIndependentOfCapacity(t *testing.T) {
	m := newTestMonitor(nil, Config{Capacity: 100, MaxEventAge: time.Hour})

	old := time.Now().Add(-2 * time.Hour)
	m.Log(Event{Type: TokenExpiry, Severity: SeverityMedium, Timestamp: old})
	m.Log(Event{Type: TokenExpiry, Severity: SeverityMedium})

	m.sweepOnce()

	events := m.Events()
	if len(events) != 1 {
		t.Fatalf("expected aged entry swept, got %d events", len(events))
	}
	if events[0].Timestamp.Before(time.Now().Add(-time.Minute)) {
		t.Fatal("sweep kept the wrong entry")
	}
}

func TestStartSweepGuardsDoubleInitAndCloseIdempotent(t *testing.T) {
	m := newTestMonitor(nil, Config{SweepInterval: time.Millisecond})
	m.StartSweep()
	m.StartSweep()

	m.Close()
	m.Close()

	select {
	case <-m.sweepDone:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not stop after Close")
	}
}
