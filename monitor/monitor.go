package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config controls buffer bounds, sweep cadence, and threshold rules.
// Config instances are configured during initialization and then treated as
// immutable.
type Config struct {
	Capacity                int           // max buffered events, default 100
	MaxEventAge             time.Duration // age-based eviction bound, default 1h
	SweepInterval           time.Duration // default 10m
	TokenAccessThreshold    int           // default 5
	TokenAccessWindow       time.Duration // default 60s
	SuspiciousThreshold     int           // default 3
	SuspiciousWindow        time.Duration // default 300s
}

// DefaultConfig returns the documented default bounds.
func DefaultConfig() Config {
	return Config{
		Capacity:             100,
		MaxEventAge:          time.Hour,
		SweepInterval:        10 * time.Minute,
		TokenAccessThreshold: 5,
		TokenAccessWindow:    60 * time.Second,
		SuspiciousThreshold:  3,
		SuspiciousWindow:     300 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.MaxEventAge <= 0 {
		c.MaxEventAge = d.MaxEventAge
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.TokenAccessThreshold <= 0 {
		c.TokenAccessThreshold = d.TokenAccessThreshold
	}
	if c.TokenAccessWindow <= 0 {
		c.TokenAccessWindow = d.TokenAccessWindow
	}
	if c.SuspiciousThreshold <= 0 {
		c.SuspiciousThreshold = d.SuspiciousThreshold
	}
	if c.SuspiciousWindow <= 0 {
		c.SuspiciousWindow = d.SuspiciousWindow
	}
	return c
}

// EscalationFunc receives the synthesized escalation event. A Critical
// escalation is the forced-logout path and runs synchronously inside Log.
type EscalationFunc func(Event)

// Monitor buffers security events and evaluates threshold rules after every
// append. All methods are safe for concurrent use.
type Monitor struct {
	mu             sync.Mutex
	cfg            Config
	logger         zerolog.Logger
	escalate       EscalationFunc
	events         []Event
	lastEscalation map[EventType]time.Time

	startOnce sync.Once
	closeOnce sync.Once
	sweepStop chan struct{}
	sweepDone chan struct{}

	now func() time.Time
}

// New creates a Monitor. escalate may be nil, in which case escalations are
// only logged.
func New(cfg Config, logger zerolog.Logger, escalate EscalationFunc) *Monitor {
	return &Monitor{
		cfg:            cfg.withDefaults(),
		logger:         logger,
		escalate:       escalate,
		lastEscalation: make(map[EventType]time.Time),
		sweepStop:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
		now:            time.Now,
	}
}

// Log appends ev, evicting the oldest entry beyond capacity, then evaluates
// the threshold rules. Log never panics past the caller: any failure in the
// monitor itself falls back to a best-effort log line.
func (m *Monitor) Log(ev Event) {
	if m == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Any("panic", r).Msg("security monitor log path failed")
		}
	}()

	escalation, ok := m.buffer(ev)

	m.logger.Debug().
		Str("event", ev.Type.String()).
		Str("severity", ev.Severity.String()).
		Msg("security event")

	if !ok {
		return
	}

	m.logger.Warn().
		Str("event", escalation.Type.String()).
		Str("severity", escalation.Severity.String()).
		Any("details", escalation.Details).
		Msg("security escalation")

	if m.escalate != nil {
		m.escalate(escalation)
	}
}

// buffer stamps and appends ev, then evaluates the threshold rules. The
// deferred unlock releases the mutex even when evaluation panics, so a
// recovered failure cannot wedge later Log calls.
func (m *Monitor) buffer(ev Event) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	m.events = append(m.events, ev)
	if len(m.events) > m.cfg.Capacity {
		m.events = m.events[len(m.events)-m.cfg.Capacity:]
	}

	return m.evaluateLocked(ev)
}

// evaluateLocked applies the threshold rules for the freshly appended event.
// The caller holds m.mu.
func (m *Monitor) evaluateLocked(ev Event) (Event, bool) {
	switch ev.Type {
	case FingerprintMismatch:
		// A single mismatch is a hijacked or migrated credential; no window
		// dedupe applies.
		return m.escalationLocked(ev, SeverityCritical, "fingerprint mismatch", 0), true

	case TokenAccess:
		window := m.cfg.TokenAccessWindow
		if m.countSinceLocked(TokenAccess, ev.Timestamp.Add(-window)) < m.cfg.TokenAccessThreshold {
			return Event{}, false
		}
		if m.escalatedWithinLocked(TokenAccess, ev.Timestamp, window) {
			return Event{}, false
		}
		return m.escalationLocked(ev, SeverityHigh, "excessive token access", window), true

	case SuspiciousRequest:
		window := m.cfg.SuspiciousWindow
		if m.countSinceLocked(SuspiciousRequest, ev.Timestamp.Add(-window)) < m.cfg.SuspiciousThreshold {
			return Event{}, false
		}
		if m.escalatedWithinLocked(SuspiciousRequest, ev.Timestamp, window) {
			return Event{}, false
		}
		return m.escalationLocked(ev, SeverityHigh, "repeated suspicious requests", window), true
	}

	return Event{}, false
}

func (m *Monitor) escalationLocked(src Event, severity Severity, reason string, window time.Duration) Event {
	m.lastEscalation[src.Type] = src.Timestamp
	details := map[string]any{
		"reason":    reason,
		"source_id": src.ID,
		"window":    window.String(),
	}
	// The escalation handler needs the session to act on.
	if sid, ok := src.Details["session_id"]; ok {
		details["session_id"] = sid
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      src.Type,
		Timestamp: src.Timestamp,
		Severity:  severity,
		Details:   details,
	}
}

func (m *Monitor) countSinceLocked(t EventType, cutoff time.Time) int {
	n := 0
	for _, ev := range m.events {
		if ev.Type == t && !ev.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

func (m *Monitor) escalatedWithinLocked(t EventType, at time.Time, window time.Duration) bool {
	last, ok := m.lastEscalation[t]
	if !ok {
		return false
	}
	return at.Sub(last) < window
}

// Events returns a point-in-time copy of the buffer, oldest first.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Len returns the current number of buffered events.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// StartSweep launches the periodic age-based sweep. It is guarded against
// double initialization: only the first call starts a goroutine.
func (m *Monitor) StartSweep() {
	m.startOnce.Do(func() {
		go m.sweepLoop()
	})
}

func (m *Monitor) sweepLoop() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepOnce()
		case <-m.sweepStop:
			return
		}
	}
}

// sweepOnce drops entries older than MaxEventAge, independent of the size
// bound.
func (m *Monitor) sweepOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.MaxEventAge)
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	m.events = kept
}

// Close stops the sweep goroutine. It is idempotent and safe to call whether
// or not StartSweep ran.
func (m *Monitor) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() {
		close(m.sweepStop)
	})
}
