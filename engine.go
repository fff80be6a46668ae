package sessionguard

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stackshield/sessionguard/cookie"
	internalaudit "github.com/stackshield/sessionguard/internal/audit"
	"github.com/stackshield/sessionguard/internal/rate"
	"github.com/stackshield/sessionguard/internal/stores"
	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/session"
	"github.com/stackshield/sessionguard/token"
)

// Engine defines a public type used by sessionguard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config        Config
	tokenManager  *token.Manager
	sessionStore  session.Store
	cookies       *cookie.Gateway
	monitor       *monitor.Monitor
	challenges    stores.ChallengeStore
	rateLimiter   *rate.Limiter
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	loginProvider LoginProvider
	logger        zerolog.Logger
}

// Close tears down every background goroutine the engine owns: the audit
// dispatcher, the session sweeper, and the monitor sweeper. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.sessionStore != nil {
		e.sessionStore.Close()
	}
	e.monitor.Close()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SecurityEvents returns a point-in-time copy of the monitor's event
// buffer, oldest first.
func (e *Engine) SecurityEvents() []monitor.Event {
	if e == nil || e.monitor == nil {
		return nil
	}
	return e.monitor.Events()
}

// LogSecurityEvent feeds an externally observed event (for example a cache
// anomaly from a client-side component) into the engine's monitor.
func (e *Engine) LogSecurityEvent(ev monitor.Event) {
	if e == nil {
		return
	}
	e.monitor.Log(ev)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// handleEscalation is the monitor's escalation callback. Critical means
// forced logout; lower severities are already logged by the monitor itself.
func (e *Engine) handleEscalation(ev monitor.Event) {
	if e == nil || ev.Severity != monitor.SeverityCritical {
		return
	}

	sessionID, _ := ev.Details["session_id"].(string)
	reason, _ := ev.Details["reason"].(string)
	if reason == "" {
		reason = ev.Type.String()
	}
	e.ForceLogout(context.Background(), sessionID, reason)
}
