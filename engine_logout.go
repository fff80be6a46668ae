package sessionguard

import (
	"context"
	"fmt"
	"net/http"
)

// Logout tears down both halves unconditionally: the server-side record is
// deleted and the cookie is cleared even when the store call fails, so a
// broken backend can never leave the browser holding a usable session id.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	deleteErr := e.sessionStore.Delete(ctx, sessionID)

	if w != nil && e.cookies != nil {
		e.cookies.Clear(w)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	if deleteErr != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", sessionID, ErrSessionInvalidationFailed, nil)
		return fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, deleteErr)
	}

	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// ForceLogout is the unrecoverable exit: invoked by the monitor's Critical
// escalations and by refresh failure handling. The session delete is
// best-effort; the user-facing condition is always the generic
// [ErrForcedLogout], never the internal cause.
func (e *Engine) ForceLogout(ctx context.Context, sessionID, reason string) {
	if e == nil {
		return
	}

	if sessionID != "" && e.sessionStore != nil {
		if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID).Msg("forced logout session delete failed")
		}
	}

	e.metricInc(MetricForcedLogout)
	e.metricInc(MetricSessionInvalidated)
	e.logger.Warn().Str("session_id", sessionID).Str("reason", reason).Msg("forced logout")
	e.emitAudit(ctx, auditEventForcedLogout, false, "", sessionID, ErrForcedLogout, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}
