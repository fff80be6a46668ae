package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stackshield/sessionguard/internal/rate"
	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/session"
	"github.com/stackshield/sessionguard/token"
)

// antiForgeryHeader is the header carrying the per-session anti-forgery
// token on state-changing requests in cookie mode.
const antiForgeryHeader = "X-CSRF-Token"

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// ValidateRequest authenticates one HTTP request in session-cookie mode:
// the signed cookie yields the opaque session id, the store yields the live
// record, and state-changing methods must additionally carry the session's
// anti-forgery token. An unauthenticated visitor is a normal case and maps
// to [ErrUnauthorized], never a panic or a cookie parse error.
//
// ValidateRequest may return an error when input validation, dependency calls, or security checks fail.
// ValidateRequest does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateRequest(ctx context.Context, r *http.Request) (*session.Record, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()

	sessionID := e.cookies.Read(r)
	if sessionID == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	}

	record, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventValidateRejected, false, "", sessionID, ErrSessionNotFound, nil)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if e.config.Security.CSRFProtection && stateChanging(r.Method) {
		supplied := r.Header.Get(antiForgeryHeader)
		ok, err := e.sessionStore.ValidateAntiForgery(ctx, sessionID, supplied)
		if err != nil {
			e.metricInc(MetricValidateFailure)
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		if !ok {
			e.metricInc(MetricAntiForgeryRejected)
			e.emitAudit(ctx, auditEventAntiForgeryRejected, false, record.OwnerUserID, sessionID, ErrAntiForgeryMismatch, func() map[string]string {
				return map[string]string{
					"method": r.Method,
				}
			})
			return nil, ErrAntiForgeryMismatch
		}
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return record, nil
}

// ValidateBearer authenticates a direct API call in client-cache mode:
// signature, expiry, issuer, and audience of the presented credential are
// verified server-side. No session store lookup is involved; the bearer
// credential is self-contained.
//
// ValidateBearer may return an error when input validation, dependency calls, or security checks fail.
// ValidateBearer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateBearer(ctx context.Context, raw string) (*token.Token, error) {
	if e == nil || e.tokenManager == nil {
		return nil, ErrEngineNotReady
	}
	if raw == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	}

	start := time.Now()

	cred, err := e.tokenManager.VerifyCredential(raw)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwt.ErrTokenExpired) {
			e.emitAudit(ctx, auditEventValidateRejected, false, "", "", ErrTokenExpired, nil)
			return nil, ErrTokenExpired
		}
		e.emitAudit(ctx, auditEventValidateRejected, false, "", "", ErrTokenInvalid, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return cred, nil
}

// Refresh rotates a live session: a fresh credential is signed for the
// session owner, a new record with a new id and anti-forgery token replaces
// the old one, and the old id stops working. The caller must re-issue the
// cookie from the returned result.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, sessionID string) (*LoginResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrSessionNotFound, nil)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			e.metricInc(MetricRefreshRateLimited)
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitAudit(ctx, auditEventRefreshRateLimited, false, record.OwnerUserID, sessionID, ErrRefreshRateLimited, nil)
				e.emitRateLimit(ctx, "refresh", nil)
			} else {
				// Limiter outage, not an exhausted budget.
				e.emitAudit(ctx, auditEventRefreshRateLimited, false, record.OwnerUserID, sessionID, err, nil)
			}
			return nil, ErrRefreshRateLimited
		}
	}

	outcome, err := e.loginProvider.LookupUser(ctx, record.OwnerUserID)
	if err != nil || outcome == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.OwnerUserID, sessionID, ErrRefreshFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	raw, err := e.tokenManager.CreateCredential(outcome.UserID, outcome.HashedUserID, outcome.HashedGroupID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	cred, err := e.tokenManager.VerifyCredential(raw)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	fresh, err := e.sessionStore.Create(ctx, cred, record.OwnerUserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.OwnerUserID, sessionID, ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	// Rotation: the old id dies even if the delete is best-effort.
	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		e.logger.Warn().Err(err).Msg("stale session delete failed during rotation")
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, record.OwnerUserID, fresh.SessionID, nil, func() map[string]string {
		return map[string]string{
			"rotated_from": sessionID,
		}
	})

	return &LoginResult{
		State:            StateAuthenticated,
		UserID:           record.OwnerUserID,
		SessionID:        fresh.SessionID,
		AntiForgeryToken: fresh.AntiForgeryToken,
		Credential:       raw,
	}, nil
}

// IssueCookie writes the signed session cookie for a freshly created or
// rotated session.
func (e *Engine) IssueCookie(w http.ResponseWriter, sessionID string) {
	if e == nil || e.cookies == nil {
		return
	}
	e.cookies.Issue(w, sessionID)
}

func (e *Engine) reportSuspicious(_ context.Context, sessionID, reason string) {
	if e == nil {
		return
	}
	e.monitor.Log(monitor.Event{
		Type:     monitor.SuspiciousRequest,
		Severity: monitor.SeverityMedium,
		Details: map[string]any{
			"reason":     reason,
			"session_id": sessionID,
		},
	})
}
