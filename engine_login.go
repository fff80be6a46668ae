package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stackshield/sessionguard/internal/rate"
	"github.com/stackshield/sessionguard/internal/stores"
)

// Login drives one login attempt from Unauthenticated to its first
// resting state: Authenticated when no second factor applies, or
// MFARequired / MFASetupRequired with a server-side challenge that
// [Engine.ConfirmMFA] or [Engine.CompleteMFASetup] later consumes.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.loginProvider == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	machine := NewAuthStateMachine()

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
				e.emitRateLimit(ctx, "login", func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
			} else {
				// Fail closed on a limiter outage, but the audit trail must
				// not read it as an exhausted budget.
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", err, func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
			}
			return nil, ErrLoginRateLimited
		}
	}

	if username == "" || password == "" {
		return nil, e.failLogin(ctx, username, ip, "", "empty_credentials")
	}

	outcome, err := e.loginProvider.VerifyPassword(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, e.failLogin(ctx, username, ip, "", "password_mismatch")
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrProviderUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "provider_error",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if outcome == nil || outcome.UserID == "" {
		return nil, e.failLogin(ctx, username, ip, "", "empty_outcome")
	}

	if e.rateLimiter != nil {
		// The budget belongs to failed attempts only.
		_ = e.rateLimiter.ResetLogin(ctx, username, ip)
	}

	switch {
	case outcome.MFASetupRequired:
		if err := machine.Transition(StateMFASetupRequired); err != nil {
			return nil, err
		}
		challengeID, err := e.createChallenge(ctx, outcome.UserID, stores.KindMFASetup)
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricMFASetupRequired)
		e.emitAudit(ctx, auditEventMFASetupRequired, true, outcome.UserID, "", nil, nil)
		return &LoginResult{
			State:       machine.Current(),
			UserID:      outcome.UserID,
			ChallengeID: challengeID,
		}, nil

	case outcome.MFAEnrolled:
		if err := machine.Transition(StateMFARequired); err != nil {
			return nil, err
		}
		challengeID, err := e.createChallenge(ctx, outcome.UserID, stores.KindMFAVerify)
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, true, outcome.UserID, "", nil, nil)
		return &LoginResult{
			State:       machine.Current(),
			UserID:      outcome.UserID,
			ChallengeID: challengeID,
		}, nil

	default:
		if err := machine.Transition(StateAuthenticated); err != nil {
			return nil, err
		}
		return e.finalizeLogin(ctx, machine, outcome)
	}
}

// ConfirmMFA completes a pending MFARequired login attempt. A wrong code is
// a self-loop on MFARequired and burns one attempt from the challenge
// budget; exhausting the budget consumes the challenge. A consumed or
// unknown challenge is indistinguishable from an invalid one.
//
// ConfirmMFA may return an error when input validation, dependency calls, or security checks fail.
// ConfirmMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmMFA(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	return e.confirmChallenge(ctx, challengeID, code, stores.KindMFAVerify)
}

// CompleteMFASetup completes a pending MFASetupRequired login attempt by
// confirming the freshly enrolled secret with a valid code.
//
// CompleteMFASetup may return an error when input validation, dependency calls, or security checks fail.
// CompleteMFASetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CompleteMFASetup(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	return e.confirmChallenge(ctx, challengeID, code, stores.KindMFASetup)
}

func (e *Engine) confirmChallenge(ctx context.Context, challengeID, code string, kind stores.ChallengeKind) (*LoginResult, error) {
	if e == nil || e.loginProvider == nil {
		return nil, ErrEngineNotReady
	}

	pendingState := StateMFARequired
	if kind == stores.KindMFASetup {
		pendingState = StateMFASetupRequired
	}

	challenge, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound):
			e.metricInc(MetricMFAFailure)
			e.emitAudit(ctx, auditEventMFAFailure, false, "", "", ErrMFAInvalid, nil)
			return nil, ErrMFAInvalid
		case errors.Is(err, stores.ErrChallengeExpired):
			e.metricInc(MetricMFAFailure)
			e.emitAudit(ctx, auditEventMFAFailure, false, "", "", ErrMFAExpired, nil)
			return nil, ErrMFAExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
		}
	}
	if challenge.Kind != kind {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, challenge.UserID, "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"reason": "kind_mismatch",
			}
		})
		return nil, ErrMFAInvalid
	}
	if challenge.Fingerprint != "" && challenge.Fingerprint != fingerprintFromContext(ctx) {
		e.reportSuspicious(ctx, challengeID, "mfa challenge fingerprint mismatch")
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, challenge.UserID, "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"reason": "fingerprint_mismatch",
			}
		})
		return nil, ErrMFAInvalid
	}

	var ok bool
	if kind == stores.KindMFASetup {
		ok, err = e.loginProvider.CompleteMFASetup(ctx, challenge.UserID, code)
	} else {
		ok, err = e.loginProvider.VerifyMFACode(ctx, challenge.UserID, code)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	machine := resumeAuthState(pendingState)

	if !ok {
		exceeded, ferr := e.challenges.RecordFailure(ctx, challengeID, e.config.MFA.MaxAttempts)
		if ferr != nil && !errors.Is(ferr, stores.ErrChallengeNotFound) && !errors.Is(ferr, stores.ErrChallengeExpired) {
			return nil, fmt.Errorf("%w: %v", ErrMFAUnavailable, ferr)
		}
		if exceeded {
			e.metricInc(MetricMFAAttemptsExceeded)
			e.emitAudit(ctx, auditEventMFAAttemptsExceeded, false, challenge.UserID, "", ErrMFAAttemptsExceeded, nil)
			return nil, ErrMFAAttemptsExceeded
		}
		// Wrong code: the attempt stays parked in its pending state.
		if kind == stores.KindMFAVerify {
			if err := machine.Transition(StateMFARequired); err != nil {
				return nil, err
			}
		}
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, challenge.UserID, "", ErrMFAInvalid, func() map[string]string {
			return map[string]string{
				"attempts": fmt.Sprintf("%d", challenge.Attempts+1),
			}
		})
		return nil, ErrMFAInvalid
	}

	// Consume before issuing anything: a replayed challenge id must fail.
	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}

	outcome, err := e.loginProvider.LookupUser(ctx, challenge.UserID)
	if err != nil || outcome == nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if err := machine.Transition(StateAuthenticated); err != nil {
		return nil, err
	}

	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, outcome.UserID, "", nil, nil)

	return e.finalizeLogin(ctx, machine, outcome)
}

// finalizeLogin issues the signed credential and the server-side session
// record for an attempt that reached Authenticated.
func (e *Engine) finalizeLogin(ctx context.Context, machine *AuthStateMachine, outcome *LoginOutcome) (*LoginResult, error) {
	raw, err := e.tokenManager.CreateCredential(outcome.UserID, outcome.HashedUserID, outcome.HashedGroupID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, outcome.UserID, "", ErrSessionCreationFailed, func() map[string]string {
			return map[string]string{
				"reason": "credential_signing",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	cred, err := e.tokenManager.VerifyCredential(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	record, err := e.sessionStore.Create(ctx, cred, outcome.UserID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, outcome.UserID, "", ErrSessionCreationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_store",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, outcome.UserID, record.SessionID, nil, nil)

	return &LoginResult{
		State:            machine.Current(),
		UserID:           outcome.UserID,
		SessionID:        record.SessionID,
		AntiForgeryToken: record.AntiForgeryToken,
		Credential:       raw,
	}, nil
}

// failLogin is the shared wrong-credentials exit: burn one attempt from the
// login budget, then report the uniform ErrInvalidCredentials.
func (e *Engine) failLogin(ctx context.Context, username, ip, userID, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
				e.emitRateLimit(ctx, "login", func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
			} else {
				e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, "", err, func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
			}
			return ErrLoginRateLimited
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": username,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) createChallenge(ctx context.Context, userID string, kind stores.ChallengeKind) (string, error) {
	challengeID := uuid.NewString()
	challenge := &stores.Challenge{
		UserID:      userID,
		Kind:        kind,
		Fingerprint: fingerprintFromContext(ctx),
		ExpiresAt:   time.Now().Add(e.config.MFA.ChallengeTTL).Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID, challenge, e.config.MFA.ChallengeTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	return challengeID, nil
}
