package sessionguard

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	CredentialTTL         time.Duration
	SessionLifetime       time.Duration
	RedisBacked           bool
	SecureCookies         bool
	CSRFProtection        bool
	RateLimitingActive    bool
	RefreshThrottleActive bool
	MFAChallengeTTL       time.Duration
	MFAMaxAttempts        int
	AuditEnabled          bool
	MetricsEnabled        bool
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:        e.config.Security.ProductionMode,
		SigningAlgorithm:      e.config.Credential.SigningMethod,
		CredentialTTL:         e.config.Credential.TTL,
		SessionLifetime:       e.config.Session.Lifetime,
		RedisBacked:           e.rateLimiter != nil,
		SecureCookies:         e.config.Security.RequireSecureCookies || e.config.Security.ProductionMode,
		CSRFProtection:        e.config.Security.CSRFProtection,
		RateLimitingActive:    e.rateLimiter != nil && e.config.Security.MaxLoginAttempts > 0,
		RefreshThrottleActive: e.rateLimiter != nil && e.config.Security.EnableRefreshThrottle,
		MFAChallengeTTL:       e.config.MFA.ChallengeTTL,
		MFAMaxAttempts:        e.config.MFA.MaxAttempts,
		AuditEnabled:          e.config.Audit.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
	}
}
