package internaldefs

import (
	sessionguard "github.com/stackshield/sessionguard"
)

// CounterDef defines a public type used by sessionguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionguard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the credential-session subsystem.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful login attempts."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionguard.MetricLoginRateLimited, Name: "sessionguard_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: sessionguard.MetricMFARequired, Name: "sessionguard_mfa_required_total", Help: "Login flows parked pending a second factor."},
	{ID: sessionguard.MetricMFASetupRequired, Name: "sessionguard_mfa_setup_required_total", Help: "Login flows parked pending MFA enrollment."},
	{ID: sessionguard.MetricMFASuccess, Name: "sessionguard_mfa_success_total", Help: "Successful MFA confirmations."},
	{ID: sessionguard.MetricMFAFailure, Name: "sessionguard_mfa_failure_total", Help: "Failed MFA confirmations."},
	{ID: sessionguard.MetricMFAAttemptsExceeded, Name: "sessionguard_mfa_attempts_exceeded_total", Help: "MFA challenges invalidated due to attempt cap."},
	{ID: sessionguard.MetricSessionCreated, Name: "sessionguard_session_created_total", Help: "Created sessions."},
	{ID: sessionguard.MetricSessionInvalidated, Name: "sessionguard_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: sessionguard.MetricLogout, Name: "sessionguard_logout_total", Help: "Explicit logout operations."},
	{ID: sessionguard.MetricForcedLogout, Name: "sessionguard_forced_logout_total", Help: "Forced logout operations from security escalations or refresh failures."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful session rotations."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Failed session rotations."},
	{ID: sessionguard.MetricRefreshRateLimited, Name: "sessionguard_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: sessionguard.MetricValidateSuccess, Name: "sessionguard_validate_success_total", Help: "Requests that passed validation."},
	{ID: sessionguard.MetricValidateFailure, Name: "sessionguard_validate_failure_total", Help: "Requests rejected by validation."},
	{ID: sessionguard.MetricAntiForgeryRejected, Name: "sessionguard_anti_forgery_rejected_total", Help: "State-changing requests rejected for an anti-forgery token mismatch."},
	{ID: sessionguard.MetricRateLimitHit, Name: "sessionguard_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the credential-session subsystem.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricValidateLatency, Name: "sessionguard_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the credential-session subsystem.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the credential-session subsystem.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
