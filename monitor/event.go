package monitor

import "time"

// EventType classifies a security event.
type EventType uint8

const (
	// TokenAccess is an exported constant or variable used by the credential-session subsystem.
	TokenAccess EventType = iota
	// FingerprintMismatch is an exported constant or variable used by the credential-session subsystem.
	FingerprintMismatch
	// TokenExpiry is an exported constant or variable used by the credential-session subsystem.
	TokenExpiry
	// SuspiciousRequest is an exported constant or variable used by the credential-session subsystem.
	SuspiciousRequest
	// DeviceChange is an exported constant or variable used by the credential-session subsystem.
	DeviceChange
)

// String implements fmt.Stringer for audit metadata and log fields.
func (t EventType) String() string {
	switch t {
	case TokenAccess:
		return "token_access"
	case FingerprintMismatch:
		return "fingerprint_mismatch"
	case TokenExpiry:
		return "token_expiry"
	case SuspiciousRequest:
		return "suspicious_request"
	case DeviceChange:
		return "device_change"
	default:
		return "unknown"
	}
}

// Severity grades how alarming an event is. Critical triggers the forced
// logout path synchronously.
type Severity uint8

const (
	// SeverityLow is an exported constant or variable used by the credential-session subsystem.
	SeverityLow Severity = iota
	// SeverityMedium is an exported constant or variable used by the credential-session subsystem.
	SeverityMedium
	// SeverityHigh is an exported constant or variable used by the credential-session subsystem.
	SeverityHigh
	// SeverityCritical is an exported constant or variable used by the credential-session subsystem.
	SeverityCritical
)

// String implements fmt.Stringer for audit metadata and log fields.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is a single observed security event. Events are append-only: once
// logged they are never mutated, only evicted by capacity or age.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Severity  Severity
	Details   map[string]any
}
