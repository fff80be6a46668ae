package sessionguard

import (
	"errors"
	"time"
)

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Credential CredentialConfig
	Session    SessionConfig
	Cookie     CookieConfig
	MFA        MFAConfig
	Monitor    MonitorConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig defines a public type used by sessionguard APIs.
//
// CredentialConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CredentialConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by sessionguard APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix   string
	Lifetime      time.Duration
	SweepInterval time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines a public type used by sessionguard APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	Name   string
	Secret []byte
	MaxAge time.Duration
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by sessionguard APIs.
//
// MFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAConfig struct {
	ChallengeTTL    time.Duration
	MaxAttempts     int
	ChallengePrefix string
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig defines a public type used by sessionguard APIs.
//
// MonitorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MonitorConfig struct {
	Capacity             int
	MaxEventAge          time.Duration
	SweepInterval        time.Duration
	TokenAccessThreshold int
	TokenAccessWindow    time.Duration
	SuspiciousThreshold  int
	SuspiciousWindow     time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by sessionguard APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode          bool
	RequireSecureCookies    bool
	CSRFProtection          bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig defines a public type used by sessionguard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sessionguard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented default configuration. Signing
// material and the cookie secret are deployment-specific and must still be
// filled in before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			TTL:           15 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:   "sg",
			Lifetime:      24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Cookie: CookieConfig{
			Name:   "__sg_session",
			MaxAge: 24 * time.Hour,
		},
		MFA: MFAConfig{
			ChallengeTTL:    3 * time.Minute,
			MaxAttempts:     5,
			ChallengePrefix: "sg:mfa",
		},
		Monitor: MonitorConfig{
			Capacity:             100,
			MaxEventAge:          time.Hour,
			SweepInterval:        10 * time.Minute,
			TokenAccessThreshold: 5,
			TokenAccessWindow:    60 * time.Second,
			SuspiciousThreshold:  3,
			SuspiciousWindow:     300 * time.Second,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			RequireSecureCookies:    true,
			CSRFProtection:          true,
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: 1 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Credential.PrivateKey = cloneBytes(cfg.Credential.PrivateKey)
	out.Credential.PublicKey = cloneBytes(cfg.Credential.PublicKey)
	out.Cookie.Secret = cloneBytes(cfg.Cookie.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Credential
	if c.Credential.TTL <= 0 {
		return errors.New("Credential TTL must be > 0")
	}
	if c.Credential.SigningMethod != "ed25519" && c.Credential.SigningMethod != "hs256" {
		return errors.New("unsupported credential signing method")
	}
	if c.Credential.SigningMethod == "ed25519" && len(c.Credential.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Credential.SigningMethod == "hs256" && len(c.Credential.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Credential.Leeway < 0 || c.Credential.Leeway > 2*time.Minute {
		return errors.New("Credential Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if len(c.Cookie.Secret) < 16 {
		return errors.New("Cookie Secret must be >= 16 bytes")
	}
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie MaxAge must be > 0")
	}

	// MFA
	if c.MFA.ChallengeTTL <= 0 {
		return errors.New("MFA ChallengeTTL must be > 0")
	}
	if c.MFA.ChallengeTTL > time.Hour {
		return errors.New("MFA ChallengeTTL must be <= 1h")
	}
	if c.MFA.MaxAttempts <= 0 {
		return errors.New("MFA MaxAttempts must be > 0")
	}

	// Monitor
	if c.Monitor.Capacity <= 0 {
		return errors.New("Monitor Capacity must be > 0")
	}
	if c.Monitor.TokenAccessThreshold <= 0 || c.Monitor.SuspiciousThreshold <= 0 {
		return errors.New("Monitor thresholds must be > 0")
	}
	if c.Monitor.TokenAccessWindow <= 0 || c.Monitor.SuspiciousWindow <= 0 {
		return errors.New("Monitor windows must be > 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0 when refresh throttle is enabled")
		}
	}
	if c.Security.ProductionMode && !c.Security.RequireSecureCookies {
		return errors.New("Security RequireSecureCookies must be true in production mode")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
