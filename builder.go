package sessionguard

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stackshield/sessionguard/cookie"
	internalaudit "github.com/stackshield/sessionguard/internal/audit"
	"github.com/stackshield/sessionguard/internal/rate"
	"github.com/stackshield/sessionguard/internal/stores"
	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/session"
	"github.com/stackshield/sessionguard/token"
)

// Builder defines a public type used by sessionguard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	loginProvider LoginProvider
	auditSink     AuditSink
	logger        zerolog.Logger
	loggerSet     bool

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis makes the session store, MFA challenge store, and rate limiter
// Redis-backed. Without it the engine runs single-node on in-memory stores
// and rate limiting is disabled.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithLoginProvider describes the withloginprovider operation and its observable behavior.
//
// WithLoginProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLoginProvider(p LoginProvider) *Builder {
	b.loginProvider = p
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	b.loggerSet = true
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.loginProvider == nil {
		return nil, errors.New("login provider required")
	}

	logger := b.logger
	if !b.loggerSet {
		logger = zerolog.Nop()
	}

	engine := &Engine{
		config:        cfg,
		loginProvider: b.loginProvider,
		logger:        logger,
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- SECURITY MONITOR --------
	// Critical escalations run the forced-logout path synchronously inside
	// Monitor.Log; the engine pointer is captured before any component can
	// emit an event.
	engine.monitor = monitor.New(monitor.Config{
		Capacity:             cfg.Monitor.Capacity,
		MaxEventAge:          cfg.Monitor.MaxEventAge,
		SweepInterval:        cfg.Monitor.SweepInterval,
		TokenAccessThreshold: cfg.Monitor.TokenAccessThreshold,
		TokenAccessWindow:    cfg.Monitor.TokenAccessWindow,
		SuspiciousThreshold:  cfg.Monitor.SuspiciousThreshold,
		SuspiciousWindow:     cfg.Monitor.SuspiciousWindow,
	}, logger, engine.handleEscalation)

	// -------- SESSION STORE --------
	var memStore *session.MemoryStore
	if b.redis != nil {
		engine.sessionStore = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Lifetime, engine.monitor)
	} else {
		memStore = session.NewMemoryStore(cfg.Session.Lifetime, engine.monitor)
		engine.sessionStore = memStore
	}

	// -------- COOKIE GATEWAY --------
	secure := cfg.Security.RequireSecureCookies || cfg.Security.ProductionMode
	gateway, err := cookie.NewGateway(cfg.Cookie.Name, cfg.Cookie.Secret, cfg.Cookie.MaxAge, secure)
	if err != nil {
		return nil, err
	}
	engine.cookies = gateway

	// -------- MFA CHALLENGE STORE --------
	if b.redis != nil {
		engine.challenges = stores.NewRedisChallengeStore(b.redis, cfg.MFA.ChallengePrefix)
	} else {
		engine.challenges = stores.NewMemoryChallengeStore()
	}

	// -------- RATE LIMITER --------
	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	// -------- CREDENTIAL MANAGER --------
	tm, err := token.NewManager(token.Config{
		CredentialTTL: cfg.Credential.TTL,
		SigningMethod: token.SigningMethod(cfg.Credential.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Credential.PrivateKey),
		PublicKey:     cloneBytes(cfg.Credential.PublicKey),
		Issuer:        cfg.Credential.Issuer,
		Audience:      cfg.Credential.Audience,
		Leeway:        cfg.Credential.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokenManager = tm

	// Sweepers start only after every fallible step above has passed, so a
	// failed Build never leaks a goroutine.
	engine.monitor.StartSweep()
	if memStore != nil {
		memStore.StartSweep(cfg.Session.SweepInterval)
	}

	b.built = true

	return engine, nil
}
