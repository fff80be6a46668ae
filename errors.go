package sessionguard

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the credential-session subsystem.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the credential-session subsystem.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is an exported constant or variable used by the credential-session subsystem.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is an exported constant or variable used by the credential-session subsystem.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrSessionNotFound is an exported constant or variable used by the credential-session subsystem.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCreationFailed is an exported constant or variable used by the credential-session subsystem.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed is an exported constant or variable used by the credential-session subsystem.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrAntiForgeryMismatch is an exported constant or variable used by the credential-session subsystem.
	ErrAntiForgeryMismatch = errors.New("anti-forgery token mismatch")
	// ErrTokenInvalid is an exported constant or variable used by the credential-session subsystem.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the credential-session subsystem.
	ErrTokenExpired = errors.New("token expired")
	// ErrMFARequired is an exported constant or variable used by the credential-session subsystem.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFASetupRequired is an exported constant or variable used by the credential-session subsystem.
	ErrMFASetupRequired = errors.New("mfa setup required")
	// ErrMFAInvalid is an exported constant or variable used by the credential-session subsystem.
	ErrMFAInvalid = errors.New("mfa challenge invalid")
	// ErrMFAExpired is an exported constant or variable used by the credential-session subsystem.
	ErrMFAExpired = errors.New("mfa challenge expired")
	// ErrMFAAttemptsExceeded is an exported constant or variable used by the credential-session subsystem.
	ErrMFAAttemptsExceeded = errors.New("mfa challenge attempts exceeded")
	// ErrMFAUnavailable is an exported constant or variable used by the credential-session subsystem.
	ErrMFAUnavailable = errors.New("mfa challenge backend unavailable")
	// ErrInvalidTransition is an exported constant or variable used by the credential-session subsystem.
	ErrInvalidTransition = errors.New("invalid auth state transition")
	// ErrRefreshFailed is an exported constant or variable used by the credential-session subsystem.
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrForcedLogout is an exported constant or variable used by the credential-session subsystem.
	ErrForcedLogout = errors.New("session ended, please sign in again")
	// ErrEngineNotReady is an exported constant or variable used by the credential-session subsystem.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderUnavailable is an exported constant or variable used by the credential-session subsystem.
	ErrProviderUnavailable = errors.New("login provider unavailable")
)
