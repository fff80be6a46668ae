package sessionguard

import (
	"context"
	"io"

	internalaudit "github.com/stackshield/sessionguard/internal/audit"
)

// LoginOutcome is returned by [LoginProvider.VerifyPassword] and
// [LoginProvider.LookupUser]. It carries the subject identity plus the MFA
// flags that drive the [AuthStateMachine]; the hashed identifiers are
// optional custom claims carried in the issued credential.
type LoginOutcome struct {
	UserID        string
	HashedUserID  string
	HashedGroupID string

	MFAEnrolled      bool
	MFASetupRequired bool
}

// LoginProvider is the external login collaborator. Password and MFA code
// verification live behind it; the engine only drives the state machine and
// the session lifecycle around its answers.
//
// VerifyPassword must return [ErrInvalidCredentials] (possibly wrapped) for
// a wrong username or password so the engine can count the attempt against
// the login budget without learning which of the two was wrong.
type LoginProvider interface {
	VerifyPassword(ctx context.Context, username, password string) (*LoginOutcome, error)
	LookupUser(ctx context.Context, userID string) (*LoginOutcome, error)
	VerifyMFACode(ctx context.Context, userID, code string) (bool, error)
	CompleteMFASetup(ctx context.Context, userID, code string) (bool, error)
}

// LoginResult is returned by [Engine.Login], [Engine.ConfirmMFA],
// [Engine.CompleteMFASetup], and [Engine.Refresh]. When State is
// [StateAuthenticated] the session fields and the raw credential are set;
// when a second factor is still pending only ChallengeID is.
type LoginResult struct {
	State  AuthState
	UserID string

	SessionID        string
	AntiForgeryToken string
	Credential       string

	ChallengeID string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing one event per line.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
