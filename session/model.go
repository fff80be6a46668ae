package session

import (
	"time"

	"github.com/stackshield/sessionguard/token"
)

// Record is a server-side session: the real credential plus the anti-forgery
// token, addressed only by the opaque session id handed to the browser.
// Record instances are immutable once created; a refresh replaces the whole
// record.
type Record struct {
	SessionID        string
	Credential       *token.Token
	OwnerUserID      string
	AntiForgeryToken string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record's own lifetime has passed at now. The
// session lifetime is configured independently of the wrapped credential's
// expiry; an auto-refreshing session may legitimately outlive its original
// credential.
func (r *Record) Expired(now time.Time) bool {
	return r == nil || !now.Before(r.ExpiresAt)
}
