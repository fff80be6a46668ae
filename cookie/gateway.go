// Package cookie moves opaque session ids between the server and the browser.
//
// The cookie carries ONLY the session id, never the credential itself, and the
// id is signed so a tampered or fabricated cookie reads as absent. The real
// credential stays server-side in the session store.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultName is the session cookie name used when none is configured.
const DefaultName = "__sg_session"

// ErrNoSecret is returned by NewGateway when the signing secret is empty.
var ErrNoSecret = errors.New("cookie signing secret is empty")

// Gateway issues, reads and clears the signed session cookie.
//
// Read never returns an error for a bad cookie: absent, malformed and
// forged all collapse to the empty id, so callers have exactly one
// "not signed in" path.
type Gateway struct {
	name   string
	secret []byte
	maxAge time.Duration
	secure bool
}

// NewGateway creates a cookie gateway. name defaults to [DefaultName];
// maxAge <= 0 produces a session-scoped cookie. secure should only be
// false in local development over plain HTTP.
func NewGateway(name string, secret []byte, maxAge time.Duration, secure bool) (*Gateway, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if name == "" {
		name = DefaultName
	}
	return &Gateway{
		name:   name,
		secret: append([]byte(nil), secret...),
		maxAge: maxAge,
		secure: secure,
	}, nil
}

// Issue sets the signed session cookie on the response. The cookie is
// HttpOnly and SameSite=Strict: scripts cannot read it and cross-site
// requests never send it.
func (g *Gateway) Issue(w http.ResponseWriter, sessionID string) {
	c := &http.Cookie{
		Name:     g.name,
		Value:    g.sign(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if g.maxAge > 0 {
		c.MaxAge = int(g.maxAge / time.Second)
	}
	http.SetCookie(w, c)
}

// Read extracts the session id from the request. An absent cookie, a
// malformed value or a bad signature all yield "".
func (g *Gateway) Read(r *http.Request) string {
	c, err := r.Cookie(g.name)
	if err != nil || c.Value == "" {
		return ""
	}
	return g.verify(c.Value)
}

// Clear expires the session cookie. Issued with the same attributes as
// Issue so the browser matches and drops the original.
func (g *Gateway) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// Name returns the configured cookie name.
func (g *Gateway) Name() string { return g.name }

func (g *Gateway) sign(sessionID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return sessionID + "." + sig
}

func (g *Gateway) verify(value string) string {
	sessionID, sig, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" {
		return ""
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ""
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ""
	}
	return sessionID
}
