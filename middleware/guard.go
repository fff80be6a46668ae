package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/stackshield/sessionguard"
	"github.com/stackshield/sessionguard/session"
	"github.com/stackshield/sessionguard/token"
)

type sessionContextKey struct{}
type credentialContextKey struct{}

// SessionFromContext returns the session record injected by [SessionGuard].
func SessionFromContext(ctx context.Context) (*session.Record, bool) {
	rec, ok := ctx.Value(sessionContextKey{}).(*session.Record)
	return rec, ok
}

// CredentialFromContext returns the verified credential injected by
// [BearerGuard].
func CredentialFromContext(ctx context.Context) (*token.Token, bool) {
	cred, ok := ctx.Value(credentialContextKey{}).(*token.Token)
	return cred, ok
}

// SessionGuard returns middleware enforcing session-cookie authentication
// via [sessionguard.Engine.ValidateRequest].
func SessionGuard(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			record, err := engine.ValidateRequest(ctx, r)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerGuard returns middleware enforcing bearer-credential authentication
// via [sessionguard.Engine.ValidateBearer]. It never touches the session
// store.
func BearerGuard(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			cred, err := engine.ValidateBearer(ctx, raw)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, credentialContextKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := sessionguard.WithClientIP(r.Context(), clientIP(r))
	return sessionguard.WithUserAgent(ctx, r.UserAgent())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}

	return raw, true
}
