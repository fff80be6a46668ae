package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stackshield/sessionguard"
)

type singleUserProvider struct{}

func (singleUserProvider) VerifyPassword(_ context.Context, username, password string) (*sessionguard.LoginOutcome, error) {
	if username != "alice" || password != "correct-password-123" {
		return nil, sessionguard.ErrInvalidCredentials
	}
	return &sessionguard.LoginOutcome{UserID: "user-1"}, nil
}

func (singleUserProvider) LookupUser(_ context.Context, userID string) (*sessionguard.LoginOutcome, error) {
	if userID != "user-1" {
		return nil, fmt.Errorf("unknown user %s", userID)
	}
	return &sessionguard.LoginOutcome{UserID: "user-1"}, nil
}

func (singleUserProvider) VerifyMFACode(context.Context, string, string) (bool, error) {
	return false, nil
}

func (singleUserProvider) CompleteMFASetup(context.Context, string, string) (bool, error) {
	return false, nil
}

func newGuardEngine(t *testing.T) *sessionguard.Engine {
	t.Helper()

	cfg := sessionguard.DefaultConfig()
	cfg.Credential.SigningMethod = "hs256"
	cfg.Credential.PrivateKey = []byte("middleware-test-signing-key-32-b!")
	cfg.Cookie.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.SweepInterval = 0

	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithLoginProvider(singleUserProvider{}).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func login(t *testing.T, engine *sessionguard.Engine) *sessionguard.LoginResult {
	t.Helper()

	result, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return result
}

func okHandler(t *testing.T, sawSession *bool, sawCredential *bool) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sawSession != nil {
			_, *sawSession = SessionFromContext(r.Context())
		}
		if sawCredential != nil {
			_, *sawCredential = CredentialFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionGuardRejectsAnonymous(t *testing.T) {
	engine := newGuardEngine(t)

	handler := SessionGuard(engine)(okHandler(t, nil, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionGuardPassesValidSession(t *testing.T) {
	engine := newGuardEngine(t)
	result := login(t, engine)

	cookieRec := httptest.NewRecorder()
	engine.IssueCookie(cookieRec, result.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookieRec.Result().Cookies() {
		req.AddCookie(c)
	}

	var sawSession bool
	handler := SessionGuard(engine)(okHandler(t, &sawSession, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !sawSession {
		t.Fatal("expected session record in request context")
	}
}

func TestSessionGuardEnforcesAntiForgeryOnPost(t *testing.T) {
	engine := newGuardEngine(t)
	result := login(t, engine)

	cookieRec := httptest.NewRecorder()
	engine.IssueCookie(cookieRec, result.SessionID)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, c := range cookieRec.Result().Cookies() {
		req.AddCookie(c)
	}

	handler := SessionGuard(engine)(okHandler(t, nil, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without anti-forgery header, got %d", rec.Code)
	}

	req.Header.Set("X-CSRF-Token", result.AntiForgeryToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with anti-forgery header, got %d", rec.Code)
	}
}

func TestBearerGuardRejectsMissingOrGarbageToken(t *testing.T) {
	engine := newGuardEngine(t)

	handler := BearerGuard(engine)(okHandler(t, nil, nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestBearerGuardPassesValidCredential(t *testing.T) {
	engine := newGuardEngine(t)
	result := login(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+result.Credential)

	var sawCredential bool
	handler := BearerGuard(engine)(okHandler(t, nil, &sawCredential))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !sawCredential {
		t.Fatal("expected credential in request context")
	}
}
