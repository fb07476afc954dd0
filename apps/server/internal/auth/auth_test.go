package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("secret12")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	m := NewManager(time.Hour)
	if n, err := m.LoadAccounts(" alice_01:" + hash + " ,"); err != nil || n != 1 {
		t.Fatalf("load accounts: n=%d err=%v", n, err)
	}
	return m
}

func TestLoginAndLogout(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Login("Alice_01", "secret12")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	username, ok := m.ResolveSession(token)
	if !ok || username != "alice_01" {
		t.Fatalf("expected valid session for alice_01, got %q ok=%v", username, ok)
	}
	m.Logout(token)
	if _, ok := m.ResolveSession(token); ok {
		t.Fatalf("expected logged out token to be invalid")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Login("alice_01", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.Login("nobody", "secret12"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAccountsValidation(t *testing.T) {
	m := newTestManager(t)
	hash, _ := HashPassword("another1")
	if err := m.AddAccount("ALICE_01", hash); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if err := m.AddAccount("bob_01", "plaintext"); err == nil {
		t.Fatalf("expected non-bcrypt hash to be rejected")
	}
	if _, err := m.LoadAccounts("no-colon"); err == nil {
		t.Fatalf("expected malformed account entry error")
	}
	if _, err := HashPassword("short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	m := newTestManager(t)
	clock := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return clock }
	token, err := m.Login("alice_01", "secret12")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	clock = clock.Add(2 * time.Hour)
	if _, ok := m.ResolveSession(token); ok {
		t.Fatalf("expected expired session")
	}
}

func TestHTTPLoginAndGuard(t *testing.T) {
	m := newTestManager(t)
	mux := http.NewServeMux()
	NewHTTPHandler(m).RegisterRoutes(mux)
	mux.HandleFunc("/private", RequireSession(m, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	body, _ := json.Marshal(credentialsRequest{Username: "alice_01", Password: "secret12"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.SessionToken == "" {
		t.Fatalf("bad login response: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("guard without token: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+resp.SessionToken)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("guard with token: %d", rec.Code)
	}
}

func TestBridgeTokens(t *testing.T) {
	tokens := NewBridgeTokens("s3cret")
	tok, err := tokens.Issue("bot-42", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	bot, err := tokens.Verify(tok)
	if err != nil || bot != "bot-42" {
		t.Fatalf("verify: bot=%q err=%v", bot, err)
	}

	if _, err := NewBridgeTokens("other").Verify(tok); !errors.Is(err, ErrBridgeToken) {
		t.Fatalf("wrong secret must fail, got %v", err)
	}

	clock := time.Now().Add(2 * time.Hour)
	tokens.now = func() time.Time { return clock }
	if _, err := tokens.Verify(tok); !errors.Is(err, ErrBridgeToken) {
		t.Fatalf("expired token must fail, got %v", err)
	}

	if _, err := NewBridgeTokens("").Issue("bot", 0); !errors.Is(err, ErrBridgeSecret) {
		t.Fatalf("missing secret: %v", err)
	}
}
