package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/session"
	"github.com/dimichiko/kitportal/internal/tokenstore"
)

// newTestApp wires a full App against a fake account API.
func newTestApp(t *testing.T, upstream http.Handler) *App {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	tokens, err := tokenstore.Open(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("open token store: %v", err)
	}
	api := authapi.NewClient(authapi.Options{BaseURL: srv.URL})
	store := session.New(api, tokens, zerolog.Nop())
	t.Cleanup(store.Dispose)
	return NewApp(zerolog.Nop(), store, api, tokens)
}

func loginUpstream() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "wrong email or password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token":        "acc-1",
			"refreshToken": "ref-1",
			"user": map[string]any{
				"id":         "u-1",
				"email":      req.Email,
				"name":       "Ana",
				"plan":       "flexible",
				"activeApps": []string{"habitkit"},
			},
		})
	})
	return mux
}

func TestLoginHandlerSuccess(t *testing.T) {
	app := newTestApp(t, loginUpstream())

	body := strings.NewReader(`{"email":"ana@example.com","password":"correct-horse"}`)
	rr := httptest.NewRecorder()
	app.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	var resp sessionDTO
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Authenticated || resp.User == nil || resp.User.Plan != "flexible" {
		t.Fatalf("response = %+v, want authenticated flexible user", resp)
	}
}

func TestLoginHandlerBadCredentials(t *testing.T) {
	app := newTestApp(t, loginUpstream())

	body := strings.NewReader(`{"email":"ana@example.com","password":"typo"}`)
	rr := httptest.NewRecorder()
	app.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestLoginHandlerValidatesBeforeSending(t *testing.T) {
	hit := false
	app := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))

	body := strings.NewReader(`{"email":"not-an-email","password":""}`)
	rr := httptest.NewRecorder()
	app.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if hit {
		t.Fatalf("validation failures must not reach the API")
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fields["email"] == "" || resp.Fields["password"] == "" {
		t.Fatalf("fields = %v, want inline errors for email and password", resp.Fields)
	}
}

func TestLoginHandlerTwoFactorOutcome(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"twoFactorRequired": true, "challenge": "ch-1"})
	})
	app := newTestApp(t, mux)

	body := strings.NewReader(`{"email":"ana@example.com","password":"pw"}`)
	rr := httptest.NewRecorder()
	app.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (two-factor is not an error)", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["twoFactorRequired"] != true {
		t.Fatalf("response = %v, want twoFactorRequired outcome", resp)
	}
}

func TestLogoutHandlerAlwaysSucceeds(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		app.Logout(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("logout #%d status = %d, want 200", i+1, rr.Code)
		}
	}
	if app.Session.Snapshot().Authenticated {
		t.Fatalf("session must be unauthenticated after logout")
	}
}

func TestRegisterHandlerPasswordMismatch(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())

	body := strings.NewReader(`{"name":"Ana","email":"ana@example.com","password":"longenough","confirmPassword":"different"}`)
	rr := httptest.NewRecorder()
	app.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/register", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fields["confirmPassword"] == "" {
		t.Fatalf("fields = %v, want confirmPassword mismatch error", resp.Fields)
	}
}
