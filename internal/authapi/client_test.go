package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dimichiko/kitportal/internal/domain"
)

type fakeTokens struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = f.next
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL}), srv
}

func TestLoginAdaptsLegacyIdentityShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token":        "acc-1",
			"refreshToken": "ref-1",
			"user": map[string]any{
				"id":              "u-1",
				"email":           "ana@example.com",
				"displayName":     "Ana",
				"avatar":          "https://cdn/a.png",
				"plan":            "Premium",
				"isEmailVerified": true,
				"activeApps":      []string{"habitkit", "sleepkit"},
			},
		})
	}))

	result, err := client.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatalf("unexpected two-factor requirement")
	}
	u := result.Credentials.User
	if u.Name != "Ana" {
		t.Fatalf("Name = %q, want displayName fallback", u.Name)
	}
	if u.AvatarURL != "https://cdn/a.png" {
		t.Fatalf("AvatarURL = %q, want legacy avatar field", u.AvatarURL)
	}
	if u.Plan != domain.PlanKitFull {
		t.Fatalf("Plan = %q, want kitfull via premium alias", u.Plan)
	}
	if !u.EmailVerified {
		t.Fatalf("EmailVerified must honor isEmailVerified")
	}
	if len(u.ActiveApps) != 1 || u.ActiveApps[0] != domain.AppHabitKit {
		t.Fatalf("ActiveApps = %v, want unknown ids dropped", u.ActiveApps)
	}
	if result.Credentials.AccessToken != "acc-1" || result.Credentials.RefreshToken != "ref-1" {
		t.Fatalf("tokens = %q,%q", result.Credentials.AccessToken, result.Credentials.RefreshToken)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": "wrong email or password"})
	}))

	_, err := client.Login(context.Background(), "ana@example.com", "bad")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	if errors.Is(err, domain.ErrTwoFactorRequired) {
		t.Fatalf("bad credentials must not look like a two-factor prompt")
	}
}

func TestLoginTwoFactorPending(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"twoFactorRequired": true, "challenge": "ch-9"})
	}))

	result, err := client.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if !result.TwoFactorRequired || result.ChallengeID != "ch-9" {
		t.Fatalf("result = %+v, want pending challenge ch-9", result)
	}
	if result.Credentials != nil {
		t.Fatalf("pending login must not carry credentials")
	}
}

func TestAuthedRequestRefreshesOnceOn401(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		calls = append(calls, token)
		if token != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "u-1", "email": "ana@example.com", "plan": "flexible"})
	}))
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	client.SetTokenSource(tokens)

	u, err := client.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if u.Plan != domain.PlanFlexible {
		t.Fatalf("Plan = %q, want flexible", u.Plan)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refreshes = %d, want exactly 1", tokens.refreshes)
	}
	if len(calls) != 2 || calls[0] != "Bearer stale" || calls[1] != "Bearer fresh" {
		t.Fatalf("calls = %v, want stale then fresh", calls)
	}
}

func TestAuthedRequestSecondConsecutive401(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	tokens := &fakeTokens{token: "stale", next: "still-bad"}
	client.SetTokenSource(tokens)

	_, err := client.Profile(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Profile() error = %v, want ErrUnauthorized", err)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refreshes = %d, want exactly 1 (no retry loop)", tokens.refreshes)
	}
	if requests != 2 {
		t.Fatalf("requests = %d, want exactly 2", requests)
	}
}

func TestAuthedRequestEmptyTokenSpendsRefresh(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"id": "u-1", "email": "ana@example.com", "plan": "flexible"})
	}))
	tokens := &fakeTokens{token: "", next: "fresh"}
	client.SetTokenSource(tokens)

	if _, err := client.Profile(context.Background()); err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refreshes = %d, want exactly 1", tokens.refreshes)
	}
	if len(calls) != 1 || calls[0] != "Bearer fresh" {
		t.Fatalf("calls = %v, want a single request with the refreshed token", calls)
	}
}

func TestAuthedRequestEmptyTokenFailedRefresh(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	tokens := &fakeTokens{token: "", refreshErr: errors.New("refresh rejected")}
	client.SetTokenSource(tokens)

	_, err := client.Profile(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Profile() error = %v, want ErrUnauthorized", err)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refreshes = %d, want exactly 1", tokens.refreshes)
	}
	if requests != 0 {
		t.Fatalf("requests = %d, want none without a usable token", requests)
	}
}

func TestLoginRejectsMalformedCredentials(t *testing.T) {
	// A 200 with tokens but no user object must not be adopted.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": "acc-1", "refreshToken": "ref-1"})
	}))

	_, err := client.Login(context.Background(), "ana@example.com", "pw")
	if err == nil {
		t.Fatalf("Login() accepted a credentials response without a user")
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("malformed response must not read as bad credentials: %v", err)
	}
}

func TestAuthedRequestFailedRefreshSurfacesUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	tokens := &fakeTokens{token: "stale", refreshErr: errors.New("refresh rejected")}
	client.SetTokenSource(tokens)

	_, err := client.Profile(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Profile() error = %v, want ErrUnauthorized", err)
	}
}

func TestServerErrorMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.Register(context.Background(), "Ana", "ana@example.com", "pw")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Register() error = %v, want APIError", err)
	}
	if apiErr.Message == "" {
		t.Fatalf("5xx must carry a generic retry-prompting message")
	}
}
