// Package authapi is the only code that talks to the external account API.
// It adapts the server's wire shapes into internal/domain types and owns the
// bearer transport rule: any authenticated request answered with 401 gets
// exactly one token refresh and one retry before the failure surfaces.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dimichiko/kitportal/internal/domain"
)

// TokenSource supplies the bearer token for authenticated requests and knows
// how to exchange the refresh token for a new pair. The session store
// implements it; a failed Refresh is fatal for the session on that side.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client is a thin wrapper over the account API's REST surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger

	mu        sync.Mutex // guards tokens
	refreshMu sync.Mutex // serializes refresh attempts, never held with mu
	tokens    TokenSource
}

// NewClient creates a configured Client.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		logger:     opts.Logger,
	}
}

// SetTokenSource wires the session store in after construction; the store and
// the client reference each other, so one of the two links is set late.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) tokenSource() TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// APIError is a decoded error response from the account API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("account api: status %d", e.Status)
}

// Unwrap maps authentication failures onto the domain sentinel so callers can
// use errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// errMalformedCredentials covers a 200 auth response missing the user or the
// token; adopting it would strand the session half-authenticated.
var errMalformedCredentials = errors.New("account api: malformed credentials response")

// Credentials is a fresh token pair with the identity it belongs to.
type Credentials struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// LoginResult is the outcome of Login. TwoFactorRequired is a distinct
// outcome from bad credentials: the caller decides whether to prompt for a
// one-time code and then calls VerifyTwoFactor with the challenge id.
type LoginResult struct {
	TwoFactorRequired bool
	ChallengeID       string
	Credentials       *Credentials
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsPayload struct {
	TwoFactorRequired bool         `json:"twoFactorRequired"`
	Challenge         string       `json:"challenge"`
	User              *userPayload `json:"user"`
	Token             string       `json:"token"`
	RefreshToken      string       `json:"refreshToken"`
}

func (p *credentialsPayload) credentials() *Credentials {
	return &Credentials{
		User:         p.User.toDomain(),
		AccessToken:  p.Token,
		RefreshToken: p.RefreshToken,
	}
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var payload credentialsPayload
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &payload, false)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%s: %w", apiErr.Error(), domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	if payload.TwoFactorRequired {
		return &LoginResult{TwoFactorRequired: true, ChallengeID: payload.Challenge}, nil
	}
	creds := payload.credentials()
	if creds.User == nil || creds.AccessToken == "" {
		return nil, errMalformedCredentials
	}
	return &LoginResult{Credentials: creds}, nil
}

// VerifyTwoFactor completes a login paused for a second factor.
func (c *Client) VerifyTwoFactor(ctx context.Context, challengeID, code string) (*Credentials, error) {
	body := map[string]string{"challenge": challengeID, "code": code}
	var payload credentialsPayload
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/verify", body, &payload, false); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%s: %w", apiErr.Error(), domain.ErrInvalidTwoFactorCode)
		}
		return nil, err
	}
	creds := payload.credentials()
	if creds.User == nil || creds.AccessToken == "" {
		return nil, errMalformedCredentials
	}
	return creds, nil
}

// Register creates an unverified account. It does not authenticate.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/register", body, nil, false)
}

// Refresh exchanges the refresh token for a new pair. It never retries.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	body := map[string]string{"refreshToken": refreshToken}
	var payload struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &payload, false); err != nil {
		return "", "", err
	}
	return payload.Token, payload.RefreshToken, nil
}

// Profile fetches the current identity.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// ProfileUpdate carries a partial identity edit. Nil fields are omitted; the
// server response, not this payload, is the source of truth for the merge.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// UpdateProfile sends a partial identity update and returns the merged user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodPut, "/auth/profile", update, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// ChangePlan switches the subscription plan and activated apps.
func (c *Client) ChangePlan(ctx context.Context, plan domain.Plan, activeApps []domain.AppID) (*domain.User, error) {
	body := struct {
		Plan       domain.Plan    `json:"plan"`
		ActiveApps []domain.AppID `json:"activeApps"`
	}{Plan: plan, ActiveApps: activeApps}
	var payload userPayload
	if err := c.do(ctx, http.MethodPut, "/auth/plan", body, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// ResetPassword requests a password-reset email. Unauthenticated.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password/reset", map[string]string{"email": email}, nil, false)
}

// ChangePassword replaces the password of the signed-in account.
func (c *Client) ChangePassword(ctx context.Context, current, updated string) (*domain.User, error) {
	body := map[string]string{"currentPassword": current, "newPassword": updated}
	var payload userPayload
	if err := c.do(ctx, http.MethodPut, "/auth/password", body, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// EnableTwoFactor confirms enrollment with a one-time code.
func (c *Client) EnableTwoFactor(ctx context.Context, code string) (*domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/enable", map[string]string{"code": code}, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// DisableTwoFactor turns off the second factor.
func (c *Client) DisableTwoFactor(ctx context.Context, code string) (*domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodDelete, "/auth/2fa", map[string]string{"code": code}, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// VerifyEmail confirms the address with a mailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodPost, "/auth/email/verify", map[string]string{"token": token}, &payload, true); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// do performs one API call. For authenticated calls a 401 triggers a single
// refresh through the token source followed by a single retry; a second 401
// surfaces domain.ErrUnauthorized and the session store reacts with a forced
// logout. Nothing else is ever retried automatically.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	ts := c.tokenSource()
	var token string
	refreshed := false
	if authed {
		if ts == nil {
			return domain.ErrNoSession
		}
		token = ts.AccessToken()
		if token == "" {
			// No access token, but the source may still hold a refresh
			// token; spend the single refresh before failing.
			if rerr := c.refreshOnce(ctx, ts, ""); rerr != nil {
				return fmt.Errorf("token refresh failed: %w", domain.ErrUnauthorized)
			}
			refreshed = true
			token = ts.AccessToken()
			if token == "" {
				return fmt.Errorf("missing access token: %w", domain.ErrUnauthorized)
			}
		}
	}

	err := c.roundTrip(ctx, method, path, body, out, token)
	if !authed || !isUnauthorized(err) {
		return err
	}
	if refreshed {
		return fmt.Errorf("still unauthorized after refresh: %w", domain.ErrUnauthorized)
	}

	if rerr := c.refreshOnce(ctx, ts, token); rerr != nil {
		return fmt.Errorf("token refresh failed: %w", domain.ErrUnauthorized)
	}
	err = c.roundTrip(ctx, method, path, body, out, ts.AccessToken())
	if isUnauthorized(err) {
		return fmt.Errorf("still unauthorized after refresh: %w", domain.ErrUnauthorized)
	}
	return err
}

// refreshOnce serializes concurrent refresh attempts. If another request
// already rotated the token while we waited for the lock, the refresh is
// skipped and the retry reuses the fresh token.
func (c *Client) refreshOnce(ctx context.Context, ts TokenSource, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if ts.AccessToken() != staleToken {
		return nil
	}
	return ts.Refresh(ctx)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("the service could not be reached, please try again: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	}
	if apiErr.Message == "" && resp.StatusCode >= 500 {
		apiErr.Message = "the service is temporarily unavailable, please try again"
	}
	return apiErr
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
