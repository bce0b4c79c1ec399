// Package session owns the one mutable piece of process-wide state: the
// authenticated identity, its token pair and the loading/error/alert flags
// around auth mutations. The Store is an explicit, injectable service with a
// defined lifecycle (Init at startup, Dispose at teardown); guards and
// handlers receive the instance, there is no ambient singleton. All state
// changes are server-acknowledged — nothing here is optimistic.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/catalog"
	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/tokenstore"
)

// AlertKind classifies a transient user-facing notification.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertInfo    AlertKind = "info"
)

// Alert is a transient notification, independent of the error field.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// Snapshot is an immutable copy of the session at one instant. Guards and
// pages only ever see snapshots, never the live state.
type Snapshot struct {
	User          *domain.User
	AccessToken   string
	RefreshToken  string
	Authenticated bool
	Loading       bool
	Err           string
	Alert         *Alert
}

// Store holds the session and serializes every mutation. There is one
// loading flag shared by all in-flight operations; callers accept that
// concurrent mutations are indistinguishable in the flag.
type Store struct {
	api    *authapi.Client
	tokens *tokenstore.Store
	logger zerolog.Logger

	mu               sync.Mutex
	user             *domain.User
	accessToken      string
	refreshToken     string
	authenticated    bool
	loading          bool
	err              string
	alert            *Alert
	pendingChallenge string
	subs             map[int]func(Snapshot)
	nextSub          int
	disposed         bool
}

// New wires a Store to its API client and token store. The store registers
// itself as the client's token source so the 401-refresh rule can reach it.
// Persisted tokens are loaded here, synchronously: if a previous session
// exists on disk the store starts in loading, so guards hold requests until
// Init settles instead of bouncing them to /login.
func New(api *authapi.Client, tokens *tokenstore.Store, logger zerolog.Logger) *Store {
	s := &Store{
		api:    api,
		tokens: tokens,
		logger: logger,
		subs:   map[int]func(Snapshot){},
	}
	s.accessToken, s.refreshToken = tokens.Tokens()
	s.loading = s.accessToken != "" || s.refreshToken != ""
	api.SetTokenSource(s)
	return s
}

// Init bootstraps the session from persisted tokens: no tokens settles
// unauthenticated immediately; otherwise the store stays in loading until the
// persisted token is verified against /auth/profile. A definitively rejected
// token ends in a clean logout, never in a crash.
func (s *Store) Init(ctx context.Context) error {
	access, refresh := s.tokens.Tokens()
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	if access == "" && refresh == "" {
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.loading = true
	s.mu.Unlock()
	s.notify()

	u, err := s.api.Profile(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			// The transport already spent its one refresh attempt.
			s.Logout()
			return nil
		}
		s.setError("could not restore your session, please try again")
		s.logger.Warn().Err(err).Msg("session bootstrap failed")
		return err
	}
	s.mu.Lock()
	s.user = u
	s.authenticated = true
	s.loading = false
	s.err = ""
	s.mu.Unlock()
	s.notify()
	return nil
}

// Dispose drops all subscribers and deactivates notifications.
func (s *Store) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.subs = map[int]func(Snapshot){}
	s.mu.Unlock()
}

// Subscribe registers an observer called with a snapshot after every state
// transition. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		AccessToken:   s.accessToken,
		RefreshToken:  s.refreshToken,
		Authenticated: s.authenticated,
		Loading:       s.loading,
		Err:           s.err,
	}
	if s.user != nil {
		u := *s.user
		u.ActiveApps = append([]domain.AppID(nil), s.user.ActiveApps...)
		snap.User = &u
	}
	if s.alert != nil {
		a := *s.alert
		snap.Alert = &a
	}
	return snap
}

// notify runs subscribers outside the lock, each with the same snapshot.
func (s *Store) notify() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// AccessToken implements authapi.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Refresh exchanges the refresh token for a new pair. Failure is fatal for
// the session: the store logs out rather than looping, so a second
// consecutive 401 upstream can never retry forever. Implements
// authapi.TokenSource.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refreshToken
	s.mu.Unlock()
	if refresh == "" {
		s.Logout()
		return domain.ErrUnauthorized
	}
	access, next, err := s.api.Refresh(ctx, refresh)
	if err != nil {
		s.logger.Warn().Err(err).Msg("token refresh rejected, logging out")
		s.Logout()
		return err
	}
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = next
	s.mu.Unlock()
	if err := s.tokens.SetTokens(access, next); err != nil {
		s.logger.Error().Err(err).Msg("persist refreshed tokens")
	}
	s.notify()
	return nil
}

// Login authenticates with email and password. A server demand for a second
// factor surfaces as domain.ErrTwoFactorRequired with the challenge kept
// internally; the caller decides whether to prompt for a code. Any failure
// leaves the prior session state untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.begin()
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.setError(err.Error())
		return err
	}
	if result.TwoFactorRequired {
		s.mu.Lock()
		s.pendingChallenge = result.ChallengeID
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return domain.ErrTwoFactorRequired
	}
	s.adopt(result.Credentials, email)
	return nil
}

// VerifyTwoFactor completes a login paused for a second factor.
func (s *Store) VerifyTwoFactor(ctx context.Context, code string) error {
	s.mu.Lock()
	challenge := s.pendingChallenge
	s.mu.Unlock()
	if challenge == "" {
		return domain.ErrNoSession
	}
	s.begin()
	creds, err := s.api.VerifyTwoFactor(ctx, challenge, code)
	if err != nil {
		s.setError(err.Error())
		return err
	}
	s.mu.Lock()
	s.pendingChallenge = ""
	s.mu.Unlock()
	s.adopt(creds, "")
	return nil
}

// Register creates an unverified account. It never authenticates the session.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	s.begin()
	if err := s.api.Register(ctx, name, email, password); err != nil {
		s.setError(err.Error())
		return err
	}
	s.settle(&Alert{Kind: AlertInfo, Message: "account created, check your inbox to verify your email"})
	return nil
}

// Logout clears the session and the persisted tokens. It is synchronous,
// idempotent and never fails; a storage write error is logged and swallowed.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.authenticated = false
	s.loading = false
	s.pendingChallenge = ""
	s.mu.Unlock()
	if err := s.tokens.ClearTokens(); err != nil {
		s.logger.Error().Err(err).Msg("clear persisted tokens")
	}
	s.notify()
}

// UpdateProfile sends a partial identity edit; the server response is merged
// as the source of truth.
func (s *Store) UpdateProfile(ctx context.Context, update authapi.ProfileUpdate) error {
	s.begin()
	u, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "profile updated"})
	return nil
}

// ChangePlan switches the plan. The activated-app list is bounded here, at
// the plan-selection boundary, so the entitlement evaluator can trust
// ActiveApps to already respect the plan's MaxApps.
func (s *Store) ChangePlan(ctx context.Context, plan domain.Plan, activeApps []domain.AppID) error {
	entry := catalog.Lookup(plan)
	bounded := boundApps(activeApps, entry.Features.MaxApps)
	s.begin()
	u, err := s.api.ChangePlan(ctx, entry.Plan, bounded)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "plan updated"})
	return nil
}

// ResetPassword requests a reset email for an unauthenticated account.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	s.begin()
	if err := s.api.ResetPassword(ctx, email); err != nil {
		s.setError(err.Error())
		return err
	}
	s.settle(&Alert{Kind: AlertInfo, Message: "password reset email sent"})
	return nil
}

// ChangePassword replaces the password of the signed-in account.
func (s *Store) ChangePassword(ctx context.Context, current, updated string) error {
	s.begin()
	u, err := s.api.ChangePassword(ctx, current, updated)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "password changed"})
	return nil
}

// EnableTwoFactor confirms two-factor enrollment with a one-time code.
func (s *Store) EnableTwoFactor(ctx context.Context, code string) error {
	s.begin()
	u, err := s.api.EnableTwoFactor(ctx, code)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "two-factor authentication enabled"})
	return nil
}

// DisableTwoFactor turns the second factor off.
func (s *Store) DisableTwoFactor(ctx context.Context, code string) error {
	s.begin()
	u, err := s.api.DisableTwoFactor(ctx, code)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "two-factor authentication disabled"})
	return nil
}

// VerifyEmail confirms the address with a mailed token.
func (s *Store) VerifyEmail(ctx context.Context, token string) error {
	s.begin()
	u, err := s.api.VerifyEmail(ctx, token)
	if err != nil {
		return s.finishAuthed(err)
	}
	s.adoptUser(u, &Alert{Kind: AlertSuccess, Message: "email verified"})
	return nil
}

// ClearError drops the last failure message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	s.notify()
}

// ClearAlert drops the pending notification.
func (s *Store) ClearAlert() {
	s.mu.Lock()
	s.alert = nil
	s.mu.Unlock()
	s.notify()
}

// begin marks a mutation in flight and clears the previous error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.loading = false
	s.err = msg
	s.mu.Unlock()
	s.notify()
}

// settle ends a mutation without touching the identity.
func (s *Store) settle(alert *Alert) {
	s.mu.Lock()
	s.loading = false
	s.alert = alert
	s.mu.Unlock()
	s.notify()
}

// finishAuthed records the failure of an authenticated mutation. A surfaced
// ErrUnauthorized means the transport's single refresh already failed, so the
// session is forced out.
func (s *Store) finishAuthed(err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		s.Logout()
		return err
	}
	s.setError(err.Error())
	return err
}

// adopt installs a fresh credential set after login or two-factor verify.
func (s *Store) adopt(creds *authapi.Credentials, email string) {
	s.mu.Lock()
	s.user = creds.User
	s.accessToken = creds.AccessToken
	s.refreshToken = creds.RefreshToken
	s.authenticated = true
	s.loading = false
	s.err = ""
	s.alert = &Alert{Kind: AlertSuccess, Message: "welcome back"}
	s.mu.Unlock()
	if err := s.tokens.SetTokens(creds.AccessToken, creds.RefreshToken); err != nil {
		s.logger.Error().Err(err).Msg("persist tokens")
	}
	if email != "" {
		if err := s.tokens.SetLastEmail(email); err != nil {
			s.logger.Error().Err(err).Msg("persist last email")
		}
	}
	s.notify()
}

// adoptUser merges a server-acknowledged identity update.
func (s *Store) adoptUser(u *domain.User, alert *Alert) {
	s.mu.Lock()
	s.user = u
	s.loading = false
	s.err = ""
	s.alert = alert
	s.mu.Unlock()
	s.notify()
}

func boundApps(apps []domain.AppID, max int) []domain.AppID {
	var out []domain.AppID
	for _, raw := range apps {
		app, ok := domain.ParseApp(string(raw))
		if !ok {
			continue
		}
		dup := false
		for _, a := range out {
			if a == app {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, app)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
