// Package guard decides, per request, whether a route renders, redirects or
// waits. Three middleware variants (Private, ProtectedApp, Public) share one
// state machine over the session snapshot; the decision logic is pure so it
// can be evaluated on every navigation without caching concerns. Guards never
// panic: an unexpected session shape degrades to the most restrictive state.
package guard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/entitlement"
	"github.com/dimichiko/kitportal/internal/session"
)

// SessionSource is the slice of the session store guards need.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// State is the guard state machine's vocabulary.
type State int

const (
	// StateLoading means the session bootstrap or an auth mutation is in
	// flight; it is neither authenticated nor unauthenticated.
	StateLoading State = iota
	StateUnauthenticated
	// StateDenied only applies to app-scoped guards: a valid session whose
	// plan does not unlock the requested app.
	StateDenied
	StateAllowed
)

// deniedRedirectDelay is how long the denied view stays up before the client
// is sent on to /apps or /pricing.
const deniedRedirectDelay = 2 * time.Second

// Evaluate maps a snapshot to a guard state. Loading always wins. A token
// that has not been verified into a user yet counts as loading, never as
// unauthenticated, so a mid-bootstrap navigation cannot bounce to /login.
// Pass an empty app for guards without an app-specific check.
func Evaluate(snap session.Snapshot, app domain.AppID) State {
	if snap.Loading {
		return StateLoading
	}
	if snap.User == nil {
		if snap.AccessToken != "" || snap.RefreshToken != "" {
			return StateLoading
		}
		return StateUnauthenticated
	}
	if app == "" || entitlement.HasAppAccess(snap.User, app) {
		return StateAllowed
	}
	return StateDenied
}

// Decision is a fully resolved guard outcome.
type Decision struct {
	State      State
	RedirectTo string
	Delay      time.Duration
}

// Decide resolves the state plus its redirect target. Unauthenticated keeps
// the attempted location for the post-login return; denied goes to /apps when
// the user has other entitled apps and /pricing otherwise, after a fixed
// delay.
func Decide(snap session.Snapshot, app domain.AppID, attempted string) Decision {
	switch state := Evaluate(snap, app); state {
	case StateUnauthenticated:
		target := "/login"
		if attempted != "" {
			target += "?next=" + url.QueryEscape(attempted)
		}
		return Decision{State: state, RedirectTo: target}
	case StateDenied:
		target := "/pricing"
		if len(entitlement.AvailableApps(snap.User)) > 0 {
			target = "/apps"
		}
		return Decision{State: state, RedirectTo: target, Delay: deniedRedirectDelay}
	default:
		return Decision{State: state}
	}
}

// Private requires a signed-in session and has no denied state.
func Private(sessions SessionSource) func(http.Handler) http.Handler {
	return appGuard(sessions, "")
}

// ProtectedApp additionally requires the plan to unlock the app.
func ProtectedApp(sessions SessionSource, app domain.AppID) func(http.Handler) http.Handler {
	return appGuard(sessions, app)
}

func appGuard(sessions SessionSource, app domain.AppID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Decide(sessions.Snapshot(), app, r.URL.RequestURI())
			switch decision.State {
			case StateLoading:
				writeLoading(w)
			case StateUnauthenticated:
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
			case StateDenied:
				writeDenied(w, app, decision)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Public is the inverse guard for login/register style routes: a signed-in
// session is sent away, everyone else passes through.
func Public(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Evaluate(sessions.Snapshot(), "") {
			case StateLoading:
				writeLoading(w)
			case StateAllowed:
				http.Redirect(w, r, "/apps", http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeLoading(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{
		"state":   "loading",
		"message": "restoring your session",
	})
}

func writeDenied(w http.ResponseWriter, app domain.AppID, decision Decision) {
	seconds := int(decision.Delay / time.Second)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", seconds, decision.RedirectTo))
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"state":                "denied",
		"app":                  app,
		"message":              "your plan does not include this app",
		"upgradeUrl":           "/pricing",
		"appsUrl":              "/apps",
		"redirectTo":           decision.RedirectTo,
		"redirectAfterSeconds": seconds,
	})
}
