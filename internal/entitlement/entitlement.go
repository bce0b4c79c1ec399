// Package entitlement answers access questions for the current user. Every
// function is a pure view over (user, catalog): no caching, no side effects,
// safe to call on every request. Pages and guards must route all plan checks
// through here instead of inspecting user.Plan or user.ActiveApps directly.
package entitlement

import (
	"github.com/dimichiko/kitportal/internal/catalog"
	"github.com/dimichiko/kitportal/internal/domain"
)

// HasAppAccess reports whether the user's plan unlocks the app. A nil user
// has no access. Fixed-set plans ignore ActiveApps entirely; choice plans
// require the app to be both permitted by the plan and explicitly activated.
func HasAppAccess(u *domain.User, app domain.AppID) bool {
	if u == nil {
		return false
	}
	e := catalog.Lookup(u.Plan)
	if !contains(e.Apps, app) {
		return false
	}
	if !e.Choice {
		return true
	}
	return u.HasActiveApp(app)
}

// AvailableApps returns every entitled app in catalog declaration order.
// The result is always a subset of the known app ids, even when ActiveApps
// carries unknown or duplicate entries, and never exceeds the plan's MaxApps.
func AvailableApps(u *domain.User) []domain.AppID {
	if u == nil {
		return nil
	}
	e := catalog.Lookup(u.Plan)
	max := e.Features.MaxApps
	var apps []domain.AppID
	for _, app := range e.Apps {
		if e.Choice && !u.HasActiveApp(app) {
			continue
		}
		apps = append(apps, app)
		if max > 0 && len(apps) >= max {
			break
		}
	}
	return apps
}

// PlanFeatures returns the feature flags of the user's plan. Unrecognized
// plans resolve to the free feature set.
func PlanFeatures(u *domain.User) catalog.Features {
	if u == nil {
		return catalog.Lookup(domain.PlanFree).Features
	}
	return catalog.Lookup(u.Plan).Features
}

// CanUpgrade reports whether a higher tier exists for the user's plan.
func CanUpgrade(u *domain.User) bool {
	if u == nil {
		return false
	}
	return catalog.Lookup(u.Plan).Plan != domain.PlanKitFull
}

func contains(apps []domain.AppID, app domain.AppID) bool {
	for _, a := range apps {
		if a == app {
			return true
		}
	}
	return false
}
