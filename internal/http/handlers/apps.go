package handlers

import (
	"net/http"

	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/entitlement"
)

type appListDTO struct {
	Apps       []string    `json:"apps"`
	Features   featuresDTO `json:"features"`
	CanUpgrade bool        `json:"canUpgrade"`
}

type featuresDTO struct {
	MaxApps     int    `json:"maxApps"`
	FullHistory bool   `json:"fullHistory"`
	Backups     bool   `json:"backups"`
	Support     string `json:"support"`
}

// ListApps returns the apps the current plan unlocks, in catalog order, plus
// the plan's feature flags.
func (a *App) ListApps(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser()
	available := entitlement.AvailableApps(u)
	features := entitlement.PlanFeatures(u)

	apps := make([]string, 0, len(available))
	for _, app := range available {
		apps = append(apps, string(app))
	}
	a.json(w, http.StatusOK, appListDTO{
		Apps: apps,
		Features: featuresDTO{
			MaxApps:     features.MaxApps,
			FullHistory: features.FullHistory,
			Backups:     features.Backups,
			Support:     string(features.Support),
		},
		CanUpgrade: a.canUpgrade(),
	})
}

// AppHome is the landing endpoint of a guarded micro-app. Reaching it at all
// means the guard allowed the request; the body just confirms which app and
// which plan features apply.
func (a *App) AppHome(app domain.AppID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		features := entitlement.PlanFeatures(a.currentUser())
		a.json(w, http.StatusOK, map[string]any{
			"app":         app,
			"fullHistory": features.FullHistory,
			"backups":     features.Backups,
		})
	}
}
