package handlers

import (
	"net/http"

	"github.com/dimichiko/kitportal/internal/catalog"
	"github.com/dimichiko/kitportal/internal/middleware"
)

type planDTO struct {
	Plan        string   `json:"plan"`
	Title       string   `json:"title"`
	Apps        []string `json:"apps"`
	ChooseApps  bool     `json:"chooseApps"`
	MaxApps     int      `json:"maxApps"`
	FullHistory bool     `json:"fullHistory"`
	Backups     bool     `json:"backups"`
	Support     string   `json:"support"`
}

// planTitles is the little bit of marketing copy the pricing page needs,
// keyed by negotiated locale.
var planTitles = map[string]map[string]string{
	"en": {"free": "Free", "individual": "Individual", "flexible": "Flexible", "kitfull": "Kit Full"},
	"es": {"free": "Gratis", "individual": "Individual", "flexible": "Flexible", "kitfull": "Kit Completo"},
	"pt": {"free": "Grátis", "individual": "Individual", "flexible": "Flexível", "kitfull": "Kit Completo"},
}

// Pricing lists every plan in upgrade order. Public: prospective users see it
// before signing up.
func (a *App) Pricing(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	titles, ok := planTitles[locale]
	if !ok {
		titles = planTitles["en"]
	}

	plans := make([]planDTO, 0, 4)
	for _, entry := range catalog.Plans() {
		apps := make([]string, 0, len(entry.Apps))
		for _, app := range entry.Apps {
			apps = append(apps, string(app))
		}
		plans = append(plans, planDTO{
			Plan:        string(entry.Plan),
			Title:       titles[string(entry.Plan)],
			Apps:        apps,
			ChooseApps:  entry.Choice,
			MaxApps:     entry.Features.MaxApps,
			FullHistory: entry.Features.FullHistory,
			Backups:     entry.Features.Backups,
			Support:     string(entry.Features.Support),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"plans": plans})
}
