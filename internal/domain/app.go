package domain

// AppID identifies one micro-app of the bundle.
type AppID string

const (
	AppHabitKit    AppID = "habitkit"
	AppCalorieKit  AppID = "caloriekit"
	AppInvoiceKit  AppID = "invoicekit"
	AppTrainingKit AppID = "trainingkit"
)

// AllApps lists every known app in catalog declaration order. Entitlement
// results iterate in this order, never in ActiveApps insertion order.
var AllApps = []AppID{AppHabitKit, AppCalorieKit, AppInvoiceKit, AppTrainingKit}

// ParseApp resolves a raw identifier to a known AppID.
func ParseApp(raw string) (AppID, bool) {
	for _, app := range AllApps {
		if string(app) == raw {
			return app, true
		}
	}
	return "", false
}
