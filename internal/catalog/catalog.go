// Package catalog holds the static mapping from billing plan to the apps it
// unlocks and its auxiliary feature flags. The table is immutable
// configuration; Lookup is a total function over the plan domain.
package catalog

import "github.com/dimichiko/kitportal/internal/domain"

// Features are the auxiliary flags attached to a plan.
type Features struct {
	MaxApps     int
	FullHistory bool
	Backups     bool
	Support     domain.SupportLevel
}

// Entry describes one plan. Apps is the permitted universe in declaration
// order. For fixed-set plans (Choice == false) it is the entitled set itself,
// independent of the user's ActiveApps. For choice plans (Choice == true) the
// entitled set is the intersection of Apps and the user's ActiveApps, bounded
// by Features.MaxApps.
type Entry struct {
	Plan     domain.Plan
	Apps     []domain.AppID
	Choice   bool
	Features Features
}

var entries = map[domain.Plan]Entry{
	domain.PlanFree: {
		Plan: domain.PlanFree,
		// The free tier unlocks nothing; it exists so signed-up users can
		// browse pricing and upgrade. ActiveApps is ignored like on any
		// fixed-set plan.
		Features: Features{
			Support: domain.SupportLimited,
		},
	},
	domain.PlanIndividual: {
		Plan:   domain.PlanIndividual,
		Apps:   domain.AllApps,
		Choice: true,
		Features: Features{
			MaxApps:     1,
			FullHistory: true,
			Support:     domain.SupportEmail,
		},
	},
	domain.PlanFlexible: {
		Plan:   domain.PlanFlexible,
		Apps:   domain.AllApps,
		Choice: true,
		Features: Features{
			MaxApps:     4,
			FullHistory: true,
			Backups:     true,
			Support:     domain.SupportEmail,
		},
	},
	domain.PlanKitFull: {
		Plan: domain.PlanKitFull,
		Apps: domain.AllApps,
		Features: Features{
			MaxApps:     4,
			FullHistory: true,
			Backups:     true,
			Support:     domain.SupportPriority,
		},
	},
}

// Lookup returns the entry for a plan. Unknown plans resolve to the free
// entry; callers never need to handle a missing plan.
func Lookup(plan domain.Plan) Entry {
	if e, ok := entries[plan]; ok {
		return e
	}
	return entries[domain.PlanFree]
}

// Plans returns every catalog entry in upgrade order.
func Plans() []Entry {
	return []Entry{
		entries[domain.PlanFree],
		entries[domain.PlanIndividual],
		entries[domain.PlanFlexible],
		entries[domain.PlanKitFull],
	}
}
