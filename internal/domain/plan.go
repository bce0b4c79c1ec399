package domain

import "strings"

// Plan enumerates billing plans. The lowercase scheme is canonical; the
// legacy scheme (Free/Individual/Flexible/KitFull, plus premium/enterprise)
// still appears in older server responses and is resolved through
// planAliases at the boundary.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanIndividual Plan = "individual"
	PlanFlexible   Plan = "flexible"
	PlanKitFull    Plan = "kitfull"
)

var planAliases = map[string]Plan{
	"free":       PlanFree,
	"individual": PlanIndividual,
	"flexible":   PlanFlexible,
	"kitfull":    PlanKitFull,
	"premium":    PlanKitFull,
	"enterprise": PlanKitFull,
}

// ParsePlan is total: any unrecognized value resolves to the free plan, the
// most restrictive interpretation, so a bad plan string degrades access
// instead of crashing a caller.
func ParsePlan(raw string) Plan {
	if p, ok := planAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p
	}
	return PlanFree
}

// SupportLevel enumerates the support tier attached to a plan.
type SupportLevel string

const (
	SupportLimited  SupportLevel = "limited"
	SupportEmail    SupportLevel = "email"
	SupportPriority SupportLevel = "priority"
)
