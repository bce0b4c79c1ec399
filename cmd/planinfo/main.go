package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dimichiko/kitportal/internal/catalog"
	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/entitlement"
)

// planinfo prints what a plan unlocks, resolved against an optional set of
// chosen apps. Useful for support: paste a user's plan and activeApps and see
// exactly which micro-apps the portal will let through.
func main() {
	var (
		planFlag string
		appsFlag string
		allFlag  bool
	)

	flag.StringVar(&planFlag, "plan", "", "plan to inspect (free, individual, flexible, kitfull; legacy aliases accepted)")
	flag.StringVar(&appsFlag, "apps", "", "comma-separated chosen apps, as stored in the user's activeApps")
	flag.BoolVar(&allFlag, "all", false, "print every plan in upgrade order and exit")
	flag.Parse()

	if allFlag {
		for _, entry := range catalog.Plans() {
			printEntry(entry)
		}
		return
	}

	raw := strings.TrimSpace(planFlag)
	if raw == "" {
		exitWithError(errors.New("-plan is required (or use -all)"))
	}
	plan := domain.ParsePlan(raw)
	if !strings.EqualFold(raw, string(plan)) {
		fmt.Fprintf(os.Stderr, "note: %q resolves to plan %q\n", raw, plan)
	}

	entry := catalog.Lookup(plan)
	printEntry(entry)

	if entry.Choice {
		user := &domain.User{Plan: plan}
		for _, part := range strings.Split(appsFlag, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			app, ok := domain.ParseApp(part)
			if !ok {
				fmt.Fprintf(os.Stderr, "note: ignoring unknown app %q\n", part)
				continue
			}
			user.ActiveApps = append(user.ActiveApps, app)
		}
		resolved := entitlement.AvailableApps(user)
		fmt.Printf("resolved apps (%d of max %d): %s\n",
			len(resolved), entry.Features.MaxApps, joinApps(resolved))
	}
}

func printEntry(entry catalog.Entry) {
	mode := "fixed"
	if entry.Choice {
		mode = "choice"
	}
	fmt.Printf("%s (%s, max %d apps): %s\n",
		entry.Plan, mode, entry.Features.MaxApps, joinApps(entry.Apps))

	features, err := json.Marshal(map[string]any{
		"fullHistory": entry.Features.FullHistory,
		"backups":     entry.Features.Backups,
		"support":     entry.Features.Support,
	})
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("  features: %s\n", features)
}

func joinApps(apps []domain.AppID) string {
	if len(apps) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(apps))
	for _, app := range apps {
		parts = append(parts, string(app))
	}
	return strings.Join(parts, ", ")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
