package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListAppsForFlexibleUser(t *testing.T) {
	app := newTestApp(t, loginUpstream())

	body := strings.NewReader(`{"email":"ana@example.com","password":"correct-horse"}`)
	rr := httptest.NewRecorder()
	app.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.ListApps(rr, httptest.NewRequest(http.MethodGet, "/v1/apps", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp appListDTO
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Apps) != 1 || resp.Apps[0] != "habitkit" {
		t.Fatalf("apps = %v, want [habitkit]", resp.Apps)
	}
	if !resp.CanUpgrade {
		t.Fatalf("flexible plan must be upgradable")
	}
	if resp.Features.MaxApps != 4 || !resp.Features.Backups {
		t.Fatalf("features = %+v, want flexible feature flags", resp.Features)
	}
}

func TestPricingListsPlansInUpgradeOrder(t *testing.T) {
	app := newTestApp(t, http.NewServeMux())

	rr := httptest.NewRecorder()
	app.Pricing(rr, httptest.NewRequest(http.MethodGet, "/v1/pricing", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Plans []planDTO `json:"plans"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"free", "individual", "flexible", "kitfull"}
	if len(resp.Plans) != len(want) {
		t.Fatalf("got %d plans, want %d", len(resp.Plans), len(want))
	}
	for i, plan := range resp.Plans {
		if plan.Plan != want[i] {
			t.Fatalf("plans[%d] = %q, want %q", i, plan.Plan, want[i])
		}
	}
	if resp.Plans[3].MaxApps != 4 || resp.Plans[3].Support != "priority" {
		t.Fatalf("kitfull entry = %+v", resp.Plans[3])
	}
}
