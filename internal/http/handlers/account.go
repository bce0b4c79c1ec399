package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/entitlement"
	"github.com/dimichiko/kitportal/internal/session"
)

type userDTO struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	AvatarURL        string   `json:"avatarUrl,omitempty"`
	Plan             string   `json:"plan"`
	EmailVerified    bool     `json:"emailVerified"`
	TwoFactorEnabled bool     `json:"twoFactorEnabled"`
	ActiveApps       []string `json:"activeApps"`
	Role             string   `json:"role"`
}

type sessionDTO struct {
	Authenticated bool           `json:"authenticated"`
	Loading       bool           `json:"loading"`
	User          *userDTO       `json:"user,omitempty"`
	Error         string         `json:"error,omitempty"`
	Alert         *session.Alert `json:"alert,omitempty"`
}

func toUserDTO(u *domain.User) *userDTO {
	if u == nil {
		return nil
	}
	apps := make([]string, 0, len(u.ActiveApps))
	for _, app := range u.ActiveApps {
		apps = append(apps, string(app))
	}
	return &userDTO{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		AvatarURL:        u.AvatarURL,
		Plan:             string(u.Plan),
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		ActiveApps:       apps,
		Role:             string(u.Role),
	}
}

func (a *App) sessionDTO() sessionDTO {
	snap := a.Session.Snapshot()
	return sessionDTO{
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
		User:          toUserDTO(snap.User),
		Error:         snap.Err,
		Alert:         snap.Alert,
	}
}

// SessionInfo exposes the current snapshot to the UI.
func (a *App) SessionInfo(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.sessionDTO())
}

// DismissAlert clears the pending notification once the UI has shown it.
func (a *App) DismissAlert(w http.ResponseWriter, r *http.Request) {
	a.Session.ClearAlert()
	a.json(w, http.StatusOK, a.sessionDTO())
}

// UpdateProfile forwards a partial identity edit; the response reflects the
// server-merged user, not the request payload.
func (a *App) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update authapi.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if update.Email != nil && !validEmail(*update.Email) {
		a.fieldErrors(w, map[string]string{"email": "a valid email is required"})
		return
	}

	if err := a.Session.UpdateProfile(r.Context(), update); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type changePlanRequest struct {
	Plan       string   `json:"plan"`
	ActiveApps []string `json:"activeApps"`
}

// ChangePlan switches the subscription. The session store bounds the
// activated apps to the target plan's limit before anything reaches the
// server.
func (a *App) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		a.fieldErrors(w, map[string]string{"plan": "plan is required"})
		return
	}
	apps := make([]domain.AppID, 0, len(req.ActiveApps))
	for _, raw := range req.ActiveApps {
		apps = append(apps, domain.AppID(raw))
	}

	if err := a.Session.ChangePlan(r.Context(), domain.ParsePlan(req.Plan), apps); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *App) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	fields := map[string]string{}
	if req.CurrentPassword == "" {
		fields["currentPassword"] = "current password is required"
	}
	if len(req.NewPassword) < 8 {
		fields["newPassword"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		a.fieldErrors(w, fields)
		return
	}

	if err := a.Session.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type twoFactorRequest struct {
	Code string `json:"code"`
}

func (a *App) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Session.EnableTwoFactor(r.Context(), strings.TrimSpace(req.Code)); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

func (a *App) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Session.DisableTwoFactor(r.Context(), strings.TrimSpace(req.Code)); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (a *App) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Session.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

// currentUser returns the signed-in identity; guards ensure it is present on
// private routes, the nil check is for direct calls.
func (a *App) currentUser() *domain.User {
	return a.Session.Snapshot().User
}

// canUpgrade is exposed for the account page's upgrade button.
func (a *App) canUpgrade() bool {
	return entitlement.CanUpgrade(a.currentUser())
}
