package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates against the account API through the session store. A
// two-factor demand is a distinct 200 outcome, not an error: the UI decides
// whether to show the one-time-code form.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if fields := validateLogin(req); len(fields) > 0 {
		a.fieldErrors(w, fields)
		return
	}

	err := a.Session.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, domain.ErrTwoFactorRequired) {
		a.json(w, http.StatusOK, map[string]any{"twoFactorRequired": true})
		return
	}
	if err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type verifyTwoFactorRequest struct {
	Code string `json:"code"`
}

func (a *App) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		a.fieldErrors(w, map[string]string{"code": "code is required"})
		return
	}

	if err := a.Session.VerifyTwoFactor(r.Context(), strings.TrimSpace(req.Code)); err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			a.error(w, http.StatusConflict, "no_pending_login", "no login is waiting for a code")
			return
		}
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register creates an unverified account; the session stays logged out until
// the email is verified and the user signs in.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if fields := validateRegister(req); len(fields) > 0 {
		a.fieldErrors(w, fields)
		return
	}

	if err := a.Session.Register(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusCreated, a.sessionDTO())
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	a.Session.Logout()
	a.json(w, http.StatusOK, a.sessionDTO())
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

func (a *App) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !validEmail(req.Email) {
		a.fieldErrors(w, map[string]string{"email": "a valid email is required"})
		return
	}

	if err := a.Session.ResetPassword(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		a.authError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionDTO())
}

// LastEmail returns the remembered login email for prefilling the form.
func (a *App) LastEmail(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"email": a.Tokens.LastEmail()})
}

// authError translates session-store failures into the error taxonomy:
// authentication failures are 401, upstream rejections keep their status,
// anything else is a generic retry-prompting 502.
func (a *App) authError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		a.error(w, http.StatusUnauthorized, "invalid_credentials", "wrong email or password")
	case errors.Is(err, domain.ErrInvalidTwoFactorCode):
		a.error(w, http.StatusUnauthorized, "invalid_code", "the code is not valid")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "your session has expired, please sign in again")
	default:
		var apiErr *authapi.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			a.error(w, apiErr.Status, "rejected", apiErr.Error())
			return
		}
		a.error(w, http.StatusBadGateway, "upstream", "something went wrong, please try again")
	}
}

func validateLogin(req loginRequest) map[string]string {
	fields := map[string]string{}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email is required"
	}
	if req.Password == "" {
		fields["password"] = "password is required"
	}
	return fields
}

func validateRegister(req registerRequest) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "name is required"
	}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email is required"
	}
	if len(req.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if req.ConfirmPassword != req.Password {
		fields["confirmPassword"] = "passwords do not match"
	}
	return fields
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
