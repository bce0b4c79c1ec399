package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/infra"
	"github.com/dimichiko/kitportal/internal/session"
	"github.com/dimichiko/kitportal/internal/tokenstore"
)

// App is the handler container: every route handler hangs off it and reaches
// its collaborators through explicit fields, never through globals.
type App struct {
	Logger  infra.Logger
	Session *session.Store
	API     *authapi.Client
	Tokens  *tokenstore.Store
}

func NewApp(logger infra.Logger, store *session.Store, api *authapi.Client, tokens *tokenstore.Store) *App {
	return &App{Logger: logger, Session: store, API: api, Tokens: tokens}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]string{"error": errCode, "message": msg})
}

// fieldErrors surfaces client-side validation failures inline, keyed by the
// offending field, before any request leaves the portal.
func (a *App) fieldErrors(w http.ResponseWriter, fields map[string]string) {
	a.json(w, http.StatusBadRequest, map[string]any{
		"error":  "validation",
		"fields": fields,
	})
}
