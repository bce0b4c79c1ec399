package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/domain"
)

// Invoicekit handlers proxy the invoicing micro-app's resource collections
// through the authenticated API client. The only portal-owned state is the
// current-company selection, cached per user in the token store.

// CurrentCompany returns the cached company selection for the signed-in user.
func (a *App) CurrentCompany(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser()
	if u == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"companyId": a.Tokens.CurrentCompany(u.ID)})
}

type selectCompanyRequest struct {
	CompanyID string `json:"companyId"`
}

// SelectCompany persists the company the invoicing screens operate on.
func (a *App) SelectCompany(w http.ResponseWriter, r *http.Request) {
	u := a.currentUser()
	if u == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req selectCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Tokens.SetCurrentCompany(u.ID, req.CompanyID); err != nil {
		a.Logger.Error().Err(err).Msg("persist company selection")
		a.error(w, http.StatusInternalServerError, "internal", "could not save selection")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"companyId": req.CompanyID})
}

// companyID resolves the company scope for list requests: explicit query
// param first, then the cached selection.
func (a *App) companyID(r *http.Request) string {
	if id := r.URL.Query().Get("companyId"); id != "" {
		return id
	}
	if u := a.currentUser(); u != nil {
		return a.Tokens.CurrentCompany(u.ID)
	}
	return ""
}

func (a *App) proxyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "your session has expired, please sign in again")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		var apiErr *authapi.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			a.error(w, apiErr.Status, "rejected", apiErr.Error())
			return
		}
		a.error(w, http.StatusBadGateway, "upstream", "something went wrong, please try again")
	}
}

// Companies

func (a *App) ListCompanies(w http.ResponseWriter, r *http.Request) {
	items, err := a.API.ListCompanies(r.Context())
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var company authapi.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	created, err := a.API.CreateCompany(r.Context(), company)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusCreated, created)
}

func (a *App) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var company authapi.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	updated, err := a.API.UpdateCompany(r.Context(), chi.URLParam(r, "id"), company)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

func (a *App) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := a.API.DeleteCompany(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.proxyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clients

func (a *App) ListClients(w http.ResponseWriter, r *http.Request) {
	items, err := a.API.ListClients(r.Context(), a.companyID(r))
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreateClient(w http.ResponseWriter, r *http.Request) {
	var record authapi.ClientRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	created, err := a.API.CreateClient(r.Context(), record)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusCreated, created)
}

func (a *App) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var record authapi.ClientRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	updated, err := a.API.UpdateClient(r.Context(), chi.URLParam(r, "id"), record)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

func (a *App) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := a.API.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.proxyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Products

func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := a.API.ListProducts(r.Context(), a.companyID(r))
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product authapi.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	created, err := a.API.CreateProduct(r.Context(), product)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusCreated, created)
}

func (a *App) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var product authapi.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	updated, err := a.API.UpdateProduct(r.Context(), chi.URLParam(r, "id"), product)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

func (a *App) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.API.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.proxyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invoices

func (a *App) ListInvoices(w http.ResponseWriter, r *http.Request) {
	items, err := a.API.ListInvoices(r.Context(), a.companyID(r))
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var invoice authapi.Invoice
	if err := json.NewDecoder(r.Body).Decode(&invoice); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	created, err := a.API.CreateInvoice(r.Context(), invoice)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusCreated, created)
}

func (a *App) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var invoice authapi.Invoice
	if err := json.NewDecoder(r.Body).Decode(&invoice); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	updated, err := a.API.UpdateInvoice(r.Context(), chi.URLParam(r, "id"), invoice)
	if err != nil {
		a.proxyError(w, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

func (a *App) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := a.API.DeleteInvoice(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.proxyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
