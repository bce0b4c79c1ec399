package authapi

import (
	"context"
	"net/http"
	"time"
)

// Wire types for the invoicing micro-app's resource collections. These pass
// through the portal mostly untouched, so they stay close to the API shapes.

type Company struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	TaxID     string    `json:"taxId,omitempty"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type ClientRecord struct {
	ID        string    `json:"id,omitempty"`
	CompanyID string    `json:"companyId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	TaxID     string    `json:"taxId,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Product struct {
	ID        string  `json:"id,omitempty"`
	CompanyID string  `json:"companyId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	TaxRate   float64 `json:"taxRate,omitempty"`
}

type InvoiceLine struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type Invoice struct {
	ID        string        `json:"id,omitempty"`
	CompanyID string        `json:"companyId"`
	ClientID  string        `json:"clientId"`
	Number    string        `json:"number,omitempty"`
	Status    string        `json:"status,omitempty"`
	Lines     []InvoiceLine `json:"lines"`
	IssuedAt  time.Time     `json:"issuedAt,omitempty"`
	DueAt     time.Time     `json:"dueAt,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// Companies

func (c *Client) ListCompanies(ctx context.Context) ([]Company, error) {
	var payload listResponse[Company]
	if err := c.do(ctx, http.MethodGet, "/invoices/companies", nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) CreateCompany(ctx context.Context, company Company) (*Company, error) {
	var out Company
	if err := c.do(ctx, http.MethodPost, "/invoices/companies", company, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCompany(ctx context.Context, id string, company Company) (*Company, error) {
	var out Company
	if err := c.do(ctx, http.MethodPut, "/invoices/companies/"+id, company, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCompany(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/companies/"+id, nil, nil, true)
}

// Clients

func (c *Client) ListClients(ctx context.Context, companyID string) ([]ClientRecord, error) {
	var payload listResponse[ClientRecord]
	if err := c.do(ctx, http.MethodGet, "/invoices/clients?companyId="+companyID, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) CreateClient(ctx context.Context, record ClientRecord) (*ClientRecord, error) {
	var out ClientRecord
	if err := c.do(ctx, http.MethodPost, "/invoices/clients", record, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateClient(ctx context.Context, id string, record ClientRecord) (*ClientRecord, error) {
	var out ClientRecord
	if err := c.do(ctx, http.MethodPut, "/invoices/clients/"+id, record, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/clients/"+id, nil, nil, true)
}

// Products

func (c *Client) ListProducts(ctx context.Context, companyID string) ([]Product, error) {
	var payload listResponse[Product]
	if err := c.do(ctx, http.MethodGet, "/invoices/products?companyId="+companyID, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, "/invoices/products", product, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, product Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPut, "/invoices/products/"+id, product, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/products/"+id, nil, nil, true)
}

// Invoices

func (c *Client) ListInvoices(ctx context.Context, companyID string) ([]Invoice, error) {
	var payload listResponse[Invoice]
	if err := c.do(ctx, http.MethodGet, "/invoices/invoices?companyId="+companyID, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) CreateInvoice(ctx context.Context, invoice Invoice) (*Invoice, error) {
	var out Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices/invoices", invoice, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateInvoice(ctx context.Context, id string, invoice Invoice) (*Invoice, error) {
	var out Invoice
	if err := c.do(ctx, http.MethodPut, "/invoices/invoices/"+id, invoice, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/invoices/"+id, nil, nil, true)
}
