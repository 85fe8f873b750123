package domain

import (
	"context"
	"time"

	"github.com/ridgelinehq/roofcrm/pkg/db/pagination"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// CreateInvoiceRequest creates one invoice against a job. CustomAmount is
// required for deposit and progress invoices and ignored for the other
// types, which compute their own amount. ChangeOrderIDs names the approved,
// unbilled change orders a supplement bills.
type CreateInvoiceRequest struct {
	JobID          string       `json:"job_id"`
	Actor          string       `json:"-"`
	InvoiceType    InvoiceType  `json:"invoice_type"`
	CustomAmount   *money.Money `json:"custom_amount,omitempty"`
	ChangeOrderIDs []string     `json:"change_order_ids,omitempty"`
	TaxAmount      money.Money  `json:"tax_amount,omitempty"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	Notes          string       `json:"notes,omitempty"`
}

type CreateInvoiceResponse struct {
	Invoice   Invoice           `json:"invoice"`
	LineItems []InvoiceLineItem `json:"line_items"`
}

type ListInvoiceRequest struct {
	JobID string `json:"job_id,omitempty"`
	pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// CreateInvoice computes, sequences, and persists an invoice in one
	// atomic transaction, then kicks off document rendering best-effort.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (CreateInvoiceResponse, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, []InvoiceLineItem, error)
	MarkSent(ctx context.Context, actor, id string) (Invoice, error)
	MarkPaid(ctx context.Context, actor, id string) (Invoice, error)
	Cancel(ctx context.Context, actor, id string) (Invoice, error)
	// RenderDocument re-runs document generation for an invoice whose
	// earlier render failed. It never alters billing fields.
	RenderDocument(ctx context.Context, actor, id string) (Invoice, error)
}
