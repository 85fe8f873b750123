package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	"github.com/ridgelinehq/roofcrm/internal/config"
	"github.com/ridgelinehq/roofcrm/internal/docstore"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/internal/providers/pdf"
	"github.com/ridgelinehq/roofcrm/internal/renderlock"
)

const renderTimeout = 30 * time.Second

// Renderer turns a committed invoice into a stored PDF document. It runs
// after the billing transaction commits and never touches billing fields:
// a render failure leaves the invoice valid with render_error set, and a
// later retry picks it up from there.
type Renderer struct {
	log    *zap.Logger
	pdf    pdf.Provider
	store  docstore.Store
	locker *renderlock.Locker
	cfg    config.Config
}

type RendererParam struct {
	fx.In

	Log    *zap.Logger
	PDF    pdf.Provider
	Store  docstore.Store
	Locker *renderlock.Locker `optional:"true"`
	Cfg    config.Config
}

func NewRenderer(p RendererParam) *Renderer {
	return &Renderer{
		log:    p.Log.Named("billing.renderer"),
		pdf:    p.PDF,
		store:  p.Store,
		locker: p.Locker,
		cfg:    p.Cfg,
	}
}

// scheduleRender kicks off a background render after commit. Detached from
// the request context: the invoice exists whether or not the caller waits.
func (s *Service) scheduleRender(invoice billingdomain.Invoice, items []billingdomain.InvoiceLineItem, job jobdomain.Job) {
	if s.renderer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()
		s.renderInvoice(ctx, invoice, items, job)
	}()
}

// renderInvoice renders, stores, and records the document for one invoice.
// Every failure path writes render_error and returns; nothing here can fail
// the invoice itself.
func (s *Service) renderInvoice(ctx context.Context, invoice billingdomain.Invoice, items []billingdomain.InvoiceLineItem, job jobdomain.Job) {
	r := s.renderer

	token, acquired, err := r.locker.TryAcquire(ctx, invoice.ID, renderlock.DefaultTTL)
	if err != nil {
		// Redis down. Render anyway; a duplicate render writes the same
		// document twice, which is harmless.
		r.log.Warn("render lock unavailable",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	} else if !acquired {
		r.log.Info("render already in progress",
			zap.String("invoice_id", invoice.ID.String()),
		)
		return
	}
	defer r.locker.Release(ctx, invoice.ID, token)

	doc, err := r.pdf.GenerateInvoice(ctx, buildInvoiceData(r.cfg, invoice, items, job))
	if err != nil {
		s.recordRenderFailure(ctx, invoice, fmt.Errorf("generate pdf: %w", err))
		return
	}
	if doc == nil {
		return
	}

	url, err := r.store.Save(ctx, invoice.InvoiceNumber+".pdf", doc)
	if err != nil {
		s.recordRenderFailure(ctx, invoice, fmt.Errorf("store document: %w", err))
		return
	}

	if err := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET document_url = ?, render_error = NULL, updated_at = ?
		 WHERE id = ?`,
		url,
		s.clock.Now(),
		invoice.ID,
	).Error; err != nil {
		r.log.Error("record document url",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	r.log.Info("invoice document rendered",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("document_url", url),
	)
}

func (s *Service) recordRenderFailure(ctx context.Context, invoice billingdomain.Invoice, cause error) {
	s.renderer.log.Error("invoice render failed",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Error(cause),
	)
	s.metrics.RecordRenderFailure()

	if err := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET render_error = ?, updated_at = ?
		 WHERE id = ?`,
		cause.Error(),
		s.clock.Now(),
		invoice.ID,
	).Error; err != nil {
		s.renderer.log.Error("record render failure",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}

func buildInvoiceData(cfg config.Config, invoice billingdomain.Invoice, items []billingdomain.InvoiceLineItem, job jobdomain.Job) pdf.InvoiceData {
	data := pdf.InvoiceData{
		CompanyName:   cfg.AppName,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceType:   string(invoice.InvoiceType),
		IssueDate:     invoice.InvoiceDate.Format("Jan 2, 2006"),
		CustomerName:  job.CustomerName,
		JobAddress:    job.Address,
		Subtotal:      invoice.Amount.Format(),
		Tax:           invoice.TaxAmount.Format(),
		Total:         invoice.TotalAmount.Format(),
		Notes:         invoice.Notes,
	}
	if invoice.DueDate != nil {
		data.DueDate = invoice.DueDate.Format("Jan 2, 2006")
	}
	for _, item := range items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Amount:      item.TotalPrice.Format(),
		})
	}
	return data
}

// loadRenderContext reloads everything a retry render needs.
func (s *Service) loadRenderContext(ctx context.Context, invoiceID string) (billingdomain.Invoice, []billingdomain.InvoiceLineItem, jobdomain.Job, error) {
	invoice, items, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return billingdomain.Invoice{}, nil, jobdomain.Job{}, err
	}

	var job jobdomain.Job
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, customer_name, address, deal_type, status,
		        base_contract_value, created_at, updated_at
		 FROM jobs
		 WHERE id = ?`,
		invoice.JobID,
	).Scan(&job).Error; err != nil {
		return billingdomain.Invoice{}, nil, jobdomain.Job{}, err
	}
	if job.ID == 0 {
		return billingdomain.Invoice{}, nil, jobdomain.Job{}, jobdomain.ErrNotFound
	}
	return invoice, items, job, nil
}
