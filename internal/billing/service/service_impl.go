package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	activitydomain "github.com/ridgelinehq/roofcrm/internal/activity/domain"
	"github.com/ridgelinehq/roofcrm/internal/authorization"
	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	"github.com/ridgelinehq/roofcrm/internal/billing/format"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	"github.com/ridgelinehq/roofcrm/internal/clock"
	"github.com/ridgelinehq/roofcrm/internal/config"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/internal/observability/metrics"
	"github.com/ridgelinehq/roofcrm/pkg/db"
	"github.com/ridgelinehq/roofcrm/pkg/db/option"
	"github.com/ridgelinehq/roofcrm/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	BillingCfg   *config.BillingConfigHolder
	Authz        authorization.Service
	ChangeOrders changeorderdomain.Service
	Activity     activitydomain.Service
	Metrics      *metrics.BillingMetrics `optional:"true"`
	Renderer     *Renderer               `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder

	authz        authorization.Service
	changeOrders changeorderdomain.Service
	activity     activitydomain.Service
	metrics      *metrics.BillingMetrics
	renderer     *Renderer

	invoicerepo repository.Repository[billingdomain.Invoice]
	locks       jobLocks
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,

		authz:        p.Authz,
		changeOrders: p.ChangeOrders,
		activity:     p.Activity,
		metrics:      p.Metrics,
		renderer:     p.Renderer,

		invoicerepo: repository.ProvideStore[billingdomain.Invoice](p.DB),
	}
}

// CreateInvoice computes and persists one invoice. The order inside is
// deliberate: authorization before any ledger read, then the per-job lock,
// then one transaction holding the job row lock for every read and write.
// Nothing after the commit can fail the invoice.
func (s *Service) CreateInvoice(ctx context.Context, req billingdomain.CreateInvoiceRequest) (billingdomain.CreateInvoiceResponse, error) {
	if err := s.authz.Authorize(ctx, req.Actor, authorization.ObjectInvoice, authorization.ActionInvoiceCreate); err != nil {
		return billingdomain.CreateInvoiceResponse{}, err
	}

	jobID, err := snowflake.ParseString(strings.TrimSpace(req.JobID))
	if err != nil || jobID == 0 {
		return billingdomain.CreateInvoiceResponse{}, billingdomain.ErrInvalidJobID
	}
	if err := validateCreateRequest(req); err != nil {
		s.recordRejection(err)
		return billingdomain.CreateInvoiceResponse{}, err
	}

	unlock := s.locks.lock(jobID)
	defer unlock()

	var (
		resp billingdomain.CreateInvoiceResponse
		job  jobdomain.Job
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.loadJobForUpdate(ctx, tx, jobID)
		if err != nil {
			return &billingdomain.StorageError{Op: "lock job", Err: err}
		}
		if locked == nil {
			return jobdomain.ErrNotFound
		}
		job = *locked

		ledger, err := s.loadLedger(ctx, tx, locked)
		if err != nil {
			return &billingdomain.StorageError{Op: "load contract ledger", Err: err}
		}

		invoiceID := s.genID.Generate()

		var computed computedInvoice
		switch req.InvoiceType {
		case billingdomain.InvoiceTypeDeposit:
			computed = computeDeposit(locked, *req.CustomAmount)
			if err := checkRemaining(computed.Amount, ledger); err != nil {
				return err
			}
		case billingdomain.InvoiceTypeProgress:
			computed = computeProgress(*req.CustomAmount)
			if err := checkRemaining(computed.Amount, ledger); err != nil {
				return err
			}
		case billingdomain.InvoiceTypeSupplement:
			claimed, err := s.claimChangeOrders(ctx, tx, jobID, req.ChangeOrderIDs, invoiceID)
			if err != nil {
				return err
			}
			computed = computeSupplement(claimed)
		case billingdomain.InvoiceTypeFinal:
			computed, err = computeFinal(ledger)
			if err != nil {
				return err
			}
		}

		seq, err := s.nextSequenceNumber(ctx, tx, jobID)
		if err != nil {
			return &billingdomain.StorageError{Op: "next sequence number", Err: err}
		}

		cfg := s.billingCfg.Get()
		number, err := format.FormatInvoiceNumber(cfg.InvoiceNumberTemplate, jobID.String(), seq)
		if err != nil {
			return &billingdomain.StorageError{Op: "format invoice number", Err: err}
		}

		now := s.clock.Now()
		due := req.DueDate
		if due == nil {
			d := now.AddDate(0, 0, cfg.DefaultDueDays)
			due = &d
		}

		invoice := billingdomain.Invoice{
			ID:             invoiceID,
			JobID:          jobID,
			InvoiceType:    req.InvoiceType,
			SequenceNumber: seq,
			InvoiceNumber:  number,
			Amount:         computed.Amount,
			TaxAmount:      req.TaxAmount,
			TotalAmount:    computed.Amount.Add(req.TaxAmount),
			Status:         billingdomain.InvoiceStatusDraft,
			InvoiceDate:    now,
			DueDate:        due,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.insertInvoice(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return &billingdomain.ConflictError{
					Reason:  "sequence_taken",
					Message: fmt.Sprintf("Invoice %s was just created by another request. Try again.", number),
				}
			}
			return &billingdomain.StorageError{Op: "insert invoice", Err: err}
		}

		items := make([]billingdomain.InvoiceLineItem, 0, len(computed.Lines))
		for i, line := range computed.Lines {
			item := billingdomain.InvoiceLineItem{
				ID:            s.genID.Generate(),
				InvoiceID:     invoiceID,
				Description:   line.Description,
				UnitPrice:     line.Amount,
				TotalPrice:    line.Amount,
				ChangeOrderID: line.ChangeOrderID,
				SortOrder:     i,
				CreatedAt:     now,
			}
			if err := s.insertLineItem(ctx, tx, item); err != nil {
				return &billingdomain.StorageError{Op: "insert line item", Err: err}
			}
			items = append(items, item)
		}

		resp = billingdomain.CreateInvoiceResponse{Invoice: invoice, LineItems: items}
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return billingdomain.CreateInvoiceResponse{}, err
	}

	s.metrics.RecordCreated(string(req.InvoiceType))
	s.log.Info("invoice created",
		zap.String("invoice_id", resp.Invoice.ID.String()),
		zap.String("invoice_number", resp.Invoice.InvoiceNumber),
		zap.String("job_id", jobID.String()),
		zap.String("invoice_type", string(req.InvoiceType)),
		zap.Int64("total_cents", resp.Invoice.TotalAmount.Cents()),
	)
	s.recordActivity(ctx, jobID, "invoice.created",
		fmt.Sprintf("Invoice %s created for %s", resp.Invoice.InvoiceNumber, resp.Invoice.TotalAmount.Format()),
		map[string]any{
			"invoice_id":     resp.Invoice.ID.String(),
			"invoice_number": resp.Invoice.InvoiceNumber,
			"invoice_type":   string(req.InvoiceType),
			"total_cents":    resp.Invoice.TotalAmount.Cents(),
			"actor":          req.Actor,
		})
	s.scheduleRender(resp.Invoice, resp.LineItems, job)

	return resp, nil
}

// claimChangeOrders parses the requested ids and claims them for the new
// invoice inside the caller's transaction. The claim is scoped to jobID so a
// supplement can never bill another job's change orders.
func (s *Service) claimChangeOrders(ctx context.Context, tx *gorm.DB, jobID snowflake.ID, rawIDs []string, invoiceID snowflake.ID) ([]changeorderdomain.ChangeOrder, error) {
	ids := make([]snowflake.ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return nil, changeorderdomain.ErrInvalidID
		}
		ids = append(ids, id)
	}

	claimed, err := s.changeOrders.Claim(ctx, tx, jobID, ids, invoiceID)
	if err != nil {
		var conflict *changeorderdomain.ClaimConflictError
		if errors.As(err, &conflict) {
			return nil, billingdomain.ErrChangeOrdersUnavailable(conflict.IDStrings())
		}
		return nil, err
	}
	return claimed, nil
}

func (s *Service) List(ctx context.Context, req billingdomain.ListInvoiceRequest) (billingdomain.ListInvoiceResponse, error) {
	filter := &billingdomain.Invoice{}
	if strings.TrimSpace(req.JobID) != "" {
		jobID, err := snowflake.ParseString(strings.TrimSpace(req.JobID))
		if err != nil || jobID == 0 {
			return billingdomain.ListInvoiceResponse{}, billingdomain.ErrInvalidJobID
		}
		filter.JobID = jobID
	}

	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}, Desc: true}),
	}
	if req.PageSize > 0 {
		options = append(options, option.WithLimit(req.PageSize))
	}

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return billingdomain.ListInvoiceResponse{}, err
	}

	cfg := s.billingCfg.Get()
	now := s.clock.Now()
	invoices := make([]billingdomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoice := *item
		invoice.Status = invoice.DisplayStatus(now, cfg.OverdueGraceDays)
		invoices = append(invoices, invoice)
	}

	return billingdomain.ListInvoiceResponse{Invoices: invoices}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (billingdomain.Invoice, []billingdomain.InvoiceLineItem, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return billingdomain.Invoice{}, nil, billingdomain.ErrInvalidID
	}

	item, err := s.invoicerepo.FindOne(ctx, &billingdomain.Invoice{ID: invoiceID})
	if err != nil {
		return billingdomain.Invoice{}, nil, err
	}
	if item == nil {
		return billingdomain.Invoice{}, nil, billingdomain.ErrNotFound
	}

	var items []billingdomain.InvoiceLineItem
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, unit_price, total_price,
		        change_order_id, sort_order, created_at
		 FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY sort_order`,
		invoiceID,
	).Scan(&items).Error; err != nil {
		return billingdomain.Invoice{}, nil, err
	}

	invoice := *item
	invoice.Status = invoice.DisplayStatus(s.clock.Now(), s.billingCfg.Get().OverdueGraceDays)
	return invoice, items, nil
}

func (s *Service) MarkSent(ctx context.Context, actor, id string) (billingdomain.Invoice, error) {
	return s.transition(ctx, actor, id, authorization.ActionInvoiceSend,
		billingdomain.InvoiceStatusSent,
		[]billingdomain.InvoiceStatus{billingdomain.InvoiceStatusDraft},
		"sent_at")
}

func (s *Service) MarkPaid(ctx context.Context, actor, id string) (billingdomain.Invoice, error) {
	return s.transition(ctx, actor, id, authorization.ActionInvoiceSend,
		billingdomain.InvoiceStatusPaid,
		[]billingdomain.InvoiceStatus{billingdomain.InvoiceStatusSent},
		"paid_at")
}

func (s *Service) Cancel(ctx context.Context, actor, id string) (billingdomain.Invoice, error) {
	return s.transition(ctx, actor, id, authorization.ActionInvoiceCancel,
		billingdomain.InvoiceStatusCancelled,
		[]billingdomain.InvoiceStatus{billingdomain.InvoiceStatusDraft, billingdomain.InvoiceStatusSent},
		"cancelled_at")
}

// transition moves an invoice between lifecycle states under a row lock.
// Cancelling releases the amount back to the job's remaining balance, but
// the sequence number stays burned.
func (s *Service) transition(
	ctx context.Context,
	actor, id string,
	action string,
	to billingdomain.InvoiceStatus,
	from []billingdomain.InvoiceStatus,
	stampColumn string,
) (billingdomain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, action); err != nil {
		return billingdomain.Invoice{}, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return billingdomain.Invoice{}, billingdomain.ErrInvalidID
	}

	var updated billingdomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return &billingdomain.StorageError{Op: "lock invoice", Err: err}
		}
		if invoice == nil {
			return billingdomain.ErrNotFound
		}
		if !statusIn(invoice.Status, from) {
			return billingdomain.ErrInvalidStatus
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Exec(
			fmt.Sprintf(`UPDATE invoices
			 SET status = ?, %s = ?, updated_at = ?
			 WHERE id = ?`, stampColumn),
			to,
			now,
			now,
			invoiceID,
		).Error; err != nil {
			return &billingdomain.StorageError{Op: "update invoice status", Err: err}
		}

		updated = *invoice
		updated.Status = to
		updated.UpdatedAt = now
		switch stampColumn {
		case "sent_at":
			updated.SentAt = &now
		case "paid_at":
			updated.PaidAt = &now
		case "cancelled_at":
			updated.CancelledAt = &now
		}
		return nil
	})
	if err != nil {
		return billingdomain.Invoice{}, err
	}

	s.recordActivity(ctx, updated.JobID, "invoice."+string(to),
		fmt.Sprintf("Invoice %s marked %s", updated.InvoiceNumber, to),
		map[string]any{
			"invoice_id":     updated.ID.String(),
			"invoice_number": updated.InvoiceNumber,
			"actor":          actor,
		})
	return updated, nil
}

// RenderDocument retries document generation for an invoice whose earlier
// render failed. Billing fields are untouched.
func (s *Service) RenderDocument(ctx context.Context, actor, id string) (billingdomain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceRender); err != nil {
		return billingdomain.Invoice{}, err
	}
	if s.renderer == nil {
		return billingdomain.Invoice{}, errors.New("document rendering is not configured")
	}

	invoice, items, job, err := s.loadRenderContext(ctx, id)
	if err != nil {
		return billingdomain.Invoice{}, err
	}

	s.renderInvoice(ctx, invoice, items, job)

	refreshed, _, err := s.GetByID(ctx, id)
	if err != nil {
		return billingdomain.Invoice{}, err
	}
	return refreshed, nil
}

func (s *Service) recordActivity(ctx context.Context, jobID snowflake.ID, action, description string, metadata map[string]any) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, jobID, action, description, metadata); err != nil {
		s.log.Warn("record activity", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) recordRejection(err error) {
	var validation *billingdomain.ValidationError
	if errors.As(err, &validation) {
		s.metrics.RecordRejected(validation.Reason)
		return
	}
	var conflict *billingdomain.ConflictError
	if errors.As(err, &conflict) {
		s.metrics.RecordRejected(conflict.Reason)
	}
}

func statusIn(status billingdomain.InvoiceStatus, allowed []billingdomain.InvoiceStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Service) insertInvoice(ctx context.Context, tx *gorm.DB, invoice billingdomain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, job_id, invoice_type, sequence_number, invoice_number,
			amount, tax_amount, total_amount, status, invoice_date, due_date,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.JobID,
		invoice.InvoiceType,
		invoice.SequenceNumber,
		invoice.InvoiceNumber,
		invoice.Amount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Status,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Notes,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (s *Service) insertLineItem(ctx context.Context, tx *gorm.DB, item billingdomain.InvoiceLineItem) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoice_line_items (
			id, invoice_id, description, unit_price, total_price,
			change_order_id, sort_order, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.InvoiceID,
		item.Description,
		item.UnitPrice,
		item.TotalPrice,
		item.ChangeOrderID,
		item.SortOrder,
		item.CreatedAt,
	).Error
}

func (s *Service) loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*billingdomain.Invoice, error) {
	query := `SELECT id, job_id, invoice_type, sequence_number, invoice_number,
	                 amount, tax_amount, total_amount, status, invoice_date, due_date,
	                 notes, document_url, render_error, sent_at, paid_at, cancelled_at,
	                 created_at, updated_at
	          FROM invoices
	          WHERE id = ?`
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		query += " FOR UPDATE"
	}

	var invoice billingdomain.Invoice
	if err := tx.WithContext(ctx).Raw(query, id).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}
