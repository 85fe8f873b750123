package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// contractLedger is the read-side snapshot the computation rules work from.
// All three figures come from the same transaction, after the job row lock,
// so they describe one consistent point in time.
type contractLedger struct {
	Ceiling         money.Money
	ApprovedChanges money.Money
	InvoicedTotal   money.Money
}

// Remaining is the amount a final invoice may still bill.
func (l contractLedger) Remaining() money.Money {
	return l.Ceiling.Sub(l.InvoicedTotal)
}

func (s *Service) loadLedger(ctx context.Context, tx *gorm.DB, job *jobdomain.Job) (contractLedger, error) {
	approved, err := s.approvedChangesTotal(ctx, tx, job.ID)
	if err != nil {
		return contractLedger{}, err
	}
	invoiced, err := s.invoicedTotal(ctx, tx, job.ID)
	if err != nil {
		return contractLedger{}, err
	}
	return contractLedger{
		Ceiling:         resolveContractCeiling(job, approved, invoiced),
		ApprovedChanges: approved,
		InvoicedTotal:   invoiced,
	}, nil
}

// resolveContractCeiling returns the most a job may ever be invoiced: the
// signed base contract plus every approved change order, billed or not.
//
// Jobs imported from the old spreadsheet era often have no recorded base
// contract value. For those, the invoices already issued are the best
// available evidence of the agreed price, so the ceiling falls back to the
// invoiced-so-far total (floored at zero) plus approved changes. The
// fallback also applies when the recorded base is zero, which the old
// importer wrote for unknown values.
func resolveContractCeiling(job *jobdomain.Job, approvedChanges, invoicedTotal money.Money) money.Money {
	if job.BaseContractValue == nil || job.BaseContractValue.IsZero() {
		base := invoicedTotal
		if base.IsNegative() {
			base = 0
		}
		return base.Add(approvedChanges)
	}
	return job.BaseContractValue.Add(approvedChanges)
}

// approvedChangesTotal sums every approved change order on the job,
// including ones already claimed by an invoice. Claimed change orders still
// raise the ceiling; they just cannot be billed again.
func (s *Service) approvedChangesTotal(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) (money.Money, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM change_orders
		 WHERE job_id = ? AND status = ?`,
		jobID,
		"approved",
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return money.FromCents(total), nil
}

// invoicedTotal sums the job's invoices in every status except cancelled.
// Draft and unpaid invoices count: they represent committed billing. The sum
// uses the pre-tax amount, matching the ceiling: tax is collected on top of
// the contract and never consumes remaining balance.
func (s *Service) invoicedTotal(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) (money.Money, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM invoices
		 WHERE job_id = ? AND status <> ?`,
		jobID,
		"cancelled",
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return money.FromCents(total), nil
}
