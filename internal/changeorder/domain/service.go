package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/ridgelinehq/roofcrm/pkg/money"
	"gorm.io/gorm"
)

type CreateChangeOrderRequest struct {
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
}

type Service interface {
	Create(ctx context.Context, jobID string, req CreateChangeOrderRequest) (ChangeOrder, error)
	ListByJob(ctx context.Context, jobID string) ([]ChangeOrder, error)
	Approve(ctx context.Context, id string) (ChangeOrder, error)
	Reject(ctx context.Context, id string) (ChangeOrder, error)

	// ApprovedUnbilled returns the job's change orders that are approved
	// and not yet claimed by any invoice.
	ApprovedUnbilled(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) ([]ChangeOrder, error)

	// Claim atomically assigns invoiceID to every listed change order on
	// jobID. It re-checks approved-and-unbilled membership against the
	// transaction snapshot; ids that fail the check, including ids belonging
	// to another job, are reported via ClaimConflictError.
	Claim(ctx context.Context, tx *gorm.DB, jobID snowflake.ID, changeOrderIDs []snowflake.ID, invoiceID snowflake.ID) ([]ChangeOrder, error)
}

var (
	ErrNotFound           = errors.New("change_order_not_found")
	ErrInvalidID          = errors.New("invalid_change_order_id")
	ErrMissingDescription = errors.New("missing_description")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrNotPending         = errors.New("change_order_not_pending")
)

// ClaimConflictError reports change orders that are no longer billable at
// claim time: already claimed by another invoice, or not approved.
type ClaimConflictError struct {
	ChangeOrderIDs []snowflake.ID
}

func (e *ClaimConflictError) Error() string {
	return "change orders already billed or not approved"
}

// IDStrings returns the conflicting ids for error payloads.
func (e *ClaimConflictError) IDStrings() []string {
	out := make([]string, 0, len(e.ChangeOrderIDs))
	for _, id := range e.ChangeOrderIDs {
		out = append(out, id.String())
	}
	return out
}
