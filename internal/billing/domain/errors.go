package domain

import (
	"errors"
	"fmt"

	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// ValidationError rejects a request whose inputs fail a billing rule. Reason
// is a stable machine-readable code, Message is shown to the office user.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError rejects a request that lost a race, such as a change order
// claimed by a concurrent invoice.
type ConflictError struct {
	Reason  string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// StorageError wraps an unexpected database failure so transport layers can
// distinguish it from rule rejections.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

var (
	ErrNotFound        = errors.New("invoice_not_found")
	ErrInvalidID       = errors.New("invalid_invoice_id")
	ErrInvalidJobID    = errors.New("invalid_job_id")
	ErrInvalidStatus   = errors.New("invalid_invoice_status_transition")
	ErrInvalidPageSize = errors.New("invalid_page_size")
)

func newValidation(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrMissingCustomAmount rejects deposit and progress invoices created
// without an amount.
func ErrMissingCustomAmount(t InvoiceType) *ValidationError {
	return newValidation("custom_amount_required",
		"A %s invoice requires an amount greater than zero.", t)
}

// ErrNonPositiveAmount rejects zero or negative caller-supplied amounts.
func ErrNonPositiveAmount(amount money.Money) *ValidationError {
	return newValidation("amount_not_positive",
		"Invoice amount must be greater than zero, got %s.", amount.Format())
}

// ErrNegativeTax rejects a negative tax amount.
func ErrNegativeTax(tax money.Money) *ValidationError {
	return newValidation("tax_negative",
		"Tax amount cannot be negative, got %s.", tax.Format())
}

// ErrNoChangeOrders rejects a supplement invoice naming no change orders.
func ErrNoChangeOrders() *ValidationError {
	return newValidation("change_orders_required",
		"A supplement invoice requires at least one approved, unbilled change order.")
}

// ErrUnknownInvoiceType rejects an unrecognized invoice type.
func ErrUnknownInvoiceType(raw InvoiceType) *ValidationError {
	return newValidation("unknown_invoice_type",
		"Unknown invoice type %q. Expected deposit, progress, supplement, or final.", raw)
}

// ErrNoRemainingBalance rejects a final invoice when the job is fully billed.
// The message carries both figures so the office can see why.
func ErrNoRemainingBalance(ceiling, invoiced money.Money) *ValidationError {
	return newValidation("no_remaining_balance",
		"No remaining balance. Total contract: %s, Already invoiced: %s.",
		ceiling.Format(), invoiced.Format())
}

// ErrChangeOrdersUnavailable rejects a supplement whose named change orders
// are no longer approved and unbilled.
func ErrChangeOrdersUnavailable(ids []string) *ConflictError {
	return &ConflictError{
		Reason: "change_orders_unavailable",
		Message: fmt.Sprintf(
			"Change orders no longer available for billing: %v. They may have been billed by another invoice or are not approved.", ids),
	}
}
