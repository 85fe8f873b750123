package service

import (
	"fmt"

	"github.com/bwmarrin/snowflake"

	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

type invoiceLine struct {
	Description   string
	Amount        money.Money
	ChangeOrderID *snowflake.ID
}

type computedInvoice struct {
	Amount money.Money
	Lines  []invoiceLine
}

// validateCreateRequest checks everything that needs no database state.
// Ledger-dependent rules (remaining balance, change order availability) are
// checked inside the transaction.
func validateCreateRequest(req billingdomain.CreateInvoiceRequest) error {
	if !billingdomain.ValidInvoiceType(req.InvoiceType) {
		return billingdomain.ErrUnknownInvoiceType(req.InvoiceType)
	}
	if req.TaxAmount.IsNegative() {
		return billingdomain.ErrNegativeTax(req.TaxAmount)
	}

	switch req.InvoiceType {
	case billingdomain.InvoiceTypeDeposit, billingdomain.InvoiceTypeProgress:
		if req.CustomAmount == nil {
			return billingdomain.ErrMissingCustomAmount(req.InvoiceType)
		}
		if *req.CustomAmount <= 0 {
			return billingdomain.ErrNonPositiveAmount(*req.CustomAmount)
		}
	case billingdomain.InvoiceTypeSupplement:
		if len(req.ChangeOrderIDs) == 0 {
			return billingdomain.ErrNoChangeOrders()
		}
	}
	return nil
}

// depositLabel names the deposit line by how the job is funded. Insurance
// jobs bill the ACV check, retail jobs bill materials up front.
func depositLabel(dealType jobdomain.DealType) string {
	if dealType == jobdomain.DealTypeInsurance {
		return "ACV Deposit (Insurance)"
	}
	return "Materials Deposit"
}

func computeDeposit(job *jobdomain.Job, amount money.Money) computedInvoice {
	return computedInvoice{
		Amount: amount,
		Lines:  []invoiceLine{{Description: depositLabel(job.DealType), Amount: amount}},
	}
}

func computeProgress(amount money.Money) computedInvoice {
	return computedInvoice{
		Amount: amount,
		Lines:  []invoiceLine{{Description: "Progress Payment", Amount: amount}},
	}
}

// checkRemaining bounds a caller-supplied deposit or progress amount by what
// the contract ceiling still allows. A breach reports the same
// remaining-balance rejection the final computation uses.
func checkRemaining(amount money.Money, ledger contractLedger) error {
	if amount > ledger.Remaining() {
		return billingdomain.ErrNoRemainingBalance(ledger.Ceiling, ledger.InvoicedTotal)
	}
	return nil
}

// computeSupplement bills the claimed change orders, one line each. The
// claim already verified each one was approved and unbilled, so the sum
// here is authoritative.
func computeSupplement(claimed []changeorderdomain.ChangeOrder) computedInvoice {
	out := computedInvoice{Lines: make([]invoiceLine, 0, len(claimed))}
	for i := range claimed {
		co := claimed[i]
		coID := co.ID
		out.Amount = out.Amount.Add(co.Amount)
		out.Lines = append(out.Lines, invoiceLine{
			Description:   fmt.Sprintf("Change Order: %s", co.Description),
			Amount:        co.Amount,
			ChangeOrderID: &coID,
		})
	}
	return out
}

// computeFinal bills whatever the contract ceiling still allows. A job
// already billed to (or past) its ceiling has nothing left to invoice.
func computeFinal(ledger contractLedger) (computedInvoice, error) {
	remaining := ledger.Remaining()
	if remaining <= 0 {
		return computedInvoice{}, billingdomain.ErrNoRemainingBalance(ledger.Ceiling, ledger.InvoicedTotal)
	}
	return computedInvoice{
		Amount: remaining,
		Lines:  []invoiceLine{{Description: "Final Payment (Balance Due)", Amount: remaining}},
	}, nil
}
