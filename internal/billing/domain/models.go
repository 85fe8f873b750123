// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// InvoiceType selects the amount-computation rule.
type InvoiceType string

const (
	InvoiceTypeDeposit    InvoiceType = "deposit"
	InvoiceTypeProgress   InvoiceType = "progress"
	InvoiceTypeSupplement InvoiceType = "supplement"
	InvoiceTypeFinal      InvoiceType = "final"
)

// ValidInvoiceType reports whether raw names a known invoice type.
func ValidInvoiceType(raw InvoiceType) bool {
	switch raw {
	case InvoiceTypeDeposit, InvoiceTypeProgress, InvoiceTypeSupplement, InvoiceTypeFinal:
		return true
	default:
		return false
	}
}

// InvoiceStatus represents invoice lifecycle states. Overdue is a derived
// display state, never stored.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents a billed amount against a job. SequenceNumber is unique
// per job and never reused, including by cancelled invoices.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	JobID          snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_job_sequence" json:"job_id"`
	InvoiceType    InvoiceType   `gorm:"type:text;not null" json:"invoice_type"`
	SequenceNumber int64         `gorm:"not null;uniqueIndex:ux_invoices_job_sequence" json:"sequence_number"`
	InvoiceNumber  string        `gorm:"type:text;not null" json:"invoice_number"`
	Amount         money.Money   `gorm:"not null" json:"amount"`
	TaxAmount      money.Money   `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    money.Money   `gorm:"not null" json:"total_amount"`
	Status         InvoiceStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	InvoiceDate    time.Time     `gorm:"not null" json:"invoice_date"`
	DueDate        *time.Time    `gorm:"" json:"due_date"`
	Notes          string        `gorm:"type:text" json:"notes"`
	DocumentURL    *string       `gorm:"type:text" json:"document_url"`
	RenderError    *string       `gorm:"type:text" json:"render_error"`
	SentAt         *time.Time    `gorm:"" json:"sent_at"`
	PaidAt         *time.Time    `gorm:"" json:"paid_at"`
	CancelledAt    *time.Time    `gorm:"" json:"cancelled_at"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Countable reports whether the invoice counts toward the job's invoiced
// total (the no-over-invoicing bound excludes cancelled invoices).
func (i Invoice) Countable() bool {
	return i.Status != InvoiceStatusCancelled
}

// DisplayStatus derives the overdue display state from the due date.
func (i Invoice) DisplayStatus(now time.Time, graceDays int) InvoiceStatus {
	if i.Status != InvoiceStatusSent || i.DueDate == nil {
		return i.Status
	}
	cutoff := i.DueDate.AddDate(0, 0, graceDays)
	if now.After(cutoff) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// InvoiceLineItem represents a line on an invoice. ChangeOrderID links
// supplement lines back to the change order they bill.
type InvoiceLineItem struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	UnitPrice     money.Money   `gorm:"not null" json:"unit_price"`
	TotalPrice    money.Money   `gorm:"not null" json:"total_price"`
	ChangeOrderID *snowflake.ID `gorm:"index" json:"change_order_id"`
	SortOrder     int           `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }
