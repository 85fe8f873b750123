// Package domain contains persistence models for change orders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// ChangeOrderStatus represents approval lifecycle states.
type ChangeOrderStatus string

const (
	ChangeOrderStatusPending  ChangeOrderStatus = "pending"
	ChangeOrderStatusApproved ChangeOrderStatus = "approved"
	ChangeOrderStatusRejected ChangeOrderStatus = "rejected"
)

// ChangeOrder is an approved scope addition with a dollar amount, billable
// at most once. InvoiceID is set exactly once when the change order is
// claimed by a supplement invoice.
type ChangeOrder struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	JobID       snowflake.ID      `gorm:"not null;index" json:"job_id"`
	Description string            `gorm:"type:text;not null" json:"description"`
	Amount      money.Money       `gorm:"not null" json:"amount"`
	Status      ChangeOrderStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	InvoiceID   *snowflake.ID     `gorm:"index" json:"invoice_id"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ChangeOrder) TableName() string { return "change_orders" }

// Billable reports whether the change order is approved and not yet claimed.
func (c ChangeOrder) Billable() bool {
	return c.Status == ChangeOrderStatusApproved && c.InvoiceID == nil
}
