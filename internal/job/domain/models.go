// Package domain contains persistence models for roofing jobs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

// DealType distinguishes insurance-funded work from retail work.
type DealType string

const (
	DealTypeRetail    DealType = "retail"
	DealTypeInsurance DealType = "insurance"
)

// JobStatus represents job lifecycle states.
type JobStatus string

const (
	JobStatusLead       JobStatus = "lead"
	JobStatusSigned     JobStatus = "signed"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusClosed     JobStatus = "closed"
)

// Job represents a roofing job. BaseContractValue is nil when the signed
// contract value was never recorded (historical imports).
type Job struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerName      string       `gorm:"type:text;not null" json:"customer_name"`
	Address           string       `gorm:"type:text" json:"address"`
	DealType          DealType     `gorm:"type:text;not null;default:'retail'" json:"deal_type"`
	Status            JobStatus    `gorm:"type:text;not null;default:'lead'" json:"status"`
	BaseContractValue *money.Money `gorm:"" json:"base_contract_value"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "jobs" }

// ValidDealType reports whether raw names a known deal type.
func ValidDealType(raw DealType) bool {
	switch raw {
	case DealTypeRetail, DealTypeInsurance:
		return true
	default:
		return false
	}
}
