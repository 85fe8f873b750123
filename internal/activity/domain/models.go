// Package domain contains the append-only job activity log.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActivityLog records a billing-relevant event on a job. Rows are never
// updated or deleted.
type ActivityLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	JobID       snowflake.ID      `gorm:"not null;index" json:"job_id"`
	Action      string            `gorm:"type:text;not null" json:"action"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ActivityLog) TableName() string { return "activity_logs" }

type Service interface {
	Record(ctx context.Context, jobID snowflake.ID, action, description string, metadata map[string]any) error
	ListByJob(ctx context.Context, jobID snowflake.ID) ([]ActivityLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
