package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// nextSequenceNumber assigns the next per-job invoice sequence: one more
// than the number of invoices ever created for the job, cancelled ones
// included. Invoices are never deleted, so the count only grows and a
// number is never reused. Must run inside the job lock; two concurrent
// readers would otherwise count the same rows.
func (s *Service) nextSequenceNumber(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM invoices
		 WHERE job_id = ?`,
		jobID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}
