package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
)

// jobLocks serializes invoice creation per job within this process. The
// database row lock below is the real guard; this mutex keeps concurrent
// requests on one node from piling into lock waits, and on sqlite, which
// has no FOR UPDATE, it is the only guard.
type jobLocks struct {
	mu sync.Map // snowflake.ID -> *sync.Mutex
}

func (l *jobLocks) lock(jobID snowflake.ID) func() {
	v, _ := l.mu.LoadOrStore(jobID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// loadJobForUpdate reads the job row under an exclusive row lock so every
// ledger read in the transaction sees a frozen billing state. Sqlite takes
// a database-level write lock instead, so the FOR UPDATE clause is dropped
// there.
func (s *Service) loadJobForUpdate(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) (*jobdomain.Job, error) {
	query := `SELECT id, customer_name, address, deal_type, status,
	                 base_contract_value, created_at, updated_at
	          FROM jobs
	          WHERE id = ?`
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		query += " FOR UPDATE"
	}

	var job jobdomain.Job
	if err := tx.WithContext(ctx).Raw(query, jobID).Scan(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}
