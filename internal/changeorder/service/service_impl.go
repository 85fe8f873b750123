package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	corepo repository.Repository[changeorderdomain.ChangeOrder]
}

func NewService(p ServiceParam) changeorderdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("changeorder.service"),
		genID: p.GenID,

		corepo: repository.ProvideStore[changeorderdomain.ChangeOrder](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, jobID string, req changeorderdomain.CreateChangeOrderRequest) (changeorderdomain.ChangeOrder, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(jobID))
	if err != nil {
		return changeorderdomain.ChangeOrder{}, jobdomain.ErrInvalidJobID
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return changeorderdomain.ChangeOrder{}, changeorderdomain.ErrMissingDescription
	}
	if req.Amount.Cents() <= 0 {
		return changeorderdomain.ChangeOrder{}, changeorderdomain.ErrInvalidAmount
	}

	var jobExists int64
	if err := s.db.WithContext(ctx).Model(&jobdomain.Job{}).Where("id = ?", id).Count(&jobExists).Error; err != nil {
		return changeorderdomain.ChangeOrder{}, err
	}
	if jobExists == 0 {
		return changeorderdomain.ChangeOrder{}, jobdomain.ErrNotFound
	}

	now := time.Now().UTC()
	order := changeorderdomain.ChangeOrder{
		ID:          s.genID.Generate(),
		JobID:       id,
		Description: description,
		Amount:      req.Amount,
		Status:      changeorderdomain.ChangeOrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.corepo.Create(ctx, &order); err != nil {
		return changeorderdomain.ChangeOrder{}, err
	}
	return order, nil
}

func (s *Service) ListByJob(ctx context.Context, jobID string) ([]changeorderdomain.ChangeOrder, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(jobID))
	if err != nil {
		return nil, jobdomain.ErrInvalidJobID
	}

	items, err := s.corepo.Find(ctx, &changeorderdomain.ChangeOrder{JobID: id})
	if err != nil {
		return nil, err
	}

	orders := make([]changeorderdomain.ChangeOrder, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		orders = append(orders, *item)
	}
	return orders, nil
}

func (s *Service) Approve(ctx context.Context, id string) (changeorderdomain.ChangeOrder, error) {
	return s.transition(ctx, id, changeorderdomain.ChangeOrderStatusApproved)
}

func (s *Service) Reject(ctx context.Context, id string) (changeorderdomain.ChangeOrder, error) {
	return s.transition(ctx, id, changeorderdomain.ChangeOrderStatusRejected)
}

func (s *Service) transition(ctx context.Context, id string, target changeorderdomain.ChangeOrderStatus) (changeorderdomain.ChangeOrder, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return changeorderdomain.ChangeOrder{}, changeorderdomain.ErrInvalidID
	}

	var updated changeorderdomain.ChangeOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return changeorderdomain.ErrNotFound
		}
		if order.Status != changeorderdomain.ChangeOrderStatusPending {
			return changeorderdomain.ErrNotPending
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE change_orders SET status = ?, updated_at = ? WHERE id = ?`,
			target, now, orderID,
		).Error; err != nil {
			return err
		}
		order.Status = target
		order.UpdatedAt = now
		updated = *order
		return nil
	})
	if err != nil {
		return changeorderdomain.ChangeOrder{}, err
	}

	s.log.Info("change order status updated",
		zap.String("change_order_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) ApprovedUnbilled(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) ([]changeorderdomain.ChangeOrder, error) {
	if tx == nil {
		tx = s.db
	}
	var orders []changeorderdomain.ChangeOrder
	err := tx.WithContext(ctx).Raw(
		`SELECT id, job_id, description, amount, status, invoice_id, created_at, updated_at
		 FROM change_orders
		 WHERE job_id = ? AND status = ? AND invoice_id IS NULL
		 ORDER BY created_at ASC, id ASC`,
		jobID,
		changeorderdomain.ChangeOrderStatusApproved,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Claim runs inside the invoice-creation transaction. Membership is
// re-checked against the transaction snapshot, not an earlier read, so a
// change order claimed by a concurrent invoice surfaces as a conflict here.
// Both the read and the update filter on jobID: a change order belonging to
// another job conflicts the same way a claimed one does.
func (s *Service) Claim(ctx context.Context, tx *gorm.DB, jobID snowflake.ID, changeOrderIDs []snowflake.ID, invoiceID snowflake.ID) ([]changeorderdomain.ChangeOrder, error) {
	if len(changeOrderIDs) == 0 {
		return nil, &changeorderdomain.ClaimConflictError{}
	}

	var orders []changeorderdomain.ChangeOrder
	if err := tx.WithContext(ctx).Raw(
		`SELECT id, job_id, description, amount, status, invoice_id, created_at, updated_at
		 FROM change_orders
		 WHERE id IN ? AND job_id = ?`,
		changeOrderIDs,
		jobID,
	).Scan(&orders).Error; err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]changeorderdomain.ChangeOrder, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}

	var conflicts []snowflake.ID
	claimed := make([]changeorderdomain.ChangeOrder, 0, len(changeOrderIDs))
	for _, id := range changeOrderIDs {
		order, ok := byID[id]
		if !ok || !order.Billable() {
			conflicts = append(conflicts, id)
			continue
		}
		claimed = append(claimed, order)
	}
	if len(conflicts) > 0 {
		return nil, &changeorderdomain.ClaimConflictError{ChangeOrderIDs: conflicts}
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE change_orders
		 SET invoice_id = ?, updated_at = ?
		 WHERE id IN ? AND job_id = ? AND status = ? AND invoice_id IS NULL`,
		invoiceID,
		now,
		changeOrderIDs,
		jobID,
		changeorderdomain.ChangeOrderStatusApproved,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	// A shortfall here means another transaction claimed a row between the
	// snapshot read and the update. Fail the whole claim.
	if result.RowsAffected != int64(len(changeOrderIDs)) {
		return nil, &changeorderdomain.ClaimConflictError{ChangeOrderIDs: changeOrderIDs}
	}

	for i := range claimed {
		id := invoiceID
		claimed[i].InvoiceID = &id
		claimed[i].UpdatedAt = now
	}
	return claimed, nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*changeorderdomain.ChangeOrder, error) {
	var order changeorderdomain.ChangeOrder
	err := tx.WithContext(ctx).Raw(
		`SELECT id, job_id, description, amount, status, invoice_id, created_at, updated_at
		 FROM change_orders
		 WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}
