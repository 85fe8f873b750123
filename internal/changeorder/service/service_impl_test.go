package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

func newChangeOrderService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&jobdomain.Job{}, &changeorderdomain.ChangeOrder{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node}).(*Service)
	return svc, db, node
}

func seedJob(t *testing.T, db *gorm.DB, node *snowflake.Node) jobdomain.Job {
	t.Helper()
	job := jobdomain.Job{
		ID:           node.Generate(),
		CustomerName: "Miguel Torres",
		DealType:     jobdomain.DealTypeInsurance,
		Status:       jobdomain.JobStatusInProgress,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	assert.NoError(t, db.Create(&job).Error)
	return job
}

func TestCreateAndApprove(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	job := seedJob(t, db, node)

	created, err := svc.Create(context.Background(), job.ID.String(), changeorderdomain.CreateChangeOrderRequest{
		Description: "Replace rotted fascia",
		Amount:      money.FromCents(45_000),
	})
	assert.NoError(t, err)
	assert.Equal(t, changeorderdomain.ChangeOrderStatusPending, created.Status)
	assert.False(t, created.Billable())

	approved, err := svc.Approve(context.Background(), created.ID.String())
	assert.NoError(t, err)
	assert.Equal(t, changeorderdomain.ChangeOrderStatusApproved, approved.Status)
	assert.True(t, approved.Billable())

	// Approval is one-shot.
	_, err = svc.Approve(context.Background(), created.ID.String())
	assert.ErrorIs(t, err, changeorderdomain.ErrNotPending)
	_, err = svc.Reject(context.Background(), created.ID.String())
	assert.ErrorIs(t, err, changeorderdomain.ErrNotPending)
}

func TestCreateValidation(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	job := seedJob(t, db, node)

	_, err := svc.Create(context.Background(), job.ID.String(), changeorderdomain.CreateChangeOrderRequest{
		Description: "  ",
		Amount:      money.FromCents(1000),
	})
	assert.ErrorIs(t, err, changeorderdomain.ErrMissingDescription)

	_, err = svc.Create(context.Background(), job.ID.String(), changeorderdomain.CreateChangeOrderRequest{
		Description: "Drip edge",
		Amount:      money.FromCents(0),
	})
	assert.ErrorIs(t, err, changeorderdomain.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), node.Generate().String(), changeorderdomain.CreateChangeOrderRequest{
		Description: "Drip edge",
		Amount:      money.FromCents(1000),
	})
	assert.ErrorIs(t, err, jobdomain.ErrNotFound)
}

func TestApprovedUnbilledOrdering(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	job := seedJob(t, db, node)

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		co := changeorderdomain.ChangeOrder{
			ID:          node.Generate(),
			JobID:       job.ID,
			Description: fmt.Sprintf("Item %d", i),
			Amount:      money.FromCents(int64(1000 * (i + 1))),
			Status:      changeorderdomain.ChangeOrderStatusApproved,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:   base,
		}
		assert.NoError(t, db.Create(&co).Error)
		ids = append(ids, co.ID)
	}
	// One claimed, one rejected: neither shows up.
	claimedID := node.Generate()
	assert.NoError(t, db.Create(&changeorderdomain.ChangeOrder{
		ID: node.Generate(), JobID: job.ID, Description: "Billed already",
		Amount: money.FromCents(500), Status: changeorderdomain.ChangeOrderStatusApproved,
		InvoiceID: &claimedID, CreatedAt: base, UpdatedAt: base,
	}).Error)
	assert.NoError(t, db.Create(&changeorderdomain.ChangeOrder{
		ID: node.Generate(), JobID: job.ID, Description: "Declined",
		Amount: money.FromCents(700), Status: changeorderdomain.ChangeOrderStatusRejected,
		CreatedAt: base, UpdatedAt: base,
	}).Error)

	unbilled, err := svc.ApprovedUnbilled(context.Background(), nil, job.ID)
	assert.NoError(t, err)
	assert.Len(t, unbilled, 3)
	for i, co := range unbilled {
		assert.Equal(t, ids[i], co.ID)
	}
}

func TestClaim(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	job := seedJob(t, db, node)

	co1 := changeorderdomain.ChangeOrder{
		ID: node.Generate(), JobID: job.ID, Description: "Decking",
		Amount: money.FromCents(80_000), Status: changeorderdomain.ChangeOrderStatusApproved,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	co2 := changeorderdomain.ChangeOrder{
		ID: node.Generate(), JobID: job.ID, Description: "Vent",
		Amount: money.FromCents(25_000), Status: changeorderdomain.ChangeOrderStatusApproved,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	assert.NoError(t, db.Create(&co1).Error)
	assert.NoError(t, db.Create(&co2).Error)

	invoiceID := node.Generate()
	err := db.Transaction(func(tx *gorm.DB) error {
		claimed, err := svc.Claim(context.Background(), tx, job.ID, []snowflake.ID{co1.ID, co2.ID}, invoiceID)
		if err != nil {
			return err
		}
		assert.Len(t, claimed, 2)
		assert.Equal(t, invoiceID, *claimed[0].InvoiceID)
		return nil
	})
	assert.NoError(t, err)

	// Both rows carry the invoice id, and a second claim conflicts.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Claim(context.Background(), tx, job.ID, []snowflake.ID{co1.ID}, node.Generate())
		return err
	})
	var conflict *changeorderdomain.ClaimConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, []snowflake.ID{co1.ID}, conflict.ChangeOrderIDs)
}

func TestClaimUnknownIDConflicts(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	job := seedJob(t, db, node)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Claim(context.Background(), tx, job.ID, []snowflake.ID{node.Generate()}, node.Generate())
		return err
	})
	var conflict *changeorderdomain.ClaimConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestClaimOtherJobsChangeOrderConflicts(t *testing.T) {
	svc, db, node := newChangeOrderService(t)
	jobA := seedJob(t, db, node)
	jobB := seedJob(t, db, node)

	foreign := changeorderdomain.ChangeOrder{
		ID: node.Generate(), JobID: jobB.ID, Description: "Skylight flashing",
		Amount: money.FromCents(500_000), Status: changeorderdomain.ChangeOrderStatusApproved,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	assert.NoError(t, db.Create(&foreign).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Claim(context.Background(), tx, jobA.ID, []snowflake.ID{foreign.ID}, node.Generate())
		return err
	})
	var conflict *changeorderdomain.ClaimConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, []snowflake.ID{foreign.ID}, conflict.ChangeOrderIDs)

	// The foreign row is untouched and still billable on its own job.
	var reloaded changeorderdomain.ChangeOrder
	assert.NoError(t, db.First(&reloaded, "id = ?", foreign.ID).Error)
	assert.Nil(t, reloaded.InvoiceID)
}
