package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

func newJobService(t *testing.T) jobdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&jobdomain.Job{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	return NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node})
}

func TestCreateJob(t *testing.T) {
	svc := newJobService(t)

	base := money.FromCents(1_250_000)
	job, err := svc.Create(context.Background(), jobdomain.CreateJobRequest{
		CustomerName:      "  Priya Raman ",
		Address:           "88 Lakeshore Dr",
		DealType:          jobdomain.DealTypeInsurance,
		BaseContractValue: &base,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Priya Raman", job.CustomerName)
	assert.Equal(t, jobdomain.JobStatusLead, job.Status)
	assert.Equal(t, base, *job.BaseContractValue)

	got, err := svc.GetByID(context.Background(), job.ID.String())
	assert.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestCreateJobDefaultsToRetail(t *testing.T) {
	svc := newJobService(t)

	job, err := svc.Create(context.Background(), jobdomain.CreateJobRequest{
		CustomerName: "Sam Okafor",
	})
	assert.NoError(t, err)
	assert.Equal(t, jobdomain.DealTypeRetail, job.DealType)
	assert.Nil(t, job.BaseContractValue)
}

func TestCreateJobValidation(t *testing.T) {
	svc := newJobService(t)

	_, err := svc.Create(context.Background(), jobdomain.CreateJobRequest{CustomerName: " "})
	assert.ErrorIs(t, err, jobdomain.ErrMissingCustomer)

	_, err = svc.Create(context.Background(), jobdomain.CreateJobRequest{
		CustomerName: "Sam", DealType: "commercial",
	})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidDealType)

	negative := money.FromCents(-100)
	_, err = svc.Create(context.Background(), jobdomain.CreateJobRequest{
		CustomerName: "Sam", BaseContractValue: &negative,
	})
	assert.ErrorIs(t, err, jobdomain.ErrNegativeContract)
}

func TestUpdateContractValue(t *testing.T) {
	svc := newJobService(t)

	job, err := svc.Create(context.Background(), jobdomain.CreateJobRequest{CustomerName: "Sam Okafor"})
	assert.NoError(t, err)

	updated, err := svc.UpdateContractValue(context.Background(), job.ID.String(), jobdomain.UpdateContractValueRequest{
		BaseContractValue: money.FromCents(950_000),
	})
	assert.NoError(t, err)
	assert.Equal(t, money.FromCents(950_000), *updated.BaseContractValue)

	got, err := svc.GetByID(context.Background(), job.ID.String())
	assert.NoError(t, err)
	assert.Equal(t, money.FromCents(950_000), *got.BaseContractValue)

	_, err = svc.UpdateContractValue(context.Background(), job.ID.String(), jobdomain.UpdateContractValueRequest{
		BaseContractValue: money.FromCents(-1),
	})
	assert.ErrorIs(t, err, jobdomain.ErrNegativeContract)
}

func TestGetJobNotFound(t *testing.T) {
	svc := newJobService(t)

	_, err := svc.GetByID(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, jobdomain.ErrInvalidJobID)

	node, _ := snowflake.NewNode(3)
	_, err = svc.GetByID(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, jobdomain.ErrNotFound)
}
