package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/db/option"
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

	jobrepo repository.Repository[jobdomain.Job]
}

func NewService(p ServiceParam) jobdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("job.service"),
		genID: p.GenID,

		jobrepo: repository.ProvideStore[jobdomain.Job](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req jobdomain.CreateJobRequest) (jobdomain.Job, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return jobdomain.Job{}, jobdomain.ErrMissingCustomer
	}

	dealType := req.DealType
	if dealType == "" {
		dealType = jobdomain.DealTypeRetail
	}
	if !jobdomain.ValidDealType(dealType) {
		return jobdomain.Job{}, jobdomain.ErrInvalidDealType
	}
	if req.BaseContractValue != nil && req.BaseContractValue.IsNegative() {
		return jobdomain.Job{}, jobdomain.ErrNegativeContract
	}

	now := time.Now().UTC()
	job := jobdomain.Job{
		ID:                s.genID.Generate(),
		CustomerName:      name,
		Address:           strings.TrimSpace(req.Address),
		DealType:          dealType,
		Status:            jobdomain.JobStatusLead,
		BaseContractValue: req.BaseContractValue,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.jobrepo.Create(ctx, &job); err != nil {
		return jobdomain.Job{}, err
	}

	s.log.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.String("deal_type", string(job.DealType)),
	)
	return job, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (jobdomain.Job, error) {
	jobID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return jobdomain.Job{}, jobdomain.ErrInvalidJobID
	}

	item, err := s.jobrepo.FindOne(ctx, &jobdomain.Job{ID: jobID})
	if err != nil {
		return jobdomain.Job{}, err
	}
	if item == nil {
		return jobdomain.Job{}, jobdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req jobdomain.ListJobRequest) (jobdomain.ListJobResponse, error) {
	filter := &jobdomain.Job{}
	if req.Status != nil {
		filter.Status = *req.Status
	}

	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}, Desc: true}),
	}
	if req.PageSize > 0 {
		options = append(options, option.WithLimit(req.PageSize))
	}

	items, err := s.jobrepo.Find(ctx, filter, options...)
	if err != nil {
		return jobdomain.ListJobResponse{}, err
	}

	jobs := make([]jobdomain.Job, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, *item)
	}

	return jobdomain.ListJobResponse{Jobs: jobs}, nil
}

func (s *Service) UpdateContractValue(ctx context.Context, id string, req jobdomain.UpdateContractValueRequest) (jobdomain.Job, error) {
	if req.BaseContractValue.IsNegative() {
		return jobdomain.Job{}, jobdomain.ErrNegativeContract
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return jobdomain.Job{}, err
	}

	value := req.BaseContractValue
	if err := s.jobrepo.Update(ctx, job.ID.String(), map[string]any{
		"base_contract_value": value.Cents(),
		"updated_at":          time.Now().UTC(),
	}); err != nil {
		return jobdomain.Job{}, err
	}

	job.BaseContractValue = &value
	return job, nil
}
