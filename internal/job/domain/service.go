package domain

import (
	"context"
	"errors"

	"github.com/ridgelinehq/roofcrm/pkg/db/pagination"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

type CreateJobRequest struct {
	CustomerName      string       `json:"customer_name"`
	Address           string       `json:"address"`
	DealType          DealType     `json:"deal_type"`
	BaseContractValue *money.Money `json:"base_contract_value"`
}

type UpdateContractValueRequest struct {
	BaseContractValue money.Money `json:"base_contract_value"`
}

type ListJobRequest struct {
	pagination.Pagination
	Status *JobStatus
}

type ListJobResponse struct {
	pagination.PageInfo
	Jobs []Job `json:"jobs"`
}

type Service interface {
	Create(ctx context.Context, req CreateJobRequest) (Job, error)
	GetByID(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, req ListJobRequest) (ListJobResponse, error)
	UpdateContractValue(ctx context.Context, id string, req UpdateContractValueRequest) (Job, error)
}

var (
	ErrNotFound         = errors.New("job_not_found")
	ErrInvalidJobID     = errors.New("invalid_job_id")
	ErrInvalidDealType  = errors.New("invalid_deal_type")
	ErrMissingCustomer  = errors.New("missing_customer_name")
	ErrNegativeContract = errors.New("negative_contract_value")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
