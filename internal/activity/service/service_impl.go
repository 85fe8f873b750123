package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/ridgelinehq/roofcrm/internal/activity/domain"
	"github.com/ridgelinehq/roofcrm/pkg/db/option"
	"github.com/ridgelinehq/roofcrm/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[activitydomain.ActivityLog]
}

func NewService(p Params) activitydomain.Service {
	return &Service{
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[activitydomain.ActivityLog](p.DB),
	}
}

func (s *Service) Record(ctx context.Context, jobID snowflake.ID, action, description string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return activitydomain.ErrInvalidAction
	}

	entry := activitydomain.ActivityLog{
		ID:          s.genID.Generate(),
		JobID:       jobID,
		Action:      action,
		Description: strings.TrimSpace(description),
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		// Activity logging never blocks billing; surface for operators only.
		s.log.Warn("activity log write failed",
			zap.String("job_id", jobID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListByJob(ctx context.Context, jobID snowflake.ID) ([]activitydomain.ActivityLog, error) {
	items, err := s.repo.Find(ctx, &activitydomain.ActivityLog{JobID: jobID},
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}, Desc: true}),
	)
	if err != nil {
		return nil, err
	}

	logs := make([]activitydomain.ActivityLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, nil
}
