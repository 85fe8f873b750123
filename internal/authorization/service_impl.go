// Package authorization decides whether an actor may act on a job's billing
// records. Callers check authorization before any ledger computation so a
// rejected caller never sees computed amounts.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectJob         = "job"
	ObjectInvoice     = "invoice"
	ObjectChangeOrder = "change_order"
	ObjectActivityLog = "activity_log"
)

const (
	ActionJobView = "job.view"
	ActionJobEdit = "job.edit"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceCreate = "invoice.create"
	ActionInvoiceSend   = "invoice.send"
	ActionInvoiceCancel = "invoice.cancel"
	ActionInvoiceRender = "invoice.render"

	ActionChangeOrderView    = "change_order.view"
	ActionChangeOrderCreate  = "change_order.create"
	ActionChangeOrderApprove = "change_order.approve"

	ActionActivityLogView = "activity_log.view"
)

var (
	ErrInvalidActor = errors.New("invalid_actor")
	ErrForbidden    = errors.New("forbidden")
)

// Module provides the casbin enforcer and the authorization service.
var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Service interface {
	// Authorize reports whether actor may perform action on object.
	// Actor is "system" or "user:<id>".
	Authorize(ctx context.Context, actor string, object string, action string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	if object == "" || action == "" {
		return ErrInvalidActor
	}

	roleName, err := s.resolveRole(ctx, actor)
	if err != nil {
		return err
	}

	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("actor", actor),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveRole(ctx context.Context, actor string) (string, error) {
	if actor == "system" {
		return "role:system", nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", ErrInvalidActor
		}
		role, err := s.roleForUser(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("role:%s", strings.ToLower(role)), nil
	}
	return "", ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM user_roles
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Field crew: read-only visibility into job billing state.
		{"role:crew", ObjectJob, ActionJobView},
		{"role:crew", ObjectChangeOrder, ActionChangeOrderView},

		// Office staff: day-to-day billing.
		{"role:office", ObjectJob, ActionJobView},
		{"role:office", ObjectJob, ActionJobEdit},
		{"role:office", ObjectInvoice, ActionInvoiceView},
		{"role:office", ObjectInvoice, ActionInvoiceCreate},
		{"role:office", ObjectInvoice, ActionInvoiceSend},
		{"role:office", ObjectInvoice, ActionInvoiceRender},
		{"role:office", ObjectChangeOrder, ActionChangeOrderView},
		{"role:office", ObjectChangeOrder, ActionChangeOrderCreate},
		{"role:office", ObjectActivityLog, ActionActivityLogView},

		// Owner: everything office can do plus approvals and cancellation.
		{"role:owner", ObjectJob, ActionJobView},
		{"role:owner", ObjectJob, ActionJobEdit},
		{"role:owner", ObjectInvoice, ActionInvoiceView},
		{"role:owner", ObjectInvoice, ActionInvoiceCreate},
		{"role:owner", ObjectInvoice, ActionInvoiceSend},
		{"role:owner", ObjectInvoice, ActionInvoiceCancel},
		{"role:owner", ObjectInvoice, ActionInvoiceRender},
		{"role:owner", ObjectChangeOrder, ActionChangeOrderView},
		{"role:owner", ObjectChangeOrder, ActionChangeOrderCreate},
		{"role:owner", ObjectChangeOrder, ActionChangeOrderApprove},
		{"role:owner", ObjectActivityLog, ActionActivityLogView},

		// System: automated processes (render retries, migrations).
		{"role:system", ObjectJob, ActionJobView},
		{"role:system", ObjectJob, ActionJobEdit},
		{"role:system", ObjectInvoice, ActionInvoiceView},
		{"role:system", ObjectInvoice, ActionInvoiceCreate},
		{"role:system", ObjectInvoice, ActionInvoiceSend},
		{"role:system", ObjectInvoice, ActionInvoiceCancel},
		{"role:system", ObjectInvoice, ActionInvoiceRender},
		{"role:system", ObjectChangeOrder, ActionChangeOrderView},
		{"role:system", ObjectChangeOrder, ActionChangeOrderCreate},
		{"role:system", ObjectChangeOrder, ActionChangeOrderApprove},
		{"role:system", ObjectActivityLog, ActionActivityLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
