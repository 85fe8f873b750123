// Package server exposes the billing engine over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	activitydomain "github.com/ridgelinehq/roofcrm/internal/activity/domain"
	"github.com/ridgelinehq/roofcrm/internal/authorization"
	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	"github.com/ridgelinehq/roofcrm/internal/config"
	"github.com/ridgelinehq/roofcrm/internal/docstore"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	obslogger "github.com/ridgelinehq/roofcrm/internal/observability/logger"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(registry *prometheus.Registry) *gin.Engine {
	return NewEngine(registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB

	authzSvc       authorization.Service
	jobSvc         jobdomain.Service
	changeOrderSvc changeorderdomain.Service
	invoiceSvc     billingdomain.Service
	activitySvc    activitydomain.Service
	documents      docstore.Store
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	AuthzSvc       authorization.Service
	JobSvc         jobdomain.Service
	ChangeOrderSvc changeorderdomain.Service
	InvoiceSvc     billingdomain.Service
	ActivitySvc    activitydomain.Service
	Documents      docstore.Store `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,

		authzSvc:       p.AuthzSvc,
		jobSvc:         p.JobSvc,
		changeOrderSvc: p.ChangeOrderSvc,
		invoiceSvc:     p.InvoiceSvc,
		activitySvc:    p.ActivitySvc,
		documents:      p.Documents,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	jobs := api.Group("/jobs")
	jobs.POST("", s.CreateJob)
	jobs.GET("", s.ListJobs)
	jobs.GET("/:id", s.GetJobByID)
	jobs.PATCH("/:id/contract-value", s.UpdateJobContractValue)
	jobs.GET("/:id/change-orders", s.ListChangeOrders)
	jobs.POST("/:id/change-orders", s.CreateChangeOrder)
	jobs.GET("/:id/activity", s.ListJobActivity)

	changeOrders := api.Group("/change-orders")
	changeOrders.POST("/:id/approve", s.ApproveChangeOrder)
	changeOrders.POST("/:id/reject", s.RejectChangeOrder)

	invoices := api.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoiceByID)
	invoices.GET("/:id/document", s.GetInvoiceDocument)
	invoices.POST("/:id/send", s.SendInvoice)
	invoices.POST("/:id/pay", s.PayInvoice)
	invoices.POST("/:id/cancel", s.CancelInvoice)
	invoices.POST("/:id/render", s.RenderInvoice)
}

// actorFrom identifies the caller. Requests from automated jobs carry no
// header and act as the system principal.
func actorFrom(c *gin.Context) string {
	userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
	if userID == "" {
		return "system"
	}
	return "user:" + userID
}
