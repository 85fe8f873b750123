package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/ridgelinehq/roofcrm/internal/authorization"
	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
)

type recordingAuthz struct {
	allow   bool
	objects []string
	actions []string
}

func (a *recordingAuthz) Authorize(ctx context.Context, actor, object, action string) error {
	a.objects = append(a.objects, object)
	a.actions = append(a.actions, action)
	if !a.allow {
		return authorization.ErrForbidden
	}
	return nil
}

type stubInvoiceService struct {
	billingdomain.Service
}

func (stubInvoiceService) List(ctx context.Context, req billingdomain.ListInvoiceRequest) (billingdomain.ListInvoiceResponse, error) {
	return billingdomain.ListInvoiceResponse{}, nil
}

func (stubInvoiceService) GetByID(ctx context.Context, id string) (billingdomain.Invoice, []billingdomain.InvoiceLineItem, error) {
	return billingdomain.Invoice{}, nil, billingdomain.ErrNotFound
}

func newInvoiceTestServer(authz authorization.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(prometheus.NewRegistry())
	srv := &Server{
		engine:     engine,
		authzSvc:   authz,
		invoiceSvc: stubInvoiceService{},
	}
	srv.registerAPIRoutes()
	return engine
}

func TestInvoiceReadEndpointsRequireView(t *testing.T) {
	authz := &recordingAuthz{}
	engine := newInvoiceTestServer(authz)

	paths := []string{
		"/api/v1/invoices",
		"/api/v1/invoices/123",
		"/api/v1/invoices/123/document",
	}
	for _, p := range paths {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("X-User-Id", "77")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, p)
	}

	assert.Len(t, authz.actions, len(paths))
	for i := range authz.actions {
		assert.Equal(t, authorization.ObjectInvoice, authz.objects[i])
		assert.Equal(t, authorization.ActionInvoiceView, authz.actions[i])
	}
}

func TestInvoiceListAllowedForViewers(t *testing.T) {
	engine := newInvoiceTestServer(&recordingAuthz{allow: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set("X-User-Id", "77")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
