package server

import (
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/ridgelinehq/roofcrm/internal/authorization"
	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req billingdomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, billingdomain.ErrUnknownInvoiceType(""))
		return
	}
	req.Actor = actorFrom(c)

	resp, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectInvoice, authorization.ActionInvoiceView); err != nil {
		AbortWithError(c, err)
		return
	}

	req := billingdomain.ListInvoiceRequest{
		JobID: c.Query("job_id"),
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectInvoice, authorization.ActionInvoiceView); err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, items, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice":    invoice,
		"line_items": items,
	}})
}

// GetInvoiceDocument streams the rendered PDF. An invoice whose render
// failed or has not finished yet has no document.
func (s *Server) GetInvoiceDocument(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectInvoice, authorization.ActionInvoiceView); err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, _, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if s.documents == nil || invoice.DocumentURL == nil {
		AbortWithError(c, billingdomain.ErrNotFound)
		return
	}

	doc, err := s.documents.Open(c.Request.Context(), path.Base(*invoice.DocumentURL))
	if err != nil {
		AbortWithError(c, billingdomain.ErrNotFound)
		return
	}
	defer doc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, doc)
}

func (s *Server) SendInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.MarkSent(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) PayInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.MarkPaid(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RenderInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.RenderDocument(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
