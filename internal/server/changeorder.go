package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/ridgelinehq/roofcrm/internal/authorization"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
)

func (s *Server) CreateChangeOrder(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectChangeOrder, authorization.ActionChangeOrderCreate); err != nil {
		AbortWithError(c, err)
		return
	}

	var req changeorderdomain.CreateChangeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, changeorderdomain.ErrMissingDescription)
		return
	}

	changeOrder, err := s.changeOrderSvc.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": changeOrder})
}

func (s *Server) ListChangeOrders(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectChangeOrder, authorization.ActionChangeOrderView); err != nil {
		AbortWithError(c, err)
		return
	}

	// ?billable=true narrows to change orders a supplement invoice may claim.
	if c.Query("billable") == "true" {
		jobID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
		if err != nil || jobID == 0 {
			AbortWithError(c, jobdomain.ErrInvalidJobID)
			return
		}
		changeOrders, err := s.changeOrderSvc.ApprovedUnbilled(c.Request.Context(), nil, jobID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": changeOrders})
		return
	}

	changeOrders, err := s.changeOrderSvc.ListByJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": changeOrders})
}

func (s *Server) ApproveChangeOrder(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectChangeOrder, authorization.ActionChangeOrderApprove); err != nil {
		AbortWithError(c, err)
		return
	}

	changeOrder, err := s.changeOrderSvc.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": changeOrder})
}

func (s *Server) RejectChangeOrder(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectChangeOrder, authorization.ActionChangeOrderApprove); err != nil {
		AbortWithError(c, err)
		return
	}

	changeOrder, err := s.changeOrderSvc.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": changeOrder})
}
