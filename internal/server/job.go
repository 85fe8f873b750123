package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ridgelinehq/roofcrm/internal/authorization"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
)

func (s *Server) CreateJob(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectJob, authorization.ActionJobEdit); err != nil {
		AbortWithError(c, err)
		return
	}

	var req jobdomain.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, jobdomain.ErrMissingCustomer)
		return
	}

	job, err := s.jobSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": job})
}

func (s *Server) ListJobs(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectJob, authorization.ActionJobView); err != nil {
		AbortWithError(c, err)
		return
	}

	req := jobdomain.ListJobRequest{}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := jobdomain.JobStatus(raw)
		req.Status = &status
	}

	resp, err := s.jobSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Jobs})
}

func (s *Server) GetJobByID(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectJob, authorization.ActionJobView); err != nil {
		AbortWithError(c, err)
		return
	}

	job, err := s.jobSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (s *Server) UpdateJobContractValue(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectJob, authorization.ActionJobEdit); err != nil {
		AbortWithError(c, err)
		return
	}

	var req jobdomain.UpdateContractValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, jobdomain.ErrNegativeContract)
		return
	}

	job, err := s.jobSvc.UpdateContractValue(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}
