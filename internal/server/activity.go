package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/ridgelinehq/roofcrm/internal/authorization"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
)

func (s *Server) ListJobActivity(c *gin.Context) {
	if err := s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), authorization.ObjectActivityLog, authorization.ActionActivityLogView); err != nil {
		AbortWithError(c, err)
		return
	}

	jobID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || jobID == 0 {
		AbortWithError(c, jobdomain.ErrInvalidJobID)
		return
	}

	logs, err := s.activitySvc.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
