package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/imkarma/crewdeck/internal/workflow"
)

// handleError maps domain errors onto HTTP status codes. Anything
// unrecognized is logged and returned as a 500 without leaking detail.
func (s *Server) handleError(c *gin.Context, err error) {
	var invalid *workflow.InvalidTransitionError

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   invalid.Error(),
			"allowed": invalid.Allowed,
		})
	case errors.Is(err, workflow.ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrNotRequester):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrApprovalInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrNoSuchBallot):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrNoOpenBallot):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateStakeholder):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
