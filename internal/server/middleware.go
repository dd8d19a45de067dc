package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imkarma/crewdeck/internal/workflow"
)

const (
	ctxMemberID = "member_id"
	ctxRole     = "role"
)

// requireAuth validates the bearer token and stores the member identity
// on the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			c.Abort()
			return
		}

		memberID, role, err := s.tokens.Parse(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(ctxMemberID, memberID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// actorFrom reads the authenticated member off the request context.
func actorFrom(c *gin.Context) workflow.Actor {
	return workflow.Actor{
		MemberID: c.GetInt64(ctxMemberID),
		IsAdmin:  c.GetString(ctxRole) == "admin",
	}
}

// pathID parses the named path parameter as an int64, writing a 400 on
// failure. The bool reports whether parsing succeeded.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
