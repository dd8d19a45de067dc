package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listNotificationsAction(c *gin.Context) {
	memberID := c.GetInt64(ctxMemberID)
	unreadOnly := c.Query("unread") == "true"

	notifications, err := s.store.ListNotifications(memberID, unreadOnly)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *Server) unreadCountAction(c *gin.Context) {
	count, err := s.store.UnreadNotificationCount(c.GetInt64(ctxMemberID))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *Server) markNotificationReadAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.MarkNotificationRead(id, c.GetInt64(ctxMemberID)); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "read"})
}
