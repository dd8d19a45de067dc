package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkarma/crewdeck/internal/auth"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) registerAction(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := req.Role
	switch role {
	case "":
		role = "member"
	case "member", "manager", "admin":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be member, manager or admin"})
		return
	}

	if _, err := s.store.GetMemberByEmail(req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.handleError(c, err)
		return
	}

	member, err := s.store.CreateMember(req.Name, req.Email, hash, role)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.log.WithField("member", member.ID).Info("member registered")
	c.JSON(http.StatusCreated, member)
}

func (s *Server) loginAction(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := s.store.GetMemberByEmail(req.Email)
	if err != nil || !auth.CheckPassword(req.Password, member.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if member.Status != "active" {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is inactive"})
		return
	}

	token, err := s.tokens.Generate(member.ID, member.Role)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"member": member,
	})
}

func (s *Server) listMembersAction(c *gin.Context) {
	members, err := s.store.ListMembers()
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) currentMemberAction(c *gin.Context) {
	member, err := s.store.GetMember(c.GetInt64(ctxMemberID))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (s *Server) getMemberAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	member, err := s.store.GetMember(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}
