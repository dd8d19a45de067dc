package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type projectRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	OwnerID     int64  `json:"owner_id"`
}

func (s *Server) createProjectAction(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	actor := actorFrom(c)
	project, err := s.store.CreateProject(req.Name, req.Code, req.Description, priority, req.OwnerID, actor.MemberID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) listProjectsAction(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Query("status"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) getProjectAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

type projectUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

func (s *Server) updateProjectAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req projectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current, err := s.store.GetProject(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if req.Name == "" {
		req.Name = current.Name
	}
	if req.Description == "" {
		req.Description = current.Description
	}
	if req.Status == "" {
		req.Status = current.Status
	}
	if req.Priority == "" {
		req.Priority = current.Priority
	}

	if err := s.store.UpdateProject(id, req.Name, req.Description, req.Status, req.Priority); err != nil {
		s.handleError(c, err)
		return
	}
	project, err := s.store.GetProject(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) deleteProjectAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	if !actor.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only an admin may delete a project"})
		return
	}
	if err := s.store.DeleteProject(id); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type projectMemberRequest struct {
	MemberID int64  `json:"member_id" binding:"required"`
	Role     string `json:"role"`
}

func (s *Server) addProjectMemberAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req projectMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	if _, err := s.store.GetProject(id); err != nil {
		s.handleError(c, err)
		return
	}
	if _, err := s.store.GetMember(req.MemberID); err != nil {
		s.handleError(c, err)
		return
	}

	pm, err := s.store.AddProjectMember(id, req.MemberID, req.Role)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pm)
}

func (s *Server) listProjectMembersAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := s.store.ListProjectMembers(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) removeProjectMemberAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberID")
	if !ok {
		return
	}
	if err := s.store.RemoveProjectMember(id, memberID); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
