package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/imkarma/crewdeck/internal/workflow"
)

type taskRequest struct {
	ProjectID      int64      `json:"project_id" binding:"required"`
	ParentID       *int64     `json:"parent_task_id"`
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	AssigneeID     *int64     `json:"assignee_id"`
	Priority       string     `json:"priority"`
	TaskType       string     `json:"task_type"`
	DueDate        *time.Time `json:"due_date"`
	StakeholderIDs []int64    `json:"stakeholder_ids"`
}

func (s *Server) createTaskAction(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	if _, err := s.store.GetProject(req.ProjectID); err != nil {
		s.handleError(c, err)
		return
	}

	actor := actorFrom(c)
	task, err := s.store.CreateTask(store.TaskDraft{
		ProjectID:      req.ProjectID,
		ParentID:       req.ParentID,
		Title:          req.Title,
		Description:    req.Description,
		AssigneeID:     req.AssigneeID,
		Priority:       req.Priority,
		TaskType:       req.TaskType,
		DueDate:        req.DueDate,
		CreatedBy:      actor.MemberID,
		StakeholderIDs: req.StakeholderIDs,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.notifyAssignment(c, actor, task)
	s.notifyStakeholders(c, actor, task, req.StakeholderIDs)
	s.notifyMentions(c, actor, task, req.Description)

	c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasksAction(c *gin.Context) {
	var f store.TaskFilter
	if v := c.Query("project_id"); v != "" {
		f.ProjectID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("assignee_id"); v != "" {
		f.AssigneeID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("status"); v != "" {
		f.Status = store.TaskStatus(v)
	}
	f.Keyword = c.Query("keyword")
	f.TopLevelOnly = c.Query("top_level") == "true"

	tasks, err := s.store.ListTasks(f)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// taskDetail is the full task view: the task plus its subtasks,
// stakeholders, ledger, open ballot and that ballot's votes.
type taskDetail struct {
	Task          *store.Task          `json:"task"`
	SubTasks      []store.Task         `json:"sub_tasks"`
	Stakeholders  []store.Stakeholder  `json:"stakeholders"`
	History       []store.StatusChange `json:"history"`
	PendingChange *store.StatusChange  `json:"pending_change,omitempty"`
	PendingVotes  []store.Approval     `json:"pending_votes,omitempty"`
	AllowedNext   []store.TaskStatus   `json:"allowed_next"`
}

func (s *Server) getTaskAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	detail := taskDetail{Task: task, AllowedNext: workflow.AllowedSuccessors(task.Status)}
	if detail.SubTasks, err = s.store.ListSubTasks(id); err != nil {
		s.handleError(c, err)
		return
	}
	if detail.Stakeholders, err = s.store.ListStakeholders(id); err != nil {
		s.handleError(c, err)
		return
	}
	if detail.History, err = s.store.ListStatusHistory(id); err != nil {
		s.handleError(c, err)
		return
	}
	if detail.PendingChange, err = s.store.PendingChange(id); err != nil {
		s.handleError(c, err)
		return
	}
	if detail.PendingChange != nil {
		if detail.PendingVotes, err = s.store.ListApprovals(detail.PendingChange.ID); err != nil {
			s.handleError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, detail)
}

type taskUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	AssigneeID  *int64     `json:"assignee_id"`
	Priority    *string    `json:"priority"`
	TaskType    *string    `json:"task_type"`
	DueDate     *time.Time `json:"due_date"`
}

func (s *Server) updateTaskAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	before, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	err = s.store.UpdateTask(id, store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Priority:    req.Priority,
		TaskType:    req.TaskType,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	actor := actorFrom(c)
	if req.AssigneeID != nil && (before.AssigneeID == nil || *before.AssigneeID != *req.AssigneeID) {
		s.notifyAssignment(c, actor, task)
	}
	if req.Description != nil {
		s.notifyMentions(c, actor, task, *req.Description)
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTaskAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	actor := actorFrom(c)
	if !actor.IsAdmin && (task.CreatedBy == nil || *task.CreatedBy != actor.MemberID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the task creator or an admin may delete a task"})
		return
	}

	if err := s.store.DeleteTask(id); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type statusChangeRequest struct {
	Status         string `json:"status" binding:"required"`
	Comment        string `json:"comment"`
	ReviewResult   string `json:"review_result"`
	ReviewFeedback string `json:"review_feedback"`
}

func (s *Server) changeTaskStatusAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Pending is reserved for ballots the engine opens itself.
	switch store.ReviewResult(req.ReviewResult) {
	case store.ReviewNone, store.ReviewPassed, store.ReviewRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "review_result must be passed or rejected"})
		return
	}

	result, err := s.engine.RequestTransition(c.Request.Context(), actorFrom(c), workflow.TransitionRequest{
		TaskID:         id,
		NewStatus:      store.TaskStatus(req.Status),
		Comment:        req.Comment,
		ReviewResult:   store.ReviewResult(req.ReviewResult),
		ReviewFeedback: req.ReviewFeedback,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": result.Outcome,
		"task":    result.Task,
		"change":  result.Change,
	})
}

type voteRequest struct {
	Action  string `json:"action" binding:"required"` // approve or reject
	Comment string `json:"comment"`
}

func (s *Server) approveTaskAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var action workflow.VoteAction
	switch req.Action {
	case "approve":
		action = workflow.VoteApprove
	case "reject":
		action = workflow.VoteReject
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
		return
	}

	result, err := s.engine.CastVote(c.Request.Context(), actorFrom(c), id, action, req.Comment)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": result.Outcome,
		"task":    result.Task,
		"change":  result.Change,
	})
}

func (s *Server) cancelApprovalAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.engine.CancelBallot(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": result.Outcome,
		"task":    result.Task,
		"change":  result.Change,
	})
}

func (s *Server) taskHistoryAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetTask(id); err != nil {
		s.handleError(c, err)
		return
	}
	history, err := s.store.ListStatusHistory(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type stakeholderRequest struct {
	MemberID int64  `json:"member_id" binding:"required"`
	Role     string `json:"role"`
}

func (s *Server) addStakeholderAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req stakeholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "stakeholder"
	}

	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	actor := actorFrom(c)
	if !actor.IsAdmin && (task.CreatedBy == nil || *task.CreatedBy != actor.MemberID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the task creator or an admin may manage stakeholders"})
		return
	}
	if _, err := s.store.GetMember(req.MemberID); err != nil {
		s.handleError(c, err)
		return
	}

	sh, err := s.store.AddStakeholder(id, req.MemberID, req.Role)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.notifyStakeholders(c, actor, task, []int64{req.MemberID})

	c.JSON(http.StatusCreated, sh)
}

type replaceStakeholdersRequest struct {
	MemberIDs []int64 `json:"member_ids"`
}

// replaceStakeholdersAction swaps the task's whole stakeholder set in
// one call. Votes already enrolled on an open ballot are unaffected.
func (s *Server) replaceStakeholdersAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req replaceStakeholdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	actor := actorFrom(c)
	if !actor.IsAdmin && (task.CreatedBy == nil || *task.CreatedBy != actor.MemberID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the task creator or an admin may manage stakeholders"})
		return
	}
	for _, memberID := range req.MemberIDs {
		if _, err := s.store.GetMember(memberID); err != nil {
			s.handleError(c, err)
			return
		}
	}

	before, err := s.store.ListStakeholders(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if err := s.store.ReplaceStakeholders(id, req.MemberIDs); err != nil {
		s.handleError(c, err)
		return
	}

	existing := make(map[int64]bool, len(before))
	for _, sh := range before {
		existing[sh.MemberID] = true
	}
	var added []int64
	for _, memberID := range req.MemberIDs {
		if !existing[memberID] {
			added = append(added, memberID)
		}
	}
	s.notifyStakeholders(c, actor, task, added)

	stakeholders, err := s.store.ListStakeholders(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stakeholders)
}

func (s *Server) listStakeholdersAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stakeholders, err := s.store.ListStakeholders(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stakeholders)
}

func (s *Server) removeStakeholderAction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shID, ok := pathID(c, "stakeholderID")
	if !ok {
		return
	}

	task, err := s.store.GetTask(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	actor := actorFrom(c)
	if !actor.IsAdmin && (task.CreatedBy == nil || *task.CreatedBy != actor.MemberID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the task creator or an admin may manage stakeholders"})
		return
	}

	sh, err := s.store.GetStakeholder(shID)
	if err != nil || sh.TaskID != id {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := s.store.RemoveStakeholder(shID); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// notifyAssignment tells the assignee they picked up a task. Best effort,
// same as engine-side notices.
func (s *Server) notifyAssignment(c *gin.Context, actor workflow.Actor, task *store.Task) {
	if task.AssigneeID == nil {
		return
	}
	err := s.sink.Notify(c.Request.Context(), workflow.Notice{
		Kind:       workflow.NoticeAssignment,
		Recipients: []int64{*task.AssigneeID},
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
	})
	if err != nil {
		s.log.WithError(err).Warn("assignment notification failed")
	}
}

func (s *Server) notifyStakeholders(c *gin.Context, actor workflow.Actor, task *store.Task, memberIDs []int64) {
	if len(memberIDs) == 0 {
		return
	}
	err := s.sink.Notify(c.Request.Context(), workflow.Notice{
		Kind:       workflow.NoticeStakeholder,
		Recipients: memberIDs,
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
	})
	if err != nil {
		s.log.WithError(err).Warn("stakeholder notification failed")
	}
}

func (s *Server) notifyMentions(c *gin.Context, actor workflow.Actor, task *store.Task, text string) {
	mentioned := s.mentions.MentionedMembers(text)
	if len(mentioned) == 0 {
		return
	}
	err := s.sink.Notify(c.Request.Context(), workflow.Notice{
		Kind:       workflow.NoticeMention,
		Recipients: mentioned,
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		Context:    text,
	})
	if err != nil {
		s.log.WithError(err).Warn("mention notification failed")
	}
}
