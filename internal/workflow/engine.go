// Package workflow implements the task status transition and
// stakeholder-approval engine. A transition requested by the task's
// creator while stakeholders exist opens a ballot instead of moving the
// task; the deferred move applies only when every enrolled stakeholder
// approves, and a single rejection is a hard stop.
package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/store"
)

// Actor is the resolved identity making a workflow call. Identity and
// capability resolution belong to the API layer; the engine never looks
// up credentials itself.
type Actor struct {
	MemberID int64
	IsAdmin  bool
}

// Outcome says what a workflow operation did.
type Outcome string

const (
	// OutcomeApplied: the transition took effect immediately.
	OutcomeApplied Outcome = "applied"
	// OutcomePending: a ballot was opened; the task did not move.
	OutcomePending Outcome = "pending"
	// OutcomeAwaitingVotes: vote recorded, ballot still open.
	OutcomeAwaitingVotes Outcome = "awaiting_votes"
	// OutcomeResolved: final approval arrived and the deferred
	// transition was applied.
	OutcomeResolved Outcome = "resolved"
	// OutcomeRejected: a stakeholder vetoed; the ballot is closed and
	// the task did not move.
	OutcomeRejected Outcome = "rejected"
	// OutcomeCancelled: the requester withdrew the open ballot.
	OutcomeCancelled Outcome = "cancelled"
)

// VoteAction is a stakeholder's decision on an open ballot.
type VoteAction string

const (
	VoteApprove VoteAction = "approve"
	VoteReject  VoteAction = "reject"
)

// TransitionRequest carries the parameters of a status change request.
type TransitionRequest struct {
	TaskID    int64
	NewStatus store.TaskStatus
	Comment   string
	// ReviewResult is recorded as-is on immediate transitions (it may be
	// empty for a plain move); ballot-gated transitions always start at
	// pending regardless of this field.
	ReviewResult   store.ReviewResult
	ReviewFeedback string
}

// Result is the outcome of a workflow operation.
type Result struct {
	Outcome Outcome
	Task    *store.Task
	Change  *store.StatusChange
}

// Engine drives the task status state machine over the store. All
// collaborators are constructor-injected so tests can run without a
// network.
type Engine struct {
	store    *store.Store
	sink     NotificationSink
	mentions MentionScanner
	log      *logrus.Entry
}

// New creates an Engine.
func New(s *store.Store, sink NotificationSink, mentions MentionScanner, log *logrus.Entry) *Engine {
	return &Engine{store: s, sink: sink, mentions: mentions, log: log}
}

// RequestTransition validates and either applies or defers a status
// change. Approval is needed iff the actor is the task's creator (not
// merely an admin), the stakeholder set minus the actor is non-empty,
// and the target status is not cancelled — cancellation is always
// immediate so an abandoned task can't deadlock behind unreachable
// approvers.
func (e *Engine) RequestTransition(ctx context.Context, actor Actor, req TransitionRequest) (*Result, error) {
	tx, err := e.store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	task, err := tx.GetTask(req.TaskID)
	if err != nil {
		return nil, err
	}

	isCreator := task.CreatedBy != nil && *task.CreatedBy == actor.MemberID
	if !isCreator && !actor.IsAdmin {
		return nil, ErrNotAllowed
	}

	if !CanTransition(task.Status, req.NewStatus) {
		return nil, &InvalidTransitionError{
			From:    task.Status,
			To:      req.NewStatus,
			Allowed: AllowedSuccessors(task.Status),
		}
	}

	pending, err := tx.PendingChange(task.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrApprovalInFlight
	}

	stakeholders, err := tx.ListStakeholders(task.ID)
	if err != nil {
		return nil, err
	}
	var voters []int64
	for _, sh := range stakeholders {
		if sh.MemberID != actor.MemberID {
			voters = append(voters, sh.MemberID)
		}
	}

	from := task.Status
	reviewType := reviewTypeLeaving(from)
	needsApproval := isCreator && len(voters) > 0 && req.NewStatus != store.StatusCancelled

	if needsApproval {
		change := &store.StatusChange{
			TaskID:         task.ID,
			FromStatus:     &from,
			ToStatus:       req.NewStatus,
			ChangedBy:      &actor.MemberID,
			Comment:        req.Comment,
			ReviewType:     reviewType,
			ReviewResult:   store.ReviewPending,
			ReviewFeedback: req.ReviewFeedback,
		}
		changeID, err := tx.InsertStatusChange(change)
		if err != nil {
			return nil, err
		}
		// The voter set is fixed now; stakeholders added later are not
		// retroactively enrolled.
		for _, memberID := range voters {
			if err := tx.InsertApproval(changeID, memberID); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		e.dispatch(ctx, Notice{
			Kind:       NoticeApprovalRequest,
			Recipients: voters,
			Sender:     actor.MemberID,
			TaskID:     task.ID,
			TaskTitle:  task.Title,
			From:       from,
			To:         req.NewStatus,
		})
		return &Result{Outcome: OutcomePending, Task: task, Change: change}, nil
	}

	// No approval needed: apply immediately.
	completedAt := completionStamp(req.NewStatus)
	if err := tx.SetTaskStatus(task.ID, req.NewStatus, completedAt); err != nil {
		return nil, err
	}
	change := &store.StatusChange{
		TaskID:         task.ID,
		FromStatus:     &from,
		ToStatus:       req.NewStatus,
		ChangedBy:      &actor.MemberID,
		Comment:        req.Comment,
		ReviewType:     reviewType,
		ReviewResult:   req.ReviewResult,
		ReviewFeedback: req.ReviewFeedback,
	}
	if _, err := tx.InsertStatusChange(change); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	task.Status = req.NewStatus
	task.CompletedAt = completedAt

	recipients := notifySet(task, stakeholders)
	kind := NoticeStatusChanged
	if req.NewStatus == store.StatusTaskReview || req.NewStatus == store.StatusResultReview {
		kind = NoticeReviewRequested
	}
	e.dispatch(ctx, Notice{
		Kind:       kind,
		Recipients: recipients,
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		From:       from,
		To:         req.NewStatus,
	})
	e.dispatchMentions(ctx, actor, task, req.ReviewFeedback)

	return &Result{Outcome: OutcomeApplied, Task: task, Change: change}, nil
}

// CastVote records a stakeholder's vote on the task's open ballot. A
// rejection closes the ballot immediately; an approval resolves the
// ballot only once the transactionally re-read vote set is unanimous.
func (e *Engine) CastVote(ctx context.Context, actor Actor, taskID int64, action VoteAction, comment string) (*Result, error) {
	tx, err := e.store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	task, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	vote, err := tx.PendingApprovalFor(taskID, actor.MemberID)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrNoSuchBallot
	}

	change, err := tx.PendingChange(taskID)
	if err != nil {
		return nil, err
	}
	if change == nil || change.ID != vote.StatusChangeID {
		return nil, ErrNoSuchBallot
	}

	if action == VoteReject {
		if err := tx.ResolveApproval(vote.ID, store.ApprovalRejected, comment); err != nil {
			return nil, err
		}
		if err := tx.SetReviewResult(change.ID, store.ReviewRejected); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		change.ReviewResult = store.ReviewRejected
		if change.ChangedBy != nil {
			e.dispatch(ctx, Notice{
				Kind:       NoticeApprovalRejected,
				Recipients: []int64{*change.ChangedBy},
				Sender:     actor.MemberID,
				TaskID:     task.ID,
				TaskTitle:  task.Title,
				From:       task.Status,
				To:         change.ToStatus,
				Context:    comment,
			})
		}
		return &Result{Outcome: OutcomeRejected, Task: task, Change: change}, nil
	}

	if err := tx.ResolveApproval(vote.ID, store.ApprovalApproved, comment); err != nil {
		return nil, err
	}

	// Re-aggregate inside the transaction; an in-memory tally would race
	// with concurrent votes on the same ballot.
	remaining, err := tx.CountNotApproved(change.ID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeAwaitingVotes, Task: task, Change: change}, nil
	}

	// Unanimous: apply the deferred transition.
	from := task.Status
	completedAt := completionStamp(change.ToStatus)
	if err := tx.SetTaskStatus(task.ID, change.ToStatus, completedAt); err != nil {
		return nil, err
	}
	if err := tx.SetReviewResult(change.ID, store.ReviewPassed); err != nil {
		return nil, err
	}
	stakeholders, err := tx.ListStakeholders(task.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	task.Status = change.ToStatus
	task.CompletedAt = completedAt
	change.ReviewResult = store.ReviewPassed

	sender := actor.MemberID
	if change.ChangedBy != nil {
		sender = *change.ChangedBy
	}
	e.dispatch(ctx, Notice{
		Kind:       NoticeStatusChanged,
		Recipients: notifySet(task, stakeholders),
		Sender:     sender,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		From:       from,
		To:         change.ToStatus,
	})
	return &Result{Outcome: OutcomeResolved, Task: task, Change: change}, nil
}

// CancelBallot withdraws the task's open ballot. Only the original
// requester may cancel; the votes are deleted (they carry no audit value
// once withdrawn) and the task status is untouched throughout.
func (e *Engine) CancelBallot(ctx context.Context, actor Actor, taskID int64) (*Result, error) {
	tx, err := e.store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	task, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	change, err := tx.PendingChange(taskID)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, ErrNoOpenBallot
	}
	if change.ChangedBy == nil || *change.ChangedBy != actor.MemberID {
		return nil, ErrNotRequester
	}

	votes, err := tx.ListApprovals(change.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.SetReviewResult(change.ID, store.ReviewCancelled); err != nil {
		return nil, err
	}
	if err := tx.DeleteApprovals(change.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	change.ReviewResult = store.ReviewCancelled
	var enrolled []int64
	for _, v := range votes {
		enrolled = append(enrolled, v.StakeholderID)
	}
	e.dispatch(ctx, Notice{
		Kind:       NoticeApprovalCancelled,
		Recipients: enrolled,
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		From:       task.Status,
		To:         change.ToStatus,
	})
	return &Result{Outcome: OutcomeCancelled, Task: task, Change: change}, nil
}

// dispatch delivers a notice after commit; failures are logged and
// swallowed so notification loss never corrupts task state.
func (e *Engine) dispatch(ctx context.Context, n Notice) {
	if len(n.Recipients) == 0 {
		return
	}
	if err := e.sink.Notify(ctx, n); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"kind":    n.Kind,
			"task_id": n.TaskID,
		}).Error("notification dispatch failed")
	}
}

// dispatchMentions scans review feedback for @-mentions and notifies the
// referenced members.
func (e *Engine) dispatchMentions(ctx context.Context, actor Actor, task *store.Task, feedback string) {
	if feedback == "" {
		return
	}
	mentioned := e.mentions.MentionedMembers(feedback)
	if len(mentioned) == 0 {
		return
	}
	e.dispatch(ctx, Notice{
		Kind:       NoticeMention,
		Recipients: mentioned,
		Sender:     actor.MemberID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		Context:    feedback,
	})
}

// notifySet is {assignee, creator, stakeholders} deduplicated. The actor
// is not excluded here; the dispatcher skips the sender.
func notifySet(task *store.Task, stakeholders []store.Stakeholder) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if task.AssigneeID != nil {
		add(*task.AssigneeID)
	}
	if task.CreatedBy != nil {
		add(*task.CreatedBy)
	}
	for _, sh := range stakeholders {
		add(sh.MemberID)
	}
	return out
}

// completionStamp returns now for done and nil otherwise, so moving a
// task out of done clears completed_at.
func completionStamp(newStatus store.TaskStatus) *time.Time {
	if newStatus == store.StatusDone {
		now := time.Now().UTC()
		return &now
	}
	return nil
}
