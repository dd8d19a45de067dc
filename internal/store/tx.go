package store

import (
	"database/sql"
	"time"
)

// Tx is a write transaction scoped to the workflow engine. Every
// state-changing workflow operation (request / vote / cancel) runs inside
// exactly one Tx so the "at most one pending ballot" and "all approved ⇒
// apply" read-then-write sequences cannot race.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// GetTask reads the task row inside the transaction.
func (t *Tx) GetTask(id int64) (*Task, error) {
	return getTask(t.tx, id)
}

// PendingChange returns the task's open ballot record, or nil.
func (t *Tx) PendingChange(taskID int64) (*StatusChange, error) {
	return pendingChange(t.tx, taskID)
}

// ListStakeholders returns the task's stakeholder set as of now.
func (t *Tx) ListStakeholders(taskID int64) ([]Stakeholder, error) {
	return listStakeholders(t.tx, taskID)
}

// InsertStatusChange appends a ledger record and fills in its ID and
// timestamp.
func (t *Tx) InsertStatusChange(sc *StatusChange) (int64, error) {
	return insertStatusChange(t.tx, sc)
}

// InsertApproval creates one pending vote on a ballot.
func (t *Tx) InsertApproval(changeID, stakeholderID int64) error {
	return insertApproval(t.tx, changeID, stakeholderID)
}

// SetTaskStatus moves the task row and its completed_at stamp.
func (t *Tx) SetTaskStatus(id int64, status TaskStatus, completedAt *time.Time) error {
	return setTaskStatus(t.tx, id, status, completedAt)
}

// SetReviewResult writes the terminal-result field of a ledger record.
func (t *Tx) SetReviewResult(changeID int64, result ReviewResult) error {
	return setReviewResult(t.tx, changeID, result)
}

// PendingApprovalFor finds the member's pending vote on the task's open
// ballot, or nil.
func (t *Tx) PendingApprovalFor(taskID, memberID int64) (*Approval, error) {
	return pendingApprovalFor(t.tx, taskID, memberID)
}

// ResolveApproval records a vote outcome with its resolved-at stamp.
func (t *Tx) ResolveApproval(approvalID int64, status ApprovalStatus, comment string) error {
	return resolveApproval(t.tx, approvalID, status, comment)
}

// CountNotApproved re-reads the ballot and counts votes that are not yet
// approved.
func (t *Tx) CountNotApproved(changeID int64) (int, error) {
	return countNotApproved(t.tx, changeID)
}

// ListApprovals returns the vote set of a ballot.
func (t *Tx) ListApprovals(changeID int64) ([]Approval, error) {
	return listApprovals(t.tx, changeID)
}

// DeleteApprovals removes a ballot's votes (cancellation only).
func (t *Tx) DeleteApprovals(changeID int64) error {
	return deleteApprovals(t.tx, changeID)
}
