package store

import (
	"database/sql"
	"fmt"
	"time"
)

const approvalColumns = `id, status_change_id, stakeholder_id, approval_status, comment, created_at, resolved_at`

// ListApprovals returns the vote set of a ballot.
func (s *Store) ListApprovals(changeID int64) ([]Approval, error) {
	return listApprovals(s.db, changeID)
}

func listApprovals(q dbtx, changeID int64) ([]Approval, error) {
	rows, err := q.Query(
		`SELECT `+approvalColumns+` FROM task_status_approvals WHERE status_change_id = ? ORDER BY id`,
		changeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []Approval
	for rows.Next() {
		a, err := scanApprovalRows(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return approvals, rows.Err()
}

func insertApproval(q dbtx, changeID, stakeholderID int64) error {
	now := time.Now().UTC()
	if _, err := q.Exec(
		`INSERT INTO task_status_approvals (status_change_id, stakeholder_id, approval_status, created_at)
		 VALUES (?, ?, ?, ?)`,
		changeID, stakeholderID, string(ApprovalPending), now,
	); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// pendingApprovalFor finds the member's pending vote on the task's open
// ballot, if any. The ledger record must itself still be pending: a
// rejection resolves only the rejecter's vote, so the other voters keep
// stale pending rows on the closed ballot and those must never match.
func pendingApprovalFor(q dbtx, taskID, memberID int64) (*Approval, error) {
	row := q.QueryRow(
		`SELECT a.id, a.status_change_id, a.stakeholder_id, a.approval_status, a.comment, a.created_at, a.resolved_at
		 FROM task_status_approvals a
		 JOIN task_status_history h ON h.id = a.status_change_id
		 WHERE h.task_id = ? AND a.stakeholder_id = ? AND a.approval_status = ? AND h.review_result = ?`,
		taskID, memberID, string(ApprovalPending), string(ReviewPending),
	)
	a, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func resolveApproval(q dbtx, approvalID int64, status ApprovalStatus, comment string) error {
	now := time.Now().UTC()
	if _, err := q.Exec(
		`UPDATE task_status_approvals SET approval_status = ?, comment = ?, resolved_at = ? WHERE id = ?`,
		string(status), comment, now, approvalID,
	); err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	return nil
}

// countNotApproved re-aggregates the ballot inside the transaction rather
// than trusting an in-memory tally; required under concurrent votes.
func countNotApproved(q dbtx, changeID int64) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM task_status_approvals WHERE status_change_id = ? AND approval_status != ?`,
		changeID, string(ApprovalApproved),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unapproved: %w", err)
	}
	return n, nil
}

func deleteApprovals(q dbtx, changeID int64) error {
	if _, err := q.Exec(
		`DELETE FROM task_status_approvals WHERE status_change_id = ?`, changeID,
	); err != nil {
		return fmt.Errorf("delete approvals: %w", err)
	}
	return nil
}

func scanApproval(row *sql.Row) (*Approval, error) {
	var a Approval
	var resolvedAt sql.NullTime
	err := row.Scan(&a.ID, &a.StatusChangeID, &a.StakeholderID, &a.Status, &a.Comment, &a.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}

func scanApprovalRows(rows *sql.Rows) (*Approval, error) {
	var a Approval
	var resolvedAt sql.NullTime
	err := rows.Scan(&a.ID, &a.StatusChangeID, &a.StakeholderID, &a.Status, &a.Comment, &a.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("scan approval: %w", err)
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}
