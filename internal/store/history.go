package store

import (
	"database/sql"
	"fmt"
	"time"
)

const historyColumns = `id, task_id, from_status, to_status, changed_by, comment, review_type, review_result, review_feedback, changed_at`

// ListStatusHistory returns a task's ledger, newest first.
func (s *Store) ListStatusHistory(taskID int64) ([]StatusChange, error) {
	rows, err := s.db.Query(
		`SELECT `+historyColumns+` FROM task_status_history WHERE task_id = ? ORDER BY changed_at DESC, id DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []StatusChange
	for rows.Next() {
		sc, err := scanStatusChangeRows(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *sc)
	}
	return history, rows.Err()
}

// PendingChange returns the task's open ballot record, or nil if none.
func (s *Store) PendingChange(taskID int64) (*StatusChange, error) {
	return pendingChange(s.db, taskID)
}

func pendingChange(q dbtx, taskID int64) (*StatusChange, error) {
	row := q.QueryRow(
		`SELECT `+historyColumns+` FROM task_status_history WHERE task_id = ? AND review_result = ?`,
		taskID, string(ReviewPending),
	)
	sc, err := scanStatusChange(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func insertStatusChange(q dbtx, sc *StatusChange) (int64, error) {
	now := time.Now().UTC()
	var from any
	if sc.FromStatus != nil {
		from = string(*sc.FromStatus)
	}
	res, err := q.Exec(
		`INSERT INTO task_status_history (task_id, from_status, to_status, changed_by, comment, review_type, review_result, review_feedback, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.TaskID, from, string(sc.ToStatus), sc.ChangedBy, sc.Comment,
		string(sc.ReviewType), string(sc.ReviewResult), sc.ReviewFeedback, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert status change: %w", err)
	}
	id, _ := res.LastInsertId()
	sc.ID = id
	sc.ChangedAt = now
	return id, nil
}

func setReviewResult(q dbtx, changeID int64, result ReviewResult) error {
	if _, err := q.Exec(
		`UPDATE task_status_history SET review_result = ? WHERE id = ?`,
		string(result), changeID,
	); err != nil {
		return fmt.Errorf("set review result: %w", err)
	}
	return nil
}

func scanStatusChange(row *sql.Row) (*StatusChange, error) {
	var sc StatusChange
	var from sql.NullString
	var changedBy sql.NullInt64
	err := row.Scan(
		&sc.ID, &sc.TaskID, &from, &sc.ToStatus, &changedBy, &sc.Comment,
		&sc.ReviewType, &sc.ReviewResult, &sc.ReviewFeedback, &sc.ChangedAt,
	)
	if err != nil {
		return nil, err
	}
	applyHistoryNulls(&sc, from, changedBy)
	return &sc, nil
}

func scanStatusChangeRows(rows *sql.Rows) (*StatusChange, error) {
	var sc StatusChange
	var from sql.NullString
	var changedBy sql.NullInt64
	err := rows.Scan(
		&sc.ID, &sc.TaskID, &from, &sc.ToStatus, &changedBy, &sc.Comment,
		&sc.ReviewType, &sc.ReviewResult, &sc.ReviewFeedback, &sc.ChangedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan status change: %w", err)
	}
	applyHistoryNulls(&sc, from, changedBy)
	return &sc, nil
}

func applyHistoryNulls(sc *StatusChange, from sql.NullString, changedBy sql.NullInt64) {
	if from.Valid && from.String != "" {
		status := TaskStatus(from.String)
		sc.FromStatus = &status
	}
	if changedBy.Valid {
		sc.ChangedBy = &changedBy.Int64
	}
}
