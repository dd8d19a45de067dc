package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateStakeholder is returned when a (task, member) pair already
// exists in the registry.
var ErrDuplicateStakeholder = errors.New("member is already a stakeholder of this task")

// AddStakeholder enrolls a member as a stakeholder of a task.
func (s *Store) AddStakeholder(taskID, memberID int64, role string) (*Stakeholder, error) {
	if role == "" {
		role = "stakeholder"
	}
	now := time.Now().UTC()

	var existing int64
	err := s.db.QueryRow(
		`SELECT id FROM task_stakeholders WHERE task_id = ? AND member_id = ?`, taskID, memberID,
	).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateStakeholder
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check stakeholder: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO task_stakeholders (task_id, member_id, role, created_at) VALUES (?, ?, ?, ?)`,
		taskID, memberID, role, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stakeholder: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Stakeholder{ID: id, TaskID: taskID, MemberID: memberID, Role: role, CreatedAt: now}, nil
}

// GetStakeholder returns a stakeholder row by ID.
func (s *Store) GetStakeholder(id int64) (*Stakeholder, error) {
	row := s.db.QueryRow(
		`SELECT id, task_id, member_id, role, created_at FROM task_stakeholders WHERE id = ?`, id,
	)
	var sh Stakeholder
	err := row.Scan(&sh.ID, &sh.TaskID, &sh.MemberID, &sh.Role, &sh.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stakeholder: %w", err)
	}
	return &sh, nil
}

// ListStakeholders returns the current stakeholder set of a task.
func (s *Store) ListStakeholders(taskID int64) ([]Stakeholder, error) {
	return listStakeholders(s.db, taskID)
}

func listStakeholders(q dbtx, taskID int64) ([]Stakeholder, error) {
	rows, err := q.Query(
		`SELECT id, task_id, member_id, role, created_at FROM task_stakeholders WHERE task_id = ? ORDER BY id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stakeholders: %w", err)
	}
	defer rows.Close()

	var stakeholders []Stakeholder
	for rows.Next() {
		var sh Stakeholder
		if err := rows.Scan(&sh.ID, &sh.TaskID, &sh.MemberID, &sh.Role, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stakeholder: %w", err)
		}
		stakeholders = append(stakeholders, sh)
	}
	return stakeholders, rows.Err()
}

// RemoveStakeholder deletes a stakeholder row. Votes already enrolled in
// an open ballot stay; the ballot's voter set is fixed at creation time.
func (s *Store) RemoveStakeholder(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM task_stakeholders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete stakeholder: %w", err)
	}
	return nil
}

// ReplaceStakeholders swaps the full stakeholder set of a task.
func (s *Store) ReplaceStakeholders(taskID int64, memberIDs []int64) error {
	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_stakeholders WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear stakeholders: %w", err)
	}
	for _, memberID := range memberIDs {
		if memberID == 0 {
			continue
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO task_stakeholders (task_id, member_id, role, created_at) VALUES (?, ?, 'stakeholder', ?)`,
			taskID, memberID, now,
		); err != nil {
			return fmt.Errorf("insert stakeholder: %w", err)
		}
	}
	return tx.Commit()
}
