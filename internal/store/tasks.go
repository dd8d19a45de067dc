package store

import (
	"database/sql"
	"fmt"
	"time"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// query helpers work both standalone and inside a workflow transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// taskColumns is the standard column list for task queries.
const taskColumns = `id, project_id, parent_task_id, title, description, assignee_id, status, priority, task_type, due_date, created_by, created_at, updated_at, completed_at`

// TaskDraft carries the fields for creating a task.
type TaskDraft struct {
	ProjectID      int64
	ParentID       *int64
	Title          string
	Description    string
	AssigneeID     *int64
	Priority       string
	TaskType       string
	DueDate        *time.Time
	CreatedBy      int64
	StakeholderIDs []int64
}

// CreateTask inserts a new task together with its stakeholders and the
// initial ledger record (from=NULL, to=todo). The creation event is never
// gated on approval, regardless of stakeholders.
func (s *Store) CreateTask(d TaskDraft) (*Task, error) {
	now := time.Now().UTC()
	if d.Priority == "" {
		d.Priority = "medium"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO tasks (project_id, parent_task_id, title, description, assignee_id, status, priority, task_type, due_date, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProjectID, d.ParentID, d.Title, d.Description, d.AssigneeID,
		string(StatusTodo), d.Priority, d.TaskType, d.DueDate, d.CreatedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, _ := res.LastInsertId()

	for _, memberID := range d.StakeholderIDs {
		if memberID == 0 {
			continue
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO task_stakeholders (task_id, member_id, role, created_at) VALUES (?, ?, 'stakeholder', ?)`,
			id, memberID, now,
		); err != nil {
			return nil, fmt.Errorf("insert stakeholder: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO task_status_history (task_id, from_status, to_status, changed_by, comment, changed_at)
		 VALUES (?, NULL, ?, ?, 'task created', ?)`,
		id, string(StatusTodo), d.CreatedBy, now,
	); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	createdBy := d.CreatedBy
	return &Task{
		ID:          id,
		ProjectID:   d.ProjectID,
		ParentID:    d.ParentID,
		Title:       d.Title,
		Description: d.Description,
		AssigneeID:  d.AssigneeID,
		Status:      StatusTodo,
		Priority:    d.Priority,
		TaskType:    d.TaskType,
		DueDate:     d.DueDate,
		CreatedBy:   &createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetTask returns a single task by ID.
func (s *Store) GetTask(id int64) (*Task, error) {
	return getTask(s.db, id)
}

func getTask(q dbtx, id int64) (*Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	ProjectID    int64
	AssigneeID   int64
	Status       TaskStatus
	Keyword      string
	TopLevelOnly bool
}

// ListTasks returns tasks matching the filter, newest first.
func (s *Store) ListTasks(f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.ProjectID != 0 {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.AssigneeID != 0 {
		query += ` AND assignee_id = ?`
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Keyword != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+f.Keyword+"%")
	}
	if f.TopLevelOnly {
		query += ` AND parent_task_id IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListSubTasks returns the direct children of a task.
func (s *Store) ListSubTasks(parentID int64) ([]Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TaskUpdate carries optional field changes; nil pointers leave the
// column untouched. Status is deliberately absent — status only moves
// through the workflow engine.
type TaskUpdate struct {
	Title       *string
	Description *string
	AssigneeID  *int64
	Priority    *string
	TaskType    *string
	DueDate     *time.Time
}

// UpdateTask applies the non-nil fields of u to a task.
func (s *Store) UpdateTask(id int64, u TaskUpdate) error {
	query := `UPDATE tasks SET updated_at = ?`
	args := []any{time.Now().UTC()}
	if u.Title != nil {
		query += `, title = ?`
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		query += `, description = ?`
		args = append(args, *u.Description)
	}
	if u.AssigneeID != nil {
		query += `, assignee_id = ?`
		args = append(args, *u.AssigneeID)
	}
	if u.Priority != nil {
		query += `, priority = ?`
		args = append(args, *u.Priority)
	}
	if u.TaskType != nil {
		query += `, task_type = ?`
		args = append(args, *u.TaskType)
	}
	if u.DueDate != nil {
		query += `, due_date = ?`
		args = append(args, *u.DueDate)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task; stakeholders, history and approvals cascade.
func (s *Store) DeleteTask(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func setTaskStatus(q dbtx, id int64, status TaskStatus, completedAt *time.Time) error {
	now := time.Now().UTC()
	if _, err := q.Exec(
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(status), completedAt, now, id,
	); err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// scanTask scans a single task from a *sql.Row.
func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var parentID, assigneeID, createdBy sql.NullInt64
	var dueDate, completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &parentID, &t.Title, &t.Description, &assigneeID,
		&t.Status, &t.Priority, &t.TaskType, &dueDate, &createdBy,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	applyTaskNulls(&t, parentID, assigneeID, createdBy, dueDate, completedAt)
	return &t, nil
}

// scanTaskRows scans a single task from *sql.Rows.
func scanTaskRows(rows *sql.Rows) (*Task, error) {
	var t Task
	var parentID, assigneeID, createdBy sql.NullInt64
	var dueDate, completedAt sql.NullTime
	err := rows.Scan(
		&t.ID, &t.ProjectID, &parentID, &t.Title, &t.Description, &assigneeID,
		&t.Status, &t.Priority, &t.TaskType, &dueDate, &createdBy,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	applyTaskNulls(&t, parentID, assigneeID, createdBy, dueDate, completedAt)
	return &t, nil
}

func applyTaskNulls(t *Task, parentID, assigneeID, createdBy sql.NullInt64, dueDate, completedAt sql.NullTime) {
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
}
