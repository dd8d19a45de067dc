package store

import (
	"database/sql"
	"fmt"
	"time"
)

const projectColumns = `id, name, code, description, status, priority, owner_id, created_by, created_at, updated_at`

// CreateProject inserts a new project.
func (s *Store) CreateProject(name, code, description, priority string, ownerID, createdBy int64) (*Project, error) {
	now := time.Now().UTC()
	if priority == "" {
		priority = "medium"
	}
	res, err := s.db.Exec(
		`INSERT INTO projects (name, code, description, status, priority, owner_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, 'active', ?, ?, ?, ?, ?)`,
		name, code, description, priority, nullableID(ownerID), nullableID(createdBy), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetProject(id)
}

// GetProject returns a project by ID.
func (s *Store) GetProject(id int64) (*Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects returns all projects, optionally filtered by status.
func (s *Store) ListProjects(status string) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var ownerID, createdBy sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.Status, &p.Priority, &ownerID, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if ownerID.Valid {
			p.OwnerID = &ownerID.Int64
		}
		if createdBy.Valid {
			p.CreatedBy = &createdBy.Int64
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject updates the mutable fields of a project.
func (s *Store) UpdateProject(id int64, name, description, status, priority string) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(
		`UPDATE projects SET name = ?, description = ?, status = ?, priority = ?, updated_at = ? WHERE id = ?`,
		name, description, status, priority, now, id,
	); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// DeleteProject removes a project; its tasks cascade.
func (s *Store) DeleteProject(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// AddProjectMember links a member to a project. Duplicate pairs are
// rejected by the unique index.
func (s *Store) AddProjectMember(projectID, memberID int64, role string) (*ProjectMember, error) {
	now := time.Now().UTC()
	if role == "" {
		role = "developer"
	}
	res, err := s.db.Exec(
		`INSERT INTO project_members (project_id, member_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		projectID, memberID, role, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project member: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ProjectMember{ID: id, ProjectID: projectID, MemberID: memberID, Role: role, JoinedAt: now}, nil
}

// ListProjectMembers returns the membership rows of a project.
func (s *Store) ListProjectMembers(projectID int64) ([]ProjectMember, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, member_id, role, joined_at FROM project_members WHERE project_id = ? ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query project members: %w", err)
	}
	defer rows.Close()

	var members []ProjectMember
	for rows.Next() {
		var pm ProjectMember
		if err := rows.Scan(&pm.ID, &pm.ProjectID, &pm.MemberID, &pm.Role, &pm.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, pm)
	}
	return members, rows.Err()
}

// RemoveProjectMember unlinks a member from a project.
func (s *Store) RemoveProjectMember(projectID, memberID int64) error {
	if _, err := s.db.Exec(
		`DELETE FROM project_members WHERE project_id = ? AND member_id = ?`, projectID, memberID,
	); err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	return nil
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var ownerID, createdBy sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.Status, &p.Priority, &ownerID, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if ownerID.Valid {
		p.OwnerID = &ownerID.Int64
	}
	if createdBy.Valid {
		p.CreatedBy = &createdBy.Int64
	}
	return &p, nil
}

// nullableID maps 0 to NULL for optional member references.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
