package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const memberColumns = `id, name, email, password_hash, avatar_url, role, status, created_at, updated_at`

// CreateMember inserts a new member account.
func (s *Store) CreateMember(name, email, passwordHash, role string) (*Member, error) {
	now := time.Now().UTC()
	if role == "" {
		role = "member"
	}
	res, err := s.db.Exec(
		`INSERT INTO members (name, email, password_hash, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'active', ?, ?)`,
		name, email, passwordHash, role, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Member{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetMember returns a member by ID.
func (s *Store) GetMember(id int64) (*Member, error) {
	row := s.db.QueryRow(`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

// GetMemberByEmail returns a member by email address.
func (s *Store) GetMemberByEmail(email string) (*Member, error) {
	row := s.db.QueryRow(`SELECT `+memberColumns+` FROM members WHERE email = ?`, email)
	return scanMember(row)
}

// ListMembers returns all member accounts.
func (s *Store) ListMembers() ([]Member, error) {
	rows, err := s.db.Query(`SELECT ` + memberColumns + ` FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.AvatarURL, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// FindActiveMembersByName returns active members whose name is in names.
// Used by the mention scanner to resolve @name tokens.
func (s *Store) FindActiveMembersByName(names []string) ([]Member, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, len(names))
	for _, n := range names {
		args = append(args, n)
	}
	rows, err := s.db.Query(
		`SELECT `+memberColumns+` FROM members WHERE status = 'active' AND name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query members by name: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.AvatarURL, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row *sql.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.AvatarURL, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return &m, nil
}
