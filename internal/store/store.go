package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store provides access to the crewdeck database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	// _txlock=immediate makes every write transaction take the write lock
	// up front, so concurrent mutations on the same task serialize instead
	// of failing at commit time. Pragmas ride the DSN so each pooled
	// connection gets them, not just the one that ran the Exec.
	dsn := "file:" + dbPath + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		name           TEXT NOT NULL,
		email          TEXT NOT NULL UNIQUE,
		password_hash  TEXT NOT NULL,
		avatar_url     TEXT DEFAULT '',
		role           TEXT NOT NULL DEFAULT 'member',
		status         TEXT NOT NULL DEFAULT 'active',
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		code         TEXT DEFAULT '',
		description  TEXT DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'active',
		priority     TEXT NOT NULL DEFAULT 'medium',
		owner_id     INTEGER REFERENCES members(id) ON DELETE SET NULL,
		created_by   INTEGER REFERENCES members(id) ON DELETE SET NULL,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_members (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		member_id   INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		role        TEXT NOT NULL DEFAULT 'developer',
		joined_at   DATETIME NOT NULL,
		UNIQUE(project_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id      INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_task_id  INTEGER REFERENCES tasks(id) ON DELETE CASCADE,
		title           TEXT NOT NULL,
		description     TEXT DEFAULT '',
		assignee_id     INTEGER REFERENCES members(id) ON DELETE SET NULL,
		status          TEXT NOT NULL DEFAULT 'todo',
		priority        TEXT NOT NULL DEFAULT 'medium',
		task_type       TEXT DEFAULT '',
		due_date        DATETIME,
		created_by      INTEGER REFERENCES members(id) ON DELETE SET NULL,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL,
		completed_at    DATETIME
	);

	CREATE TABLE IF NOT EXISTS task_stakeholders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id     INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		member_id   INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		role        TEXT NOT NULL DEFAULT 'stakeholder',
		created_at  DATETIME NOT NULL,
		UNIQUE(task_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS task_status_history (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id          INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		from_status      TEXT,
		to_status        TEXT NOT NULL,
		changed_by       INTEGER REFERENCES members(id) ON DELETE SET NULL,
		comment          TEXT DEFAULT '',
		review_type      TEXT DEFAULT '',
		review_result    TEXT DEFAULT '',
		review_feedback  TEXT DEFAULT '',
		changed_at       DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_status_approvals (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		status_change_id  INTEGER NOT NULL REFERENCES task_status_history(id) ON DELETE CASCADE,
		stakeholder_id    INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		approval_status   TEXT NOT NULL DEFAULT 'pending',
		comment           TEXT DEFAULT '',
		created_at        DATETIME NOT NULL,
		resolved_at       DATETIME
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id       INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		sender_id          INTEGER REFERENCES members(id) ON DELETE SET NULL,
		notification_type  TEXT NOT NULL DEFAULT 'mention',
		content_type       TEXT NOT NULL,
		content_id         INTEGER NOT NULL,
		title              TEXT NOT NULL,
		message            TEXT DEFAULT '',
		link               TEXT DEFAULT '',
		is_read            INTEGER NOT NULL DEFAULT 0,
		read_at            DATETIME,
		created_at         DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_history_task ON task_status_history(task_id);
	CREATE INDEX IF NOT EXISTS idx_history_pending ON task_status_history(task_id, review_result);
	CREATE INDEX IF NOT EXISTS idx_approvals_change ON task_status_approvals(status_change_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Begin starts a write transaction. The returned Tx holds the database
// write lock for its whole lifetime, which is what serializes concurrent
// workflow mutations on the same task.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}
