package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AddNotification inserts a notification row.
func (s *Store) AddNotification(n *Notification) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO notifications (recipient_id, sender_id, notification_type, content_type, content_id, title, message, link, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.RecipientID, n.SenderID, n.Type, n.ContentType, n.ContentID, n.Title, n.Message, n.Link, now,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	id, _ := res.LastInsertId()
	n.ID = id
	n.CreatedAt = now
	return nil
}

// ListNotifications returns a member's notifications, newest first.
func (s *Store) ListNotifications(recipientID int64, unreadOnly bool) ([]Notification, error) {
	query := `SELECT id, recipient_id, sender_id, notification_type, content_type, content_id, title, message, link, is_read, read_at, created_at
	          FROM notifications WHERE recipient_id = ?`
	args := []any{recipientID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var senderID sql.NullInt64
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &senderID, &n.Type, &n.ContentType, &n.ContentID, &n.Title, &n.Message, &n.Link, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if senderID.Valid {
			n.SenderID = &senderID.Int64
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one notification as read. Returns
// ErrNotFound when the notification does not exist or belongs to
// someone else.
func (s *Store) MarkNotificationRead(id, recipientID int64) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND recipient_id = ?`,
		now, id, recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadNotificationCount returns the number of unread notifications.
func (s *Store) UnreadNotificationCount(recipientID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, recipientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
