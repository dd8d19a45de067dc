package notify

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/imkarma/crewdeck/internal/workflow"
)

func TestDispatcher_SkipsSender(t *testing.T) {
	s := testStore(t)
	alice, _ := s.CreateMember("alice", "alice@example.com", "h", "")
	bob, _ := s.CreateMember("bob", "bob@example.com", "h", "")

	d := NewDispatcher(s, testLogger())
	err := d.Notify(context.Background(), workflow.Notice{
		Kind:       workflow.NoticeStatusChanged,
		Recipients: []int64{alice.ID, bob.ID},
		Sender:     alice.ID,
		TaskID:     1,
		TaskTitle:  "Ship it",
		From:       store.StatusTodo,
		To:         store.StatusTaskReview,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if n, _ := s.UnreadNotificationCount(alice.ID); n != 0 {
		t.Errorf("sender got %d notifications, want 0", n)
	}
	if n, _ := s.UnreadNotificationCount(bob.ID); n != 1 {
		t.Errorf("recipient got %d notifications, want 1", n)
	}

	rows, _ := s.ListNotifications(bob.ID, false)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Type != string(workflow.NoticeStatusChanged) {
		t.Errorf("type = %q", got.Type)
	}
	if got.Link != "/tasks/1" {
		t.Errorf("link = %q", got.Link)
	}
	if !strings.Contains(got.Message, "To Do") || !strings.Contains(got.Message, "Task Review") {
		t.Errorf("message should name both statuses, got %q", got.Message)
	}
	if got.SenderID == nil || *got.SenderID != alice.ID {
		t.Errorf("sender_id = %v", got.SenderID)
	}
}

func TestDispatcher_ApprovalRequestWording(t *testing.T) {
	s := testStore(t)
	bob, _ := s.CreateMember("bob", "bob@example.com", "h", "")

	d := NewDispatcher(s, testLogger())
	err := d.Notify(context.Background(), workflow.Notice{
		Kind:       workflow.NoticeApprovalRequest,
		Recipients: []int64{bob.ID},
		Sender:     999,
		TaskID:     7,
		TaskTitle:  "Big move",
		From:       store.StatusTodo,
		To:         store.StatusTaskReview,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	rows, _ := s.ListNotifications(bob.ID, false)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !strings.Contains(rows[0].Title, "approval") {
		t.Errorf("title = %q", rows[0].Title)
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("short", 100); got != "short" {
		t.Errorf("excerpt = %q", got)
	}
	long := strings.Repeat("x", 150)
	got := excerpt(long, 100)
	if utf8.RuneCountInString(got) != 103 || !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt = %q, want 100 runes plus ellipsis", got)
	}

	// The cut counts runes, never splitting a multi-byte character.
	wide := strings.Repeat("作", 150)
	got = excerpt(wide, 100)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("作", 100) + "..."; got != want {
		t.Errorf("excerpt = %q, want %q", got, want)
	}
}
