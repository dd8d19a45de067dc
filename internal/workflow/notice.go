package workflow

import (
	"context"

	"github.com/imkarma/crewdeck/internal/store"
)

// NoticeKind classifies a fan-out event emitted by the engine.
type NoticeKind string

const (
	NoticeApprovalRequest   NoticeKind = "approval_request"
	NoticeApprovalRejected  NoticeKind = "approval_rejected"
	NoticeApprovalCancelled NoticeKind = "approval_cancelled"
	NoticeReviewRequested   NoticeKind = "review"
	NoticeStatusChanged     NoticeKind = "status_change"
	NoticeMention           NoticeKind = "mention"

	// Emitted by the API layer, not the engine.
	NoticeAssignment  NoticeKind = "assignment"
	NoticeStakeholder NoticeKind = "stakeholder"
)

// Notice is one fan-out event. Recipients may include the sender; the
// dispatcher skips the sender itself so callers don't have to.
type Notice struct {
	Kind       NoticeKind
	Recipients []int64
	Sender     int64
	TaskID     int64
	TaskTitle  string
	From       store.TaskStatus
	To         store.TaskStatus
	Context    string // mention context or comment excerpt
}

// NotificationSink delivers notices to members. Delivery is fire-and-
// forget: the engine calls it after the transaction commits and logs
// (but never propagates) failures, so an unreachable channel cannot
// roll back or block a state change.
type NotificationSink interface {
	Notify(ctx context.Context, n Notice) error
}

// MentionScanner resolves @name tokens in free text to member IDs.
type MentionScanner interface {
	MentionedMembers(text string) []int64
}
