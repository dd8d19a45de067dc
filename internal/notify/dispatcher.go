// Package notify delivers in-app notifications. The dispatcher is the
// store-backed NotificationSink consumed by the workflow engine; the
// scanner resolves @-mentions. Delivery is best effort: a failed insert
// is logged and skipped, never surfaced to the state change that
// triggered it.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/imkarma/crewdeck/internal/workflow"
)

// statusLabels are the human-readable status names used in messages.
var statusLabels = map[store.TaskStatus]string{
	store.StatusTodo:         "To Do",
	store.StatusTaskReview:   "Task Review",
	store.StatusInProgress:   "In Progress",
	store.StatusResultReview: "Result Review",
	store.StatusDone:         "Done",
	store.StatusCancelled:    "Cancelled",
}

func statusLabel(s store.TaskStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Dispatcher writes one notification row per recipient.
type Dispatcher struct {
	store *store.Store
	log   *logrus.Entry
}

// NewDispatcher creates a store-backed dispatcher.
func NewDispatcher(s *store.Store, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{store: s, log: log}
}

// Notify implements workflow.NotificationSink. The sender is skipped;
// everyone else in the recipient set gets a row. Individual insert
// failures are logged and delivery continues.
func (d *Dispatcher) Notify(ctx context.Context, n workflow.Notice) error {
	title, message := d.compose(n)
	link := fmt.Sprintf("/tasks/%d", n.TaskID)

	var errs []error
	for _, recipient := range n.Recipients {
		if recipient == n.Sender {
			continue
		}
		sender := n.Sender
		row := &store.Notification{
			RecipientID: recipient,
			SenderID:    &sender,
			Type:        string(n.Kind),
			ContentType: "task",
			ContentID:   n.TaskID,
			Title:       title,
			Message:     message,
			Link:        link,
		}
		if err := d.store.AddNotification(row); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"recipient": recipient,
				"kind":      n.Kind,
			}).Error("store notification")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) compose(n workflow.Notice) (title, message string) {
	switch n.Kind {
	case workflow.NoticeApprovalRequest:
		return "Status change needs your approval",
			fmt.Sprintf("Task %q is requested to move from %s to %s", n.TaskTitle, statusLabel(n.From), statusLabel(n.To))
	case workflow.NoticeApprovalRejected:
		return "Status change rejected",
			fmt.Sprintf("The status change for task %q was rejected", n.TaskTitle)
	case workflow.NoticeApprovalCancelled:
		return "Status change request withdrawn",
			fmt.Sprintf("The status change request for task %q was cancelled", n.TaskTitle)
	case workflow.NoticeReviewRequested:
		return fmt.Sprintf("%s requested", statusLabel(n.To)),
			fmt.Sprintf("Task %q is waiting for your review", n.TaskTitle)
	case workflow.NoticeStatusChanged:
		return "Task status updated",
			fmt.Sprintf("Task %q moved from %s to %s", n.TaskTitle, statusLabel(n.From), statusLabel(n.To))
	case workflow.NoticeMention:
		return "You were mentioned", excerpt(n.Context, 100)
	case workflow.NoticeAssignment:
		return "You were assigned a task", fmt.Sprintf("Task: %s", n.TaskTitle)
	case workflow.NoticeStakeholder:
		return "You were added as a task stakeholder",
			fmt.Sprintf("Task %q needs your attention", n.TaskTitle)
	default:
		return "Task update", n.TaskTitle
	}
}

// excerpt shortens s to max runes so a cut never lands inside a
// multi-byte character.
func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
