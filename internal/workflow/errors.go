package workflow

import (
	"errors"
	"fmt"

	"github.com/imkarma/crewdeck/internal/store"
)

var (
	// ErrApprovalInFlight means the task already has an open ballot; a new
	// transition cannot be requested until it resolves or is cancelled.
	ErrApprovalInFlight = errors.New("a status change is already awaiting stakeholder approval")

	// ErrNoSuchBallot means the voter has no pending vote on this task.
	ErrNoSuchBallot = errors.New("no pending approval found for this member")

	// ErrNoOpenBallot means the task has no open ballot to cancel.
	ErrNoOpenBallot = errors.New("no pending status change to cancel")

	// ErrNotRequester means someone other than the ballot's requester
	// tried to cancel it.
	ErrNotRequester = errors.New("only the requester may cancel this status change")

	// ErrNotAllowed means the actor is neither the task creator nor an
	// admin.
	ErrNotAllowed = errors.New("only the task creator or an admin may change task status")
)

// InvalidTransitionError reports an illegal status move, enumerating the
// allowed successor set for the API error body.
type InvalidTransitionError struct {
	From    store.TaskStatus
	To      store.TaskStatus
	Allowed []store.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %q to %q; allowed: %v", e.From, e.To, e.Allowed)
}
