package workflow

import "github.com/imkarma/crewdeck/internal/store"

// transitions is the fixed table of allowed successors. A task moves
// todo → task_review → in_progress → result_review → done; cancellation
// is reachable from every status, and a cancelled task can be
// reactivated back to todo.
var transitions = map[store.TaskStatus][]store.TaskStatus{
	store.StatusTodo:         {store.StatusTaskReview, store.StatusCancelled},
	store.StatusTaskReview:   {store.StatusTodo, store.StatusInProgress, store.StatusCancelled},
	store.StatusInProgress:   {store.StatusResultReview, store.StatusCancelled},
	store.StatusResultReview: {store.StatusInProgress, store.StatusDone, store.StatusCancelled},
	store.StatusDone:         {store.StatusCancelled},
	store.StatusCancelled:    {store.StatusTodo},
}

// AllowedSuccessors returns the statuses a task may move to from the
// given status.
func AllowedSuccessors(from store.TaskStatus) []store.TaskStatus {
	return transitions[from]
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to store.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// reviewTypeLeaving maps the status being left to the review gate it
// represents, if any.
func reviewTypeLeaving(from store.TaskStatus) store.ReviewType {
	switch from {
	case store.StatusTaskReview:
		return store.ReviewTypeTask
	case store.StatusResultReview:
		return store.ReviewTypeResult
	default:
		return ""
	}
}
