package store

import "time"

// TaskStatus represents the current state of a task in its lifecycle.
// Flow: todo → task_review → in_progress → result_review → done,
// with cancel/reactivate side paths.
type TaskStatus string

const (
	StatusTodo         TaskStatus = "todo"
	StatusTaskReview   TaskStatus = "task_review"
	StatusInProgress   TaskStatus = "in_progress"
	StatusResultReview TaskStatus = "result_review"
	StatusDone         TaskStatus = "done"
	StatusCancelled    TaskStatus = "cancelled"
)

// ReviewResult is the review outcome carried by a ledger record. Empty
// means a plain transition with no review attached. "pending" marks an
// open ballot; at most one record per task may be pending.
type ReviewResult string

const (
	ReviewNone      ReviewResult = ""
	ReviewPending   ReviewResult = "pending"
	ReviewPassed    ReviewResult = "passed"
	ReviewRejected  ReviewResult = "rejected"
	ReviewCancelled ReviewResult = "cancelled"
)

// ReviewType marks which review gate a transition was leaving.
type ReviewType string

const (
	ReviewTypeTask   ReviewType = "task_review"
	ReviewTypeResult ReviewType = "result_review"
)

// ApprovalStatus is the state of a single stakeholder vote.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Member is a team member account.
type Member struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Role         string    `json:"role"`   // admin, manager, member
	Status       string    `json:"status"` // active, inactive
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the member has the admin system role.
func (m *Member) IsAdmin() bool { return m.Role == "admin" }

// Project groups tasks and members.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`   // active, completed, suspended, archived
	Priority    string    `json:"priority"` // low, medium, high
	OwnerID     *int64    `json:"owner_id,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMember links a member to a project with a project-level role.
type ProjectMember struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	MemberID  int64     `json:"member_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Task is a unit of work inside a project. CompletedAt is set only while
// the task is done and cleared again when it leaves done.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	ParentID    *int64     `json:"parent_task_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    string     `json:"priority"` // low, medium, high, urgent
	TaskType    string     `json:"task_type,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   *int64     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stakeholder gives a member voting rights over a task's status
// transitions. The role is informational; every role votes with the same
// weight. No duplicate (task, member) pairs.
type Stakeholder struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	MemberID  int64     `json:"member_id"`
	Role      string    `json:"role"` // stakeholder, reviewer, collaborator
	CreatedAt time.Time `json:"created_at"`
}

// StatusChange is one ledger entry in a task's append-only status history.
// FromStatus is nil only on the record written at task creation.
type StatusChange struct {
	ID             int64        `json:"id"`
	TaskID         int64        `json:"task_id"`
	FromStatus     *TaskStatus  `json:"from_status"`
	ToStatus       TaskStatus   `json:"to_status"`
	ChangedBy      *int64       `json:"changed_by,omitempty"`
	Comment        string       `json:"comment,omitempty"`
	ReviewType     ReviewType   `json:"review_type,omitempty"`
	ReviewResult   ReviewResult `json:"review_result,omitempty"`
	ReviewFeedback string       `json:"review_feedback,omitempty"`
	ChangedAt      time.Time    `json:"changed_at"`
}

// Approval is one stakeholder's vote on an open status change. Votes are
// created in bulk when a ballot opens, deleted when the ballot is
// cancelled, and kept as an audit trail on normal resolution.
type Approval struct {
	ID             int64          `json:"id"`
	StatusChangeID int64          `json:"status_change_id"`
	StakeholderID  int64          `json:"stakeholder_id"`
	Status         ApprovalStatus `json:"approval_status"`
	Comment        string         `json:"comment,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// Notification is an in-app message for a member.
type Notification struct {
	ID          int64      `json:"id"`
	RecipientID int64      `json:"recipient_id"`
	SenderID    *int64     `json:"sender_id,omitempty"`
	Type        string     `json:"notification_type"` // mention, assignment, status_change, review, approval_request, approval_rejected, approval_cancelled, stakeholder
	ContentType string     `json:"content_type"`      // task, project
	ContentID   int64      `json:"content_id"`
	Title       string     `json:"title"`
	Message     string     `json:"message,omitempty"`
	Link        string     `json:"link,omitempty"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
