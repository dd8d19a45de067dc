package workflow

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/store"
)

// fakeSink records every notice it receives.
type fakeSink struct {
	notices []Notice
	fail    error
}

func (f *fakeSink) Notify(ctx context.Context, n Notice) error {
	f.notices = append(f.notices, n)
	return f.fail
}

func (f *fakeSink) last() *Notice {
	if len(f.notices) == 0 {
		return nil
	}
	return &f.notices[len(f.notices)-1]
}

func (f *fakeSink) byKind(kind NoticeKind) []Notice {
	var out []Notice
	for _, n := range f.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// fakeScanner resolves every text to a fixed member set.
type fakeScanner struct {
	members []int64
}

func (f *fakeScanner) MentionedMembers(text string) []int64 { return f.members }

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testEnv wires a temp store, an engine with a recording sink, a
// creator, two stakeholder members and one task watched by both.
type testEnv struct {
	store       *store.Store
	engine      *Engine
	sink        *fakeSink
	scanner     *fakeScanner
	creator     *store.Member
	reviewerA   *store.Member
	reviewerB   *store.Member
	task        *store.Task
	creatorActs Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	creator, err := s.CreateMember("alice", "alice@example.com", "h", "member")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	reviewerA, _ := s.CreateMember("bob", "bob@example.com", "h", "member")
	reviewerB, _ := s.CreateMember("carol", "carol@example.com", "h", "member")

	project, err := s.CreateProject("Apollo", "AP", "", "medium", creator.ID, creator.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	task, err := s.CreateTask(store.TaskDraft{
		ProjectID:      project.ID,
		Title:          "Ship the thing",
		CreatedBy:      creator.ID,
		StakeholderIDs: []int64{reviewerA.ID, reviewerB.ID},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	sink := &fakeSink{}
	scanner := &fakeScanner{}
	return &testEnv{
		store:       s,
		engine:      New(s, sink, scanner, testLogger()),
		sink:        sink,
		scanner:     scanner,
		creator:     creator,
		reviewerA:   reviewerA,
		reviewerB:   reviewerB,
		task:        task,
		creatorActs: Actor{MemberID: creator.ID},
	}
}

func (env *testEnv) mustStatus(t *testing.T, want store.TaskStatus) {
	t.Helper()
	task, err := env.store.GetTask(env.task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != want {
		t.Fatalf("task status = %s, want %s", task.Status, want)
	}
}

func (env *testEnv) request(t *testing.T, actor Actor, to store.TaskStatus) (*Result, error) {
	t.Helper()
	return env.engine.RequestTransition(context.Background(), actor, TransitionRequest{
		TaskID:    env.task.ID,
		NewStatus: to,
	})
}

func TestRequestTransition_NoStakeholdersApplies(t *testing.T) {
	env := newTestEnv(t)
	s := env.store

	m, _ := s.CreateMember("dave", "dave@example.com", "h", "member")
	p, _ := s.CreateProject("Solo", "SO", "", "medium", m.ID, m.ID)
	task, _ := s.CreateTask(store.TaskDraft{ProjectID: p.ID, Title: "unwatched", CreatedBy: m.ID})

	result, err := env.engine.RequestTransition(context.Background(), Actor{MemberID: m.ID}, TransitionRequest{
		TaskID:    task.ID,
		NewStatus: store.StatusTaskReview,
		Comment:   "ready for review",
	})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeApplied)
	}

	got, _ := s.GetTask(task.ID)
	if got.Status != store.StatusTaskReview {
		t.Errorf("status = %s, want task_review", got.Status)
	}

	history, _ := s.ListStatusHistory(task.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
	if history[0].ToStatus != store.StatusTaskReview {
		t.Errorf("latest record to_status = %s", history[0].ToStatus)
	}
	if history[0].Comment != "ready for review" {
		t.Errorf("comment = %q", history[0].Comment)
	}
}

func TestRequestTransition_InvalidMove(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.request(t, env.creatorActs, store.StatusDone)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != store.StatusTodo || invalid.To != store.StatusDone {
		t.Errorf("error carries from=%s to=%s", invalid.From, invalid.To)
	}
	if len(invalid.Allowed) == 0 {
		t.Error("expected allowed successors in error")
	}
	env.mustStatus(t, store.StatusTodo)
}

func TestRequestTransition_NotCreatorNotAdmin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.request(t, Actor{MemberID: env.reviewerA.ID}, store.StatusTaskReview)
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
}

func TestRequestTransition_CreatorOpensBallot(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.request(t, env.creatorActs, store.StatusTaskReview)
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomePending {
		t.Fatalf("outcome = %s, want %s", result.Outcome, OutcomePending)
	}

	// The task does not move until the ballot resolves.
	env.mustStatus(t, store.StatusTodo)

	pending, err := env.store.PendingChange(env.task.ID)
	if err != nil {
		t.Fatalf("PendingChange: %v", err)
	}
	if pending == nil {
		t.Fatal("expected an open ballot")
	}
	if pending.ToStatus != store.StatusTaskReview {
		t.Errorf("ballot to_status = %s", pending.ToStatus)
	}

	votes, _ := env.store.ListApprovals(pending.ID)
	if len(votes) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(votes))
	}
	for _, v := range votes {
		if v.Status != store.ApprovalPending {
			t.Errorf("vote %d status = %s, want pending", v.ID, v.Status)
		}
	}

	// Both stakeholders were asked, the creator was not.
	requests := env.sink.byKind(NoticeApprovalRequest)
	if len(requests) != 1 {
		t.Fatalf("expected 1 approval request notice, got %d", len(requests))
	}
	if len(requests[0].Recipients) != 2 {
		t.Errorf("recipients = %v", requests[0].Recipients)
	}
}

func TestRequestTransition_AdminBypassesApproval(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.store.CreateMember("root", "root@example.com", "h", "admin")

	result, err := env.request(t, Actor{MemberID: admin.ID, IsAdmin: true}, store.StatusTaskReview)
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeApplied)
	}
	env.mustStatus(t, store.StatusTaskReview)
}

func TestRequestTransition_CancelSkipsApproval(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.request(t, env.creatorActs, store.StatusCancelled)
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("cancel outcome = %s, want %s", result.Outcome, OutcomeApplied)
	}
	env.mustStatus(t, store.StatusCancelled)
}

func TestRequestTransition_ActorOnlyStakeholder(t *testing.T) {
	env := newTestEnv(t)
	s := env.store

	// Creator watches their own task; nobody else does.
	task, _ := s.CreateTask(store.TaskDraft{
		ProjectID:      env.task.ProjectID,
		Title:          "self-watched",
		CreatedBy:      env.creator.ID,
		StakeholderIDs: []int64{env.creator.ID},
	})

	result, err := env.engine.RequestTransition(context.Background(), env.creatorActs, TransitionRequest{
		TaskID:    task.ID,
		NewStatus: store.StatusTaskReview,
	})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeApplied)
	}
}

func TestRequestTransition_BallotBlocksNewRequest(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}
	_, err := env.request(t, env.creatorActs, store.StatusTaskReview)
	if !errors.Is(err, ErrApprovalInFlight) {
		t.Fatalf("expected ErrApprovalInFlight, got %v", err)
	}
}

func TestCastVote_UnanimousApprovalAppliesTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}

	first, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID, VoteApprove, "fine by me")
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if first.Outcome != OutcomeAwaitingVotes {
		t.Errorf("first outcome = %s, want %s", first.Outcome, OutcomeAwaitingVotes)
	}
	env.mustStatus(t, store.StatusTodo)

	second, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerB.ID}, env.task.ID, VoteApprove, "")
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if second.Outcome != OutcomeResolved {
		t.Errorf("second outcome = %s, want %s", second.Outcome, OutcomeResolved)
	}
	env.mustStatus(t, store.StatusTaskReview)

	// Ballot is closed as passed; votes are kept as audit trail.
	if pending, _ := env.store.PendingChange(env.task.ID); pending != nil {
		t.Error("expected no open ballot after resolution")
	}
	history, _ := env.store.ListStatusHistory(env.task.ID)
	if history[0].ReviewResult != store.ReviewPassed {
		t.Errorf("review result = %s, want passed", history[0].ReviewResult)
	}
	votes, _ := env.store.ListApprovals(history[0].ID)
	if len(votes) != 2 {
		t.Errorf("expected votes retained, got %d", len(votes))
	}

	// The final notice goes out as the original requester.
	last := env.sink.last()
	if last == nil || last.Kind != NoticeStatusChanged {
		t.Fatalf("expected status change notice, got %+v", last)
	}
	if last.Sender != env.creator.ID {
		t.Errorf("notice sender = %d, want requester %d", last.Sender, env.creator.ID)
	}
}

func TestCastVote_RejectionClosesBallot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}

	result, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID, VoteReject, "not yet")
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeRejected)
	}
	env.mustStatus(t, store.StatusTodo)

	if pending, _ := env.store.PendingChange(env.task.ID); pending != nil {
		t.Error("expected ballot closed after rejection")
	}
	history, _ := env.store.ListStatusHistory(env.task.ID)
	if history[0].ReviewResult != store.ReviewRejected {
		t.Errorf("review result = %s, want rejected", history[0].ReviewResult)
	}

	// The other stakeholder can no longer vote.
	_, err = env.engine.CastVote(ctx, Actor{MemberID: env.reviewerB.ID}, env.task.ID, VoteApprove, "")
	if !errors.Is(err, ErrNoSuchBallot) {
		t.Errorf("expected ErrNoSuchBallot after close, got %v", err)
	}

	// Only the requester is told about the veto.
	rejections := env.sink.byKind(NoticeApprovalRejected)
	if len(rejections) != 1 {
		t.Fatalf("expected 1 rejection notice, got %d", len(rejections))
	}
	if len(rejections[0].Recipients) != 1 || rejections[0].Recipients[0] != env.creator.ID {
		t.Errorf("rejection recipients = %v", rejections[0].Recipients)
	}

	// A fresh request can open a new ballot.
	result, err = env.request(t, env.creatorActs, store.StatusTaskReview)
	if err != nil {
		t.Fatalf("new request after rejection: %v", err)
	}
	if result.Outcome != OutcomePending {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomePending)
	}

	// The new ballot is fully votable, including by the stakeholder who
	// never voted on the rejected one and still carries a stale pending
	// row there.
	first, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerB.ID}, env.task.ID, VoteApprove, "")
	if err != nil {
		t.Fatalf("reviewer B vote on reopened ballot: %v", err)
	}
	if first.Outcome != OutcomeAwaitingVotes {
		t.Errorf("first outcome = %s, want %s", first.Outcome, OutcomeAwaitingVotes)
	}
	second, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID, VoteApprove, "")
	if err != nil {
		t.Fatalf("reviewer A vote on reopened ballot: %v", err)
	}
	if second.Outcome != OutcomeResolved {
		t.Errorf("second outcome = %s, want %s", second.Outcome, OutcomeResolved)
	}
	env.mustStatus(t, store.StatusTaskReview)
}

func TestCastVote_NonStakeholder(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}

	outsider, _ := env.store.CreateMember("mallory", "mallory@example.com", "h", "member")
	_, err := env.engine.CastVote(context.Background(), Actor{MemberID: outsider.ID}, env.task.ID, VoteApprove, "")
	if !errors.Is(err, ErrNoSuchBallot) {
		t.Errorf("expected ErrNoSuchBallot, got %v", err)
	}
}

func TestCastVote_VoteIsSpent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}
	if _, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID, VoteApprove, ""); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	_, err := env.engine.CastVote(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID, VoteApprove, "")
	if !errors.Is(err, ErrNoSuchBallot) {
		t.Errorf("expected ErrNoSuchBallot on second vote, got %v", err)
	}
}

func TestCancelBallot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.CancelBallot(ctx, env.creatorActs, env.task.ID); !errors.Is(err, ErrNoOpenBallot) {
		t.Errorf("expected ErrNoOpenBallot, got %v", err)
	}

	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("open ballot: %v", err)
	}

	if _, err := env.engine.CancelBallot(ctx, Actor{MemberID: env.reviewerA.ID}, env.task.ID); !errors.Is(err, ErrNotRequester) {
		t.Errorf("expected ErrNotRequester, got %v", err)
	}

	result, err := env.engine.CancelBallot(ctx, env.creatorActs, env.task.ID)
	if err != nil {
		t.Fatalf("CancelBallot: %v", err)
	}
	if result.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeCancelled)
	}
	env.mustStatus(t, store.StatusTodo)

	// Votes are removed; the ledger records the withdrawal.
	history, _ := env.store.ListStatusHistory(env.task.ID)
	if history[0].ReviewResult != store.ReviewCancelled {
		t.Errorf("review result = %s, want cancelled", history[0].ReviewResult)
	}
	votes, _ := env.store.ListApprovals(history[0].ID)
	if len(votes) != 0 {
		t.Errorf("expected votes deleted, got %d", len(votes))
	}

	// Enrolled voters hear about the withdrawal.
	cancels := env.sink.byKind(NoticeApprovalCancelled)
	if len(cancels) != 1 {
		t.Fatalf("expected 1 cancellation notice, got %d", len(cancels))
	}
	if len(cancels[0].Recipients) != 2 {
		t.Errorf("cancellation recipients = %v", cancels[0].Recipients)
	}

	// The lane is free again.
	if _, err := env.request(t, env.creatorActs, store.StatusTaskReview); err != nil {
		t.Fatalf("request after cancel: %v", err)
	}
}

func TestCompletedAtLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.store

	m, _ := s.CreateMember("dave", "dave@example.com", "h", "member")
	p, _ := s.CreateProject("Solo", "SO", "", "medium", m.ID, m.ID)
	task, _ := s.CreateTask(store.TaskDraft{ProjectID: p.ID, Title: "walk the line", CreatedBy: m.ID})
	actor := Actor{MemberID: m.ID}

	walk := func(to store.TaskStatus) {
		t.Helper()
		if _, err := env.engine.RequestTransition(ctx, actor, TransitionRequest{TaskID: task.ID, NewStatus: to}); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	walk(store.StatusTaskReview)
	walk(store.StatusInProgress)
	walk(store.StatusResultReview)
	walk(store.StatusDone)

	got, _ := s.GetTask(task.ID)
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at set on done")
	}

	// done → cancelled clears the completion stamp.
	walk(store.StatusCancelled)
	got, _ = s.GetTask(task.ID)
	if got.CompletedAt != nil {
		t.Error("expected completed_at cleared after leaving done")
	}

	// Reactivation brings the task back to todo.
	walk(store.StatusTodo)
	got, _ = s.GetTask(task.ID)
	if got.Status != store.StatusTodo {
		t.Errorf("status = %s, want todo", got.Status)
	}
}

func TestRequestTransition_MentionsInFeedback(t *testing.T) {
	env := newTestEnv(t)
	s := env.store

	m, _ := s.CreateMember("dave", "dave@example.com", "h", "member")
	p, _ := s.CreateProject("Solo", "SO", "", "medium", m.ID, m.ID)
	task, _ := s.CreateTask(store.TaskDraft{ProjectID: p.ID, Title: "unwatched", CreatedBy: m.ID})

	env.scanner.members = []int64{env.reviewerA.ID}

	_, err := env.engine.RequestTransition(context.Background(), Actor{MemberID: m.ID}, TransitionRequest{
		TaskID:         task.ID,
		NewStatus:      store.StatusTaskReview,
		ReviewFeedback: "@bob please take a look",
	})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}

	mentions := env.sink.byKind(NoticeMention)
	if len(mentions) != 1 {
		t.Fatalf("expected 1 mention notice, got %d", len(mentions))
	}
	if mentions[0].Recipients[0] != env.reviewerA.ID {
		t.Errorf("mention recipient = %v", mentions[0].Recipients)
	}
}

func TestSinkFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	env.sink.fail = errors.New("smtp down")

	result, err := env.request(t, env.creatorActs, store.StatusCancelled)
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("outcome = %s", result.Outcome)
	}
	env.mustStatus(t, store.StatusCancelled)
}
