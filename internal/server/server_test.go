package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/config"
	"github.com/imkarma/crewdeck/internal/store"
)

func testServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{
		Env:    "local",
		Server: config.Server{Addr: ":0", DBPath: "unused"},
		Auth:   config.Auth{JWTSecret: "test-secret"},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	return New(cfg, s, logrus.NewEntry(log)).Router()
}

// doJSON performs a request with an optional bearer token and JSON body,
// decoding the response into out when non-nil.
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code
}

// registerAndLogin creates an account and returns its token and member ID.
func registerAndLogin(t *testing.T, r *gin.Engine, name, email, role string) (string, int64) {
	t.Helper()

	code := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": "password123", "role": role,
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, code)
	}

	var resp struct {
		Token  string       `json:"token"`
		Member store.Member `json:"member"`
	}
	code = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": email, "password": "password123",
	}, &resp)
	if code != http.StatusOK {
		t.Fatalf("login %s: status %d", email, code)
	}
	return resp.Token, resp.Member.ID
}

func TestAuthRequired(t *testing.T) {
	r := testServer(t)

	if code := doJSON(t, r, http.MethodGet, "/api/v1/tasks", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", code)
	}
	if code := doJSON(t, r, http.MethodGet, "/api/v1/tasks", "bogus", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r := testServer(t)
	registerAndLogin(t, r, "alice", "alice@example.com", "")

	code := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "alice2", "email": "alice@example.com", "password": "password123",
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("duplicate email: status %d, want 409", code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r := testServer(t)
	registerAndLogin(t, r, "alice", "alice@example.com", "")

	code := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "nope-nope-nope",
	}, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	r := testServer(t)

	creatorTok, creatorID := registerAndLogin(t, r, "alice", "alice@example.com", "")
	reviewerTok, reviewerID := registerAndLogin(t, r, "bob", "bob@example.com", "")

	var project store.Project
	code := doJSON(t, r, http.MethodPost, "/api/v1/projects", creatorTok, gin.H{
		"name": "Apollo",
	}, &project)
	if code != http.StatusCreated {
		t.Fatalf("create project: status %d", code)
	}

	var task store.Task
	code = doJSON(t, r, http.MethodPost, "/api/v1/tasks", creatorTok, gin.H{
		"project_id":      project.ID,
		"title":           "Ship the thing",
		"assignee_id":     creatorID,
		"stakeholder_ids": []int64{reviewerID},
	}, &task)
	if code != http.StatusCreated {
		t.Fatalf("create task: status %d", code)
	}
	if task.Status != store.StatusTodo {
		t.Fatalf("new task status = %s", task.Status)
	}

	// Creator with a stakeholder: the move opens a ballot.
	var moved struct {
		Outcome string     `json:"outcome"`
		Task    store.Task `json:"task"`
	}
	code = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/status", task.ID), creatorTok, gin.H{
		"status": "task_review",
	}, &moved)
	if code != http.StatusOK {
		t.Fatalf("change status: status %d", code)
	}
	if moved.Outcome != "pending" {
		t.Fatalf("outcome = %q, want pending", moved.Outcome)
	}

	// A second request while the ballot is open conflicts.
	code = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/status", task.ID), creatorTok, gin.H{
		"status": "task_review",
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("second request: status %d, want 409", code)
	}

	// The detail view shows the open ballot.
	var detail struct {
		PendingChange *store.StatusChange `json:"pending_change"`
		PendingVotes  []store.Approval    `json:"pending_votes"`
	}
	code = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", task.ID), creatorTok, nil, &detail)
	if code != http.StatusOK {
		t.Fatalf("get task: status %d", code)
	}
	if detail.PendingChange == nil || len(detail.PendingVotes) != 1 {
		t.Fatalf("detail ballot = %+v votes = %d", detail.PendingChange, len(detail.PendingVotes))
	}

	// The stakeholder approves; the transition applies.
	var voted struct {
		Outcome string     `json:"outcome"`
		Task    store.Task `json:"task"`
	}
	code = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/approve", task.ID), reviewerTok, gin.H{
		"action": "approve",
	}, &voted)
	if code != http.StatusOK {
		t.Fatalf("approve: status %d", code)
	}
	if voted.Outcome != "resolved" {
		t.Errorf("vote outcome = %q, want resolved", voted.Outcome)
	}
	if voted.Task.Status != store.StatusTaskReview {
		t.Errorf("task status = %s, want task_review", voted.Task.Status)
	}

	// The requester was notified about the approval ask earlier; check
	// the reviewer saw it too.
	var unread struct {
		Unread int `json:"unread"`
	}
	code = doJSON(t, r, http.MethodGet, "/api/v1/notifications/unread-count", reviewerTok, nil, &unread)
	if code != http.StatusOK {
		t.Fatalf("unread count: status %d", code)
	}
	if unread.Unread == 0 {
		t.Error("reviewer should have notifications")
	}
}

func TestStatusChangeForbiddenForOutsider(t *testing.T) {
	r := testServer(t)

	creatorTok, _ := registerAndLogin(t, r, "alice", "alice@example.com", "")
	outsiderTok, _ := registerAndLogin(t, r, "eve", "eve@example.com", "")

	var project store.Project
	doJSON(t, r, http.MethodPost, "/api/v1/projects", creatorTok, gin.H{"name": "P"}, &project)

	var task store.Task
	doJSON(t, r, http.MethodPost, "/api/v1/tasks", creatorTok, gin.H{
		"project_id": project.ID, "title": "T",
	}, &task)

	code := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/status", task.ID), outsiderTok, gin.H{
		"status": "task_review",
	}, nil)
	if code != http.StatusForbidden {
		t.Errorf("outsider status change: status %d, want 403", code)
	}
}

func TestInvalidTransitionReturnsAllowed(t *testing.T) {
	r := testServer(t)
	tok, _ := registerAndLogin(t, r, "alice", "alice@example.com", "")

	var project store.Project
	doJSON(t, r, http.MethodPost, "/api/v1/projects", tok, gin.H{"name": "P"}, &project)
	var task store.Task
	doJSON(t, r, http.MethodPost, "/api/v1/tasks", tok, gin.H{
		"project_id": project.ID, "title": "T",
	}, &task)

	var resp struct {
		Error   string   `json:"error"`
		Allowed []string `json:"allowed"`
	}
	code := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/status", task.ID), tok, gin.H{
		"status": "done",
	}, &resp)
	if code != http.StatusBadRequest {
		t.Fatalf("invalid transition: status %d, want 400", code)
	}
	if len(resp.Allowed) == 0 {
		t.Error("expected allowed successor list in error body")
	}
}

func TestStakeholderManagementPermissions(t *testing.T) {
	r := testServer(t)

	creatorTok, _ := registerAndLogin(t, r, "alice", "alice@example.com", "")
	otherTok, otherID := registerAndLogin(t, r, "bob", "bob@example.com", "")

	var project store.Project
	doJSON(t, r, http.MethodPost, "/api/v1/projects", creatorTok, gin.H{"name": "P"}, &project)
	var task store.Task
	doJSON(t, r, http.MethodPost, "/api/v1/tasks", creatorTok, gin.H{
		"project_id": project.ID, "title": "T",
	}, &task)

	// A non-creator cannot add stakeholders.
	code := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), otherTok, gin.H{
		"member_id": otherID,
	}, nil)
	if code != http.StatusForbidden {
		t.Errorf("outsider add stakeholder: status %d, want 403", code)
	}

	var sh store.Stakeholder
	code = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), creatorTok, gin.H{
		"member_id": otherID, "role": "reviewer",
	}, &sh)
	if code != http.StatusCreated {
		t.Fatalf("add stakeholder: status %d", code)
	}

	// Adding the same member again conflicts.
	code = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), creatorTok, gin.H{
		"member_id": otherID,
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("duplicate stakeholder: status %d, want 409", code)
	}

	// The new stakeholder was told.
	var unread struct {
		Unread int `json:"unread"`
	}
	doJSON(t, r, http.MethodGet, "/api/v1/notifications/unread-count", otherTok, nil, &unread)
	if unread.Unread == 0 {
		t.Error("stakeholder should have a notification")
	}

	code = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d/stakeholders/%d", task.ID, sh.ID), creatorTok, nil, nil)
	if code != http.StatusOK {
		t.Errorf("remove stakeholder: status %d", code)
	}
}

func TestReplaceStakeholders(t *testing.T) {
	r := testServer(t)

	creatorTok, _ := registerAndLogin(t, r, "alice", "alice@example.com", "")
	bobTok, bobID := registerAndLogin(t, r, "bob", "bob@example.com", "")
	carolTok, carolID := registerAndLogin(t, r, "carol", "carol@example.com", "")

	var project store.Project
	doJSON(t, r, http.MethodPost, "/api/v1/projects", creatorTok, gin.H{"name": "P"}, &project)
	var task store.Task
	doJSON(t, r, http.MethodPost, "/api/v1/tasks", creatorTok, gin.H{
		"project_id": project.ID, "title": "T", "stakeholder_ids": []int64{bobID},
	}, &task)

	// Only the creator or an admin may replace the set.
	code := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), bobTok, gin.H{
		"member_ids": []int64{bobID},
	}, nil)
	if code != http.StatusForbidden {
		t.Errorf("non-creator replace: status %d, want 403", code)
	}

	// Unknown members are rejected wholesale.
	code = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), creatorTok, gin.H{
		"member_ids": []int64{carolID, 9999},
	}, nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown member replace: status %d, want 404", code)
	}

	var stakeholders []store.Stakeholder
	code = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), creatorTok, gin.H{
		"member_ids": []int64{carolID},
	}, &stakeholders)
	if code != http.StatusOK {
		t.Fatalf("replace stakeholders: status %d", code)
	}
	if len(stakeholders) != 1 || stakeholders[0].MemberID != carolID {
		t.Fatalf("stakeholders after replace = %+v, want just carol", stakeholders)
	}

	// Carol is newly added and gets told; bob was already on the task
	// before the swap and picks up nothing new from it.
	var unread struct {
		Unread int `json:"unread"`
	}
	doJSON(t, r, http.MethodGet, "/api/v1/notifications/unread-count", carolTok, nil, &unread)
	if unread.Unread == 0 {
		t.Error("new stakeholder should have a notification")
	}

	// An empty set clears the task's stakeholders.
	stakeholders = nil
	code = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d/stakeholders", task.ID), creatorTok, gin.H{
		"member_ids": []int64{},
	}, &stakeholders)
	if code != http.StatusOK {
		t.Fatalf("clear stakeholders: status %d", code)
	}
	if len(stakeholders) != 0 {
		t.Errorf("stakeholders after clear = %+v, want none", stakeholders)
	}
}
