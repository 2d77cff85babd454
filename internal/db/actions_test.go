package db

import (
	"context"
	"testing"
	"time"

	"github.com/baiirun/programme/internal/history"
	"github.com/baiirun/programme/internal/model"
)

var _ history.AuditTrail = (*DB)(nil)

func toggled(id, project, taskID string, collapsed bool, at time.Time) history.Action {
	return history.Action{
		ID:          id,
		ProjectID:   project,
		ActorID:     "alice",
		TaskID:      taskID,
		Change:      history.StructureToggled{TaskID: taskID, Collapsed: collapsed},
		Description: "toggle " + taskID,
		Timestamp:   at,
	}
}

func TestAppendAndListActions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := db.AppendAction(ctx, toggled("act-1", "tower", "tk-1", true, base)); err != nil {
		t.Fatalf("AppendAction failed: %v", err)
	}
	if err := db.AppendAction(ctx, toggled("act-2", "tower", "tk-1", false, base.Add(time.Minute))); err != nil {
		t.Fatalf("AppendAction failed: %v", err)
	}
	if err := db.AppendAction(ctx, toggled("act-3", "bridge", "tk-9", true, base)); err != nil {
		t.Fatalf("AppendAction failed: %v", err)
	}

	actions, err := db.ListActions(ctx, "tower", 0)
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	// Newest first
	if actions[0].ID != "act-2" || actions[1].ID != "act-1" {
		t.Errorf("unexpected order: %s, %s", actions[0].ID, actions[1].ID)
	}
	change, ok := actions[0].Change.(history.StructureToggled)
	if !ok {
		t.Fatalf("expected StructureToggled, got %T", actions[0].Change)
	}
	if change.Collapsed {
		t.Error("expected collapsed=false on newest action")
	}
	if !actions[1].Timestamp.Equal(base) {
		t.Errorf("timestamp mismatch: %v", actions[1].Timestamp)
	}

	limited, err := db.ListActions(ctx, "tower", 1)
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "act-2" {
		t.Errorf("expected only act-2, got %v", limited)
	}
}

func TestAppendAction_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := toggled("act-1", "tower", "tk-1", true, time.Now())

	if err := db.AppendAction(ctx, a); err != nil {
		t.Fatalf("AppendAction failed: %v", err)
	}
	if err := db.AppendAction(ctx, a); err == nil {
		t.Error("expected error for duplicate action id")
	}
}

func TestActionsForTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	created := history.Action{
		ID:        "act-1",
		ProjectID: "tower",
		ActorID:   "alice",
		TaskID:    "tk-1",
		Change: history.TaskCreated{Task: model.Task{
			ID: "tk-1", ProjectID: "tower", Name: "Foundations", Kind: model.TaskKindTask,
			StartDate: model.MustParseDate("2024-06-03"), EndDate: model.MustParseDate("2024-06-07"),
		}},
		Timestamp: now,
	}
	for _, a := range []history.Action{
		created,
		toggled("act-2", "tower", "tk-2", true, now),
		toggled("act-3", "tower", "tk-1", true, now),
	} {
		if err := db.AppendAction(ctx, a); err != nil {
			t.Fatalf("AppendAction failed: %v", err)
		}
	}

	actions, err := db.ActionsForTask(ctx, "tk-1")
	if err != nil {
		t.Fatalf("ActionsForTask failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind() != history.KindTaskCreate {
		t.Errorf("expected task.create first, got %s", actions[0].Kind())
	}
}

func TestInit_MigratesProjectsFromActions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.AppendAction(ctx, toggled("act-1", "harbour", "tk-1", true, time.Now())); err != nil {
		t.Fatalf("AppendAction failed: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0] != "harbour" {
		t.Errorf("expected [harbour], got %v", projects)
	}
}

func TestEnsureProject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.EnsureProject(ctx, ""); err == nil {
		t.Error("expected error for empty project name")
	}
	for i := 0; i < 2; i++ {
		if err := db.EnsureProject(ctx, "tower"); err != nil {
			t.Fatalf("EnsureProject failed: %v", err)
		}
	}
	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("expected 1 project, got %v", projects)
	}
}
