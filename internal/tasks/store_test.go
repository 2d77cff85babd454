package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
)

const project = "p1"

// flakyStore fails every write once fail is set.
type flakyStore struct {
	*kv.Memory
	fail bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *flakyStore) Remove(ctx context.Context, key string) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Memory.Remove(ctx, key)
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	return New(kv.NewMemory(), logging.Discard())
}

func d(s string) model.Date { return model.MustParseDate(s) }

func createTask(t *testing.T, s *Store, name, start, end string, parent *model.Task) model.Task {
	t.Helper()
	in := NewTask{ProjectID: project, Name: name, StartDate: d(start), EndDate: d(end)}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	task, err := s.Create(context.Background(), mode.Normal(), in)
	if err != nil {
		t.Fatalf("failed to create task %q: %v", name, err)
	}
	return task
}

func TestCreate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, mode.Normal(), NewTask{
		ProjectID: project,
		Name:      "  Pour slab ",
		StartDate: d("2024-06-03"),
		EndDate:   d("2024-06-07"),
		Tags:      []string{"concrete", "", "concrete", "site"},
	})
	require.NoError(t, err)

	assert.Contains(t, task.ID, "tk-")
	assert.Equal(t, "Pour slab", task.Name)
	assert.Equal(t, model.TaskKindTask, task.Kind)
	assert.Equal(t, model.DefaultStatus, task.Status)
	assert.Equal(t, []string{"concrete", "site"}, task.Tags)
	assert.False(t, task.Reduced)

	got, err := s.Get(ctx, project, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Name, got.Name)
}

func TestCreate_Validation(t *testing.T) {
	s := setupStore(t)
	missing := "tk-missing"

	tests := []struct {
		name string
		in   NewTask
		kind apperr.Kind
	}{
		{"empty name", NewTask{Name: " ", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")}, apperr.KindValidation},
		{"start after end", NewTask{Name: "x", StartDate: d("2024-01-05"), EndDate: d("2024-01-02")}, apperr.KindValidation},
		{"bad kind", NewTask{Name: "x", Kind: "epic", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")}, apperr.KindValidation},
		{"milestone span", NewTask{Name: "x", Kind: model.TaskKindMilestone, StartDate: d("2024-01-01"), EndDate: d("2024-01-02")}, apperr.KindValidation},
		{"missing dates", NewTask{Name: "x"}, apperr.KindValidation},
		{"progress out of range", NewTask{Name: "x", StartDate: d("2024-01-01"), EndDate: d("2024-01-02"), Progress: 120}, apperr.KindValidation},
		{"unknown parent", NewTask{Name: "x", StartDate: d("2024-01-01"), EndDate: d("2024-01-02"), ParentID: &missing}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.ProjectID = project
			_, err := s.Create(context.Background(), mode.Normal(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	list, err := s.List(context.Background(), project)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_MilestoneDefaultsEnd(t *testing.T) {
	s := setupStore(t)

	task, err := s.Create(context.Background(), mode.Normal(), NewTask{
		ProjectID: project, Name: "Handover", Kind: model.TaskKindMilestone, StartDate: d("2024-09-30"),
	})
	require.NoError(t, err)
	assert.True(t, task.StartDate.Equal(task.EndDate))
}

func TestCreate_ReducedTaskCap(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	m := mode.Reduced()

	for i := 0; i < 3; i++ {
		task, err := s.Create(ctx, m, NewTask{ProjectID: project, Name: "t", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")})
		require.NoError(t, err)
		assert.True(t, task.Reduced)
	}
	_, err := s.Create(ctx, m, NewTask{ProjectID: project, Name: "t", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")})
	assert.ErrorIs(t, err, apperr.ErrCapacity)

	// Other projects have their own cap.
	_, err = s.Create(ctx, m, NewTask{ProjectID: "p2", Name: "t", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")})
	assert.NoError(t, err)

	// Normal mode is not capped.
	_, err = s.Create(ctx, mode.Normal(), NewTask{ProjectID: project, Name: "t", StartDate: d("2024-01-01"), EndDate: d("2024-01-02")})
	assert.NoError(t, err)
}

func TestUpdate_FieldChanges(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	task := createTask(t, s, "Frame", "2024-06-03", "2024-06-07", nil)

	name := "Frame walls"
	end := d("2024-06-10")
	tags := []string{"b", "a"}
	updated, previous, changes, err := s.Update(ctx, project, task.ID, Patch{Name: &name, EndDate: &end, Tags: &tags})
	require.NoError(t, err)

	assert.Equal(t, "Frame", previous.Name)
	assert.Equal(t, "Frame walls", updated.Name)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)

	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	assert.Equal(t, []string{"name", "end_date", "tags"}, fields)
	assert.Equal(t, "Frame", changes[0].Old)
	assert.Equal(t, "Frame walls", changes[0].New)
}

func TestUpdate_NoChanges(t *testing.T) {
	s := setupStore(t)
	task := createTask(t, s, "Frame", "2024-06-03", "2024-06-07", nil)

	same := "Frame"
	updated, _, changes, err := s.Update(context.Background(), project, task.ID, Patch{Name: &same})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, task.UpdatedAt, updated.UpdatedAt)
}

func TestUpdate_Errors(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	parent := createTask(t, s, "Parent", "2024-06-03", "2024-06-07", nil)
	child := createTask(t, s, "Child", "2024-06-03", "2024-06-05", &parent)

	_, _, _, err := s.Update(ctx, project, "tk-nope", Patch{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	early := d("2024-06-01")
	_, _, _, err = s.Update(ctx, project, child.ID, Patch{EndDate: &early})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// A task cannot move under its own descendant.
	_, _, _, err = s.Update(ctx, project, parent.ID, Patch{ParentID: &child.ID})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, _, err = s.Update(ctx, project, parent.ID, Patch{ParentID: &parent.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := s.Get(ctx, project, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
}

func TestUpdate_ClearParent(t *testing.T) {
	s := setupStore(t)
	parent := createTask(t, s, "Parent", "2024-06-03", "2024-06-07", nil)
	child := createTask(t, s, "Child", "2024-06-03", "2024-06-05", &parent)

	updated, _, changes, err := s.Update(context.Background(), project, child.ID, Patch{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldChange{Field: "parent_id", Old: parent.ID, New: ""}, changes[0])
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	parent := createTask(t, s, "Parent", "2024-06-03", "2024-06-07", nil)
	child := createTask(t, s, "Child", "2024-06-03", "2024-06-05", &parent)

	_, err := s.Delete(ctx, project, parent.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	removed, err := s.Delete(ctx, project, child.ID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, removed.ID)

	_, err = s.Delete(ctx, project, child.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Delete(ctx, project, parent.ID)
	assert.NoError(t, err)
}

func TestPersistenceFailure_NoPartialEffect(t *testing.T) {
	store := &flakyStore{Memory: kv.NewMemory()}
	s := New(store, logging.Discard())
	ctx := context.Background()
	task := createTask(t, s, "Frame", "2024-06-03", "2024-06-07", nil)

	store.fail = true
	name := "Renamed"
	_, _, _, err := s.Update(ctx, project, task.ID, Patch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = s.Create(ctx, mode.Normal(), NewTask{ProjectID: project, Name: "x", StartDate: d("2024-01-01"), EndDate: d("2024-01-01")})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	list, err := s.List(ctx, project)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Frame", list[0].Name)
}

func TestPutAndRemove(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	a := createTask(t, s, "A", "2024-06-03", "2024-06-07", nil)
	b := createTask(t, s, "B", "2024-06-03", "2024-06-07", nil)

	require.NoError(t, s.Remove(ctx, project, a.ID))
	require.NoError(t, s.Put(ctx, a))

	list, err := s.List(ctx, project)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a, list[1])

	assert.ErrorIs(t, s.Remove(ctx, project, "tk-nope"), apperr.ErrNotFound)
}
