package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
)

type applied struct {
	id  string
	dir Direction
}

type fakeExecutor struct {
	calls []applied
	fail  error
}

func (f *fakeExecutor) Apply(_ context.Context, a Action, dir Direction) error {
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, applied{id: a.ID, dir: dir})
	return nil
}

type memoryAudit struct {
	actions []Action
	fail    bool
}

func (m *memoryAudit) AppendAction(_ context.Context, a Action) error {
	if m.fail {
		return errors.New("audit offline")
	}
	m.actions = append(m.actions, a)
	return nil
}

var scope = Scope{ProjectID: "p1", ActorID: "alice"}

func action(n int) Action {
	return Action{
		ID:        fmt.Sprintf("act-%d", n),
		ProjectID: scope.ProjectID,
		ActorID:   scope.ActorID,
		Change:    StructureToggled{TaskID: "tk-1", Collapsed: n%2 == 0},
	}
}

func setup(t *testing.T) (*Log, *fakeExecutor, *memoryAudit) {
	t.Helper()
	exec := &fakeExecutor{}
	audit := &memoryAudit{}
	return New(exec, audit, logging.Discard()), exec, audit
}

func TestRecord_ClearsRedoAndAudits(t *testing.T) {
	l, _, audit := setup(t)
	ctx := context.Background()
	m := mode.Normal()

	for i := 1; i <= 2; i++ {
		_, err := l.Record(ctx, m, action(i))
		require.NoError(t, err)
	}
	_, err := l.Undo(ctx, m, scope)
	require.NoError(t, err)
	assert.Equal(t, Counts{Undo: 1, Redo: 1}, l.Counts(scope))

	_, err = l.Record(ctx, m, action(3))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Counts(scope).Undo)
	assert.Zero(t, l.Counts(scope).Redo, "a new action invalidates redo")
	assert.Len(t, audit.actions, 3)
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	l, _, _ := setup(t)
	a := action(1)
	a.ID = ""

	got, err := l.Record(context.Background(), mode.Reduced(), a)
	require.NoError(t, err)
	assert.Contains(t, got.ID, "act-")
	assert.False(t, got.Timestamp.IsZero())
	assert.True(t, got.Reduced)

	_, err = l.Record(context.Background(), mode.Normal(), Action{ProjectID: "p1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecord_EvictsOldest(t *testing.T) {
	l, _, audit := setup(t)
	ctx := context.Background()
	m := mode.Normal()
	m.Limits.UndoStackSize = 3

	for i := 1; i <= 5; i++ {
		_, err := l.Record(ctx, m, action(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Counts(scope).Undo)
	top, ok := l.Peek(scope)
	require.True(t, ok)
	assert.Equal(t, "act-5", top.ID)
	assert.Len(t, audit.actions, 5, "audit trail is never trimmed")

	for _, want := range []string{"act-5", "act-4", "act-3"} {
		a, err := l.Undo(ctx, m, scope)
		require.NoError(t, err)
		assert.Equal(t, want, a.ID)
	}
	_, err := l.Undo(ctx, m, scope)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecord_AuditFailureKeepsStacks(t *testing.T) {
	l, _, audit := setup(t)
	audit.fail = true

	_, err := l.Record(context.Background(), mode.Normal(), action(1))
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.True(t, l.CanUndo(mode.Normal(), scope))
}

func TestUndoRedo_Normal(t *testing.T) {
	l, exec, _ := setup(t)
	ctx := context.Background()
	m := mode.Normal()

	_, err := l.Record(ctx, m, action(1))
	require.NoError(t, err)
	assert.True(t, l.CanUndo(m, scope))
	assert.False(t, l.CanRedo(m, scope))

	_, err = l.Undo(ctx, m, scope)
	require.NoError(t, err)
	assert.True(t, l.CanRedo(m, scope))

	_, err = l.Redo(ctx, m, scope)
	require.NoError(t, err)
	assert.Equal(t, []applied{{"act-1", Reverse}, {"act-1", Forward}}, exec.calls)
	assert.Equal(t, 1, l.Counts(scope).Undo)
	assert.Zero(t, l.Counts(scope).Redo)

	_, err = l.Redo(ctx, m, scope)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUndo_ReducedCap(t *testing.T) {
	l, exec, _ := setup(t)
	ctx := context.Background()
	m := mode.Reduced()

	for i := 1; i <= 6; i++ {
		_, err := l.Record(ctx, m, action(i))
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := l.Undo(ctx, m, scope)
		require.NoError(t, err)
	}
	before := l.Counts(scope)

	_, err := l.Undo(ctx, m, scope)
	assert.ErrorIs(t, err, apperr.ErrCapacity)
	assert.Equal(t, before, l.Counts(scope), "state unchanged")
	assert.Equal(t, 3, before.Undo, "stack still has actions")
	assert.Len(t, exec.calls, 3)
	assert.False(t, l.CanUndo(m, scope))
	assert.Zero(t, before.Redo, "reduced mode keeps no redo history")
}

func TestUndo_NormalUndosDoNotCountTowardReducedCap(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		_, err := l.Record(ctx, mode.Normal(), action(i))
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := l.Undo(ctx, mode.Normal(), scope)
		require.NoError(t, err)
	}
	assert.Zero(t, l.Counts(scope).Undone)

	assert.True(t, l.CanUndo(mode.Reduced(), scope))
	_, err := l.Undo(ctx, mode.Reduced(), scope)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Counts(scope).Undone)
}

func TestRedo_ReducedUnavailable(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()

	_, err := l.Record(ctx, mode.Normal(), action(1))
	require.NoError(t, err)
	_, err = l.Undo(ctx, mode.Normal(), scope)
	require.NoError(t, err)
	require.Equal(t, 1, l.Counts(scope).Redo)

	_, err = l.Redo(ctx, mode.Reduced(), scope)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.False(t, l.CanRedo(mode.Reduced(), scope))
	assert.Equal(t, 1, l.Counts(scope).Redo)
}

func TestUndo_FailurePushesBack(t *testing.T) {
	l, exec, _ := setup(t)
	ctx := context.Background()
	m := mode.Normal()

	_, err := l.Record(ctx, m, action(1))
	require.NoError(t, err)
	exec.fail = apperr.Conflict("test", "replay refused")

	_, err = l.Undo(ctx, m, scope)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, Counts{Undo: 1}, l.Counts(scope))

	exec.fail = nil
	_, err = l.Undo(ctx, m, scope)
	require.NoError(t, err)

	exec.fail = errors.New("boom")
	_, err = l.Redo(ctx, m, scope)
	assert.Error(t, err)
	assert.Equal(t, Counts{Redo: 1}, l.Counts(scope))
}

func TestScopesAreIndependent(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()

	_, err := l.Record(ctx, mode.Normal(), action(1))
	require.NoError(t, err)

	other := Scope{ProjectID: "p1", ActorID: "bob"}
	assert.False(t, l.CanUndo(mode.Normal(), other))
	_, err = l.Undo(ctx, mode.Normal(), other)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
