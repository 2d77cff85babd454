package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/model"
)

var _ kv.Store = (*DB)(nil)

func TestKV_SetGetRemove(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := db.Get(ctx, "tasks/tower")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Set(ctx, "tasks/tower", []byte(`[1]`)))
	require.NoError(t, db.Set(ctx, "tasks/tower", []byte(`[1,2]`)))

	v, ok, err := db.Get(ctx, "tasks/tower")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, string(v))

	require.NoError(t, db.Remove(ctx, "tasks/tower"))
	_, ok, err = db.Get(ctx, "tasks/tower")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing twice is fine
	require.NoError(t, db.Remove(ctx, "tasks/tower"))
}

func TestKV_SetRegistersProject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, "tasks/tower", []byte(`[]`)))
	require.NoError(t, db.Set(ctx, "constraints/bridge", []byte(`[]`)))
	require.NoError(t, db.Set(ctx, "settings", []byte(`{}`)))

	projects, err := db.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bridge", "tower"}, projects)
}

func TestKV_Keys(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, "tasks/b", []byte(`[]`)))
	require.NoError(t, db.Set(ctx, "tasks/a", []byte(`[]`)))
	require.NoError(t, db.Set(ctx, "dependencies/a", []byte(`[]`)))

	keys, err := db.Keys(ctx, "tasks/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/a", "tasks/b"}, keys)
}

func TestKV_BacksCollection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := kv.NewCollection[model.Task](db, "tasks")
	task := model.Task{ID: "tk-1", ProjectID: "tower", Name: "Foundations"}
	require.NoError(t, c.Save(ctx, "tower", []model.Task{task}))

	// A fresh collection reads what the first one wrote
	fresh := kv.NewCollection[model.Task](db, "tasks")
	loaded, err := fresh.Load(ctx, "tower")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Foundations", loaded[0].Name)
}
