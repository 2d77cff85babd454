package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// countingStore counts Get calls and can be told to fail writes.
type countingStore struct {
	*Memory
	gets      atomic.Int32
	failWrite bool
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	return s.Memory.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failWrite {
		return errors.New("write refused")
	}
	return s.Memory.Set(ctx, key, value)
}

func TestMemory_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.Equal(t, []string{"k"}, m.Keys())

	require.NoError(t, m.Remove(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCollection_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	c := NewCollection[record](store, "records")

	require.NoError(t, c.Save(ctx, "p1", []record{{ID: "1", Name: "one"}}))

	// a second collection over the same store sees the persisted value
	fresh := NewCollection[record](store, "records")
	got, err := fresh.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: "1", Name: "one"}}, got)

	other, err := fresh.Load(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCollection_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[record](NewMemory(), "records")
	require.NoError(t, c.Save(ctx, "p", []record{{ID: "1", Name: "one"}}))

	got, _ := c.Load(ctx, "p")
	got[0].Name = "mutated"

	again, _ := c.Load(ctx, "p")
	assert.Equal(t, "one", again[0].Name)
}

func TestCollection_FailedSaveKeepsCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Memory: NewMemory()}
	c := NewCollection[record](store, "records")
	require.NoError(t, c.Save(ctx, "p", []record{{ID: "1"}}))

	store.failWrite = true
	err := c.Save(ctx, "p", []record{{ID: "1"}, {ID: "2"}})
	require.Error(t, err)

	got, err := c.Load(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCollection_ConcurrentFirstLoad(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Memory: NewMemory()}
	c := NewCollection[record](store, "records")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Load(ctx, "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// singleflight plus the cache keep reads well below one per caller
	assert.LessOrEqual(t, store.gets.Load(), int32(20))
	_, _ = c.Load(ctx, "p")
	before := store.gets.Load()
	_, _ = c.Load(ctx, "p")
	assert.Equal(t, before, store.gets.Load(), "cached load must not hit the store")
}
