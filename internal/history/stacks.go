package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/baiirun/programme/internal/kv"
)

// Snapshot is the persisted form of one scope's stacks.
type Snapshot struct {
	ActorID string   `json:"actor_id"`
	Undo    []Action `json:"undo"`
	Redo    []Action `json:"redo,omitempty"`
	Undone  int      `json:"undone"`
}

// StackStore keeps stacks across processes. Without one, stacks live as
// long as the Log.
type StackStore interface {
	LoadStacks(ctx context.Context, scope Scope) (Snapshot, bool, error)
	SaveStacks(ctx context.Context, scope Scope, snap Snapshot) error
}

// KVStacks stores every actor's snapshot for a project under
// "history/<project>".
type KVStacks struct {
	snapshots *kv.Collection[Snapshot]
}

func NewKVStacks(store kv.Store) *KVStacks {
	return &KVStacks{snapshots: kv.NewCollection[Snapshot](store, "history")}
}

func (k *KVStacks) LoadStacks(ctx context.Context, scope Scope) (Snapshot, bool, error) {
	list, err := k.snapshots.Load(ctx, scope.ProjectID)
	if err != nil {
		return Snapshot{}, false, err
	}
	i := slices.IndexFunc(list, func(s Snapshot) bool { return s.ActorID == scope.ActorID })
	if i < 0 {
		return Snapshot{}, false, nil
	}
	return list[i], true, nil
}

func (k *KVStacks) SaveStacks(ctx context.Context, scope Scope, snap Snapshot) error {
	list, err := k.snapshots.Load(ctx, scope.ProjectID)
	if err != nil {
		return err
	}
	snap.ActorID = scope.ActorID
	list = slices.DeleteFunc(list, func(s Snapshot) bool { return s.ActorID == scope.ActorID })
	if len(snap.Undo) > 0 || len(snap.Redo) > 0 || snap.Undone > 0 {
		list = append(list, snap)
	}
	if err := k.snapshots.Save(ctx, scope.ProjectID, list); err != nil {
		return fmt.Errorf("failed to save stacks: %w", err)
	}
	return nil
}

// SetStackStore makes the log load and save its stacks through s.
func (l *Log) SetStackStore(s StackStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stackStore = s
}

// Load reads the persisted stacks of scope unless they are already in
// memory. It is a no-op without a StackStore.
func (l *Log) Load(ctx context.Context, scope Scope) error {
	l.mu.Lock()
	_, loaded := l.scopes[scope]
	store := l.stackStore
	l.mu.Unlock()
	if loaded || store == nil {
		return nil
	}

	snap, ok, err := store.LoadStacks(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, loaded := l.scopes[scope]; loaded {
		return nil
	}
	st := &stacks{}
	if ok {
		st.undo = snap.Undo
		st.redo = snap.Redo
		st.undone = snap.Undone
	}
	l.scopes[scope] = st
	return nil
}

// persist saves scope's stacks. Failures are logged; the in-memory stacks
// stay authoritative for this process.
func (l *Log) persist(ctx context.Context, scope Scope) {
	l.mu.Lock()
	store := l.stackStore
	st, ok := l.scopes[scope]
	var snap Snapshot
	if ok {
		snap = Snapshot{Undo: slices.Clone(st.undo), Redo: slices.Clone(st.redo), Undone: st.undone}
	}
	l.mu.Unlock()
	if store == nil || !ok {
		return
	}
	if err := store.SaveStacks(ctx, scope, snap); err != nil {
		l.logger.Warn("save stacks failed project=%s actor=%s error=%v", scope.ProjectID, scope.ActorID, err)
	}
}
