// Package history records mutations for undo/redo. Each (project, actor)
// pair has a bounded undo stack and a bounded redo stack; every recorded
// action is also appended to an audit trail that is never trimmed.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
)

// Scope identifies one pair of stacks.
type Scope struct {
	ProjectID string
	ActorID   string
}

type stacks struct {
	undo   []Action
	redo   []Action
	undone int
}

// Log holds the stacks of every scope. The mutex only guards the map and
// the slices; callers still issue one mutation per project at a time.
type Log struct {
	exec   Executor
	audit  AuditTrail
	logger *logging.Logger
	now    func() time.Time

	mu         sync.Mutex
	scopes     map[Scope]*stacks
	stackStore StackStore
}

// New creates a log. audit may be nil.
func New(exec Executor, audit AuditTrail, logger *logging.Logger) *Log {
	return &Log{
		exec:   exec,
		audit:  audit,
		logger: logger.With("history"),
		now:    time.Now,
		scopes: make(map[Scope]*stacks),
	}
}

func (l *Log) stacksFor(s Scope) *stacks {
	st, ok := l.scopes[s]
	if !ok {
		st = &stacks{}
		l.scopes[s] = st
	}
	return st
}

// push appends a to stack, dropping the oldest entries beyond size.
func push(stack []Action, a Action, size int) []Action {
	stack = append(stack, a)
	if over := len(stack) - size; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

// Record pushes a onto the undo stack, clears the redo stack and appends a
// to the audit trail. The stacks are updated even when the audit append
// fails; that error is returned for the caller to report.
func (l *Log) Record(ctx context.Context, m mode.Mode, a Action) (Action, error) {
	if a.Change == nil {
		return Action{}, apperr.Validation("history.record", "action has no change")
	}
	if a.ID == "" {
		a.ID = model.GenerateID(model.PrefixAction)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now()
	}
	a.Reduced = m.Reduced

	scope := Scope{ProjectID: a.ProjectID, ActorID: a.ActorID}
	l.mu.Lock()
	st := l.stacksFor(scope)
	st.undo = push(st.undo, a, m.Limits.StackSize())
	st.redo = nil
	l.mu.Unlock()
	l.persist(ctx, scope)

	l.logger.Debug("recorded action=%s kind=%s project=%s", a.ID, a.Kind(), a.ProjectID)
	if l.audit != nil {
		if err := l.audit.AppendAction(ctx, a); err != nil {
			l.logger.Warn("audit append failed action=%s error=%v", a.ID, err)
			return a, apperr.Persistence("history.audit", err)
		}
	}
	return a, nil
}

// Undo reverses the most recent action of scope. In reduced mode it stops
// after MaxUndos reduced undos, and undone actions are not kept for redo.
// Undos made in normal mode do not count toward the cap.
func (l *Log) Undo(ctx context.Context, m mode.Mode, scope Scope) (Action, error) {
	const op = "history.undo"
	l.mu.Lock()
	st := l.stacksFor(scope)
	if m.Reduced && mode.Exceeded(st.undone, m.Limits.MaxUndos) {
		l.mu.Unlock()
		l.logger.Info("undo cap reached project=%s actor=%s", scope.ProjectID, scope.ActorID)
		return Action{}, apperr.Capacity(op, "reduced mode allows at most %d undos", m.Limits.MaxUndos)
	}
	if len(st.undo) == 0 {
		l.mu.Unlock()
		return Action{}, apperr.NotFound(op, "nothing to undo")
	}
	a := st.undo[len(st.undo)-1]
	st.undo = st.undo[:len(st.undo)-1]
	l.mu.Unlock()

	err := l.exec.Apply(ctx, a, Reverse)

	l.mu.Lock()
	if err != nil {
		st.undo = append(st.undo, a)
		l.mu.Unlock()
		l.logger.Warn("undo failed action=%s kind=%s error=%v", a.ID, a.Kind(), err)
		return Action{}, err
	}
	if m.Reduced {
		st.undone++
	} else {
		st.redo = push(st.redo, a, m.Limits.StackSize())
	}
	l.mu.Unlock()
	l.persist(ctx, scope)
	l.logger.Debug("undid action=%s kind=%s", a.ID, a.Kind())
	return a, nil
}

// Redo re-applies the most recently undone action. It is not available in
// reduced mode.
func (l *Log) Redo(ctx context.Context, m mode.Mode, scope Scope) (Action, error) {
	const op = "history.redo"
	if m.Reduced {
		return Action{}, apperr.Unavailable(op, "redo is not available in reduced mode")
	}
	l.mu.Lock()
	st := l.stacksFor(scope)
	if len(st.redo) == 0 {
		l.mu.Unlock()
		return Action{}, apperr.NotFound(op, "nothing to redo")
	}
	a := st.redo[len(st.redo)-1]
	st.redo = st.redo[:len(st.redo)-1]
	l.mu.Unlock()

	err := l.exec.Apply(ctx, a, Forward)

	l.mu.Lock()
	if err != nil {
		st.redo = append(st.redo, a)
		l.mu.Unlock()
		l.logger.Warn("redo failed action=%s kind=%s error=%v", a.ID, a.Kind(), err)
		return Action{}, err
	}
	st.undo = push(st.undo, a, m.Limits.StackSize())
	l.mu.Unlock()
	l.persist(ctx, scope)
	l.logger.Debug("redid action=%s kind=%s", a.ID, a.Kind())
	return a, nil
}

// CanUndo reports whether Undo would try to apply an action.
func (l *Log) CanUndo(m mode.Mode, scope Scope) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	if !ok || len(st.undo) == 0 {
		return false
	}
	return !(m.Reduced && mode.Exceeded(st.undone, m.Limits.MaxUndos))
}

// CanRedo reports whether Redo would try to apply an action.
func (l *Log) CanRedo(m mode.Mode, scope Scope) bool {
	if m.Reduced {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	return ok && len(st.redo) > 0
}

// Counts is a snapshot of one scope's stacks.
type Counts struct {
	Undo   int `json:"undo"`
	Redo   int `json:"redo"`
	Undone int `json:"undone"`
}

func (l *Log) Counts(scope Scope) Counts {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	if !ok {
		return Counts{}
	}
	return Counts{Undo: len(st.undo), Redo: len(st.redo), Undone: st.undone}
}

// Peek returns the action Undo would reverse next.
func (l *Log) Peek(scope Scope) (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	if !ok || len(st.undo) == 0 {
		return Action{}, false
	}
	return st.undo[len(st.undo)-1], true
}
