package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Action is one recorded mutation.
type Action struct {
	ID          string
	ProjectID   string
	ActorID     string
	TaskID      string
	Change      Change
	Description string
	Timestamp   time.Time
	Reduced     bool
}

// Kind returns the kind of the action's change.
func (a Action) Kind() Kind {
	if a.Change == nil {
		return ""
	}
	return a.Change.Kind()
}

type actionJSON struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	ActorID     string          `json:"actor_id"`
	Kind        Kind            `json:"kind"`
	TaskID      string          `json:"task_id,omitempty"`
	Change      json.RawMessage `json:"change"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Reduced     bool            `json:"reduced"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.Change == nil {
		return nil, fmt.Errorf("action %s has no change", a.ID)
	}
	change, err := EncodeChange(a.Change)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionJSON{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		ActorID:     a.ActorID,
		Kind:        a.Kind(),
		TaskID:      a.TaskID,
		Change:      change,
		Description: a.Description,
		Timestamp:   a.Timestamp,
		Reduced:     a.Reduced,
	})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	change, err := DecodeChange(raw.Change)
	if err != nil {
		return err
	}
	*a = Action{
		ID:          raw.ID,
		ProjectID:   raw.ProjectID,
		ActorID:     raw.ActorID,
		TaskID:      raw.TaskID,
		Change:      change,
		Description: raw.Description,
		Timestamp:   raw.Timestamp,
		Reduced:     raw.Reduced,
	}
	return nil
}

// Direction selects which side of a change is applied.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Executor replays an action through the components that own its state.
type Executor interface {
	Apply(ctx context.Context, a Action, dir Direction) error
}

// AuditTrail is the append-only, never trimmed record of actions.
type AuditTrail interface {
	AppendAction(ctx context.Context, a Action) error
}
