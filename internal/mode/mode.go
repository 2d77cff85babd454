// Package mode resolves the reduced-capability flag and the collection caps
// that go with it.
package mode

import (
	"context"
	"fmt"
)

// Provider answers whether the application runs in reduced-capability mode.
// The core treats the answer as read-only configuration.
type Provider interface {
	IsReducedCapabilityMode(ctx context.Context) (bool, error)
}

// Static is a Provider with a fixed answer.
type Static bool

func (s Static) IsReducedCapabilityMode(context.Context) (bool, error) {
	return bool(s), nil
}

// Limits holds every cap the core enforces. A zero cap means unlimited,
// except UndoStackSize which falls back to DefaultUndoStackSize.
type Limits struct {
	MaxTasks         int `yaml:"max_tasks" json:"max_tasks"`
	MaxDependencies  int `yaml:"max_dependencies" json:"max_dependencies"`
	MaxConstraints   int `yaml:"max_constraints" json:"max_constraints"`
	MaxUndos         int `yaml:"max_undos" json:"max_undos"`
	MaxPhaseChildren int `yaml:"max_phase_children" json:"max_phase_children"`
	MaxNestingDepth  int `yaml:"max_nesting_depth" json:"max_nesting_depth"`
	MaxHolidays      int `yaml:"max_holidays" json:"max_holidays"`
	UndoStackSize    int `yaml:"undo_stack_size" json:"undo_stack_size"`
}

const DefaultUndoStackSize = 50

// NormalLimits are the defaults outside reduced-capability mode.
func NormalLimits() Limits {
	return Limits{UndoStackSize: DefaultUndoStackSize}
}

// ReducedLimits are the defaults in reduced-capability mode.
func ReducedLimits() Limits {
	return Limits{
		MaxTasks:         3,
		MaxDependencies:  3,
		MaxConstraints:   3,
		MaxUndos:         3,
		MaxPhaseChildren: 3,
		MaxNestingDepth:  1,
		MaxHolidays:      2,
		UndoStackSize:    10,
	}
}

// StackSize returns the undo/redo capacity.
func (l Limits) StackSize() int {
	if l.UndoStackSize <= 0 {
		return DefaultUndoStackSize
	}
	return l.UndoStackSize
}

// Exceeded reports whether count has reached a non-zero cap.
func Exceeded(count, limit int) bool {
	return limit > 0 && count >= limit
}

// Mode is the resolved configuration for one logical request. Components
// receive it by value so the flag cannot change mid-operation.
type Mode struct {
	Reduced bool
	Limits  Limits
}

// Normal returns a Mode with normal limits.
func Normal() Mode { return Mode{Limits: NormalLimits()} }

// Reduced returns a Mode with reduced limits.
func Reduced() Mode { return Mode{Reduced: true, Limits: ReducedLimits()} }

// Resolve queries p once and pairs the answer with the matching limits.
// A nil provider means normal mode.
func Resolve(ctx context.Context, p Provider, normal, reduced Limits) (Mode, error) {
	if p == nil {
		return Mode{Limits: normal}, nil
	}
	on, err := p.IsReducedCapabilityMode(ctx)
	if err != nil {
		return Mode{}, fmt.Errorf("failed to resolve capability mode: %w", err)
	}
	if on {
		return Mode{Reduced: true, Limits: reduced}, nil
	}
	return Mode{Limits: normal}, nil
}

func (m Mode) String() string {
	if m.Reduced {
		return "reduced"
	}
	return "normal"
}
