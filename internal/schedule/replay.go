package schedule

import (
	"context"
	"fmt"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/history"
	"github.com/baiirun/programme/internal/model"
)

// Apply replays a recorded action: Forward applies the after side, Reverse
// the before side. It implements history.Executor.
func (s *Service) Apply(ctx context.Context, a history.Action, dir history.Direction) error {
	project := a.ProjectID
	forward := dir == history.Forward
	s.logger.Debug("replay action=%s kind=%s dir=%s", a.ID, a.Kind(), dir)

	switch c := a.Change.(type) {
	case history.TaskCreated:
		return s.replayCreate(ctx, c.Task, forward)
	case history.MilestoneCreated:
		return s.replayCreate(ctx, c.Task, forward)
	case history.TaskUpdated:
		return s.tasks.Put(ctx, pick(forward, c.After, c.Before))
	case history.MilestoneEdited:
		return s.tasks.Put(ctx, pick(forward, c.After, c.Before))
	case history.TaskDeleted:
		return s.replayDelete(ctx, a.ID, c, forward)
	case history.BarMoved:
		return s.setSpan(ctx, project, c.TaskID, pick(forward, c.After, c.Before))
	case history.BarResized:
		return s.setSpan(ctx, project, c.TaskID, pick(forward, c.After, c.Before))
	case history.DependencyLinked:
		return s.replayLink(ctx, a.ID, project, c, forward)
	case history.DependencyUnlinked:
		if forward {
			_, err := s.graph.Unlink(ctx, project, c.Dependency.ID)
			return err
		}
		return s.graph.Restore(ctx, project, c.Dependency)
	case history.ConstraintSet:
		var rb rollback
		next, prev := pick(forward, c.Next, c.Previous), pick(forward, c.Previous, c.Next)
		if err := s.constraints.Put(ctx, project, c.TaskID, next); err != nil {
			return err
		}
		rb.add(func(ctx context.Context) error { return s.constraints.Put(ctx, project, c.TaskID, prev) })
		if err := s.setSpan(ctx, project, c.TaskID, pick(forward, c.After, c.Before)); err != nil {
			return s.revert(ctx, a.ID, rb, err)
		}
		return nil
	case history.StructureToggled:
		_, err := s.tasks.SetCollapsed(ctx, project, c.TaskID, pick(forward, c.Collapsed, !c.Collapsed))
		return err
	case history.CalendarOverridden:
		return s.calendars.Put(ctx, c.ProjectID, pick(forward, c.After, c.Before))
	default:
		return fmt.Errorf("cannot replay change of type %T", a.Change)
	}
}

func pick[T any](forward bool, after, before T) T {
	if forward {
		return after
	}
	return before
}

// rollback collects the inverse of each replay step that has been
// persisted.
type rollback []func(context.Context) error

func (r *rollback) add(f func(context.Context) error) { *r = append(*r, f) }

// revert runs rb newest first and returns cause. The log keeps the action
// on its stack, so the store must be back where the replay started.
func (s *Service) revert(ctx context.Context, actionID string, rb rollback, cause error) error {
	for i := len(rb) - 1; i >= 0; i-- {
		if err := rb[i](ctx); err != nil {
			s.logger.Error("replay rollback failed action=%s error=%v", actionID, err)
		}
	}
	return cause
}

func (s *Service) replayCreate(ctx context.Context, task model.Task, forward bool) error {
	if forward {
		return s.tasks.Put(ctx, task)
	}
	kids, err := s.tasks.Children(ctx, task.ProjectID, task.ID)
	if err != nil {
		return err
	}
	if len(kids) > 0 {
		return apperr.Conflict("schedule.replay", "task %s has %d children; reassign or delete them first", task.ID, len(kids))
	}
	return s.tasks.Remove(ctx, task.ProjectID, task.ID)
}

func (s *Service) replayLink(ctx context.Context, actionID, project string, c history.DependencyLinked, forward bool) error {
	dep := c.Dependency
	var rb rollback
	if forward {
		if err := s.graph.Restore(ctx, project, dep); err != nil {
			return err
		}
		rb.add(func(ctx context.Context) error {
			_, err := s.graph.Unlink(ctx, project, dep.ID)
			return err
		})
		if err := s.setSpan(ctx, project, dep.SuccessorID, c.SuccessorAfter); err != nil {
			return s.revert(ctx, actionID, rb, err)
		}
		return nil
	}
	if _, err := s.graph.Unlink(ctx, project, dep.ID); err != nil {
		return err
	}
	rb.add(func(ctx context.Context) error { return s.graph.Restore(ctx, project, dep) })
	if err := s.setSpan(ctx, project, dep.SuccessorID, c.SuccessorBefore); err != nil {
		return s.revert(ctx, actionID, rb, err)
	}
	return nil
}

func (s *Service) replayDelete(ctx context.Context, actionID string, c history.TaskDeleted, forward bool) error {
	project, id := c.Task.ProjectID, c.Task.ID
	var rb rollback
	if forward {
		removed, err := s.graph.RemoveForTask(ctx, project, id)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			rb.add(func(ctx context.Context) error { return s.graph.Restore(ctx, project, removed...) })
		}
		if c.Constraint != nil {
			if err := s.constraints.Put(ctx, project, id, nil); err != nil {
				return s.revert(ctx, actionID, rb, err)
			}
			rb.add(func(ctx context.Context) error { return s.constraints.Put(ctx, project, id, c.Constraint) })
		}
		if err := s.tasks.Remove(ctx, project, id); err != nil {
			return s.revert(ctx, actionID, rb, err)
		}
		return nil
	}

	if err := s.tasks.PutAt(ctx, c.Task, c.Position); err != nil {
		return err
	}
	rb.add(func(ctx context.Context) error { return s.tasks.Remove(ctx, project, id) })
	if len(c.Dependencies) > 0 {
		if err := s.graph.Restore(ctx, project, c.Dependencies...); err != nil {
			return s.revert(ctx, actionID, rb, err)
		}
		rb.add(func(ctx context.Context) error {
			_, err := s.graph.RemoveForTask(ctx, project, id)
			return err
		})
	}
	if c.Constraint != nil {
		if err := s.constraints.Put(ctx, project, id, c.Constraint); err != nil {
			return s.revert(ctx, actionID, rb, err)
		}
	}
	return nil
}

func (s *Service) setSpan(ctx context.Context, project, id string, span model.Span) error {
	_, err := s.tasks.SetSpan(ctx, project, id, span)
	return err
}
