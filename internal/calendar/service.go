package calendar

import (
	"context"
	"time"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/kv"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
)

// Service stores per-project calendar overrides. A project without an
// override uses model.DefaultCalendar.
type Service struct {
	calendars *kv.Collection[model.WorkingCalendar]
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(store kv.Store, logger *logging.Logger) *Service {
	return &Service{
		calendars: kv.NewCollection[model.WorkingCalendar](store, "calendars"),
		logger:    logger.With("calendar"),
		now:       time.Now,
	}
}

// Override returns the project's stored override, or nil.
func (s *Service) Override(ctx context.Context, project string) (*model.WorkingCalendar, error) {
	cals, err := s.calendars.Load(ctx, project)
	if err != nil {
		return nil, apperr.Persistence("calendar.override", err)
	}
	if len(cals) == 0 {
		return nil, nil
	}
	cal := cals[0].Clone()
	return &cal, nil
}

// Get returns the calendar in force for project under m.
func (s *Service) Get(ctx context.Context, m mode.Mode, project string) (model.WorkingCalendar, error) {
	override, err := s.Override(ctx, project)
	if err != nil {
		return model.WorkingCalendar{}, err
	}
	if override == nil {
		return Effective(model.DefaultCalendar(project), m), nil
	}
	return Effective(*override, m), nil
}

// SetOverride validates and stores cal as the project's calendar, replacing
// any previous override, which is returned.
func (s *Service) SetOverride(ctx context.Context, m mode.Mode, cal model.WorkingCalendar) (previous *model.WorkingCalendar, saved model.WorkingCalendar, err error) {
	if cal.ProjectID == "" {
		return nil, saved, apperr.Validation("calendar.set", "project is required")
	}
	if err := Validate(cal); err != nil {
		return nil, saved, err
	}
	previous, err = s.Override(ctx, cal.ProjectID)
	if err != nil {
		return nil, saved, err
	}

	now := s.now()
	saved = Effective(cal, m)
	if saved.ID == "" || saved.ID == model.DefaultCalendarID {
		saved.ID = model.GenerateID(model.PrefixCalendar)
	}
	if saved.Name == "" {
		saved.Name = "Project calendar"
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	if err := s.calendars.Save(ctx, cal.ProjectID, []model.WorkingCalendar{saved}); err != nil {
		s.logger.Warn("calendar save failed project=%s error=%v", cal.ProjectID, err)
		return nil, model.WorkingCalendar{}, apperr.Persistence("calendar.set", err)
	}
	s.logger.Debug("calendar override project=%s days=%q holidays=%d", cal.ProjectID, FormatWeekdays(saved.WorkingDays), len(saved.Holidays))
	return previous, saved.Clone(), nil
}

// RemoveOverride drops the project's override and returns it.
func (s *Service) RemoveOverride(ctx context.Context, project string) (*model.WorkingCalendar, error) {
	previous, err := s.Override(ctx, project)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, apperr.NotFound("calendar.remove", "project %s has no calendar override", project)
	}
	if err := s.calendars.Save(ctx, project, nil); err != nil {
		return nil, apperr.Persistence("calendar.remove", err)
	}
	return previous, nil
}

// Put stores an exact snapshot; nil removes the override. Used for replay.
func (s *Service) Put(ctx context.Context, project string, cal *model.WorkingCalendar) error {
	var cals []model.WorkingCalendar
	if cal != nil {
		cals = []model.WorkingCalendar{cal.Clone()}
	}
	if err := s.calendars.Save(ctx, project, cals); err != nil {
		return apperr.Persistence("calendar.put", err)
	}
	return nil
}
