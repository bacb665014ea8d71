package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

func validateEvent(v domain.TxView, e *Event) error {
	e.Type = strings.TrimSpace(e.Type)
	switch {
	case e.Type == "":
		return domain.ValidationError{Entity: EntityEvent, Field: "type", Message: "is required"}
	case e.Date.IsZero():
		return domain.ValidationError{Entity: EntityEvent, Field: "date", Message: "is required"}
	case e.Cows.Empty():
		return domain.ValidationError{Entity: EntityEvent, Field: "cowIds", Message: "must name at least one animal"}
	}
	if e.Status == "" {
		e.Status = domain.EventPending
	}
	if !e.Status.Valid() {
		return domain.ValidationError{Entity: EntityEvent, Field: "status", Message: "unknown value " + string(e.Status)}
	}
	e.Cows = e.Cows.Dedup()
	for _, id := range e.Cows.IDs {
		c, err := requireCattle(v, EntityEvent, "cowIds", id)
		if err != nil {
			return err
		}
		if c.Disposal.Terminal() {
			return domain.InvalidStateError{Entity: EntityCattle, ID: id, State: string(c.Disposal), Message: "events cannot be added to disposed cattle"}
		}
	}
	e.Date = e.Date.UTC()
	return nil
}

func sortEventsByDateDesc(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.After(events[j].Date)
		}
		return events[i].ID > events[j].ID
	})
}

// AddEvent records a dated activity for one or more animals. Status
// defaults to pending.
func (s *Service) AddEvent(ctx context.Context, event Event) (Event, Result, error) {
	event.Base = Base{}
	var created Event
	res, err := s.mutate(ctx, "event.add", func(tx domain.Tx) error {
		if err := validateEvent(tx, &event); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateEvent(event)
		return err
	})
	if err != nil {
		return Event{}, res, err
	}
	return created, res, nil
}

// UpdateEvent replaces type, date, description and cow list of an event.
func (s *Service) UpdateEvent(ctx context.Context, id int64, event Event) (Event, Result, error) {
	var updated Event
	res, err := s.mutate(ctx, "event.update", func(tx domain.Tx) error {
		current, err := tx.FindEvent(id)
		if err != nil {
			return err
		}
		if event.Status == "" {
			event.Status = current.Status
		}
		if err := validateEvent(tx, &event); err != nil {
			return err
		}
		updated, err = tx.UpdateEvent(id, func(e *Event) error {
			e.Type = event.Type
			e.Date = event.Date
			e.Description = event.Description
			e.Cows = event.Cows
			e.Status = event.Status
			return nil
		})
		return err
	})
	if err != nil {
		return Event{}, res, err
	}
	return updated, res, nil
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, id int64) (Event, error) {
	var out Event
	err := s.read(ctx, "event.get", func(v domain.TxView) error {
		var err error
		out, err = v.FindEvent(id)
		return err
	})
	return out, err
}

// ListEvents returns every event, latest date first.
func (s *Service) ListEvents(ctx context.Context) ([]Event, error) {
	var out []Event
	err := s.read(ctx, "event.list", func(v domain.TxView) error {
		var err error
		out, err = v.ListEvents()
		return err
	})
	if err != nil {
		return nil, err
	}
	sortEventsByDateDesc(out)
	return out, nil
}

// ListEventsForCattle returns the events naming cowID, latest date first.
func (s *Service) ListEventsForCattle(ctx context.Context, cowID int64) ([]Event, error) {
	all, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0)
	for _, e := range all {
		if e.Cows.Includes(cowID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// UpcomingEvents returns pending events dated from the start of from's day
// through the end of the day days later, earliest first.
func (s *Service) UpcomingEvents(ctx context.Context, from time.Time, days int) ([]Event, error) {
	if days < 0 {
		days = 0
	}
	local := from.In(s.loc)
	window, err := daterange.Custom(local, local.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	all, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0)
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if e.Status == domain.EventPending && window.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetEventStatus marks an event pending or completed.
func (s *Service) SetEventStatus(ctx context.Context, id int64, status domain.EventStatus) (Event, Result, error) {
	if !status.Valid() {
		err := domain.ValidationError{Entity: EntityEvent, Field: "status", Message: "unknown value " + string(status)}
		s.observe(ctx, "event.status", time.Now(), err)
		return Event{}, Result{}, err
	}
	var updated Event
	res, err := s.mutate(ctx, "event.status", func(tx domain.Tx) error {
		var err error
		updated, err = tx.UpdateEvent(id, func(e *Event) error {
			e.Status = status
			return nil
		})
		return err
	})
	if err != nil {
		return Event{}, res, err
	}
	return updated, res, nil
}

// DeleteEvent removes a completed event. Pending events are refused with
// InvalidStateError; use ForceDeleteEvent to drop them.
func (s *Service) DeleteEvent(ctx context.Context, id int64) (Result, error) {
	return s.mutate(ctx, "event.delete", func(tx domain.Tx) error {
		current, err := tx.FindEvent(id)
		if err != nil {
			return err
		}
		if current.Status != domain.EventCompleted {
			return domain.InvalidStateError{Entity: EntityEvent, ID: id, State: string(current.Status), Message: "only completed events can be deleted"}
		}
		return tx.DeleteEvent(id)
	})
}

// ForceDeleteEvent removes an event regardless of its status.
func (s *Service) ForceDeleteEvent(ctx context.Context, id int64) (Result, error) {
	return s.mutate(ctx, "event.force_delete", func(tx domain.Tx) error {
		return tx.DeleteEvent(id)
	})
}

// DeleteEventsForCattle removes every event naming cowID and returns how many
// were deleted.
func (s *Service) DeleteEventsForCattle(ctx context.Context, cowID int64) (int, Result, error) {
	var removed int
	res, err := s.mutate(ctx, "event.delete_for_cattle", func(tx domain.Tx) error {
		var err error
		removed, err = s.deleteEventsForCattle(tx, cowID)
		return err
	})
	if err != nil {
		return 0, res, err
	}
	return removed, res, nil
}
