package core

import (
	"context"
	"math"
	"sort"
	"time"

	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

func validTotal(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func (s *Service) prepareMilk(v domain.TxView, m *MilkRecord) error {
	switch {
	case m.Date.IsZero():
		return domain.ValidationError{Entity: EntityMilkRecord, Field: "date", Message: "is required"}
	case m.Cows.Empty():
		return domain.ValidationError{Entity: EntityMilkRecord, Field: "cowIds", Message: "must name at least one animal or the herd"}
	case !validTotal(m.AMTotal) || !validTotal(m.PMTotal):
		return domain.ValidationError{Entity: EntityMilkRecord, Field: "totals", Message: "must be non-negative numbers"}
	case m.RateAM.IsNegative() || m.RatePM.IsNegative():
		return domain.ValidationError{Entity: EntityMilkRecord, Field: "rates", Message: "must not be negative"}
	}
	m.Cows = m.Cows.Dedup()
	for _, id := range m.Cows.IDs {
		if _, err := requireCattle(v, EntityMilkRecord, "cowIds", id); err != nil {
			return err
		}
	}
	m.Date = s.day(m.Date)
	m.Recompute()
	return nil
}

// herdRecordConflict reports a ConflictError when another herd wide record
// exists on m's day.
func herdRecordConflict(v domain.TxView, m MilkRecord, exclude int64) error {
	if !m.Cows.All {
		return nil
	}
	records, err := v.ListMilkRecords()
	if err != nil {
		return err
	}
	for _, other := range records {
		if other.ID != exclude && other.Cows.All && other.Date.Equal(m.Date) {
			return domain.ConflictError{Entity: EntityMilkRecord, Message: "a herd-wide record already exists for " + m.Date.Format(time.DateOnly)}
		}
	}
	return nil
}

// AddMilkRecord stores a day's yield. Totals and income are derived here; a
// second herd wide record for the same day is refused with ConflictError.
func (s *Service) AddMilkRecord(ctx context.Context, record MilkRecord) (MilkRecord, Result, error) {
	record.Base = Base{}
	var created MilkRecord
	res, err := s.mutate(ctx, "milk.add", func(tx domain.Tx) error {
		if err := s.prepareMilk(tx, &record); err != nil {
			return err
		}
		if err := herdRecordConflict(tx, record, 0); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateMilkRecord(record)
		return err
	})
	if err != nil {
		return MilkRecord{}, res, err
	}
	return created, res, nil
}

// UpdateMilkRecord replaces every field of a record and recomputes totals.
func (s *Service) UpdateMilkRecord(ctx context.Context, id int64, record MilkRecord) (MilkRecord, Result, error) {
	var updated MilkRecord
	res, err := s.mutate(ctx, "milk.update", func(tx domain.Tx) error {
		if _, err := tx.FindMilkRecord(id); err != nil {
			return err
		}
		if err := s.prepareMilk(tx, &record); err != nil {
			return err
		}
		if err := herdRecordConflict(tx, record, id); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateMilkRecord(id, func(m *MilkRecord) error {
			base := m.Base
			*m = record
			m.Base = base
			return nil
		})
		return err
	})
	if err != nil {
		return MilkRecord{}, res, err
	}
	return updated, res, nil
}

// DeleteMilkRecord removes a record.
func (s *Service) DeleteMilkRecord(ctx context.Context, id int64) (Result, error) {
	return s.mutate(ctx, "milk.delete", func(tx domain.Tx) error {
		return tx.DeleteMilkRecord(id)
	})
}

// ListMilkRecords returns records inside window, latest date first. A nil
// window returns everything.
func (s *Service) ListMilkRecords(ctx context.Context, window *daterange.Range) ([]MilkRecord, error) {
	var all []MilkRecord
	err := s.read(ctx, "milk.list", func(v domain.TxView) error {
		var err error
		all, err = v.ListMilkRecords()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]MilkRecord, 0, len(all))
	for _, m := range all {
		if window.Contains(m.Date) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListMilkRecordsForCattle returns records naming cowID. Herd wide records
// are not included.
func (s *Service) ListMilkRecordsForCattle(ctx context.Context, cowID int64) ([]MilkRecord, error) {
	all, err := s.ListMilkRecords(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]MilkRecord, 0)
	for _, m := range all {
		if m.Cows.Includes(cowID) {
			out = append(out, m)
		}
	}
	return out, nil
}
