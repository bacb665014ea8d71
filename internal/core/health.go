package core

import (
	"context"
	"sort"
	"strings"

	"herdbook/pkg/domain"
)

func validateHealth(v domain.TxView, h *HealthRecord) error {
	h.Disease = strings.TrimSpace(h.Disease)
	switch {
	case h.CowID <= 0:
		return domain.ValidationError{Entity: EntityHealthRecord, Field: "cowId", Message: "is required"}
	case h.Disease == "":
		return domain.ValidationError{Entity: EntityHealthRecord, Field: "disease", Message: "is required"}
	case h.StartDate.IsZero():
		return domain.ValidationError{Entity: EntityHealthRecord, Field: "startDate", Message: "is required"}
	case h.EndDate != nil && h.EndDate.Before(h.StartDate):
		return domain.ValidationError{Entity: EntityHealthRecord, Field: "endDate", Message: "is before the start date"}
	}
	if h.Status == "" {
		h.Status = domain.HealthActive
	}
	if !h.Status.Valid() {
		return domain.ValidationError{Entity: EntityHealthRecord, Field: "status", Message: "unknown value " + string(h.Status)}
	}
	if _, err := requireCattle(v, EntityHealthRecord, "cowId", h.CowID); err != nil {
		return err
	}
	h.StartDate = h.StartDate.UTC()
	h.EndDate = utcPtr(h.EndDate)
	return nil
}

// AddHealthRecord opens an illness record and refreshes the cow's sick flag.
func (s *Service) AddHealthRecord(ctx context.Context, h HealthRecord) (HealthRecord, Result, error) {
	h.Base = Base{}
	var created HealthRecord
	res, err := s.mutate(ctx, "health.add", func(tx domain.Tx) error {
		if err := validateHealth(tx, &h); err != nil {
			return err
		}
		var err error
		if created, err = tx.CreateHealthRecord(h); err != nil {
			return err
		}
		return s.syncSickness(tx, created.CowID)
	})
	if err != nil {
		return HealthRecord{}, res, err
	}
	return created, res, nil
}

// UpdateHealthRecord replaces a record and refreshes the sick flag of every
// cow it touched.
func (s *Service) UpdateHealthRecord(ctx context.Context, id int64, h HealthRecord) (HealthRecord, Result, error) {
	var updated HealthRecord
	res, err := s.mutate(ctx, "health.update", func(tx domain.Tx) error {
		current, err := tx.FindHealthRecord(id)
		if err != nil {
			return err
		}
		if err := validateHealth(tx, &h); err != nil {
			return err
		}
		updated, err = tx.UpdateHealthRecord(id, func(cur *HealthRecord) error {
			base := cur.Base
			*cur = h
			cur.Base = base
			return nil
		})
		if err != nil {
			return err
		}
		if current.CowID != updated.CowID {
			if err := s.syncSickness(tx, current.CowID); err != nil {
				return err
			}
		}
		return s.syncSickness(tx, updated.CowID)
	})
	if err != nil {
		return HealthRecord{}, res, err
	}
	return updated, res, nil
}

// DeleteHealthRecord removes a record and refreshes the cow's sick flag.
func (s *Service) DeleteHealthRecord(ctx context.Context, id int64) (Result, error) {
	return s.mutate(ctx, "health.delete", func(tx domain.Tx) error {
		current, err := tx.FindHealthRecord(id)
		if err != nil {
			return err
		}
		if err := tx.DeleteHealthRecord(id); err != nil {
			return err
		}
		return s.syncSickness(tx, current.CowID)
	})
}

// ListHealthRecords returns the cow's records, latest start date first.
func (s *Service) ListHealthRecords(ctx context.Context, cowID int64) ([]HealthRecord, error) {
	var all []HealthRecord
	err := s.read(ctx, "health.list", func(v domain.TxView) error {
		var err error
		all, err = v.ListHealthRecords()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]HealthRecord, 0)
	for _, h := range all {
		if h.CowID == cowID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
