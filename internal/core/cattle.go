package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"herdbook/pkg/domain"
)

// CattlePatch carries a partial cattle update. Nil fields are left untouched.
type CattlePatch struct {
	EarTagNumber     *string
	Name             *string
	Gender           *domain.Gender
	ObtainedMethod   *domain.ObtainedMethod
	Breed            *domain.Breed
	Stage            *domain.Stage
	Status           *domain.ReproStatus
	Weight           *string
	DateOfBirth      *time.Time
	DateOfEntry      *time.Time
	MotherTagNumber  *string
	InseminationDate *time.Time
	LastDeliveryDate *time.Time
	PurchasePrice    *decimal.Decimal
}

// StatusChange describes a disposal or flag transition of one animal.
type StatusChange struct {
	Disposal   *domain.Disposal
	SaleAmount *decimal.Decimal
	IsSick     *bool
	IsPresent  *bool
}

// CattleFilter narrows a cattle list. Zero fields match everything.
type CattleFilter struct {
	Breed       domain.Breed
	Stage       domain.Stage
	Status      domain.ReproStatus
	Group       domain.StatusGroup
	Sick        *bool
	Present     *bool
	BornAfter   *time.Time
	BornBefore  *time.Time
	EarTagQuery string
}

func validateCattle(c Cattle) error {
	switch {
	case strings.TrimSpace(c.EarTagNumber) == "":
		return domain.ValidationError{Entity: EntityCattle, Field: "earTagNumber", Message: "is required"}
	case c.Gender == "":
		return domain.ValidationError{Entity: EntityCattle, Field: "gender", Message: "is required"}
	case c.ObtainedMethod == "":
		return domain.ValidationError{Entity: EntityCattle, Field: "obtainedMethod", Message: "is required"}
	case !c.Gender.Valid():
		return domain.ValidationError{Entity: EntityCattle, Field: "gender", Message: "unknown value " + string(c.Gender)}
	case !c.ObtainedMethod.Valid():
		return domain.ValidationError{Entity: EntityCattle, Field: "obtainedMethod", Message: "unknown value " + string(c.ObtainedMethod)}
	case !c.Breed.Valid():
		return domain.ValidationError{Entity: EntityCattle, Field: "breed", Message: "unknown value " + string(c.Breed)}
	case !c.Stage.Valid():
		return domain.ValidationError{Entity: EntityCattle, Field: "stage", Message: "unknown value " + string(c.Stage)}
	case !c.Status.Valid():
		return domain.ValidationError{Entity: EntityCattle, Field: "status", Message: "unknown value " + string(c.Status)}
	case c.PurchasePrice.Valid && c.PurchasePrice.Decimal.IsNegative():
		return domain.ValidationError{Entity: EntityCattle, Field: "purchasePrice", Message: "must not be negative"}
	}
	return nil
}

func normalizeCattleDates(c *Cattle) {
	c.DateOfBirth = utcPtr(c.DateOfBirth)
	c.DateOfEntry = utcPtr(c.DateOfEntry)
	c.InseminationDate = utcPtr(c.InseminationDate)
	c.LastDeliveryDate = utcPtr(c.LastDeliveryDate)
}

// AddCattle registers a new animal. Purchased animals with a purchase price
// also get a linked expense entry.
func (s *Service) AddCattle(ctx context.Context, cattle Cattle) (Cattle, Result, error) {
	cattle.EarTagNumber = strings.TrimSpace(cattle.EarTagNumber)
	if err := validateCattle(cattle); err != nil {
		s.observe(ctx, "cattle.add", time.Now(), err)
		return Cattle{}, Result{}, err
	}
	cattle.Base = Base{}
	cattle.IsPresent = true
	cattle.IsSick = false
	cattle.Disposal = domain.DisposalAlive
	cattle.SaleAmount = decimal.NullDecimal{}
	cattle.Normalize()
	normalizeCattleDates(&cattle)

	var created Cattle
	res, err := s.mutate(ctx, "cattle.add", func(tx domain.Tx) error {
		if _, found, err := tx.FindCattleByEarTag(cattle.EarTagNumber); err != nil {
			return err
		} else if found {
			return domain.DuplicateKeyError{Entity: EntityCattle, Field: "earTagNumber", Value: cattle.EarTagNumber}
		}
		var err error
		if created, err = tx.CreateCattle(cattle); err != nil {
			return err
		}
		if created.ObtainedMethod == domain.ObtainedPurchase && created.PurchasePrice.Valid {
			return s.recordPurchase(tx, created, created.PurchasePrice.Decimal)
		}
		return nil
	})
	if err != nil {
		return Cattle{}, res, err
	}
	return created, res, nil
}

// UpdateCattle applies a partial update. Setting a purchase price on a
// purchased animal records another expense entry.
func (s *Service) UpdateCattle(ctx context.Context, id int64, patch CattlePatch) (Cattle, Result, error) {
	var updated Cattle
	res, err := s.mutate(ctx, "cattle.update", func(tx domain.Tx) error {
		current, err := tx.FindCattle(id)
		if err != nil {
			return err
		}
		next := current
		applyCattlePatch(&next, patch)
		next.EarTagNumber = strings.TrimSpace(next.EarTagNumber)
		if err := validateCattle(next); err != nil {
			return err
		}
		if !strings.EqualFold(next.EarTagNumber, current.EarTagNumber) {
			if _, found, err := tx.FindCattleByEarTag(next.EarTagNumber); err != nil {
				return err
			} else if found {
				return domain.DuplicateKeyError{Entity: EntityCattle, Field: "earTagNumber", Value: next.EarTagNumber}
			}
		}
		next.Normalize()
		normalizeCattleDates(&next)
		updated, err = tx.UpdateCattle(id, func(c *Cattle) error {
			*c = next
			return nil
		})
		if err != nil {
			return err
		}
		if patch.PurchasePrice != nil && updated.ObtainedMethod == domain.ObtainedPurchase && updated.PurchasePrice.Valid {
			return s.recordPurchase(tx, updated, updated.PurchasePrice.Decimal)
		}
		return nil
	})
	if err != nil {
		return Cattle{}, res, err
	}
	return updated, res, nil
}

func applyCattlePatch(c *Cattle, p CattlePatch) {
	if p.EarTagNumber != nil {
		c.EarTagNumber = *p.EarTagNumber
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Gender != nil {
		c.Gender = *p.Gender
	}
	if p.ObtainedMethod != nil {
		c.ObtainedMethod = *p.ObtainedMethod
	}
	if p.Breed != nil {
		c.Breed = *p.Breed
	}
	if p.Stage != nil {
		c.Stage = *p.Stage
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Weight != nil {
		c.Weight = *p.Weight
	}
	if p.DateOfBirth != nil {
		c.DateOfBirth = p.DateOfBirth
	}
	if p.DateOfEntry != nil {
		c.DateOfEntry = p.DateOfEntry
	}
	if p.MotherTagNumber != nil {
		c.MotherTagNumber = *p.MotherTagNumber
	}
	if p.InseminationDate != nil {
		c.InseminationDate = p.InseminationDate
	}
	if p.LastDeliveryDate != nil {
		c.LastDeliveryDate = p.LastDeliveryDate
	}
	if p.PurchasePrice != nil {
		c.PurchasePrice = decimal.NewNullDecimal(*p.PurchasePrice)
	}
}

// GetCattle returns one animal.
func (s *Service) GetCattle(ctx context.Context, id int64) (Cattle, error) {
	var out Cattle
	err := s.read(ctx, "cattle.get", func(v domain.TxView) error {
		var err error
		out, err = v.FindCattle(id)
		return err
	})
	return out, err
}

// ListCattle returns every animal, newest first.
func (s *Service) ListCattle(ctx context.Context) ([]Cattle, error) {
	var out []Cattle
	err := s.read(ctx, "cattle.list", func(v domain.TxView) error {
		var err error
		out, err = v.ListCattle()
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// PartitionCattle splits a list into animals on the farm and disposed ones,
// keeping the input order.
func PartitionCattle(cattle []Cattle) (present, disposed []Cattle) {
	for _, c := range cattle {
		if c.IsPresent {
			present = append(present, c)
		} else {
			disposed = append(disposed, c)
		}
	}
	return present, disposed
}

// FilterCattle returns the animals matching f, keeping the input order.
func FilterCattle(cattle []Cattle, f CattleFilter) []Cattle {
	query := strings.ToLower(strings.TrimSpace(f.EarTagQuery))
	var out []Cattle
	for _, c := range cattle {
		switch {
		case f.Breed != "" && c.Breed != f.Breed:
			continue
		case f.Stage != "" && c.Stage != f.Stage:
			continue
		case f.Status != "" && c.Status != f.Status:
			continue
		case f.Group != "" && !c.Status.InGroup(f.Group):
			continue
		case f.Sick != nil && c.IsSick != *f.Sick:
			continue
		case f.Present != nil && c.IsPresent != *f.Present:
			continue
		case f.BornAfter != nil && (c.DateOfBirth == nil || c.DateOfBirth.Before(*f.BornAfter)):
			continue
		case f.BornBefore != nil && (c.DateOfBirth == nil || c.DateOfBirth.After(*f.BornBefore)):
			continue
		case query != "" && !strings.Contains(strings.ToLower(c.EarTagNumber), query) && !strings.Contains(strings.ToLower(c.Name), query):
			continue
		}
		out = append(out, c)
	}
	return out
}

// ChangeCattleStatus moves an animal through disposal and updates its flags.
// Selling or losing an animal removes its events; a sale amount records income
// and is refused once the animal is disposed. IsSick is a manual override that
// stands until the next health record write rederives it.
func (s *Service) ChangeCattleStatus(ctx context.Context, id int64, change StatusChange) (Cattle, Result, error) {
	var updated Cattle
	res, err := s.mutate(ctx, "cattle.status", func(tx domain.Tx) error {
		current, err := tx.FindCattle(id)
		if err != nil {
			return err
		}
		next := current
		if change.Disposal != nil {
			if !change.Disposal.Valid() {
				return domain.ValidationError{Entity: EntityCattle, Field: "status", Message: "unknown value " + string(*change.Disposal)}
			}
			if current.Disposal.Terminal() && *change.Disposal != current.Disposal {
				return domain.InvalidStateError{Entity: EntityCattle, ID: id, State: string(current.Disposal), Message: "disposal cannot be reversed"}
			}
			next.Disposal = *change.Disposal
		}
		if change.IsPresent != nil {
			next.IsPresent = *change.IsPresent
		}
		if next.Disposal.Terminal() {
			next.IsPresent = false
		}
		if change.IsSick != nil {
			next.IsSick = *change.IsSick
		}
		sale := change.SaleAmount != nil && change.SaleAmount.IsPositive()
		if change.SaleAmount != nil && change.SaleAmount.IsNegative() {
			return domain.ValidationError{Entity: EntityCattle, Field: "saleAmount", Message: "must not be negative"}
		}
		if sale {
			if current.Disposal.Terminal() {
				return domain.InvalidStateError{Entity: EntityCattle, ID: id, State: string(current.Disposal), Message: "sale already recorded"}
			}
			if next.Disposal != domain.DisposalSold {
				return domain.ValidationError{Entity: EntityCattle, Field: "saleAmount", Message: "requires status sold"}
			}
			next.SaleAmount = decimal.NewNullDecimal(*change.SaleAmount)
		}
		if !next.IsPresent && !next.Disposal.Terminal() {
			return domain.ValidationError{Entity: EntityCattle, Field: "isPresent", Message: "absent cattle must be sold or died"}
		}

		if _, err := tx.UpdateCattle(id, func(c *Cattle) error {
			*c = next
			return nil
		}); err != nil {
			return err
		}
		if sale {
			if err := s.recordSale(tx, next, *change.SaleAmount); err != nil {
				return err
			}
		}
		if next.Disposal.Terminal() {
			n, err := s.deleteEventsForCattle(tx, id)
			if err != nil {
				return err
			}
			s.logger.Debug("removed events of disposed cattle", zap.Int64("cattle_id", id), zap.Int("events", n))
		}
		updated, err = tx.FindCattle(id)
		return err
	})
	if err != nil {
		return Cattle{}, res, err
	}
	return updated, res, nil
}
