package core

import (
	"context"
	"errors"
	"fmt"

	"herdbook/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in herd policies.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(DisposalTerminalRule())
	engine.Register(PresenceRule())
	engine.Register(ReferenceIntegrityRule())
	return engine
}

// DisposalTerminalRule blocks moving a sold or dead animal to another
// disposal state.
func DisposalTerminalRule() Rule { return disposalTerminalRule{} }

type disposalTerminalRule struct{}

func (disposalTerminalRule) Name() string { return "disposal_terminal" }

func (disposalTerminalRule) Evaluate(_ context.Context, _ domain.TxView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityCattle || change.Action != ActionUpdate {
			continue
		}
		before, ok := change.Before.(Cattle)
		if !ok || !before.Disposal.Terminal() {
			continue
		}
		after, ok := change.After.(Cattle)
		if !ok || after.Disposal == before.Disposal {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     "disposal_terminal",
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("cattle %s cannot move from %s to %s", before.EarTagNumber, before.Disposal, after.Disposal),
			Entity:   EntityCattle,
			EntityID: before.ID,
		})
	}
	return res, nil
}

// PresenceRule blocks animals whose presence flag contradicts their disposal.
func PresenceRule() Rule { return presenceRule{} }

type presenceRule struct{}

func (presenceRule) Name() string { return "presence" }

func (presenceRule) Evaluate(_ context.Context, _ domain.TxView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityCattle {
			continue
		}
		after, ok := change.After.(Cattle)
		if !ok {
			continue
		}
		if !after.IsPresent && !after.Disposal.Terminal() {
			res.Violations = append(res.Violations, Violation{
				Rule:     "presence",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("cattle %s is not present but is %s", after.EarTagNumber, after.Disposal),
				Entity:   EntityCattle,
				EntityID: after.ID,
			})
		}
		if after.IsPresent && after.Disposal.Terminal() {
			res.Violations = append(res.Violations, Violation{
				Rule:     "presence",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("cattle %s is %s but still marked present", after.EarTagNumber, after.Disposal),
				Entity:   EntityCattle,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// ReferenceIntegrityRule blocks records that point at unknown cattle.
func ReferenceIntegrityRule() Rule { return referenceIntegrityRule{} }

type referenceIntegrityRule struct{}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (referenceIntegrityRule) Evaluate(_ context.Context, view domain.TxView, changes []Change) (Result, error) {
	res := Result{}
	check := func(entity EntityType, id int64, cows ...int64) error {
		for _, cow := range cows {
			_, err := view.FindCattle(cow)
			if errors.Is(err, domain.ErrNotFound) {
				res.Violations = append(res.Violations, Violation{
					Rule:     "reference_integrity",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("%s %d references unknown cattle %d", entity, id, cow),
					Entity:   entity,
					EntityID: id,
				})
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	for _, change := range changes {
		if change.Action == ActionDelete {
			continue
		}
		var err error
		switch after := change.After.(type) {
		case Event:
			err = check(EntityEvent, after.ID, after.Cows.IDs...)
		case MilkRecord:
			err = check(EntityMilkRecord, after.ID, after.Cows.IDs...)
		case HealthRecord:
			err = check(EntityHealthRecord, after.ID, after.CowID)
		case Transaction:
			if after.CowID != nil {
				err = check(EntityTransaction, after.ID, *after.CowID)
			}
		}
		if err != nil {
			return Result{}, err
		}
	}
	return res, nil
}
