package core

import "herdbook/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Cattle             = domain.Cattle
	Event              = domain.Event
	MilkRecord         = domain.MilkRecord
	Transaction        = domain.Transaction
	HealthRecord       = domain.HealthRecord
	CowSet             = domain.CowSet
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
	PersistentStore    = domain.PersistentStore
)

const (
	EntityCattle       = domain.EntityCattle
	EntityEvent        = domain.EntityEvent
	EntityMilkRecord   = domain.EntityMilkRecord
	EntityTransaction  = domain.EntityTransaction
	EntityHealthRecord = domain.EntityHealthRecord
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
