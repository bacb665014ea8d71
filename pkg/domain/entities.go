// Package domain contains the herd record types, their closed enumerations,
// the error taxonomy and the persistence and rules contracts shared by every
// store implementation.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the record kind in Change records and errors.
type EntityType string

// Supported entity type identifiers.
const (
	EntityCattle       EntityType = "cattle"
	EntityEvent        EntityType = "event"
	EntityMilkRecord   EntityType = "milk_record"
	EntityTransaction  EntityType = "transaction"
	EntityHealthRecord EntityType = "health_record"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all records. IDs are assigned by the store.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cattle is one animal. Rows are never deleted; disposal marks them not present.
type Cattle struct {
	Base
	EarTagNumber     string              `json:"ear_tag_number"`
	Name             string              `json:"name,omitempty"`
	Gender           Gender              `json:"gender"`
	ObtainedMethod   ObtainedMethod      `json:"obtained_method"`
	Breed            Breed               `json:"breed,omitempty"`
	Stage            Stage               `json:"stage,omitempty"`
	Status           ReproStatus         `json:"status,omitempty"`
	Weight           string              `json:"weight,omitempty"`
	DateOfBirth      *time.Time          `json:"date_of_birth,omitempty"`
	DateOfEntry      *time.Time          `json:"date_of_entry,omitempty"`
	MotherTagNumber  string              `json:"mother_tag_number,omitempty"`
	InseminationDate *time.Time          `json:"insemination_date,omitempty"`
	LastDeliveryDate *time.Time          `json:"last_delivery_date,omitempty"`
	IsSick           bool                `json:"is_sick"`
	IsPresent        bool                `json:"is_present"`
	Disposal         Disposal            `json:"disposal"`
	SaleAmount       decimal.NullDecimal `json:"sale_amount"`
	PurchasePrice    decimal.NullDecimal `json:"purchase_price"`
}

// Normalize drops fields that carry no meaning for the current status and
// obtained method.
func (c *Cattle) Normalize() {
	if !c.Status.InseminationRelated() {
		c.InseminationDate = nil
	}
	if c.ObtainedMethod != ObtainedPurchase {
		c.PurchasePrice = decimal.NullDecimal{}
	}
}

// Disposed reports whether the animal has left the herd.
func (c Cattle) Disposed() bool {
	return c.Disposal.Terminal()
}

// Event is a dated herd activity attached to one or more animals.
type Event struct {
	Base
	Type        string      `json:"type"`
	Date        time.Time   `json:"date"`
	Description string      `json:"description,omitempty"`
	Cows        CowSet      `json:"cow_ids"`
	Status      EventStatus `json:"status"`
}

// MilkRecord is one day's yield either for named cows or for the whole herd.
type MilkRecord struct {
	Base
	Date          time.Time       `json:"date"`
	Cows          CowSet          `json:"cow_ids"`
	AMTotal       float64         `json:"am_total"`
	PMTotal       float64         `json:"pm_total"`
	TotalProduced float64         `json:"total_produced"`
	RateAM        decimal.Decimal `json:"rate_am"`
	RatePM        decimal.Decimal `json:"rate_pm"`
	TotalIncome   decimal.Decimal `json:"total_income"`
}

// Recompute derives TotalProduced and TotalIncome from the session totals and rates.
func (m *MilkRecord) Recompute() {
	m.TotalProduced = m.AMTotal + m.PMTotal
	am := decimal.NewFromFloat(m.AMTotal).Mul(m.RateAM)
	pm := decimal.NewFromFloat(m.PMTotal).Mul(m.RatePM)
	m.TotalIncome = am.Add(pm).Round(2)
}

// Transaction is a single income or expense entry.
type Transaction struct {
	Base
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Category    Category        `json:"category"`
	CowID       *int64          `json:"cow_id,omitempty"`
}

// HealthRecord tracks one illness episode of an animal.
type HealthRecord struct {
	Base
	CowID     int64        `json:"cow_id"`
	Disease   string       `json:"disease"`
	Symptoms  string       `json:"symptoms,omitempty"`
	Diagnosis string       `json:"diagnosis,omitempty"`
	Treatment string       `json:"treatment,omitempty"`
	StartDate time.Time    `json:"start_date"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	Status    HealthStatus `json:"status"`
	Notes     string       `json:"notes,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
