package memory

import (
	"strings"
	"time"

	"herdbook/pkg/domain"
)

// transaction is a mutation set applied to a cloned state.
type transaction struct {
	view
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// assignID returns preset when it is free, otherwise the next sequence value.
func (tx *transaction) assignID(entity domain.EntityType, preset int64, exists func(int64) bool) (int64, error) {
	if preset > 0 {
		if exists(preset) {
			return 0, domain.ConflictError{Entity: entity, Message: "id already in use"}
		}
		if preset > tx.state.seq[entity] {
			tx.state.seq[entity] = preset
		}
		return preset, nil
	}
	tx.state.seq[entity]++
	return tx.state.seq[entity], nil
}

func (tx *transaction) stamp(base *domain.Base) {
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = tx.now
	}
}

func (tx *transaction) earTagTaken(earTag string, exclude int64) bool {
	for id, c := range tx.state.cattle {
		if id != exclude && strings.EqualFold(c.EarTagNumber, earTag) {
			return true
		}
	}
	return false
}

func (tx *transaction) herdRecordTaken(m MilkRecord, exclude int64) bool {
	if !m.Cows.All {
		return false
	}
	for id, other := range tx.state.milk {
		if id != exclude && other.Cows.All && other.Date.Equal(m.Date) {
			return true
		}
	}
	return false
}

// CreateCattle stores a new animal.
func (tx *transaction) CreateCattle(c Cattle) (Cattle, error) {
	if tx.earTagTaken(c.EarTagNumber, 0) {
		return Cattle{}, domain.DuplicateKeyError{Entity: domain.EntityCattle, Field: "earTagNumber", Value: c.EarTagNumber}
	}
	id, err := tx.assignID(domain.EntityCattle, c.ID, func(id int64) bool { _, ok := tx.state.cattle[id]; return ok })
	if err != nil {
		return Cattle{}, err
	}
	c.ID = id
	tx.stamp(&c.Base)
	tx.state.cattle[id] = cloneCattle(c)
	tx.recordChange(Change{Entity: domain.EntityCattle, Action: domain.ActionCreate, After: cloneCattle(c)})
	return cloneCattle(c), nil
}

// UpdateCattle mutates an animal using the provided mutator function.
func (tx *transaction) UpdateCattle(id int64, mutator func(*Cattle) error) (Cattle, error) {
	current, ok := tx.state.cattle[id]
	if !ok {
		return Cattle{}, domain.NotFoundError{Entity: domain.EntityCattle, ID: id}
	}
	before := cloneCattle(current)
	if err := mutator(&current); err != nil {
		return Cattle{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if tx.earTagTaken(current.EarTagNumber, id) {
		return Cattle{}, domain.DuplicateKeyError{Entity: domain.EntityCattle, Field: "earTagNumber", Value: current.EarTagNumber}
	}
	tx.state.cattle[id] = cloneCattle(current)
	tx.recordChange(Change{Entity: domain.EntityCattle, Action: domain.ActionUpdate, Before: before, After: cloneCattle(current)})
	return cloneCattle(current), nil
}

// CreateEvent stores a new event.
func (tx *transaction) CreateEvent(e Event) (Event, error) {
	id, err := tx.assignID(domain.EntityEvent, e.ID, func(id int64) bool { _, ok := tx.state.events[id]; return ok })
	if err != nil {
		return Event{}, err
	}
	e.ID = id
	tx.stamp(&e.Base)
	tx.state.events[id] = cloneEvent(e)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionCreate, After: cloneEvent(e)})
	return cloneEvent(e), nil
}

// UpdateEvent mutates an event.
func (tx *transaction) UpdateEvent(id int64, mutator func(*Event) error) (Event, error) {
	current, ok := tx.state.events[id]
	if !ok {
		return Event{}, domain.NotFoundError{Entity: domain.EntityEvent, ID: id}
	}
	before := cloneEvent(current)
	if err := mutator(&current); err != nil {
		return Event{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.events[id] = cloneEvent(current)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionUpdate, Before: before, After: cloneEvent(current)})
	return cloneEvent(current), nil
}

// DeleteEvent removes an event.
func (tx *transaction) DeleteEvent(id int64) error {
	current, ok := tx.state.events[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityEvent, ID: id}
	}
	delete(tx.state.events, id)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionDelete, Before: cloneEvent(current)})
	return nil
}

// CreateMilkRecord stores a new milk record.
func (tx *transaction) CreateMilkRecord(m MilkRecord) (MilkRecord, error) {
	if tx.herdRecordTaken(m, 0) {
		return MilkRecord{}, domain.ConflictError{Entity: domain.EntityMilkRecord, Message: "a herd-wide record already exists for " + m.Date.Format(time.DateOnly)}
	}
	id, err := tx.assignID(domain.EntityMilkRecord, m.ID, func(id int64) bool { _, ok := tx.state.milk[id]; return ok })
	if err != nil {
		return MilkRecord{}, err
	}
	m.ID = id
	tx.stamp(&m.Base)
	tx.state.milk[id] = cloneMilk(m)
	tx.recordChange(Change{Entity: domain.EntityMilkRecord, Action: domain.ActionCreate, After: cloneMilk(m)})
	return cloneMilk(m), nil
}

// UpdateMilkRecord mutates a milk record.
func (tx *transaction) UpdateMilkRecord(id int64, mutator func(*MilkRecord) error) (MilkRecord, error) {
	current, ok := tx.state.milk[id]
	if !ok {
		return MilkRecord{}, domain.NotFoundError{Entity: domain.EntityMilkRecord, ID: id}
	}
	before := cloneMilk(current)
	if err := mutator(&current); err != nil {
		return MilkRecord{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if tx.herdRecordTaken(current, id) {
		return MilkRecord{}, domain.ConflictError{Entity: domain.EntityMilkRecord, Message: "a herd-wide record already exists for " + current.Date.Format(time.DateOnly)}
	}
	tx.state.milk[id] = cloneMilk(current)
	tx.recordChange(Change{Entity: domain.EntityMilkRecord, Action: domain.ActionUpdate, Before: before, After: cloneMilk(current)})
	return cloneMilk(current), nil
}

// DeleteMilkRecord removes a milk record.
func (tx *transaction) DeleteMilkRecord(id int64) error {
	current, ok := tx.state.milk[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityMilkRecord, ID: id}
	}
	delete(tx.state.milk, id)
	tx.recordChange(Change{Entity: domain.EntityMilkRecord, Action: domain.ActionDelete, Before: cloneMilk(current)})
	return nil
}

// CreateTransaction stores a new money entry.
func (tx *transaction) CreateTransaction(t Transaction) (Transaction, error) {
	id, err := tx.assignID(domain.EntityTransaction, t.ID, func(id int64) bool { _, ok := tx.state.transactions[id]; return ok })
	if err != nil {
		return Transaction{}, err
	}
	t.ID = id
	tx.stamp(&t.Base)
	tx.state.transactions[id] = cloneTransaction(t)
	tx.recordChange(Change{Entity: domain.EntityTransaction, Action: domain.ActionCreate, After: cloneTransaction(t)})
	return cloneTransaction(t), nil
}

// UpdateTransaction mutates a money entry.
func (tx *transaction) UpdateTransaction(id int64, mutator func(*Transaction) error) (Transaction, error) {
	current, ok := tx.state.transactions[id]
	if !ok {
		return Transaction{}, domain.NotFoundError{Entity: domain.EntityTransaction, ID: id}
	}
	before := cloneTransaction(current)
	if err := mutator(&current); err != nil {
		return Transaction{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.transactions[id] = cloneTransaction(current)
	tx.recordChange(Change{Entity: domain.EntityTransaction, Action: domain.ActionUpdate, Before: before, After: cloneTransaction(current)})
	return cloneTransaction(current), nil
}

// DeleteTransaction removes a money entry.
func (tx *transaction) DeleteTransaction(id int64) error {
	current, ok := tx.state.transactions[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTransaction, ID: id}
	}
	delete(tx.state.transactions, id)
	tx.recordChange(Change{Entity: domain.EntityTransaction, Action: domain.ActionDelete, Before: cloneTransaction(current)})
	return nil
}

// CreateHealthRecord stores a new health record.
func (tx *transaction) CreateHealthRecord(h HealthRecord) (HealthRecord, error) {
	id, err := tx.assignID(domain.EntityHealthRecord, h.ID, func(id int64) bool { _, ok := tx.state.health[id]; return ok })
	if err != nil {
		return HealthRecord{}, err
	}
	h.ID = id
	tx.stamp(&h.Base)
	tx.state.health[id] = cloneHealth(h)
	tx.recordChange(Change{Entity: domain.EntityHealthRecord, Action: domain.ActionCreate, After: cloneHealth(h)})
	return cloneHealth(h), nil
}

// UpdateHealthRecord mutates a health record.
func (tx *transaction) UpdateHealthRecord(id int64, mutator func(*HealthRecord) error) (HealthRecord, error) {
	current, ok := tx.state.health[id]
	if !ok {
		return HealthRecord{}, domain.NotFoundError{Entity: domain.EntityHealthRecord, ID: id}
	}
	before := cloneHealth(current)
	if err := mutator(&current); err != nil {
		return HealthRecord{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.health[id] = cloneHealth(current)
	tx.recordChange(Change{Entity: domain.EntityHealthRecord, Action: domain.ActionUpdate, Before: before, After: cloneHealth(current)})
	return cloneHealth(current), nil
}

// DeleteHealthRecord removes a health record.
func (tx *transaction) DeleteHealthRecord(id int64) error {
	current, ok := tx.state.health[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityHealthRecord, ID: id}
	}
	delete(tx.state.health, id)
	tx.recordChange(Change{Entity: domain.EntityHealthRecord, Action: domain.ActionDelete, Before: cloneHealth(current)})
	return nil
}
