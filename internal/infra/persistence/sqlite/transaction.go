package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"herdbook/pkg/domain"
)

// transaction applies mutations inside an open database transaction and
// records the changes handed to the rules engine.
type transaction struct {
	queries
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) stamp(base *domain.Base) {
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = tx.now
	}
}

func splitColumns(columns string) []string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// insertStatement builds a named INSERT where a zero id defers to the
// autoincrement sequence.
func insertStatement(table, columns string) string {
	cols := splitColumns(columns)
	values := make([]string, len(cols))
	for i, c := range cols {
		if c == "id" {
			values[i] = "NULLIF(:id, 0)"
			continue
		}
		values[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(values, ", "))
}

func updateStatement(table, columns string) string {
	cols := splitColumns(columns)
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(sets, ", "))
}

var (
	insertCattle      = insertStatement("cattle", cattleColumns)
	updateCattle      = updateStatement("cattle", cattleColumns)
	insertEvent       = insertStatement("events", eventColumns)
	updateEvent       = updateStatement("events", eventColumns)
	insertMilk        = insertStatement("milk", milkColumns)
	updateMilk        = updateStatement("milk", milkColumns)
	insertTransaction = insertStatement("transactions", transactionColumns)
	updateTransaction = updateStatement("transactions", transactionColumns)
	insertHealth      = insertStatement("health", healthColumns)
	updateHealth      = updateStatement("health", healthColumns)
)

func (tx *transaction) insert(entity domain.EntityType, query string, row any, detail string) (int64, error) {
	res, err := sqlx.NamedExecContext(tx.ctx, tx.q, query, row)
	if err != nil {
		return 0, classify("insert "+string(entity), entity, err, detail)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.Storage("insert "+string(entity), err)
	}
	return id, nil
}

// update executes a named UPDATE and treats zero affected rows as a missing
// record.
func (tx *transaction) update(entity domain.EntityType, id int64, query string, row any, detail string) error {
	res, err := sqlx.NamedExecContext(tx.ctx, tx.q, query, row)
	if err != nil {
		return classify("update "+string(entity), entity, err, detail)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Storage("update "+string(entity), err)
	}
	if affected == 0 {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func (tx *transaction) remove(entity domain.EntityType, id int64) error {
	res, err := tx.q.ExecContext(tx.ctx, "DELETE FROM "+tables[entity]+" WHERE id = ?", id)
	if err != nil {
		return classify("delete "+string(entity), entity, err, "")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Storage("delete "+string(entity), err)
	}
	if affected == 0 {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// writeLinks replaces the cow list of one event or milk record.
func (tx *transaction) writeLinks(entity domain.EntityType, table, ownerColumn string, owner int64, cows domain.CowSet) error {
	if _, err := tx.q.ExecContext(tx.ctx, "DELETE FROM "+table+" WHERE "+ownerColumn+" = ?", owner); err != nil {
		return domain.Storage("clear "+table, err)
	}
	if cows.All {
		return nil
	}
	query := "INSERT INTO " + table + " (" + ownerColumn + ", position, cattle_id) VALUES (?, ?, ?)"
	for i, id := range cows.IDs {
		if _, err := tx.q.ExecContext(tx.ctx, query, owner, i, id); err != nil {
			return classify("link "+table, entity, err, "")
		}
	}
	return nil
}

func dateDetail(t time.Time) string { return t.Format(time.DateOnly) }

// CreateCattle stores a new animal.
func (tx *transaction) CreateCattle(c domain.Cattle) (domain.Cattle, error) {
	tx.stamp(&c.Base)
	id, err := tx.insert(domain.EntityCattle, insertCattle, newCattleRow(c), c.EarTagNumber)
	if err != nil {
		return domain.Cattle{}, err
	}
	created, err := tx.FindCattle(id)
	if err != nil {
		return domain.Cattle{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityCattle, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateCattle mutates an animal using the provided mutator function.
func (tx *transaction) UpdateCattle(id int64, mutator func(*domain.Cattle) error) (domain.Cattle, error) {
	before, err := tx.FindCattle(id)
	if err != nil {
		return domain.Cattle{}, err
	}
	current, err := tx.FindCattle(id)
	if err != nil {
		return domain.Cattle{}, err
	}
	if err := mutator(&current); err != nil {
		return domain.Cattle{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.update(domain.EntityCattle, id, updateCattle, newCattleRow(current), current.EarTagNumber); err != nil {
		return domain.Cattle{}, err
	}
	updated, err := tx.FindCattle(id)
	if err != nil {
		return domain.Cattle{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityCattle, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// CreateEvent stores a new event.
func (tx *transaction) CreateEvent(e domain.Event) (domain.Event, error) {
	tx.stamp(&e.Base)
	id, err := tx.insert(domain.EntityEvent, insertEvent, newEventRow(e), "")
	if err != nil {
		return domain.Event{}, err
	}
	if err := tx.writeLinks(domain.EntityEvent, "event_cattle", "event_id", id, e.Cows); err != nil {
		return domain.Event{}, err
	}
	created, err := tx.FindEvent(id)
	if err != nil {
		return domain.Event{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateEvent mutates an event.
func (tx *transaction) UpdateEvent(id int64, mutator func(*domain.Event) error) (domain.Event, error) {
	before, err := tx.FindEvent(id)
	if err != nil {
		return domain.Event{}, err
	}
	current := before
	current.Cows = before.Cows.Clone()
	if err := mutator(&current); err != nil {
		return domain.Event{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.update(domain.EntityEvent, id, updateEvent, newEventRow(current), ""); err != nil {
		return domain.Event{}, err
	}
	if err := tx.writeLinks(domain.EntityEvent, "event_cattle", "event_id", id, current.Cows); err != nil {
		return domain.Event{}, err
	}
	updated, err := tx.FindEvent(id)
	if err != nil {
		return domain.Event{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// DeleteEvent removes an event; its cow links cascade.
func (tx *transaction) DeleteEvent(id int64) error {
	before, err := tx.FindEvent(id)
	if err != nil {
		return err
	}
	if err := tx.remove(domain.EntityEvent, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateMilkRecord stores a new milk record.
func (tx *transaction) CreateMilkRecord(m domain.MilkRecord) (domain.MilkRecord, error) {
	tx.stamp(&m.Base)
	id, err := tx.insert(domain.EntityMilkRecord, insertMilk, newMilkRow(m), dateDetail(m.Date))
	if err != nil {
		return domain.MilkRecord{}, err
	}
	if err := tx.writeLinks(domain.EntityMilkRecord, "milk_cattle", "milk_id", id, m.Cows); err != nil {
		return domain.MilkRecord{}, err
	}
	created, err := tx.FindMilkRecord(id)
	if err != nil {
		return domain.MilkRecord{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMilkRecord, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateMilkRecord mutates a milk record.
func (tx *transaction) UpdateMilkRecord(id int64, mutator func(*domain.MilkRecord) error) (domain.MilkRecord, error) {
	before, err := tx.FindMilkRecord(id)
	if err != nil {
		return domain.MilkRecord{}, err
	}
	current := before
	current.Cows = before.Cows.Clone()
	if err := mutator(&current); err != nil {
		return domain.MilkRecord{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.update(domain.EntityMilkRecord, id, updateMilk, newMilkRow(current), dateDetail(current.Date)); err != nil {
		return domain.MilkRecord{}, err
	}
	if err := tx.writeLinks(domain.EntityMilkRecord, "milk_cattle", "milk_id", id, current.Cows); err != nil {
		return domain.MilkRecord{}, err
	}
	updated, err := tx.FindMilkRecord(id)
	if err != nil {
		return domain.MilkRecord{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMilkRecord, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// DeleteMilkRecord removes a milk record.
func (tx *transaction) DeleteMilkRecord(id int64) error {
	before, err := tx.FindMilkRecord(id)
	if err != nil {
		return err
	}
	if err := tx.remove(domain.EntityMilkRecord, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMilkRecord, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateTransaction stores a new money entry.
func (tx *transaction) CreateTransaction(t domain.Transaction) (domain.Transaction, error) {
	tx.stamp(&t.Base)
	id, err := tx.insert(domain.EntityTransaction, insertTransaction, newTransactionRow(t), "")
	if err != nil {
		return domain.Transaction{}, err
	}
	created, err := tx.FindTransaction(id)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityTransaction, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateTransaction mutates a money entry.
func (tx *transaction) UpdateTransaction(id int64, mutator func(*domain.Transaction) error) (domain.Transaction, error) {
	before, err := tx.FindTransaction(id)
	if err != nil {
		return domain.Transaction{}, err
	}
	current := before
	if before.CowID != nil {
		cow := *before.CowID
		current.CowID = &cow
	}
	if err := mutator(&current); err != nil {
		return domain.Transaction{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.update(domain.EntityTransaction, id, updateTransaction, newTransactionRow(current), ""); err != nil {
		return domain.Transaction{}, err
	}
	updated, err := tx.FindTransaction(id)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityTransaction, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// DeleteTransaction removes a money entry.
func (tx *transaction) DeleteTransaction(id int64) error {
	before, err := tx.FindTransaction(id)
	if err != nil {
		return err
	}
	if err := tx.remove(domain.EntityTransaction, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityTransaction, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateHealthRecord stores a new health record.
func (tx *transaction) CreateHealthRecord(h domain.HealthRecord) (domain.HealthRecord, error) {
	tx.stamp(&h.Base)
	id, err := tx.insert(domain.EntityHealthRecord, insertHealth, newHealthRow(h), "")
	if err != nil {
		return domain.HealthRecord{}, err
	}
	created, err := tx.FindHealthRecord(id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityHealthRecord, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateHealthRecord mutates a health record.
func (tx *transaction) UpdateHealthRecord(id int64, mutator func(*domain.HealthRecord) error) (domain.HealthRecord, error) {
	before, err := tx.FindHealthRecord(id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	current, err := tx.FindHealthRecord(id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	if err := mutator(&current); err != nil {
		return domain.HealthRecord{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.update(domain.EntityHealthRecord, id, updateHealth, newHealthRow(current), ""); err != nil {
		return domain.HealthRecord{}, err
	}
	updated, err := tx.FindHealthRecord(id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityHealthRecord, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// DeleteHealthRecord removes a health record.
func (tx *transaction) DeleteHealthRecord(id int64) error {
	before, err := tx.FindHealthRecord(id)
	if err != nil {
		return err
	}
	if err := tx.remove(domain.EntityHealthRecord, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityHealthRecord, Action: domain.ActionDelete, Before: before})
	return nil
}
