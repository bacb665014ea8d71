package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"herdbook/pkg/domain"
)

// queries implements domain.TxView over an open database transaction.
type queries struct {
	ctx context.Context
	q   sqlx.ExtContext
}

func (v *queries) get(entity domain.EntityType, id int64, dest any, query string) error {
	err := sqlx.GetContext(v.ctx, v.q, dest, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return domain.Storage("find "+string(entity), err)
	}
	return nil
}

// links loads ordered cow ids from a join table, keyed by owner id. A zero
// owner loads every row.
func (v *queries) links(table, ownerColumn string, owner int64) (map[int64][]int64, error) {
	query := "SELECT " + ownerColumn + " AS owner_id, position, cattle_id FROM " + table
	args := []any{}
	if owner > 0 {
		query += " WHERE " + ownerColumn + " = ?"
		args = append(args, owner)
	}
	query += " ORDER BY " + ownerColumn + ", position"
	var rows []cowLink
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, query, args...); err != nil {
		return nil, domain.Storage("load "+table, err)
	}
	out := make(map[int64][]int64)
	for _, r := range rows {
		out[r.OwnerID] = append(out[r.OwnerID], r.CattleID)
	}
	return out, nil
}

func (v *queries) FindCattle(id int64) (domain.Cattle, error) {
	var row cattleRow
	if err := v.get(domain.EntityCattle, id, &row, "SELECT "+cattleColumns+" FROM cattle WHERE id = ?"); err != nil {
		return domain.Cattle{}, err
	}
	return row.toDomain()
}

func (v *queries) FindCattleByEarTag(earTag string) (domain.Cattle, bool, error) {
	var row cattleRow
	err := sqlx.GetContext(v.ctx, v.q, &row, "SELECT "+cattleColumns+" FROM cattle WHERE ear_tag_number = ? COLLATE NOCASE", earTag)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cattle{}, false, nil
	}
	if err != nil {
		return domain.Cattle{}, false, domain.Storage("find cattle by ear tag", err)
	}
	c, err := row.toDomain()
	if err != nil {
		return domain.Cattle{}, false, err
	}
	return c, true, nil
}

func (v *queries) ListCattle() ([]domain.Cattle, error) {
	var rows []cattleRow
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, "SELECT "+cattleColumns+" FROM cattle ORDER BY id"); err != nil {
		return nil, domain.Storage("list cattle", err)
	}
	out := make([]domain.Cattle, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (v *queries) FindEvent(id int64) (domain.Event, error) {
	var row eventRow
	if err := v.get(domain.EntityEvent, id, &row, "SELECT "+eventColumns+" FROM events WHERE id = ?"); err != nil {
		return domain.Event{}, err
	}
	links, err := v.links("event_cattle", "event_id", id)
	if err != nil {
		return domain.Event{}, err
	}
	return row.toDomain(links[id])
}

func (v *queries) ListEvents() ([]domain.Event, error) {
	var rows []eventRow
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, "SELECT "+eventColumns+" FROM events ORDER BY id"); err != nil {
		return nil, domain.Storage("list events", err)
	}
	links, err := v.links("event_cattle", "event_id", 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain(links[r.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (v *queries) FindMilkRecord(id int64) (domain.MilkRecord, error) {
	var row milkRow
	if err := v.get(domain.EntityMilkRecord, id, &row, "SELECT "+milkColumns+" FROM milk WHERE id = ?"); err != nil {
		return domain.MilkRecord{}, err
	}
	links, err := v.links("milk_cattle", "milk_id", id)
	if err != nil {
		return domain.MilkRecord{}, err
	}
	return row.toDomain(links[id])
}

func (v *queries) ListMilkRecords() ([]domain.MilkRecord, error) {
	var rows []milkRow
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, "SELECT "+milkColumns+" FROM milk ORDER BY id"); err != nil {
		return nil, domain.Storage("list milk", err)
	}
	links, err := v.links("milk_cattle", "milk_id", 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MilkRecord, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain(links[r.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (v *queries) FindTransaction(id int64) (domain.Transaction, error) {
	var row transactionRow
	if err := v.get(domain.EntityTransaction, id, &row, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?"); err != nil {
		return domain.Transaction{}, err
	}
	return row.toDomain()
}

func (v *queries) ListTransactions() ([]domain.Transaction, error) {
	var rows []transactionRow
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, "SELECT "+transactionColumns+" FROM transactions ORDER BY id"); err != nil {
		return nil, domain.Storage("list transactions", err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (v *queries) FindHealthRecord(id int64) (domain.HealthRecord, error) {
	var row healthRow
	if err := v.get(domain.EntityHealthRecord, id, &row, "SELECT "+healthColumns+" FROM health WHERE id = ?"); err != nil {
		return domain.HealthRecord{}, err
	}
	return row.toDomain()
}

func (v *queries) ListHealthRecords() ([]domain.HealthRecord, error) {
	var rows []healthRow
	if err := sqlx.SelectContext(v.ctx, v.q, &rows, "SELECT "+healthColumns+" FROM health ORDER BY id"); err != nil {
		return nil, domain.Storage("list health", err)
	}
	out := make([]domain.HealthRecord, 0, len(rows))
	for _, r := range rows {
		h, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
