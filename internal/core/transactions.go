package core

import (
	"context"
	"sort"
	"strings"

	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

// TransactionFilter narrows a transaction list. Zero fields match everything.
type TransactionFilter struct {
	CowID *int64
	Type  domain.TransactionType
	Range *daterange.Range
}

func validateTransaction(v domain.TxView, t *Transaction) error {
	t.Description = strings.TrimSpace(t.Description)
	switch {
	case t.Type == "":
		return domain.ValidationError{Entity: EntityTransaction, Field: "type", Message: "is required"}
	case !t.Type.Valid():
		return domain.ValidationError{Entity: EntityTransaction, Field: "type", Message: "unknown value " + string(t.Type)}
	case !t.Amount.IsPositive():
		return domain.ValidationError{Entity: EntityTransaction, Field: "amount", Message: "must be greater than zero"}
	case t.Date.IsZero():
		return domain.ValidationError{Entity: EntityTransaction, Field: "date", Message: "is required"}
	}
	if t.Category == "" {
		t.Category = t.Type.DefaultCategory()
	}
	if !t.Category.ValidFor(t.Type) {
		return domain.ValidationError{Entity: EntityTransaction, Field: "category", Message: string(t.Category) + " is not a " + string(t.Type) + " category"}
	}
	if t.CowID != nil {
		if _, err := requireCattle(v, EntityTransaction, "cowId", *t.CowID); err != nil {
			return err
		}
	}
	t.Date = t.Date.UTC()
	return nil
}

// AddTransaction records an income or expense entry. An empty category
// falls back to the type's catch-all category.
func (s *Service) AddTransaction(ctx context.Context, t Transaction) (Transaction, Result, error) {
	t.Base = Base{}
	var created Transaction
	res, err := s.mutate(ctx, "transaction.add", func(tx domain.Tx) error {
		if err := validateTransaction(tx, &t); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateTransaction(t)
		return err
	})
	if err != nil {
		return Transaction{}, res, err
	}
	return created, res, nil
}

// UpdateTransaction replaces every field of an entry.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, t Transaction) (Transaction, Result, error) {
	var updated Transaction
	res, err := s.mutate(ctx, "transaction.update", func(tx domain.Tx) error {
		if _, err := tx.FindTransaction(id); err != nil {
			return err
		}
		if err := validateTransaction(tx, &t); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateTransaction(id, func(cur *Transaction) error {
			base := cur.Base
			*cur = t
			cur.Base = base
			return nil
		})
		return err
	})
	if err != nil {
		return Transaction{}, res, err
	}
	return updated, res, nil
}

// DeleteTransaction removes an entry.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) (Result, error) {
	return s.mutate(ctx, "transaction.delete", func(tx domain.Tx) error {
		return tx.DeleteTransaction(id)
	})
}

// ListTransactions returns the entries matching f, latest date first.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var all []Transaction
	err := s.read(ctx, "transaction.list", func(v domain.TxView) error {
		var err error
		all, err = v.ListTransactions()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(all))
	for _, t := range all {
		switch {
		case f.CowID != nil && (t.CowID == nil || *t.CowID != *f.CowID):
			continue
		case f.Type != "" && t.Type != f.Type:
			continue
		case !f.Range.Contains(t.Date):
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
