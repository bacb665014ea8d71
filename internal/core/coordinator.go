package core

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"herdbook/pkg/domain"
)

// The helpers below sequence dependent writes on the caller's transaction so
// a cascade either lands completely or not at all.

func (s *Service) recordPurchase(tx domain.Tx, cow Cattle, price decimal.Decimal) error {
	if !price.IsPositive() {
		return nil
	}
	cowID := cow.ID
	created, err := tx.CreateTransaction(Transaction{
		Type:        domain.TransactionExpense,
		Amount:      price,
		Category:    domain.CategoryCattlePurchase,
		Date:        s.now().UTC(),
		Description: "Purchase of cow with ear tag " + cow.EarTagNumber,
		CowID:       &cowID,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("recorded purchase expense", zap.Int64("cattle_id", cow.ID), zap.Int64("transaction_id", created.ID))
	return nil
}

func (s *Service) recordSale(tx domain.Tx, cow Cattle, amount decimal.Decimal) error {
	cowID := cow.ID
	created, err := tx.CreateTransaction(Transaction{
		Type:        domain.TransactionIncome,
		Amount:      amount,
		Category:    domain.CategoryCattleSales,
		Date:        s.now().UTC(),
		Description: "Cow sale - " + cow.EarTagNumber,
		CowID:       &cowID,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("recorded sale income", zap.Int64("cattle_id", cow.ID), zap.Int64("transaction_id", created.ID))
	return nil
}

// deleteEventsForCattle removes every event whose cow list names cowID.
func (s *Service) deleteEventsForCattle(tx domain.Tx, cowID int64) (int, error) {
	events, err := tx.ListEvents()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range events {
		if !e.Cows.Includes(cowID) {
			continue
		}
		if err := tx.DeleteEvent(e.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// syncSickness sets the cow's sick flag to whether any of its health records
// is still active.
func (s *Service) syncSickness(tx domain.Tx, cowID int64) error {
	records, err := tx.ListHealthRecords()
	if err != nil {
		return err
	}
	sick := false
	for _, r := range records {
		if r.CowID == cowID && r.Status == domain.HealthActive {
			sick = true
			break
		}
	}
	cow, err := tx.FindCattle(cowID)
	if err != nil {
		return err
	}
	if cow.IsSick == sick {
		return nil
	}
	_, err = tx.UpdateCattle(cowID, func(c *Cattle) error {
		c.IsSick = sick
		return nil
	})
	if err == nil {
		s.logger.Debug("synced sickness flag", zap.Int64("cattle_id", cowID), zap.Bool("sick", sick))
	}
	return err
}
