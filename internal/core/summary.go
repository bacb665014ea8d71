package core

import (
	"context"

	"herdbook/internal/stats"
	"herdbook/pkg/daterange"
)

// HerdStats recomputes the herd composition from the current cattle rows.
func (s *Service) HerdStats(ctx context.Context) (stats.Snapshot, error) {
	cattle, err := s.ListCattle(ctx)
	if err != nil {
		return stats.Snapshot{}, err
	}
	return stats.Compute(cattle), nil
}

// FinanceSummary totals the transactions dated inside window.
func (s *Service) FinanceSummary(ctx context.Context, window *daterange.Range) (stats.FinanceSummary, error) {
	txs, err := s.ListTransactions(ctx, TransactionFilter{Range: window})
	if err != nil {
		return stats.FinanceSummary{}, err
	}
	return stats.Finance(txs), nil
}

// MilkSummary totals the milk records dated inside window.
func (s *Service) MilkSummary(ctx context.Context, window *daterange.Range) (stats.MilkSummary, error) {
	records, err := s.ListMilkRecords(ctx, window)
	if err != nil {
		return stats.MilkSummary{}, err
	}
	return stats.Milk(records), nil
}
