// Package stats derives herd, finance and milk summaries from record
// collections. Every function is pure and safe to call repeatedly on the same
// input.
package stats

import (
	"github.com/shopspring/decimal"

	"herdbook/pkg/domain"
)

// Snapshot holds herd composition counts. Status groups overlap, so one
// animal with a compound status is counted in every group it belongs to.
type Snapshot struct {
	Total        int `json:"total"`
	Cows         int `json:"cows"`
	Heifers      int `json:"heifers"`
	Calves       int `json:"calves"`
	Bulls        int `json:"bulls"`
	Pregnant     int `json:"pregnant"`
	Lactating    int `json:"lactating"`
	Inseminated  int `json:"inseminated"`
	NonLactating int `json:"non_lactating"`
	Sick         int `json:"sick"`
	Open         int `json:"open"`
	Died         int `json:"died"`
	Sold         int `json:"sold"`
	Disposed     int `json:"disposed"`
	PresentCows  int `json:"present_cows"`
}

// Compute counts the herd. Stage, gender, status, sickness and open counts
// consider present animals only; died, sold and disposed count every row.
func Compute(cattle []domain.Cattle) Snapshot {
	var s Snapshot
	s.Total = len(cattle)
	for _, c := range cattle {
		switch c.Disposal {
		case domain.DisposalDied:
			s.Died++
			s.Disposed++
		case domain.DisposalSold:
			s.Sold++
			s.Disposed++
		}
		if !c.IsPresent {
			continue
		}
		s.PresentCows++
		switch c.Stage {
		case domain.StageCow:
			s.Cows++
		case domain.StageHeifer:
			s.Heifers++
		case domain.StageCalf:
			s.Calves++
		}
		if c.Gender == domain.GenderMale {
			s.Bulls++
		}
		if c.Status.InGroup(domain.GroupPregnant) {
			s.Pregnant++
		}
		if c.Status.InGroup(domain.GroupLactating) {
			s.Lactating++
		}
		if c.Status.InGroup(domain.GroupInseminated) {
			s.Inseminated++
		}
		if c.Status.InGroup(domain.GroupNonLactating) {
			s.NonLactating++
		}
		if c.IsSick {
			s.Sick++
		}
		if IsOpen(c) {
			s.Open++
		}
	}
	return s
}

// IsOpen reports whether c is a non-lactating female past the calf stage.
func IsOpen(c domain.Cattle) bool {
	return c.Status == domain.StatusNonLactating && c.Stage != domain.StageCalf && c.Gender == domain.GenderFemale
}

// FinanceSummary totals transactions.
type FinanceSummary struct {
	Income     decimal.Decimal                     `json:"income"`
	Expenses   decimal.Decimal                     `json:"expenses"`
	Net        decimal.Decimal                     `json:"net"`
	ByCategory map[domain.Category]decimal.Decimal `json:"by_category"`
	Count      int                                 `json:"count"`
}

// Finance sums income and expense amounts.
func Finance(txs []domain.Transaction) FinanceSummary {
	out := FinanceSummary{
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		ByCategory: make(map[domain.Category]decimal.Decimal),
	}
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionIncome:
			out.Income = out.Income.Add(tx.Amount)
		case domain.TransactionExpense:
			out.Expenses = out.Expenses.Add(tx.Amount)
		default:
			continue
		}
		out.Count++
		out.ByCategory[tx.Category] = out.ByCategory[tx.Category].Add(tx.Amount)
	}
	out.Net = out.Income.Sub(out.Expenses)
	return out
}

// MilkSummary totals milk records.
type MilkSummary struct {
	TotalLiters      float64         `json:"total_liters"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	Records          int             `json:"records"`
	AveragePerRecord float64         `json:"average_per_record"`
}

// Milk sums production and income. The average is zero for an empty input.
func Milk(records []domain.MilkRecord) MilkSummary {
	out := MilkSummary{TotalIncome: decimal.Zero, Records: len(records)}
	for _, r := range records {
		out.TotalLiters += r.TotalProduced
		out.TotalIncome = out.TotalIncome.Add(r.TotalIncome)
	}
	if out.Records > 0 {
		out.AveragePerRecord = out.TotalLiters / float64(out.Records)
	}
	return out
}
