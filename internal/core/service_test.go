package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"herdbook/internal/core"
	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/infra/persistence/sqlite"
	"herdbook/pkg/domain"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newServices(t *testing.T, engine func() *core.RulesEngine) map[string]*core.Service {
	t.Helper()
	if engine == nil {
		engine = core.NewDefaultRulesEngine
	}
	sq, err := sqlite.NewStore(context.Background(), filepath.Join(t.TempDir(), "herdbook_test.db"), engine())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	opts := []core.ServiceOption{
		core.WithClock(func() time.Time { return testNow }),
		core.WithLocation(time.UTC),
	}
	return map[string]*core.Service{
		"memory": core.NewService(memory.NewStore(engine()), opts...),
		"sqlite": core.NewService(sq, opts...),
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, svc *core.Service)) {
	t.Helper()
	for name, svc := range newServices(t, nil) {
		svc := svc
		t.Run(name, func(t *testing.T) { fn(t, svc) })
	}
}

func mustAddCow(t *testing.T, svc *core.Service, tag string) core.Cattle {
	t.Helper()
	cow, _, err := svc.AddCattle(context.Background(), core.Cattle{
		EarTagNumber:   tag,
		Gender:         domain.GenderFemale,
		ObtainedMethod: domain.ObtainedBornOnFarm,
		Stage:          domain.StageCow,
	})
	if err != nil {
		t.Fatalf("add cattle %s: %v", tag, err)
	}
	return cow
}

func TestAddCattleDefaultsAndValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		if cow.ID == 0 || !cow.IsPresent || cow.Disposal != domain.DisposalAlive {
			t.Fatalf("expected defaults applied, got %+v", cow)
		}

		_, _, err := svc.AddCattle(ctx, core.Cattle{EarTagNumber: "KE-002", Gender: domain.GenderFemale})
		var verr domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != "obtainedMethod" {
			t.Fatalf("expected missing obtained method, got %v", err)
		}
		_, _, err = svc.AddCattle(ctx, core.Cattle{EarTagNumber: "KE-002", Gender: "bull", ObtainedMethod: domain.ObtainedOther})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected invalid gender to fail, got %v", err)
		}
	})
}

func TestEarTagUniqueAcrossDisposedCattle(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		died := domain.DisposalDied
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &died}); err != nil {
			t.Fatalf("dispose: %v", err)
		}
		_, _, err := svc.AddCattle(ctx, core.Cattle{EarTagNumber: "ke-001", Gender: domain.GenderMale, ObtainedMethod: domain.ObtainedOther})
		if !errors.Is(err, domain.ErrDuplicateKey) {
			t.Fatalf("expected duplicate key for disposed ear tag, got %v", err)
		}

		other := mustAddCow(t, svc, "KE-002")
		tag := "KE-001"
		if _, _, err := svc.UpdateCattle(ctx, other.ID, core.CattlePatch{EarTagNumber: &tag}); !errors.Is(err, domain.ErrDuplicateKey) {
			t.Fatalf("expected duplicate key on rename, got %v", err)
		}
	})
}

func TestPurchaseRecordsExpense(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow, _, err := svc.AddCattle(ctx, core.Cattle{
			EarTagNumber:   "P-1",
			Gender:         domain.GenderFemale,
			ObtainedMethod: domain.ObtainedPurchase,
			PurchasePrice:  decimal.NewNullDecimal(decimal.NewFromInt(42000)),
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		txs, err := svc.ListTransactions(ctx, core.TransactionFilter{CowID: &cow.ID})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("expected one purchase expense, got %d", len(txs))
		}
		exp := txs[0]
		if exp.Type != domain.TransactionExpense || exp.Category != domain.CategoryCattlePurchase || !exp.Amount.Equal(decimal.NewFromInt(42000)) {
			t.Fatalf("unexpected expense: %+v", exp)
		}
		if exp.Description != "Purchase of cow with ear tag P-1" {
			t.Fatalf("unexpected description %q", exp.Description)
		}

		price := decimal.NewFromInt(43000)
		if _, _, err := svc.UpdateCattle(ctx, cow.ID, core.CattlePatch{PurchasePrice: &price}); err != nil {
			t.Fatalf("update price: %v", err)
		}
		txs, _ = svc.ListTransactions(ctx, core.TransactionFilter{CowID: &cow.ID})
		if len(txs) != 2 {
			t.Fatalf("expected editing the price to record another expense, got %d", len(txs))
		}
	})
}

func TestPurchasePriceDroppedForOtherMethods(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		insem := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		cow, _, err := svc.AddCattle(ctx, core.Cattle{
			EarTagNumber:     "B-1",
			Gender:           domain.GenderFemale,
			ObtainedMethod:   domain.ObtainedBornOnFarm,
			Status:           domain.StatusLactating,
			InseminationDate: &insem,
			PurchasePrice:    decimal.NewNullDecimal(decimal.NewFromInt(10)),
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if cow.PurchasePrice.Valid || cow.InseminationDate != nil {
			t.Fatalf("expected irrelevant fields cleared, got %+v", cow)
		}
		txs, _ := svc.ListTransactions(ctx, core.TransactionFilter{})
		if len(txs) != 0 {
			t.Fatalf("expected no expense for a farm-born animal, got %d", len(txs))
		}
	})
}

func TestUpdateCattlePartial(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		name := "Bessie"
		updated, _, err := svc.UpdateCattle(ctx, cow.ID, core.CattlePatch{Name: &name})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Name != "Bessie" || updated.EarTagNumber != cow.EarTagNumber || updated.Gender != cow.Gender ||
			updated.ObtainedMethod != cow.ObtainedMethod || updated.Stage != cow.Stage || updated.IsPresent != cow.IsPresent {
			t.Fatalf("partial update touched other fields: before=%+v after=%+v", cow, updated)
		}
		if !updated.CreatedAt.Equal(cow.CreatedAt) {
			t.Fatalf("created timestamp changed")
		}
		if _, _, err := svc.UpdateCattle(ctx, 999, core.CattlePatch{Name: &name}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestSaleDisposesAndCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		other := mustAddCow(t, svc, "KE-002")
		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "vaccination", Date: testNow, Cows: domain.Cows(cow.ID)}); err != nil {
			t.Fatalf("add event: %v", err)
		}
		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "deworming", Date: testNow, Cows: domain.Cows(other.ID, cow.ID)}); err != nil {
			t.Fatalf("add mass event: %v", err)
		}
		kept, _, err := svc.AddEvent(ctx, core.Event{Type: "checkup", Date: testNow, Cows: domain.Cows(other.ID)})
		if err != nil {
			t.Fatalf("add other event: %v", err)
		}

		sold := domain.DisposalSold
		amount := decimal.NewFromInt(500)
		updated, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &sold, SaleAmount: &amount})
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if updated.IsPresent || updated.Disposal != domain.DisposalSold || !updated.SaleAmount.Decimal.Equal(amount) {
			t.Fatalf("unexpected sold cow: %+v", updated)
		}

		income, err := svc.ListTransactions(ctx, core.TransactionFilter{Type: domain.TransactionIncome})
		if err != nil {
			t.Fatalf("list income: %v", err)
		}
		if len(income) != 1 || income[0].Category != domain.CategoryCattleSales || !income[0].Amount.Equal(amount) {
			t.Fatalf("expected exactly one cattle sale income, got %+v", income)
		}
		if income[0].Description != "Cow sale - KE-001" {
			t.Fatalf("unexpected description %q", income[0].Description)
		}

		events, err := svc.ListEventsForCattle(ctx, cow.ID)
		if err != nil {
			t.Fatalf("list events: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("expected events of sold cow removed, got %d", len(events))
		}
		remaining, _ := svc.ListEvents(ctx)
		if len(remaining) != 1 || remaining[0].ID != kept.ID {
			t.Fatalf("expected only the unrelated event to remain, got %+v", remaining)
		}
	})
}

func TestStatusChangeGuards(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		amount := decimal.NewFromInt(100)
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{SaleAmount: &amount}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected sale amount without sale to fail, got %v", err)
		}
		absent := false
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{IsPresent: &absent}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected absent alive cow to fail, got %v", err)
		}
		died := domain.DisposalDied
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &died}); err != nil {
			t.Fatalf("dispose: %v", err)
		}
		alive := domain.DisposalAlive
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &alive}); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected irreversible disposal, got %v", err)
		}
		if _, _, err := svc.ChangeCattleStatus(ctx, 404, core.StatusChange{Disposal: &died}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		sick := true
		got, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{IsSick: &sick})
		if err != nil || !got.IsSick || got.IsPresent {
			t.Fatalf("expected sickness flag on disposed cow, got %+v err=%v", got, err)
		}
	})
}

func TestSaleRecordedOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "P-1")
		sold := domain.DisposalSold
		amount := decimal.NewFromInt(500)
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &sold, SaleAmount: &amount}); err != nil {
			t.Fatalf("sell: %v", err)
		}
		again := decimal.NewFromInt(700)
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &sold, SaleAmount: &again}); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected second sale refused, got %v", err)
		}
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{SaleAmount: &again}); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected sale amount on sold cow refused, got %v", err)
		}
		income, err := svc.ListTransactions(ctx, core.TransactionFilter{Type: domain.TransactionIncome})
		if err != nil {
			t.Fatalf("list income: %v", err)
		}
		if len(income) != 1 || !income[0].Amount.Equal(amount) {
			t.Fatalf("expected the first sale only, got %+v", income)
		}
		got, _ := svc.GetCattle(ctx, cow.ID)
		if !got.SaleAmount.Decimal.Equal(amount) {
			t.Fatalf("expected sale amount unchanged, got %v", got.SaleAmount)
		}
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &sold}); err != nil {
			t.Fatalf("repeating sold without an amount should be a no-op: %v", err)
		}
	})
}

func TestManualSickOverrideUntilHealthWrite(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "KE-001")
		sick := true
		got, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{IsSick: &sick})
		if err != nil || !got.IsSick {
			t.Fatalf("expected manual sick flag, got %+v err=%v", got, err)
		}
		end := testNow.AddDate(0, 0, 1)
		if _, _, err := svc.AddHealthRecord(ctx, core.HealthRecord{CowID: cow.ID, Disease: "lameness", StartDate: testNow, EndDate: &end, Status: domain.HealthRecovered}); err != nil {
			t.Fatalf("add health: %v", err)
		}
		if got, _ := svc.GetCattle(ctx, cow.ID); got.IsSick {
			t.Fatalf("expected health write to rederive the flag from records")
		}
	})
}

func TestFailedCascadeLeavesNoPartialWrites(t *testing.T) {
	blockIncome := func() *core.RulesEngine {
		engine := core.NewDefaultRulesEngine()
		engine.Register(blockIncomeRule{})
		return engine
	}
	for name, svc := range newServices(t, blockIncome) {
		svc := svc
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cow := mustAddCow(t, svc, "KE-001")
			if _, _, err := svc.AddEvent(ctx, core.Event{Type: "vaccination", Date: testNow, Cows: domain.Cows(cow.ID)}); err != nil {
				t.Fatalf("add event: %v", err)
			}
			sold := domain.DisposalSold
			amount := decimal.NewFromInt(500)
			_, res, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &sold, SaleAmount: &amount})
			var ruleErr domain.RuleViolationError
			if !errors.As(err, &ruleErr) || !res.HasBlocking() {
				t.Fatalf("expected blocked sale, got res=%+v err=%v", res, err)
			}
			got, err := svc.GetCattle(ctx, cow.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.IsPresent || got.Disposal != domain.DisposalAlive {
				t.Fatalf("expected cow untouched after rollback, got %+v", got)
			}
			events, _ := svc.ListEventsForCattle(ctx, cow.ID)
			if len(events) != 1 {
				t.Fatalf("expected event kept after rollback, got %d", len(events))
			}
		})
	}
}

func TestListCattleNewestFirstAndPartition(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		first := mustAddCow(t, svc, "A")
		second := mustAddCow(t, svc, "B")
		sold := domain.DisposalSold
		if _, _, err := svc.ChangeCattleStatus(ctx, first.ID, core.StatusChange{Disposal: &sold}); err != nil {
			t.Fatalf("sell: %v", err)
		}
		all, err := svc.ListCattle(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 2 || all[0].ID != second.ID {
			t.Fatalf("expected newest first, got %+v", all)
		}
		present, disposed := core.PartitionCattle(all)
		if len(present) != 1 || present[0].ID != second.ID || len(disposed) != 1 || disposed[0].ID != first.ID {
			t.Fatalf("unexpected partition: present=%v disposed=%v", present, disposed)
		}
	})
}

func TestFilterCattle(t *testing.T) {
	dob := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	sick := true
	cattle := []core.Cattle{
		{Base: core.Base{ID: 1}, EarTagNumber: "A1", Breed: domain.BreedJersey, Status: domain.StatusLactatingAndPregnant, IsPresent: true, DateOfBirth: &dob},
		{Base: core.Base{ID: 2}, EarTagNumber: "A2", Breed: domain.BreedGir, Status: domain.StatusPregnant, IsPresent: true, IsSick: true},
		{Base: core.Base{ID: 3}, EarTagNumber: "B3", Name: "Bella", Breed: domain.BreedJersey, Status: domain.StatusNonLactating},
	}
	if got := core.FilterCattle(cattle, core.CattleFilter{Group: domain.GroupPregnant}); len(got) != 2 {
		t.Fatalf("expected two pregnant animals, got %d", len(got))
	}
	if got := core.FilterCattle(cattle, core.CattleFilter{Breed: domain.BreedJersey, Group: domain.GroupLactating}); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected breed+group filter result: %+v", got)
	}
	if got := core.FilterCattle(cattle, core.CattleFilter{Sick: &sick}); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected sick filter result: %+v", got)
	}
	after := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := core.FilterCattle(cattle, core.CattleFilter{BornAfter: &after}); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected birth filter result: %+v", got)
	}
	if got := core.FilterCattle(cattle, core.CattleFilter{EarTagQuery: "bel"}); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("unexpected search result: %+v", got)
	}
}

type blockIncomeRule struct{}

func (blockIncomeRule) Name() string { return "block_income" }

func (blockIncomeRule) Evaluate(_ context.Context, _ domain.TxView, changes []core.Change) (core.Result, error) {
	res := core.Result{}
	for _, c := range changes {
		if t, ok := c.After.(core.Transaction); ok && t.Type == domain.TransactionIncome {
			res.Violations = append(res.Violations, core.Violation{Rule: "block_income", Severity: core.SeverityBlock, Message: "income frozen"})
		}
	}
	return res, nil
}
