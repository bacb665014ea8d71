package core_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"herdbook/internal/core"
	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

func TestEventValidationAndCowOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		a, b, c := mustAddCow(t, svc, "A"), mustAddCow(t, svc, "B"), mustAddCow(t, svc, "C")

		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "vaccination", Date: testNow}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected empty cow list to fail, got %v", err)
		}
		if _, _, err := svc.AddEvent(ctx, core.Event{Date: testNow, Cows: domain.Cows(a.ID)}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected missing type to fail, got %v", err)
		}
		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "x", Date: testNow, Cows: domain.Cows(999)}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected unknown cow to fail, got %v", err)
		}

		ordered, _, err := svc.AddEvent(ctx, core.Event{Type: "deworming", Date: testNow, Cows: domain.Cows(c.ID, a.ID, b.ID)})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		herd, _, err := svc.AddEvent(ctx, core.Event{Type: "spraying", Date: testNow.Add(time.Hour), Cows: domain.Herd()})
		if err != nil {
			t.Fatalf("add herd event: %v", err)
		}
		got, err := svc.GetEvent(ctx, ordered.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		want := []int64{c.ID, a.ID, b.ID}
		for i, id := range want {
			if got.Cows.IDs[i] != id {
				t.Fatalf("cow order not preserved: got %v want %v", got.Cows.IDs, want)
			}
		}
		if got.Status != domain.EventPending {
			t.Fatalf("expected pending default, got %s", got.Status)
		}
		gotHerd, _ := svc.GetEvent(ctx, herd.ID)
		if !gotHerd.Cows.All || gotHerd.Cows.String() != `["all"]` {
			t.Fatalf("expected herd sentinel preserved, got %v", gotHerd.Cows)
		}
		events, _ := svc.ListEvents(ctx)
		if len(events) != 2 || events[0].ID != herd.ID {
			t.Fatalf("expected latest date first, got %+v", events)
		}
	})
}

func TestEventDeletePolicies(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "A")
		ev, _, err := svc.AddEvent(ctx, core.Event{Type: domain.EventTypeInsemination, Date: testNow, Cows: domain.Cows(cow.ID)})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if _, err := svc.DeleteEvent(ctx, ev.ID); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected pending delete refused, got %v", err)
		}
		if _, _, err := svc.SetEventStatus(ctx, ev.ID, "done"); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected unknown status refused, got %v", err)
		}
		if _, _, err := svc.SetEventStatus(ctx, ev.ID, domain.EventCompleted); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if _, err := svc.DeleteEvent(ctx, ev.ID); err != nil {
			t.Fatalf("delete completed: %v", err)
		}

		pending, _, _ := svc.AddEvent(ctx, core.Event{Type: "checkup", Date: testNow, Cows: domain.Cows(cow.ID)})
		if _, err := svc.ForceDeleteEvent(ctx, pending.ID); err != nil {
			t.Fatalf("force delete: %v", err)
		}
		if _, err := svc.ForceDeleteEvent(ctx, pending.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}

		for i := 0; i < 3; i++ {
			if _, _, err := svc.AddEvent(ctx, core.Event{Type: "checkup", Date: testNow, Cows: domain.Cows(cow.ID)}); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		removed, _, err := svc.DeleteEventsForCattle(ctx, cow.ID)
		if err != nil || removed != 3 {
			t.Fatalf("expected three events removed, got %d err=%v", removed, err)
		}
	})
}

func TestUpdateEventAndUpcoming(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		a, b := mustAddCow(t, svc, "A"), mustAddCow(t, svc, "B")
		ev, _, err := svc.AddEvent(ctx, core.Event{Type: domain.EventTypeDelivery, Date: testNow.AddDate(0, 0, 20), Cows: domain.Cows(a.ID)})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		soon, _, _ := svc.AddEvent(ctx, core.Event{Type: "checkup", Date: testNow.AddDate(0, 0, 2), Cows: domain.Cows(b.ID)})

		upcoming, err := svc.UpcomingEvents(ctx, testNow, 15)
		if err != nil {
			t.Fatalf("upcoming: %v", err)
		}
		if len(upcoming) != 1 || upcoming[0].ID != soon.ID {
			t.Fatalf("expected only the near event, got %+v", upcoming)
		}

		updated, _, err := svc.UpdateEvent(ctx, ev.ID, core.Event{Type: domain.EventTypeDelivery, Date: testNow.AddDate(0, 0, 10), Description: "moved", Cows: domain.Cows(b.ID)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Description != "moved" || updated.Cows.Includes(a.ID) || !updated.Cows.Includes(b.ID) || updated.Status != domain.EventPending {
			t.Fatalf("unexpected updated event: %+v", updated)
		}
		upcoming, _ = svc.UpcomingEvents(ctx, testNow, 15)
		if len(upcoming) != 2 || upcoming[0].ID != soon.ID {
			t.Fatalf("expected two upcoming events earliest first, got %+v", upcoming)
		}
		if _, _, err := svc.UpdateEvent(ctx, ev.ID, core.Event{Type: "x", Date: testNow}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected update validation, got %v", err)
		}
	})
}

func TestMilkHerdRecordPerDay(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "A")
		morning := testNow
		record, _, err := svc.AddMilkRecord(ctx, core.MilkRecord{
			Date: morning, Cows: domain.Herd(),
			AMTotal: 40, PMTotal: 42.5,
			RateAM: decimal.NewFromFloat(12.5), RatePM: decimal.NewFromInt(10),
		})
		if err != nil {
			t.Fatalf("add herd record: %v", err)
		}
		if record.TotalProduced != 82.5 || !record.TotalIncome.Equal(decimal.NewFromInt(925)) {
			t.Fatalf("expected derived totals, got %+v", record)
		}
		evening := testNow.Add(8 * time.Hour)
		if _, _, err := svc.AddMilkRecord(ctx, core.MilkRecord{Date: evening, Cows: domain.Herd(), AMTotal: 1}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict for a second herd record on the day, got %v", err)
		}
		individual, _, err := svc.AddMilkRecord(ctx, core.MilkRecord{Date: evening, Cows: domain.Cows(cow.ID), AMTotal: 5, PMTotal: 4, RateAM: decimal.NewFromInt(50), RatePM: decimal.NewFromInt(50)})
		if err != nil {
			t.Fatalf("individual record on the same day should succeed: %v", err)
		}

		next, _, err := svc.AddMilkRecord(ctx, core.MilkRecord{Date: testNow.AddDate(0, 0, 1), Cows: domain.Herd(), AMTotal: 10})
		if err != nil {
			t.Fatalf("next day herd record: %v", err)
		}
		if _, _, err := svc.UpdateMilkRecord(ctx, next.ID, core.MilkRecord{Date: testNow, Cows: domain.Herd(), AMTotal: 10}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict when moving onto an occupied day, got %v", err)
		}
		edited, _, err := svc.UpdateMilkRecord(ctx, record.ID, core.MilkRecord{Date: testNow, Cows: domain.Herd(), AMTotal: 30, PMTotal: 30, RateAM: decimal.NewFromInt(10), RatePM: decimal.NewFromInt(10)})
		if err != nil {
			t.Fatalf("update in place: %v", err)
		}
		if edited.TotalProduced != 60 || !edited.TotalIncome.Equal(decimal.NewFromInt(600)) {
			t.Fatalf("expected totals recomputed on update, got %+v", edited)
		}

		forCow, _ := svc.ListMilkRecordsForCattle(ctx, cow.ID)
		if len(forCow) != 1 || forCow[0].ID != individual.ID {
			t.Fatalf("expected only the individual record for the cow, got %+v", forCow)
		}
		window, _ := daterange.Custom(testNow, testNow)
		today, _ := svc.ListMilkRecords(ctx, window)
		if len(today) != 2 {
			t.Fatalf("expected two records inside today's window, got %d", len(today))
		}
		if _, err := svc.DeleteMilkRecord(ctx, individual.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := svc.DeleteMilkRecord(ctx, individual.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestMilkTotalsMustBeFinite(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		for name, m := range map[string]core.MilkRecord{
			"+inf am":  {Date: testNow, Cows: domain.Herd(), AMTotal: math.Inf(1)},
			"-inf pm":  {Date: testNow, Cows: domain.Herd(), PMTotal: math.Inf(-1)},
			"nan am":   {Date: testNow, Cows: domain.Herd(), AMTotal: math.NaN()},
			"negative": {Date: testNow, Cows: domain.Herd(), PMTotal: -1},
		} {
			if _, _, err := svc.AddMilkRecord(ctx, m); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("%s: expected validation error, got %v", name, err)
			}
		}
		records, _ := svc.ListMilkRecords(ctx, nil)
		if len(records) != 0 {
			t.Fatalf("expected nothing stored, got %+v", records)
		}
	})
}

func TestEventsRefusedForDisposedCattle(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow, other := mustAddCow(t, svc, "A"), mustAddCow(t, svc, "B")
		ev, _, err := svc.AddEvent(ctx, core.Event{Type: "checkup", Date: testNow, Cows: domain.Cows(other.ID)})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		died := domain.DisposalDied
		if _, _, err := svc.ChangeCattleStatus(ctx, cow.ID, core.StatusChange{Disposal: &died}); err != nil {
			t.Fatalf("dispose: %v", err)
		}
		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "vaccination", Date: testNow, Cows: domain.Cows(cow.ID)}); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected event on dead cow refused, got %v", err)
		}
		if _, _, err := svc.UpdateEvent(ctx, ev.ID, core.Event{Type: "checkup", Date: testNow, Cows: domain.Cows(other.ID, cow.ID)}); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected update naming dead cow refused, got %v", err)
		}
		events, _ := svc.ListEventsForCattle(ctx, cow.ID)
		if len(events) != 0 {
			t.Fatalf("expected no events for disposed cow, got %+v", events)
		}
		if _, _, err := svc.AddEvent(ctx, core.Event{Type: "spraying", Date: testNow, Cows: domain.Herd()}); err != nil {
			t.Fatalf("herd events are unaffected by disposals: %v", err)
		}
	})
}

func TestTransactionsCRUDAndFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "A")
		if _, _, err := svc.AddTransaction(ctx, core.Transaction{Type: domain.TransactionIncome, Amount: decimal.Zero, Date: testNow}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected zero amount refused, got %v", err)
		}
		if _, _, err := svc.AddTransaction(ctx, core.Transaction{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(1), Date: testNow, Category: domain.CategoryFeed}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected mismatched category refused, got %v", err)
		}
		income, _, err := svc.AddTransaction(ctx, core.Transaction{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(300), Date: testNow})
		if err != nil {
			t.Fatalf("add income: %v", err)
		}
		if income.Category != domain.CategoryOtherIncome {
			t.Fatalf("expected default category, got %s", income.Category)
		}
		feed, _, err := svc.AddTransaction(ctx, core.Transaction{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(120), Date: testNow.AddDate(0, -2, 0), Category: domain.CategoryFeed, CowID: &cow.ID})
		if err != nil {
			t.Fatalf("add expense: %v", err)
		}

		window, _ := daterange.Resolve(daterange.CurrentMonth, testNow)
		thisMonth, _ := svc.ListTransactions(ctx, core.TransactionFilter{Range: window})
		if len(thisMonth) != 1 || thisMonth[0].ID != income.ID {
			t.Fatalf("unexpected month filter result: %+v", thisMonth)
		}
		forCow, _ := svc.ListTransactions(ctx, core.TransactionFilter{CowID: &cow.ID})
		if len(forCow) != 1 || forCow[0].ID != feed.ID {
			t.Fatalf("unexpected cow filter result: %+v", forCow)
		}

		summary, err := svc.FinanceSummary(ctx, nil)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if !summary.Net.Equal(decimal.NewFromInt(180)) {
			t.Fatalf("expected net 180, got %s", summary.Net)
		}

		edited, _, err := svc.UpdateTransaction(ctx, feed.ID, core.Transaction{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(150), Date: testNow, Category: domain.CategoryVeterinary})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if edited.CowID != nil || !edited.Amount.Equal(decimal.NewFromInt(150)) || edited.Category != domain.CategoryVeterinary {
			t.Fatalf("expected full replace, got %+v", edited)
		}
		if _, err := svc.DeleteTransaction(ctx, income.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		all, _ := svc.ListTransactions(ctx, core.TransactionFilter{})
		if len(all) != 1 {
			t.Fatalf("expected one transaction left, got %d", len(all))
		}
	})
}

func TestHealthRecordsDriveSickness(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		cow := mustAddCow(t, svc, "A")
		first, _, err := svc.AddHealthRecord(ctx, core.HealthRecord{CowID: cow.ID, Disease: "mastitis", StartDate: testNow})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		second, _, err := svc.AddHealthRecord(ctx, core.HealthRecord{CowID: cow.ID, Disease: "lameness", StartDate: testNow.AddDate(0, 0, 1)})
		if err != nil {
			t.Fatalf("add second: %v", err)
		}
		if got, _ := svc.GetCattle(ctx, cow.ID); !got.IsSick {
			t.Fatalf("expected active record to mark cow sick")
		}

		end := testNow.AddDate(0, 0, 3)
		recovered := first
		recovered.Status = domain.HealthRecovered
		recovered.EndDate = &end
		if _, _, err := svc.UpdateHealthRecord(ctx, first.ID, recovered); err != nil {
			t.Fatalf("recover first: %v", err)
		}
		if got, _ := svc.GetCattle(ctx, cow.ID); !got.IsSick {
			t.Fatalf("expected cow still sick while another record is active")
		}
		if _, err := svc.DeleteHealthRecord(ctx, second.ID); err != nil {
			t.Fatalf("delete second: %v", err)
		}
		if got, _ := svc.GetCattle(ctx, cow.ID); got.IsSick {
			t.Fatalf("expected cow healthy once no record is active")
		}

		records, _ := svc.ListHealthRecords(ctx, cow.ID)
		if len(records) != 1 || records[0].Status != domain.HealthRecovered {
			t.Fatalf("unexpected records: %+v", records)
		}
		if _, _, err := svc.AddHealthRecord(ctx, core.HealthRecord{CowID: 999, Disease: "x", StartDate: testNow}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected unknown cow refused, got %v", err)
		}
		early := testNow.AddDate(0, 0, -1)
		if _, _, err := svc.AddHealthRecord(ctx, core.HealthRecord{CowID: cow.ID, Disease: "x", StartDate: testNow, EndDate: &early}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected end before start refused, got %v", err)
		}
	})
}

func TestHerdStatsFromService(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *core.Service) {
		ctx := context.Background()
		status := domain.StatusLactatingAndPregnant
		cow := mustAddCow(t, svc, "A")
		if _, _, err := svc.UpdateCattle(ctx, cow.ID, core.CattlePatch{Status: &status}); err != nil {
			t.Fatalf("update: %v", err)
		}
		snap, err := svc.HerdStats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if snap.Total != 1 || snap.Pregnant != 1 || snap.Lactating != 1 || snap.Cows != 1 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	})
}
