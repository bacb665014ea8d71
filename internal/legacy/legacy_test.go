package legacy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"herdbook/internal/backup"
	"herdbook/internal/core"
	"herdbook/pkg/domain"
)

const legacySchema = `
CREATE TABLE cattle (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  earTagNumber TEXT NOT NULL UNIQUE,
  name TEXT,
  gender TEXT NOT NULL,
  cattleObtained TEXT NOT NULL,
  cattleBreed TEXT,
  cattleStage TEXT,
  cattleStatus TEXT,
  weight TEXT,
  dateOfBirth TEXT,
  dateOfEntry TEXT,
  motherTagNo TEXT,
  isPresent INTEGER DEFAULT 1,
  status TEXT DEFAULT 'alive',
  saleAmount REAL,
  purchasePrice REAL,
  inseminationDate TEXT,
  lastDeliveryDate TEXT,
  isSick INTEGER DEFAULT 0,
  createdAt TEXT DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  type TEXT NOT NULL,
  date TEXT NOT NULL,
  description TEXT,
  cowIds TEXT NOT NULL,
  status TEXT DEFAULT 'pending',
  createdAt TEXT DEFAULT (datetime('now')),
  updatedAt TEXT DEFAULT (datetime('now'))
);
CREATE TABLE transactions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  type TEXT NOT NULL,
  amount REAL NOT NULL,
  description TEXT,
  date TEXT NOT NULL,
  category TEXT,
  cowId INTEGER,
  createdAt TEXT DEFAULT (datetime('now')),
  updatedAt TEXT DEFAULT (datetime('now'))
);
CREATE TABLE health (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cowId INTEGER NOT NULL,
  disease TEXT NOT NULL,
  symptoms TEXT,
  diagnosis TEXT,
  treatment TEXT,
  startDate TEXT NOT NULL,
  endDate TEXT,
  status TEXT DEFAULT 'active',
  notes TEXT,
  createdAt TEXT DEFAULT (datetime('now')),
  updatedAt TEXT DEFAULT (datetime('now'))
);
`

const splitRateMilk = `
CREATE TABLE milk (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  cowIds TEXT NOT NULL,
  amTotal REAL DEFAULT 0,
  pmTotal REAL DEFAULT 0,
  totalProduced REAL NOT NULL,
  milkRateAm REAL DEFAULT 0,
  milkRatePm REAL DEFAULT 0,
  totalIncome REAL DEFAULT 0,
  createdAt TEXT DEFAULT (datetime('now')),
  updatedAt TEXT DEFAULT (datetime('now'))
);
INSERT INTO milk (id, date, cowIds, amTotal, pmTotal, totalProduced, milkRateAm, milkRatePm) VALUES
  (1, '2024-03-01T06:00:00.000Z', '["all"]', 10, 5, 15, 50, 40),
  (2, '2024-03-01T18:00:00.000Z', '["all"]', 4, 4, 8, 50, 40),
  (3, '2024-03-02', '[1]', 3, 0, 99, 50, 0);
`

const singleRateMilk = `
CREATE TABLE milk (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  cowIds TEXT NOT NULL,
  amTotal REAL DEFAULT 0,
  pmTotal REAL DEFAULT 0,
  totalProduced REAL NOT NULL,
  milkRate REAL DEFAULT 0,
  totalIncome REAL DEFAULT 0,
  createdAt TEXT DEFAULT (datetime('now')),
  updatedAt TEXT DEFAULT (datetime('now'))
);
INSERT INTO milk (id, date, cowIds, amTotal, pmTotal, totalProduced, milkRate) VALUES
  (1, '2024-03-01', '["all"]', 10, 10, 20, 30);
`

const legacyRows = `
INSERT INTO cattle (id, earTagNumber, gender, cattleObtained, cattleBreed, cattleStage, cattleStatus, isPresent, status, saleAmount, purchasePrice, isSick, createdAt) VALUES
  (1, 'KE-1', 'female', 'bornOnFarm', 'holsteinFriesian', 'cow', 'lactating', 1, 'alive', NULL, NULL, 0, '2023-01-10T08:00:00.000Z'),
  (2, 'KE-2', 'female', 'purchase', 'jersey', 'heifer', 'resting', 1, 'sold', 400, 250.5, 0, '2023-02-10 08:00:00'),
  (3, 'KE-3', 'unknown', 'bornOnFarm', 'gir', 'calf', NULL, 1, 'alive', NULL, NULL, 0, NULL),
  (4, 'ke-1', 'male', 'bornOnFarm', 'gir', 'calf', NULL, 1, 'alive', NULL, NULL, 0, NULL);
INSERT INTO events (id, type, date, cowIds, status) VALUES
  (1, 'vaccination', '2024-03-01', '[1,2]', 'pending'),
  (2, 'deworming', '2024-03-02', 'garbage', 'pending'),
  (3, 'checkup', '2024-03-03', '[99]', 'pending'),
  (4, 'spraying', '2024-03-04', '["all"]', 'completed');
INSERT INTO transactions (id, type, amount, date, category, cowId) VALUES
  (1, 'income', 500, '2024-03-01', 'milkSales', NULL),
  (2, 'expense', 0, '2024-03-01', 'feed', NULL),
  (3, 'expense', 120, '2024-03-02', 'milkSales', NULL),
  (4, 'income', 50, '2024-03-03', 'otherIncome', 3);
INSERT INTO health (id, cowId, disease, startDate, status) VALUES
  (1, 1, 'mastitis', '2024-03-01', 'active'),
  (2, 3, 'foot rot', '2024-03-01', 'active');
`

func writeLegacy(t *testing.T, milk string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{legacySchema, milk, legacyRows} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed legacy db: %v", err)
		}
	}
	return path
}

func newImporter() *Importer {
	imp := NewImporter(WithLocation(time.UTC))
	imp.now = func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) }
	return imp
}

func TestImportRepairsAndSkips(t *testing.T) {
	ctx := context.Background()
	path := writeLegacy(t, splitRateMilk)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())

	report, err := newImporter().Import(ctx, path, svc.Store())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	want := backup.Counts{Cattle: 2, Events: 2, MilkRecords: 2, Transactions: 3, HealthRecords: 1}
	if report.Imported != want {
		t.Fatalf("imported %+v, want %+v", report.Imported, want)
	}
	skipped := map[domain.EntityType][]int64{}
	for _, s := range report.Skipped {
		skipped[s.Entity] = append(skipped[s.Entity], s.ID)
	}
	if len(skipped[domain.EntityCattle]) != 2 || len(skipped[domain.EntityEvent]) != 2 ||
		len(skipped[domain.EntityMilkRecord]) != 1 || skipped[domain.EntityMilkRecord][0] != 2 ||
		len(skipped[domain.EntityTransaction]) != 1 || len(skipped[domain.EntityHealthRecord]) != 1 {
		t.Fatalf("unexpected skips %+v", report.Skipped)
	}
	if report.Repaired == 0 {
		t.Fatalf("expected repairs to be counted")
	}

	first, err := svc.GetCattle(ctx, 1)
	if err != nil {
		t.Fatalf("get cow 1: %v", err)
	}
	if !first.IsSick || !first.IsPresent || first.Breed != domain.BreedHolsteinFriesian {
		t.Fatalf("unexpected cow 1 %+v", first)
	}
	if !first.CreatedAt.Equal(time.Date(2023, 1, 10, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("created at not preserved: %v", first.CreatedAt)
	}
	second, err := svc.GetCattle(ctx, 2)
	if err != nil {
		t.Fatalf("get cow 2: %v", err)
	}
	if second.IsPresent || second.Disposal != domain.DisposalSold || second.Status != domain.StatusOther {
		t.Fatalf("unexpected cow 2 %+v", second)
	}
	if !second.PurchasePrice.Valid || !second.PurchasePrice.Decimal.Equal(decimal.RequireFromString("250.5")) ||
		!second.SaleAmount.Decimal.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected cow 2 money %+v %+v", second.PurchasePrice, second.SaleAmount)
	}
	if _, err := svc.GetCattle(ctx, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cow 3 skipped, got %v", err)
	}

	herd, err := svc.GetEvent(ctx, 4)
	if err != nil || !herd.Cows.All || herd.Status != domain.EventCompleted {
		t.Fatalf("unexpected herd event %+v err=%v", herd, err)
	}
	milk, err := svc.ListMilkRecords(ctx, nil)
	if err != nil {
		t.Fatalf("list milk: %v", err)
	}
	var herdMilk, cowMilk *core.MilkRecord
	for i := range milk {
		switch milk[i].ID {
		case 1:
			herdMilk = &milk[i]
		case 3:
			cowMilk = &milk[i]
		}
	}
	if herdMilk == nil || cowMilk == nil {
		t.Fatalf("expected milk records 1 and 3, got %+v", milk)
	}
	if !herdMilk.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !herdMilk.TotalIncome.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected herd milk %+v", herdMilk)
	}
	if cowMilk.TotalProduced != 3 {
		t.Fatalf("expected recomputed total 3, got %v", cowMilk.TotalProduced)
	}

	txs, err := svc.ListTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	for _, tx := range txs {
		switch tx.ID {
		case 3:
			if tx.Category != domain.CategoryOtherExpenses {
				t.Fatalf("expected default expense category, got %s", tx.Category)
			}
		case 4:
			if tx.CowID != nil {
				t.Fatalf("expected link to skipped cow dropped, got %d", *tx.CowID)
			}
		}
	}

	if _, err := newImporter().Import(ctx, path, svc.Store()); !errors.Is(err, backup.ErrStoreNotEmpty) {
		t.Fatalf("expected second import to be refused, got %v", err)
	}
}

func TestImportSingleRateMilk(t *testing.T) {
	ctx := context.Background()
	path := writeLegacy(t, singleRateMilk)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if _, err := newImporter().Import(ctx, path, svc.Store()); err != nil {
		t.Fatalf("import: %v", err)
	}
	milk, err := svc.ListMilkRecords(ctx, nil)
	if err != nil || len(milk) != 1 {
		t.Fatalf("expected one milk record, got %+v err=%v", milk, err)
	}
	got := milk[0]
	if !got.RateAM.Equal(decimal.NewFromInt(30)) || !got.RatePM.Equal(decimal.NewFromInt(30)) || !got.TotalIncome.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected single-rate milk %+v", got)
	}
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	if err := Detect(ctx, writeLegacy(t, singleRateMilk)); err != nil {
		t.Fatalf("detect legacy: %v", err)
	}
	other := filepath.Join(t.TempDir(), "other.db")
	db, err := sqlx.Open("sqlite", other)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.MustExec(`CREATE TABLE notes (id INTEGER PRIMARY KEY)`)
	_ = db.Close()
	if err := Detect(ctx, other); !errors.Is(err, ErrNotLegacy) {
		t.Fatalf("expected ErrNotLegacy, got %v", err)
	}
	if err := Detect(ctx, filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestParseTimeLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T06:00:00.000Z":  time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		"2024-03-01T06:00:00+03:00": time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
		"2024-03-01 06:00:00":       time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, ok := parseTime(raw)
		if !ok || !got.Equal(want) {
			t.Fatalf("parseTime(%q) = %v %v, want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseTime("March 1st"); ok {
		t.Fatalf("expected unparseable date to fail")
	}
}
