// Package legacy imports the database written by the original mobile app.
// Rows keep their ids; values the current model rejects are repaired or the
// row is skipped, and every decision is logged and counted in the Report.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"herdbook/internal/backup"
	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

// Skip records one row that was left out of the import.
type Skip struct {
	Entity domain.EntityType `json:"entity"`
	ID     int64             `json:"id"`
	Reason string            `json:"reason"`
}

// Report summarises an import.
type Report struct {
	Imported backup.Counts `json:"imported"`
	Skipped  []Skip        `json:"skipped"`
	Repaired int           `json:"repaired"`
}

// Importer converts legacy rows into herd records.
type Importer struct {
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger used for repair and skip warnings.
func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithLocation sets the farm time zone used to map milk dates onto days.
func WithLocation(loc *time.Location) Option {
	return func(i *Importer) {
		if loc != nil {
			i.loc = loc
		}
	}
}

// NewImporter returns an Importer with a no-op logger and the local time zone.
func NewImporter(opts ...Option) *Importer {
	i := &Importer{logger: zap.NewNop(), loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type snapshot struct {
	cattle       []cattleRow
	events       []eventRow
	milk         []milkRow
	transactions []transactionRow
	health       []healthRow
}

// Open opens the legacy database read-only.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("legacy database: %w", err)
	}
	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	return db, nil
}

// Import reads the legacy database at path and writes its records to store
// in one transaction. The store must be empty.
func (i *Importer) Import(ctx context.Context, path string, store domain.PersistentStore) (Report, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return Report{}, err
	}
	defer db.Close()

	snap, err := read(ctx, db)
	if err != nil {
		return Report{}, err
	}
	doc, report := i.convert(snap)
	if err := backup.Apply(ctx, store, doc); err != nil {
		return Report{}, fmt.Errorf("write imported records: %w", err)
	}
	i.logger.Info("legacy import finished",
		zap.Int("cattle", report.Imported.Cattle),
		zap.Int("events", report.Imported.Events),
		zap.Int("milk_records", report.Imported.MilkRecords),
		zap.Int("transactions", report.Imported.Transactions),
		zap.Int("health_records", report.Imported.HealthRecords),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("repaired", report.Repaired),
	)
	return report, nil
}

func read(ctx context.Context, db *sqlx.DB) (snapshot, error) {
	var snap snapshot
	queries := []struct {
		dest  any
		query string
	}{
		{&snap.cattle, `SELECT id, earTagNumber, name, gender, cattleObtained, cattleBreed, cattleStage, cattleStatus, weight, dateOfBirth, dateOfEntry, motherTagNo, isPresent, status, saleAmount, purchasePrice, inseminationDate, lastDeliveryDate, isSick, createdAt, updatedAt FROM cattle ORDER BY id`},
		{&snap.events, `SELECT id, type, date, description, cowIds, status, createdAt, updatedAt FROM events ORDER BY id`},
		{&snap.transactions, `SELECT id, type, amount, description, date, category, cowId, createdAt, updatedAt FROM transactions ORDER BY id`},
		{&snap.health, `SELECT id, cowId, disease, symptoms, diagnosis, treatment, startDate, endDate, status, notes, createdAt, updatedAt FROM health ORDER BY id`},
	}
	for _, q := range queries {
		if err := db.SelectContext(ctx, q.dest, q.query); err != nil {
			return snapshot{}, fmt.Errorf("read legacy rows: %w", err)
		}
	}
	milkQuery, err := milkSelect(ctx, db)
	if err != nil {
		return snapshot{}, err
	}
	if err := db.SelectContext(ctx, &snap.milk, milkQuery); err != nil {
		return snapshot{}, fmt.Errorf("read legacy milk rows: %w", err)
	}
	return snap, nil
}

// milkSelect adapts to both milk layouts: one milkRate column in older
// databases, milkRateAm and milkRatePm in newer ones.
func milkSelect(ctx context.Context, db *sqlx.DB) (string, error) {
	var columns []struct {
		CID        int     `db:"cid"`
		Name       string  `db:"name"`
		Type       string  `db:"type"`
		NotNull    int     `db:"notnull"`
		Default    *string `db:"dflt_value"`
		PrimaryKey int     `db:"pk"`
	}
	if err := db.SelectContext(ctx, &columns, `PRAGMA table_info(milk)`); err != nil {
		return "", fmt.Errorf("inspect legacy milk table: %w", err)
	}
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c.Name] = true
	}
	rate := func(session string) string {
		var candidates []string
		if has["milkRate"+session] {
			candidates = append(candidates, "milkRate"+session)
		}
		if has["milkRate"] {
			candidates = append(candidates, "milkRate")
		}
		if len(candidates) == 0 {
			return "0"
		}
		return "COALESCE(" + strings.Join(candidates, ", ") + ", 0)"
	}
	return fmt.Sprintf(`SELECT id, date, cowIds, amTotal, pmTotal, totalProduced, %s AS rateAm, %s AS ratePm, createdAt, updatedAt FROM milk ORDER BY id`,
		rate("Am"), rate("Pm")), nil
}

func (i *Importer) skip(r *Report, entity domain.EntityType, id int64, reason string) {
	i.logger.Warn("legacy row skipped", zap.String("entity", string(entity)), zap.Int64("id", id), zap.String("reason", reason))
	r.Skipped = append(r.Skipped, Skip{Entity: entity, ID: id, Reason: reason})
}

func (i *Importer) repair(r *Report, entity domain.EntityType, id int64, what string) {
	i.logger.Warn("legacy row repaired", zap.String("entity", string(entity)), zap.Int64("id", id), zap.String("repair", what))
	r.Repaired++
}

func (i *Importer) convert(snap snapshot) (backup.Document, Report) {
	now := i.now().UTC()
	doc := backup.Document{Version: backup.FormatVersion, ExportedAt: now}
	var report Report

	known := make(map[int64]bool, len(snap.cattle))
	tags := make(map[string]bool, len(snap.cattle))
	for _, row := range snap.cattle {
		c, ok := i.convertCattle(&report, row, now)
		if !ok {
			continue
		}
		key := strings.ToLower(c.EarTagNumber)
		if tags[key] {
			i.skip(&report, domain.EntityCattle, row.ID, "duplicate ear tag "+c.EarTagNumber)
			continue
		}
		tags[key] = true
		known[c.ID] = true
		doc.Cattle = append(doc.Cattle, c)
	}

	for _, row := range snap.events {
		if e, ok := i.convertEvent(&report, row, known, now); ok {
			doc.Events = append(doc.Events, e)
		}
	}

	herdDays := make(map[time.Time]bool)
	for _, row := range snap.milk {
		m, ok := i.convertMilk(&report, row, known, now)
		if !ok {
			continue
		}
		if m.Cows.All {
			if herdDays[m.Date] {
				i.skip(&report, domain.EntityMilkRecord, row.ID, "second herd-wide record on "+m.Date.Format("2006-01-02"))
				continue
			}
			herdDays[m.Date] = true
		}
		doc.MilkRecords = append(doc.MilkRecords, m)
	}

	for _, row := range snap.transactions {
		if t, ok := i.convertTransaction(&report, row, known, now); ok {
			doc.Transactions = append(doc.Transactions, t)
		}
	}

	sick := make(map[int64]bool)
	for _, row := range snap.health {
		h, ok := i.convertHealth(&report, row, known, now)
		if !ok {
			continue
		}
		if h.Status == domain.HealthActive {
			sick[h.CowID] = true
		}
		doc.HealthRecords = append(doc.HealthRecords, h)
	}
	for idx := range doc.Cattle {
		c := &doc.Cattle[idx]
		if c.IsSick != sick[c.ID] {
			i.repair(&report, domain.EntityCattle, c.ID, "sick flag derived from health records")
			c.IsSick = sick[c.ID]
		}
	}

	report.Imported = backup.Counts{
		Cattle:        len(doc.Cattle),
		Events:        len(doc.Events),
		MilkRecords:   len(doc.MilkRecords),
		Transactions:  len(doc.Transactions),
		HealthRecords: len(doc.HealthRecords),
	}
	return doc, report
}

func (i *Importer) convertCattle(r *Report, row cattleRow, now time.Time) (domain.Cattle, bool) {
	c := domain.Cattle{
		Base: domain.Base{
			ID:        row.ID,
			CreatedAt: stampOr(row.CreatedAt, now),
			UpdatedAt: stampOr(row.UpdatedAt, now),
		},
		EarTagNumber:     strings.TrimSpace(row.EarTagNumber),
		Name:             row.Name.String,
		Gender:           domain.Gender(row.Gender),
		ObtainedMethod:   domain.ObtainedMethod(row.CattleObtained),
		Breed:            domain.Breed(row.CattleBreed.String),
		Stage:            domain.Stage(row.CattleStage.String),
		Status:           domain.ReproStatus(row.CattleStatus.String),
		Weight:           row.Weight.String,
		DateOfBirth:      parseOptionalTime(row.DateOfBirth),
		DateOfEntry:      parseOptionalTime(row.DateOfEntry),
		MotherTagNumber:  row.MotherTagNo.String,
		InseminationDate: parseOptionalTime(row.InseminationDate),
		LastDeliveryDate: parseOptionalTime(row.LastDeliveryDate),
		IsSick:           row.IsSick.Int64 == 1,
		IsPresent:        !row.IsPresent.Valid || row.IsPresent.Int64 == 1,
		Disposal:         domain.Disposal(row.Status.String),
	}
	switch {
	case c.EarTagNumber == "":
		i.skip(r, domain.EntityCattle, row.ID, "missing ear tag")
		return domain.Cattle{}, false
	case !c.Gender.Valid():
		i.skip(r, domain.EntityCattle, row.ID, "unknown gender "+row.Gender)
		return domain.Cattle{}, false
	}
	if !c.ObtainedMethod.Valid() {
		i.repair(r, domain.EntityCattle, row.ID, "unknown obtained method "+row.CattleObtained+" set to other")
		c.ObtainedMethod = domain.ObtainedOther
	}
	if !c.Breed.Valid() {
		i.repair(r, domain.EntityCattle, row.ID, "unknown breed "+string(c.Breed)+" set to other")
		c.Breed = domain.BreedOther
	}
	if !c.Stage.Valid() {
		i.repair(r, domain.EntityCattle, row.ID, "unknown stage "+string(c.Stage)+" cleared")
		c.Stage = ""
	}
	if !c.Status.Valid() {
		i.repair(r, domain.EntityCattle, row.ID, "unknown status "+string(c.Status)+" set to other")
		c.Status = domain.StatusOther
	}
	if c.Disposal == "" {
		c.Disposal = domain.DisposalAlive
	}
	if !c.Disposal.Valid() {
		i.repair(r, domain.EntityCattle, row.ID, "unknown disposal "+string(c.Disposal)+" set to alive")
		c.Disposal = domain.DisposalAlive
	}
	if c.Disposal.Terminal() == c.IsPresent {
		i.repair(r, domain.EntityCattle, row.ID, "presence aligned with disposal "+string(c.Disposal))
		c.IsPresent = !c.Disposal.Terminal()
	}
	if row.SaleAmount.Valid && finite(row.SaleAmount.Float64) && row.SaleAmount.Float64 > 0 && c.Disposal == domain.DisposalSold {
		c.SaleAmount = decimal.NewNullDecimal(money(row.SaleAmount.Float64))
	}
	if row.PurchasePrice.Valid && finite(row.PurchasePrice.Float64) && row.PurchasePrice.Float64 > 0 {
		c.PurchasePrice = decimal.NewNullDecimal(money(row.PurchasePrice.Float64))
	}
	c.Normalize()
	return c, true
}

// cows decodes a legacy cowIds column and drops ids of cattle that were not
// imported. ok is false when nothing usable remains.
func (i *Importer) cows(r *Report, entity domain.EntityType, id int64, raw string, known map[int64]bool) (domain.CowSet, bool) {
	set, err := domain.ParseCowSetLenient(raw)
	if err != nil {
		i.logger.Warn("malformed legacy cow ids", zap.String("entity", string(entity)), zap.Int64("id", id), zap.String("raw", raw), zap.Error(err))
	}
	if set.All {
		return set, true
	}
	set = set.Dedup()
	kept := set.IDs[:0]
	for _, cow := range set.IDs {
		if known[cow] {
			kept = append(kept, cow)
			continue
		}
		i.repair(r, entity, id, fmt.Sprintf("dropped unknown cow %d", cow))
	}
	set.IDs = kept
	if set.Empty() {
		i.skip(r, entity, id, "no usable cow ids in "+raw)
		return domain.CowSet{}, false
	}
	return set, true
}

func (i *Importer) convertEvent(r *Report, row eventRow, known map[int64]bool, now time.Time) (domain.Event, bool) {
	date, ok := parseTime(row.Date)
	if !ok {
		i.skip(r, domain.EntityEvent, row.ID, "unparseable date "+row.Date)
		return domain.Event{}, false
	}
	if strings.TrimSpace(row.Type) == "" {
		i.skip(r, domain.EntityEvent, row.ID, "missing type")
		return domain.Event{}, false
	}
	set, ok := i.cows(r, domain.EntityEvent, row.ID, row.CowIDs.String, known)
	if !ok {
		return domain.Event{}, false
	}
	status := domain.EventStatus(row.Status.String)
	if status == "" {
		status = domain.EventPending
	}
	if !status.Valid() {
		i.repair(r, domain.EntityEvent, row.ID, "unknown status "+string(status)+" set to pending")
		status = domain.EventPending
	}
	return domain.Event{
		Base:        domain.Base{ID: row.ID, CreatedAt: stampOr(row.CreatedAt, now), UpdatedAt: stampOr(row.UpdatedAt, now)},
		Type:        strings.TrimSpace(row.Type),
		Date:        date,
		Description: row.Description.String,
		Cows:        set,
		Status:      status,
	}, true
}

func (i *Importer) convertMilk(r *Report, row milkRow, known map[int64]bool, now time.Time) (domain.MilkRecord, bool) {
	date, ok := parseTime(row.Date)
	if !ok {
		i.skip(r, domain.EntityMilkRecord, row.ID, "unparseable date "+row.Date)
		return domain.MilkRecord{}, false
	}
	set, ok := i.cows(r, domain.EntityMilkRecord, row.ID, row.CowIDs.String, known)
	if !ok {
		return domain.MilkRecord{}, false
	}
	m := domain.MilkRecord{
		Base:    domain.Base{ID: row.ID, CreatedAt: stampOr(row.CreatedAt, now), UpdatedAt: stampOr(row.UpdatedAt, now)},
		Date:    daterange.StartOfDay(date.In(i.loc)).UTC(),
		Cows:    set,
		AMTotal: row.AMTotal.Float64,
		PMTotal: row.PMTotal.Float64,
		RateAM:  money(row.RateAM.Float64),
		RatePM:  money(row.RatePM.Float64),
	}
	if !finite(m.AMTotal) || !finite(m.PMTotal) || !finite(row.RateAM.Float64) || !finite(row.RatePM.Float64) {
		i.skip(r, domain.EntityMilkRecord, row.ID, "non-finite quantity or rate")
		return domain.MilkRecord{}, false
	}
	if m.AMTotal < 0 || m.PMTotal < 0 || m.RateAM.IsNegative() || m.RatePM.IsNegative() {
		i.skip(r, domain.EntityMilkRecord, row.ID, "negative quantity or rate")
		return domain.MilkRecord{}, false
	}
	m.Recompute()
	if row.TotalProduced.Valid && row.TotalProduced.Float64 != m.TotalProduced {
		i.repair(r, domain.EntityMilkRecord, row.ID, "total produced recomputed from session totals")
	}
	return m, true
}

func (i *Importer) convertTransaction(r *Report, row transactionRow, known map[int64]bool, now time.Time) (domain.Transaction, bool) {
	date, ok := parseTime(row.Date)
	if !ok {
		i.skip(r, domain.EntityTransaction, row.ID, "unparseable date "+row.Date)
		return domain.Transaction{}, false
	}
	t := domain.Transaction{
		Base:        domain.Base{ID: row.ID, CreatedAt: stampOr(row.CreatedAt, now), UpdatedAt: stampOr(row.UpdatedAt, now)},
		Type:        domain.TransactionType(row.Type),
		Amount:      money(row.Amount),
		Description: row.Description.String,
		Date:        date,
		Category:    domain.Category(row.Category.String),
	}
	switch {
	case !t.Type.Valid():
		i.skip(r, domain.EntityTransaction, row.ID, "unknown type "+row.Type)
		return domain.Transaction{}, false
	case !t.Amount.IsPositive():
		i.skip(r, domain.EntityTransaction, row.ID, "non-positive amount")
		return domain.Transaction{}, false
	}
	if t.Category == "" || !t.Category.ValidFor(t.Type) {
		if t.Category != "" {
			i.repair(r, domain.EntityTransaction, row.ID, "category "+string(t.Category)+" replaced by default")
		}
		t.Category = t.Type.DefaultCategory()
	}
	if row.CowID.Valid {
		if known[row.CowID.Int64] {
			cow := row.CowID.Int64
			t.CowID = &cow
		} else {
			i.repair(r, domain.EntityTransaction, row.ID, fmt.Sprintf("dropped link to unknown cow %d", row.CowID.Int64))
		}
	}
	return t, true
}

func (i *Importer) convertHealth(r *Report, row healthRow, known map[int64]bool, now time.Time) (domain.HealthRecord, bool) {
	if !known[row.CowID] {
		i.skip(r, domain.EntityHealthRecord, row.ID, fmt.Sprintf("unknown cow %d", row.CowID))
		return domain.HealthRecord{}, false
	}
	start, ok := parseTime(row.StartDate)
	if !ok {
		i.skip(r, domain.EntityHealthRecord, row.ID, "unparseable start date "+row.StartDate)
		return domain.HealthRecord{}, false
	}
	if strings.TrimSpace(row.Disease) == "" {
		i.skip(r, domain.EntityHealthRecord, row.ID, "missing disease")
		return domain.HealthRecord{}, false
	}
	h := domain.HealthRecord{
		Base:      domain.Base{ID: row.ID, CreatedAt: stampOr(row.CreatedAt, now), UpdatedAt: stampOr(row.UpdatedAt, now)},
		CowID:     row.CowID,
		Disease:   strings.TrimSpace(row.Disease),
		Symptoms:  row.Symptoms.String,
		Diagnosis: row.Diagnosis.String,
		Treatment: row.Treatment.String,
		StartDate: start,
		EndDate:   parseOptionalTime(row.EndDate),
		Status:    domain.HealthStatus(row.Status.String),
		Notes:     row.Notes.String,
	}
	if h.Status == "" {
		h.Status = domain.HealthActive
	}
	if !h.Status.Valid() {
		i.repair(r, domain.EntityHealthRecord, row.ID, "unknown status "+string(h.Status)+" set to active")
		h.Status = domain.HealthActive
	}
	if h.EndDate != nil && h.EndDate.Before(h.StartDate) {
		i.repair(r, domain.EntityHealthRecord, row.ID, "end date before start dropped")
		h.EndDate = nil
	}
	return h, true
}

// ErrNotLegacy is returned by Detect when the file lacks the app tables.
var ErrNotLegacy = errors.New("legacy: not a herd app database")

// Detect reports whether path holds the legacy app tables.
func Detect(ctx context.Context, path string) error {
	db, err := Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('cattle', 'events', 'milk', 'transactions', 'health')`); err != nil {
		return fmt.Errorf("inspect legacy database: %w", err)
	}
	if count != 5 {
		return ErrNotLegacy
	}
	return nil
}
