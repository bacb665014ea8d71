package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"herdbook/pkg/domain"
)

// timeLayout is fixed width so stored values sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type baseRow struct {
	ID        int64  `db:"id"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func newBaseRow(b domain.Base) baseRow {
	return baseRow{ID: b.ID, CreatedAt: formatTime(b.CreatedAt), UpdatedAt: formatTime(b.UpdatedAt)}
}

func (r baseRow) toDomain() (domain.Base, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Base{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return domain.Base{}, err
	}
	return domain.Base{ID: r.ID, CreatedAt: created, UpdatedAt: updated}, nil
}

const cattleColumns = `id, ear_tag_number, name, gender, obtained_method, breed, stage, status, weight,
	date_of_birth, date_of_entry, mother_tag_number, insemination_date, last_delivery_date,
	is_sick, is_present, disposal, sale_amount, purchase_price, created_at, updated_at`

type cattleRow struct {
	baseRow
	EarTagNumber     string              `db:"ear_tag_number"`
	Name             string              `db:"name"`
	Gender           string              `db:"gender"`
	ObtainedMethod   string              `db:"obtained_method"`
	Breed            string              `db:"breed"`
	Stage            string              `db:"stage"`
	Status           string              `db:"status"`
	Weight           string              `db:"weight"`
	DateOfBirth      sql.NullString      `db:"date_of_birth"`
	DateOfEntry      sql.NullString      `db:"date_of_entry"`
	MotherTagNumber  string              `db:"mother_tag_number"`
	InseminationDate sql.NullString      `db:"insemination_date"`
	LastDeliveryDate sql.NullString      `db:"last_delivery_date"`
	IsSick           bool                `db:"is_sick"`
	IsPresent        bool                `db:"is_present"`
	Disposal         string              `db:"disposal"`
	SaleAmount       decimal.NullDecimal `db:"sale_amount"`
	PurchasePrice    decimal.NullDecimal `db:"purchase_price"`
}

func newCattleRow(c domain.Cattle) cattleRow {
	return cattleRow{
		baseRow:          newBaseRow(c.Base),
		EarTagNumber:     c.EarTagNumber,
		Name:             c.Name,
		Gender:           string(c.Gender),
		ObtainedMethod:   string(c.ObtainedMethod),
		Breed:            string(c.Breed),
		Stage:            string(c.Stage),
		Status:           string(c.Status),
		Weight:           c.Weight,
		DateOfBirth:      formatNullTime(c.DateOfBirth),
		DateOfEntry:      formatNullTime(c.DateOfEntry),
		MotherTagNumber:  c.MotherTagNumber,
		InseminationDate: formatNullTime(c.InseminationDate),
		LastDeliveryDate: formatNullTime(c.LastDeliveryDate),
		IsSick:           c.IsSick,
		IsPresent:        c.IsPresent,
		Disposal:         string(c.Disposal),
		SaleAmount:       c.SaleAmount,
		PurchasePrice:    c.PurchasePrice,
	}
}

func (r cattleRow) toDomain() (domain.Cattle, error) {
	base, err := r.baseRow.toDomain()
	if err != nil {
		return domain.Cattle{}, err
	}
	c := domain.Cattle{
		Base:            base,
		EarTagNumber:    r.EarTagNumber,
		Name:            r.Name,
		Gender:          domain.Gender(r.Gender),
		ObtainedMethod:  domain.ObtainedMethod(r.ObtainedMethod),
		Breed:           domain.Breed(r.Breed),
		Stage:           domain.Stage(r.Stage),
		Status:          domain.ReproStatus(r.Status),
		Weight:          r.Weight,
		MotherTagNumber: r.MotherTagNumber,
		IsSick:          r.IsSick,
		IsPresent:       r.IsPresent,
		Disposal:        domain.Disposal(r.Disposal),
		SaleAmount:      r.SaleAmount,
		PurchasePrice:   r.PurchasePrice,
	}
	for _, field := range []struct {
		dst **time.Time
		src sql.NullString
	}{
		{&c.DateOfBirth, r.DateOfBirth},
		{&c.DateOfEntry, r.DateOfEntry},
		{&c.InseminationDate, r.InseminationDate},
		{&c.LastDeliveryDate, r.LastDeliveryDate},
	} {
		if *field.dst, err = parseNullTime(field.src); err != nil {
			return domain.Cattle{}, err
		}
	}
	return c, nil
}

const eventColumns = `id, type, date, description, herd_wide, status, created_at, updated_at`

type eventRow struct {
	baseRow
	Type        string `db:"type"`
	Date        string `db:"date"`
	Description string `db:"description"`
	HerdWide    bool   `db:"herd_wide"`
	Status      string `db:"status"`
}

func newEventRow(e domain.Event) eventRow {
	return eventRow{
		baseRow:     newBaseRow(e.Base),
		Type:        e.Type,
		Date:        formatTime(e.Date),
		Description: e.Description,
		HerdWide:    e.Cows.All,
		Status:      string(e.Status),
	}
}

func (r eventRow) toDomain(ids []int64) (domain.Event, error) {
	base, err := r.baseRow.toDomain()
	if err != nil {
		return domain.Event{}, err
	}
	date, err := parseTime(r.Date)
	if err != nil {
		return domain.Event{}, err
	}
	cows := domain.Cows(ids...)
	if r.HerdWide {
		cows = domain.Herd()
	}
	return domain.Event{
		Base:        base,
		Type:        r.Type,
		Date:        date,
		Description: r.Description,
		Cows:        cows,
		Status:      domain.EventStatus(r.Status),
	}, nil
}

const milkColumns = `id, date, herd_wide, am_total, pm_total, total_produced, rate_am, rate_pm, total_income, created_at, updated_at`

type milkRow struct {
	baseRow
	Date          string          `db:"date"`
	HerdWide      bool            `db:"herd_wide"`
	AMTotal       float64         `db:"am_total"`
	PMTotal       float64         `db:"pm_total"`
	TotalProduced float64         `db:"total_produced"`
	RateAM        decimal.Decimal `db:"rate_am"`
	RatePM        decimal.Decimal `db:"rate_pm"`
	TotalIncome   decimal.Decimal `db:"total_income"`
}

func newMilkRow(m domain.MilkRecord) milkRow {
	return milkRow{
		baseRow:       newBaseRow(m.Base),
		Date:          formatTime(m.Date),
		HerdWide:      m.Cows.All,
		AMTotal:       m.AMTotal,
		PMTotal:       m.PMTotal,
		TotalProduced: m.TotalProduced,
		RateAM:        m.RateAM,
		RatePM:        m.RatePM,
		TotalIncome:   m.TotalIncome,
	}
}

func (r milkRow) toDomain(ids []int64) (domain.MilkRecord, error) {
	base, err := r.baseRow.toDomain()
	if err != nil {
		return domain.MilkRecord{}, err
	}
	date, err := parseTime(r.Date)
	if err != nil {
		return domain.MilkRecord{}, err
	}
	cows := domain.Cows(ids...)
	if r.HerdWide {
		cows = domain.Herd()
	}
	return domain.MilkRecord{
		Base:          base,
		Date:          date,
		Cows:          cows,
		AMTotal:       r.AMTotal,
		PMTotal:       r.PMTotal,
		TotalProduced: r.TotalProduced,
		RateAM:        r.RateAM,
		RatePM:        r.RatePM,
		TotalIncome:   r.TotalIncome,
	}, nil
}

const transactionColumns = `id, type, amount, description, date, category, cow_id, created_at, updated_at`

type transactionRow struct {
	baseRow
	Type        string          `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Date        string          `db:"date"`
	Category    string          `db:"category"`
	CowID       sql.NullInt64   `db:"cow_id"`
}

func newTransactionRow(t domain.Transaction) transactionRow {
	row := transactionRow{
		baseRow:     newBaseRow(t.Base),
		Type:        string(t.Type),
		Amount:      t.Amount,
		Description: t.Description,
		Date:        formatTime(t.Date),
		Category:    string(t.Category),
	}
	if t.CowID != nil {
		row.CowID = sql.NullInt64{Int64: *t.CowID, Valid: true}
	}
	return row
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	base, err := r.baseRow.toDomain()
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := parseTime(r.Date)
	if err != nil {
		return domain.Transaction{}, err
	}
	t := domain.Transaction{
		Base:        base,
		Type:        domain.TransactionType(r.Type),
		Amount:      r.Amount,
		Description: r.Description,
		Date:        date,
		Category:    domain.Category(r.Category),
	}
	if r.CowID.Valid {
		id := r.CowID.Int64
		t.CowID = &id
	}
	return t, nil
}

const healthColumns = `id, cow_id, disease, symptoms, diagnosis, treatment, start_date, end_date, status, notes, created_at, updated_at`

type healthRow struct {
	baseRow
	CowID     int64          `db:"cow_id"`
	Disease   string         `db:"disease"`
	Symptoms  string         `db:"symptoms"`
	Diagnosis string         `db:"diagnosis"`
	Treatment string         `db:"treatment"`
	StartDate string         `db:"start_date"`
	EndDate   sql.NullString `db:"end_date"`
	Status    string         `db:"status"`
	Notes     string         `db:"notes"`
}

func newHealthRow(h domain.HealthRecord) healthRow {
	return healthRow{
		baseRow:   newBaseRow(h.Base),
		CowID:     h.CowID,
		Disease:   h.Disease,
		Symptoms:  h.Symptoms,
		Diagnosis: h.Diagnosis,
		Treatment: h.Treatment,
		StartDate: formatTime(h.StartDate),
		EndDate:   formatNullTime(h.EndDate),
		Status:    string(h.Status),
		Notes:     h.Notes,
	}
}

func (r healthRow) toDomain() (domain.HealthRecord, error) {
	base, err := r.baseRow.toDomain()
	if err != nil {
		return domain.HealthRecord{}, err
	}
	start, err := parseTime(r.StartDate)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	end, err := parseNullTime(r.EndDate)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	return domain.HealthRecord{
		Base:      base,
		CowID:     r.CowID,
		Disease:   r.Disease,
		Symptoms:  r.Symptoms,
		Diagnosis: r.Diagnosis,
		Treatment: r.Treatment,
		StartDate: start,
		EndDate:   end,
		Status:    domain.HealthStatus(r.Status),
		Notes:     r.Notes,
	}, nil
}

// cowLink is one row of event_cattle or milk_cattle.
type cowLink struct {
	OwnerID  int64 `db:"owner_id"`
	Position int   `db:"position"`
	CattleID int64 `db:"cattle_id"`
}
