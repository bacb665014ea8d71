package legacy

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names follow the mobile app schema.

type cattleRow struct {
	ID               int64           `db:"id"`
	EarTagNumber     string          `db:"earTagNumber"`
	Name             sql.NullString  `db:"name"`
	Gender           string          `db:"gender"`
	CattleObtained   string          `db:"cattleObtained"`
	CattleBreed      sql.NullString  `db:"cattleBreed"`
	CattleStage      sql.NullString  `db:"cattleStage"`
	CattleStatus     sql.NullString  `db:"cattleStatus"`
	Weight           sql.NullString  `db:"weight"`
	DateOfBirth      sql.NullString  `db:"dateOfBirth"`
	DateOfEntry      sql.NullString  `db:"dateOfEntry"`
	MotherTagNo      sql.NullString  `db:"motherTagNo"`
	IsPresent        sql.NullInt64   `db:"isPresent"`
	Status           sql.NullString  `db:"status"`
	SaleAmount       sql.NullFloat64 `db:"saleAmount"`
	PurchasePrice    sql.NullFloat64 `db:"purchasePrice"`
	InseminationDate sql.NullString  `db:"inseminationDate"`
	LastDeliveryDate sql.NullString  `db:"lastDeliveryDate"`
	IsSick           sql.NullInt64   `db:"isSick"`
	CreatedAt        sql.NullString  `db:"createdAt"`
	UpdatedAt        sql.NullString  `db:"updatedAt"`
}

type eventRow struct {
	ID          int64          `db:"id"`
	Type        string         `db:"type"`
	Date        string         `db:"date"`
	Description sql.NullString `db:"description"`
	CowIDs      sql.NullString `db:"cowIds"`
	Status      sql.NullString `db:"status"`
	CreatedAt   sql.NullString `db:"createdAt"`
	UpdatedAt   sql.NullString `db:"updatedAt"`
}

type milkRow struct {
	ID            int64           `db:"id"`
	Date          string          `db:"date"`
	CowIDs        sql.NullString  `db:"cowIds"`
	AMTotal       sql.NullFloat64 `db:"amTotal"`
	PMTotal       sql.NullFloat64 `db:"pmTotal"`
	TotalProduced sql.NullFloat64 `db:"totalProduced"`
	RateAM        sql.NullFloat64 `db:"rateAm"`
	RatePM        sql.NullFloat64 `db:"ratePm"`
	CreatedAt     sql.NullString  `db:"createdAt"`
	UpdatedAt     sql.NullString  `db:"updatedAt"`
}

type transactionRow struct {
	ID          int64          `db:"id"`
	Type        string         `db:"type"`
	Amount      float64        `db:"amount"`
	Description sql.NullString `db:"description"`
	Date        string         `db:"date"`
	Category    sql.NullString `db:"category"`
	CowID       sql.NullInt64  `db:"cowId"`
	CreatedAt   sql.NullString `db:"createdAt"`
	UpdatedAt   sql.NullString `db:"updatedAt"`
}

type healthRow struct {
	ID        int64          `db:"id"`
	CowID     int64          `db:"cowId"`
	Disease   string         `db:"disease"`
	Symptoms  sql.NullString `db:"symptoms"`
	Diagnosis sql.NullString `db:"diagnosis"`
	Treatment sql.NullString `db:"treatment"`
	StartDate string         `db:"startDate"`
	EndDate   sql.NullString `db:"endDate"`
	Status    sql.NullString `db:"status"`
	Notes     sql.NullString `db:"notes"`
	CreatedAt sql.NullString `db:"createdAt"`
	UpdatedAt sql.NullString `db:"updatedAt"`
}

// The app stored JS ISO strings, SQLite datetime('now') values and plain dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, ok := parseTime(raw.String)
	if !ok {
		return nil
	}
	return &t
}

func stampOr(raw sql.NullString, fallback time.Time) time.Time {
	if t, ok := parseTime(raw.String); raw.Valid && ok {
		return t
	}
	return fallback
}

// money rounds v to cents. Non-finite values map to zero.
func money(v float64) decimal.Decimal {
	if !finite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
