// Package reminders derives due reminders from pending events.
package reminders

import (
	"fmt"
	"math"
	"sort"
	"time"

	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

// Kind identifies the rule that produced a reminder.
type Kind string

// Reminder kinds.
const (
	KindDelivery          Kind = "delivery"
	KindInseminationCheck Kind = "inseminationCheck"
	KindDueToday          Kind = "dueToday"
)

const (
	// DeliveryWindowDays bounds how far ahead delivery reminders look.
	DeliveryWindowDays = 15
	// InseminationCheckDays is the follow-up delay after an insemination.
	InseminationCheckDays = 21
)

// Reminder is one item for the farmer's task list.
type Reminder struct {
	Key           string       `json:"key"`
	Kind          Kind         `json:"kind"`
	Date          time.Time    `json:"date"`
	DaysRemaining int          `json:"days_remaining"`
	Message       string       `json:"message"`
	Event         domain.Event `json:"event"`
}

// Generate evaluates the pending events against today. Days are counted on
// the calendar of today's location. The result is ordered by date.
func Generate(events []domain.Event, today time.Time) []Reminder {
	day := daterange.StartOfDay(today)
	loc := today.Location()
	var out []Reminder
	for _, ev := range events {
		if ev.Status != domain.EventPending {
			continue
		}
		eventDay := daterange.StartOfDay(ev.Date.In(loc))
		emitted := false

		if ev.Type == domain.EventTypeDelivery && !eventDay.Before(day) {
			days := daysBetween(day, eventDay)
			if days <= DeliveryWindowDays {
				msg := fmt.Sprintf("delivery expected in %d days", days)
				if days == 0 {
					msg = "delivery due today"
				}
				out = append(out, Reminder{
					Key:           fmt.Sprintf("delivery-reminder-%d", ev.ID),
					Kind:          KindDelivery,
					Date:          ev.Date,
					DaysRemaining: days,
					Message:       msg,
					Event:         ev,
				})
				emitted = true
			}
		}

		if ev.Type == domain.EventTypeInsemination && eventDay.AddDate(0, 0, InseminationCheckDays).Equal(day) {
			out = append(out, Reminder{
				Key:     fmt.Sprintf("insem-check-%d", ev.ID),
				Kind:    KindInseminationCheck,
				Date:    day,
				Message: "insemination check-up due",
				Event:   ev,
			})
			emitted = true
		}

		created := daterange.StartOfDay(ev.CreatedAt.In(loc))
		if !emitted && eventDay.Equal(day) && created.Before(day) {
			out = append(out, Reminder{
				Key:     fmt.Sprintf("due-today-%d", ev.ID),
				Kind:    KindDueToday,
				Date:    ev.Date,
				Message: fmt.Sprintf("%s due today", ev.Type),
				Event:   ev,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// DueToday returns at most limit pending events dated on today's calendar day.
// A limit of zero or less returns all of them.
func DueToday(events []domain.Event, today time.Time, limit int) []domain.Event {
	day := daterange.StartOfDay(today)
	var out []domain.Event
	for _, ev := range events {
		if ev.Status != domain.EventPending {
			continue
		}
		if !daterange.StartOfDay(ev.Date.In(today.Location())).Equal(day) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// daysBetween rounds so that daylight saving shifts do not lose a day.
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
