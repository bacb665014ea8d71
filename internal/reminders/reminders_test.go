package reminders

import (
	"testing"
	"time"

	"herdbook/pkg/domain"
)

var today = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func event(id int64, typ string, date time.Time, status domain.EventStatus, created time.Time) domain.Event {
	return domain.Event{
		Base:   domain.Base{ID: id, CreatedAt: created},
		Type:   typ,
		Date:   date,
		Cows:   domain.Cows(1),
		Status: status,
	}
}

func TestGenerateDeliveryWindow(t *testing.T) {
	past := today.AddDate(0, 0, -30)
	events := []domain.Event{
		event(1, domain.EventTypeDelivery, today.AddDate(0, 0, 10), domain.EventPending, past),
		event(2, domain.EventTypeDelivery, today.AddDate(0, 0, 16), domain.EventPending, past),
		event(3, domain.EventTypeDelivery, today.AddDate(0, 0, -1), domain.EventPending, past),
		event(4, domain.EventTypeDelivery, today.AddDate(0, 0, 3), domain.EventCompleted, past),
		event(5, domain.EventTypeDelivery, today.AddDate(0, 0, 15), domain.EventPending, past),
	}
	got := Generate(events, today)
	if len(got) != 2 {
		t.Fatalf("expected two delivery reminders, got %+v", got)
	}
	if got[0].Event.ID != 1 || got[0].DaysRemaining != 10 || got[0].Kind != KindDelivery {
		t.Fatalf("unexpected first reminder %+v", got[0])
	}
	if got[1].Event.ID != 5 || got[1].DaysRemaining != 15 {
		t.Fatalf("unexpected second reminder %+v", got[1])
	}
}

func TestGenerateDeliveryTodayIsNotDuplicated(t *testing.T) {
	ev := event(7, domain.EventTypeDelivery, today, domain.EventPending, today.AddDate(0, 0, -2))
	got := Generate([]domain.Event{ev}, today)
	if len(got) != 1 || got[0].Kind != KindDelivery || got[0].Message != "delivery due today" {
		t.Fatalf("expected a single delivery-today reminder, got %+v", got)
	}
}

func TestGenerateInseminationCheck(t *testing.T) {
	exact := event(1, domain.EventTypeInsemination, today.AddDate(0, 0, -21), domain.EventPending, today.AddDate(0, 0, -21))
	early := event(2, domain.EventTypeInsemination, today.AddDate(0, 0, -20), domain.EventPending, today.AddDate(0, 0, -20))
	got := Generate([]domain.Event{exact, early}, today)
	if len(got) != 1 || got[0].Kind != KindInseminationCheck || got[0].Event.ID != 1 {
		t.Fatalf("expected only the 21 day check-up, got %+v", got)
	}
}

func TestGenerateDueTodayRequiresEarlierCreation(t *testing.T) {
	old := event(1, "vaccination", today, domain.EventPending, today.AddDate(0, 0, -1))
	fresh := event(2, "vaccination", today, domain.EventPending, today)
	got := Generate([]domain.Event{old, fresh}, today)
	if len(got) != 1 || got[0].Kind != KindDueToday || got[0].Event.ID != 1 {
		t.Fatalf("expected only the event created before today, got %+v", got)
	}
}

func TestGenerateSortsByDate(t *testing.T) {
	past := today.AddDate(0, 0, -40)
	events := []domain.Event{
		event(1, domain.EventTypeDelivery, today.AddDate(0, 0, 9), domain.EventPending, past),
		event(2, "deworming", today, domain.EventPending, past),
		event(3, domain.EventTypeDelivery, today.AddDate(0, 0, 2), domain.EventPending, past),
	}
	got := Generate(events, today)
	if len(got) != 3 || got[0].Event.ID != 2 || got[1].Event.ID != 3 || got[2].Event.ID != 1 {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestDueTodayLimit(t *testing.T) {
	var events []domain.Event
	for i := int64(1); i <= 5; i++ {
		events = append(events, event(i, "milking check", today.Add(time.Duration(i)*time.Minute), domain.EventPending, today))
	}
	events = append(events, event(9, "milking check", today.AddDate(0, 0, 1), domain.EventPending, today))
	if got := DueToday(events, today, 3); len(got) != 3 {
		t.Fatalf("expected limit of three, got %d", len(got))
	}
	if got := DueToday(events, today, 0); len(got) != 5 {
		t.Fatalf("expected all five events dated today, got %d", len(got))
	}
}
