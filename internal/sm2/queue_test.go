package sm2

import (
	"fmt"
	"testing"
	"time"
)

var queueDay = Date{Year: 2026, Month: time.October, Day: 19}

func scheduled(id string, daysFromToday, interval int) Card {
	return Card{
		ItemID:      id,
		EaseFactor:  2.5,
		Interval:    interval,
		Repetitions: 2,
		NextReview:  queueDay.AddDays(daysFromToday),
	}
}

func catalogIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%02d", i)
	}
	return ids
}

func TestDueQueue(t *testing.T) {
	s := DefaultScheduler()
	catalog := catalogIDs(30)
	cards := []Card{
		scheduled("item-00", 0, 3),  // due today
		scheduled("item-01", -4, 6), // overdue
		scheduled("item-02", 2, 8),  // not yet due
		scheduled("item-03", -1, 1), // overdue
	}

	t.Run("due cards first, oldest first, then new items", func(t *testing.T) {
		queue := s.DueQueue(cards, catalog, queueDay, 20)

		if len(queue) != 3+DefaultMaxNewPerDay {
			t.Fatalf("Expected %d entries, but got %d", 3+DefaultMaxNewPerDay, len(queue))
		}
		expectedDue := []string{"item-01", "item-03", "item-00"}
		for i, id := range expectedDue {
			if queue[i].ItemID != id || queue[i].IsNew {
				t.Errorf("Expected due entry %d to be %s, but got %+v", i, id, queue[i])
			}
		}
		for _, e := range queue[3:] {
			if !e.IsNew {
				t.Errorf("Expected %s to be new", e.ItemID)
			}
			if e.ItemID == "item-02" {
				t.Error("Expected a scheduled card never to be offered as new")
			}
			if e.Card.EaseFactor != DefaultEaseFactor || e.Card.Interval != 0 || e.Card.Repetitions != 0 {
				t.Errorf("Expected default state for new entry, but got %+v", e.Card)
			}
		}
		if queue[3].ItemID != "item-04" {
			t.Errorf("Expected new items in catalog order starting at item-04, but got %s", queue[3].ItemID)
		}
	})

	t.Run("limit caps the whole queue", func(t *testing.T) {
		queue := s.DueQueue(cards, catalog, queueDay, 5)
		if len(queue) != 5 {
			t.Fatalf("Expected 5 entries, but got %d", len(queue))
		}
		if queue[2].IsNew || !queue[3].IsNew {
			t.Errorf("Expected 3 due entries followed by new ones, but got %+v", queue)
		}
	})

	t.Run("limit smaller than due backlog leaves no room for new items", func(t *testing.T) {
		queue := s.DueQueue(cards, catalog, queueDay, 2)
		if len(queue) != 2 || queue[0].ItemID != "item-01" || queue[1].ItemID != "item-03" {
			t.Errorf("Expected the two oldest due cards, but got %+v", queue)
		}
	})

	t.Run("non-positive limit yields nothing", func(t *testing.T) {
		if queue := s.DueQueue(cards, catalog, queueDay, 0); len(queue) != 0 {
			t.Errorf("Expected empty queue, but got %d entries", len(queue))
		}
	})

	t.Run("custom new-per-day cap", func(t *testing.T) {
		s, err := NewScheduler(Config{MaxNewPerDay: 2})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		queue := s.DueQueue(nil, catalog, queueDay, 20)
		if len(queue) != 2 {
			t.Errorf("Expected 2 new entries, but got %d", len(queue))
		}
	})

	t.Run("duplicate catalog IDs are offered once", func(t *testing.T) {
		queue := s.DueQueue(nil, []string{"a", "a", "b"}, queueDay, 20)
		if len(queue) != 2 {
			t.Errorf("Expected 2 entries, but got %d", len(queue))
		}
	})
}

func TestStatistics(t *testing.T) {
	s := DefaultScheduler()

	// 40 cards: 5 due, 10 mastered.
	var cards []Card
	for i := 0; i < 40; i++ {
		days, interval := 5, 10
		if i < 5 {
			days = -i
		}
		if i >= 30 {
			interval = 30
		}
		cards = append(cards, scheduled(fmt.Sprintf("item-%02d", i), days, interval))
	}

	st := s.Statistics(cards, 100, queueDay)
	expected := Stats{Total: 100, DueToday: 15, Mastered: 10, Learning: 30, New: 60}
	if st != expected {
		t.Errorf("Expected %+v, but got %+v", expected, st)
	}

	t.Run("few new items", func(t *testing.T) {
		st := s.Statistics(cards, 43, queueDay)
		if st.New != 3 || st.DueToday != 8 {
			t.Errorf("Expected 3 new and 8 due, but got %+v", st)
		}
	})

	t.Run("due today matches the queue's new-item cap", func(t *testing.T) {
		capped, err := NewScheduler(Config{MaxNewPerDay: 3})
		if err != nil {
			t.Fatal(err)
		}
		catalog := make([]string, 0, 100)
		for i := 0; i < 100; i++ {
			catalog = append(catalog, fmt.Sprintf("item-%02d", i))
		}
		st := capped.Statistics(cards, len(catalog), queueDay)
		queue := capped.DueQueue(cards, catalog, queueDay, 1000)
		if st.DueToday != 8 || len(queue) != st.DueToday {
			t.Errorf("Expected 8 due today and an 8-entry queue, but got %d and %d", st.DueToday, len(queue))
		}
	})

	t.Run("empty", func(t *testing.T) {
		st := s.Statistics(nil, 0, queueDay)
		if st != (Stats{}) {
			t.Errorf("Expected zero stats, but got %+v", st)
		}
	})
}
