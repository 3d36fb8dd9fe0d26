package sm2

// Stats summarises one user's progress over the catalog.
type Stats struct {
	Total    int `json:"total_cards"`
	DueToday int `json:"due_today"`
	Mastered int `json:"mastered"`
	Learning int `json:"learning"`
	New      int `json:"new_cards"`
}

// Statistics aggregates cards against a catalog of catalogSize items.
// DueToday includes up to the scheduler's per-day limit of never-reviewed
// items, the same cap DueQueue applies, so it equals the length of an
// unbounded queue for the same day.
func (s *Scheduler) Statistics(cards []Card, catalogSize int, today Date) Stats {
	st := Stats{
		Total: catalogSize,
		New:   max(catalogSize-len(cards), 0),
	}
	for i := range cards {
		if cards[i].IsDue(today) {
			st.DueToday++
		}
		if Classify(&cards[i]) == StageMastered {
			st.Mastered++
		} else {
			st.Learning++
		}
	}
	st.DueToday += min(s.maxNewPerDay, st.New)
	return st
}
