package sm2

import (
	"cmp"
	"slices"
)

// QueueEntry is one item to present for review. New entries carry the
// default state of a never-reviewed card.
type QueueEntry struct {
	ItemID string
	Card   Card
	IsNew  bool
}

// DueQueue builds today's review queue: cards whose next review has arrived,
// oldest first, followed by never-reviewed catalog items. New items are capped
// at the scheduler's per-day limit and the whole queue at limit.
// catalog order decides which new items come first.
func (s *Scheduler) DueQueue(cards []Card, catalog []string, today Date, limit int) []QueueEntry {
	if limit <= 0 {
		return nil
	}

	reviewed := make(map[string]struct{}, len(cards))
	var due []Card
	for _, c := range cards {
		reviewed[c.ItemID] = struct{}{}
		if c.IsDue(today) {
			due = append(due, c)
		}
	}

	slices.SortFunc(due, func(a, b Card) int {
		if n := a.NextReview.Compare(b.NextReview); n != 0 {
			return n
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	queue := make([]QueueEntry, 0, min(limit, len(due)+s.maxNewPerDay))
	for _, c := range due {
		queue = append(queue, QueueEntry{ItemID: c.ItemID, Card: c.clone()})
	}

	budget := min(s.maxNewPerDay, limit-len(queue))
	for _, id := range catalog {
		if budget <= 0 {
			break
		}
		if _, ok := reviewed[id]; ok {
			continue
		}
		reviewed[id] = struct{}{}
		queue = append(queue, QueueEntry{ItemID: id, Card: NewCard(id), IsNew: true})
		budget--
	}
	return queue
}
