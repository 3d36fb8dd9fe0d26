package sm2

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	// FailurePenalty is subtracted from the ease factor on every failed review.
	FailurePenalty = 0.2
	// MasteredInterval is the interval, in days, above which a card counts as mastered.
	MasteredInterval = 21
	// DefaultMaxNewPerDay caps how many never-reviewed items are surfaced per day.
	DefaultMaxNewPerDay = 10
)

var (
	ErrInvalidQuality = errors.New("sm2: quality must be an integer between 0 and 5")
	ErrItemMismatch   = errors.New("sm2: card item ID mismatch")
)

// Card is the scheduling state of one item for one user.
type Card struct {
	ItemID      string     `json:"item_id"`
	EaseFactor  float64    `json:"ease_factor"`
	Interval    int        `json:"interval"`
	Repetitions int        `json:"repetitions"`
	NextReview  Date       `json:"next_review"`
	LastReview  *time.Time `json:"last_review"` // nil before the first review.
}

// NewCard returns the implicit state of an item that has never been reviewed.
func NewCard(itemID string) Card {
	return Card{
		ItemID:     itemID,
		EaseFactor: DefaultEaseFactor,
	}
}

// IsDue reports whether the card should be reviewed on the given day.
func (c Card) IsDue(today Date) bool {
	return !c.NextReview.After(today)
}

func (c Card) clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

// Config configures a Scheduler. Zero values select the defaults.
type Config struct {
	MaximumInterval int            // zero → uncapped
	MaxNewPerDay    int            // zero → DefaultMaxNewPerDay
	Location        *time.Location // nil → UTC; decides which calendar day "now" falls on
}

// Scheduler implements the SM-2 review algorithm. It holds no per-user state
// and is safe for concurrent use.
type Scheduler struct {
	maximumInterval int
	maxNewPerDay    int
	loc             *time.Location
}

// NewScheduler creates a Scheduler from the given config.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.MaximumInterval < 0 {
		return nil, fmt.Errorf("sm2: maximum interval %d must not be negative", cfg.MaximumInterval)
	}
	if cfg.MaxNewPerDay < 0 {
		return nil, fmt.Errorf("sm2: max new per day %d must not be negative", cfg.MaxNewPerDay)
	}

	newPerDay := cfg.MaxNewPerDay
	if newPerDay == 0 {
		newPerDay = DefaultMaxNewPerDay
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		maximumInterval: cfg.MaximumInterval,
		maxNewPerDay:    newPerDay,
		loc:             loc,
	}, nil
}

// DefaultScheduler returns a scheduler with the default settings: UTC days,
// no interval cap and ten new items per day.
func DefaultScheduler() *Scheduler {
	s, _ := NewScheduler(Config{})
	return s
}

// Today returns the calendar day that now falls on in the scheduler's location.
func (s *Scheduler) Today(now time.Time) Date {
	return DateOf(now.In(s.loc))
}

// Review applies a graded review to prior, which is nil when the item has never
// been reviewed. The returned card is a new value; prior is not mutated.
// An invalid quality is rejected before any state is computed.
func (s *Scheduler) Review(itemID string, prior *Card, q Quality, now time.Time) (Card, error) {
	if !q.IsValid() {
		return Card{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, int(q))
	}

	c := NewCard(itemID)
	if prior != nil {
		if prior.ItemID != "" && prior.ItemID != itemID {
			return Card{}, fmt.Errorf("%w: %q != %q", ErrItemMismatch, prior.ItemID, itemID)
		}
		c = prior.clone()
		c.ItemID = itemID
	}

	if q.Passed() {
		switch c.Repetitions {
		case 0:
			c.Interval = 1
		case 1:
			c.Interval = 3
		default:
			// Half-to-even, so 7.5 days becomes 8 and 12.5 becomes 12.
			c.Interval = max(1, int(math.RoundToEven(float64(c.Interval)*c.EaseFactor)))
		}
		c.EaseFactor = nextEase(c.EaseFactor, q)
		c.Repetitions++
	} else {
		c.Repetitions = 0
		c.EaseFactor = math.Max(MinEaseFactor, c.EaseFactor-FailurePenalty)
		c.Interval = 1
	}

	if s.maximumInterval > 0 && c.Interval > s.maximumInterval {
		c.Interval = s.maximumInterval
	}

	reviewed := now
	c.LastReview = &reviewed
	c.NextReview = s.Today(now).AddDays(c.Interval)
	return c, nil
}

// nextEase applies EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored at MinEaseFactor.
func nextEase(ease float64, q Quality) float64 {
	d := float64(Perfect - q)
	return math.Max(MinEaseFactor, ease+(0.1-d*(0.08+d*0.02)))
}
