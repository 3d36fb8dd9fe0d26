package sm2

import (
	"fmt"
	"math"
)

// Quality is the learner's self-assessed recall on a 0-5 scale.
// Anything below Difficult counts as a failed review.
type Quality int

const (
	Blackout  Quality = iota // No recall at all.
	Wrong                    // Incorrect, answer recognised once shown.
	Familiar                 // Incorrect, but the answer felt familiar.
	Difficult                // Correct with serious difficulty.
	Hesitant                 // Correct after some hesitation.
	Perfect                  // Correct with no hesitation.
)

var qualityNames = [...]string{
	Blackout:  "Blackout",
	Wrong:     "Wrong",
	Familiar:  "Familiar",
	Difficult: "Difficult",
	Hesitant:  "Hesitant",
	Perfect:   "Perfect",
}

// IsValid reports whether q is within Blackout..Perfect.
func (q Quality) IsValid() bool {
	return q >= Blackout && q <= Perfect
}

// Passed reports whether the review counts as a successful recall.
func (q Quality) Passed() bool {
	return q >= Difficult
}

func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality converts a raw numeric rating into a Quality. Fractional,
// non-finite and out-of-range values are rejected with ErrInvalidQuality.
func ParseQuality(v float64) (Quality, error) {
	if math.IsNaN(v) || v < float64(Blackout) || v > float64(Perfect) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidQuality, v)
	}
	return Quality(v), nil
}
