package sm2

import "fmt"

// Stage classifies a card for statistics. It is always derived from the
// card's interval and never stored.
type Stage int

const (
	StageNew Stage = iota
	StageLearning
	StageMastered
)

var stageNames = [...]string{StageNew: "New", StageLearning: "Learning", StageMastered: "Mastered"}

func (s Stage) String() string {
	if s >= StageNew && s <= StageMastered {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Classify returns the stage of c, or StageNew when c is nil.
func Classify(c *Card) Stage {
	switch {
	case c == nil:
		return StageNew
	case c.Interval > MasteredInterval:
		return StageMastered
	default:
		return StageLearning
	}
}
