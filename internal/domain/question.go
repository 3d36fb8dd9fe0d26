package domain

import "time"

// Option is one answer choice of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single multiple-choice catalog entry.
// Hash is derived from the content and doubles as the stable item ID.
type Question struct {
	Hash          string   `json:"id"`
	Domain        string   `json:"domain"`
	Question      string   `json:"question"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// User is a learner whose review state is tracked.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewLog records a single graded review and its outcome.
// Quality follows the SM-2 scale:
// 0-2: failed recall
// 3: correct with difficulty
// 4: correct after hesitation
// 5: perfect recall
type ReviewLog struct {
	UserID       string    `json:"user_id"`
	QuestionHash string    `json:"item_id"`
	Timestamp    time.Time `json:"reviewed_at"`
	Quality      int       `json:"quality"`
	Interval     int       `json:"interval"`
	EaseFactor   float64   `json:"ease_factor"`
}
