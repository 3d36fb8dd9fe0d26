package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/examprep/internal/domain"
	"github.com/conorfennell/examprep/internal/sm2"
)

const cardColumns = `question_hash, ease_factor, interval_days, repetitions, next_review, last_review`

// ListReviewCards returns every card the user has, in no particular order.
func (db *DB) ListReviewCards(ctx context.Context, userID string) ([]sm2.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM review_cards WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	var cards []sm2.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review card for user %s: %w", userID, err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// FindReviewCard returns the user's card for a question, or nil if the
// question has never been reviewed.
func (db *DB) FindReviewCard(ctx context.Context, userID, hash string) (*sm2.Card, error) {
	return findReviewCard(ctx, db.conn, userID, hash)
}

// UpdateReviewCard performs one review as a single transaction: it reads the
// current card (nil if absent), passes it to apply, and upserts the result
// together with a review_log row. If apply fails nothing is written.
// Concurrent reviews of the same card serialize; the later one sees the
// earlier one's result.
func (db *DB) UpdateReviewCard(ctx context.Context, userID, hash string, quality sm2.Quality, apply func(prior *sm2.Card) (sm2.Card, error)) (sm2.Card, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return sm2.Card{}, fmt.Errorf("failed to begin review of %s: %w", hash, err)
	}
	defer tx.Rollback()

	prior, err := findReviewCard(ctx, tx, userID, hash)
	if err != nil {
		return sm2.Card{}, err
	}

	card, err := apply(prior)
	if err != nil {
		return sm2.Card{}, err
	}
	if card.LastReview == nil {
		return sm2.Card{}, fmt.Errorf("review of %s produced a card without a review time", hash)
	}
	reviewedAt := card.LastReview.UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_cards (user_id, question_hash, ease_factor, interval_days, repetitions, next_review, last_review)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, question_hash) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			next_review = excluded.next_review,
			last_review = excluded.last_review
	`,
		userID,
		hash,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		card.NextReview.String(),
		reviewedAt,
	)
	if err != nil {
		return sm2.Card{}, fmt.Errorf("failed to upsert review card %s for user %s: %w", hash, userID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_log (user_id, question_hash, quality, interval_days, ease_factor, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, hash, int(quality), card.Interval, card.EaseFactor, reviewedAt)
	if err != nil {
		return sm2.Card{}, fmt.Errorf("failed to log review of %s for user %s: %w", hash, userID, err)
	}

	if err := tx.Commit(); err != nil {
		return sm2.Card{}, fmt.Errorf("failed to commit review of %s: %w", hash, err)
	}
	return card, nil
}

// ListReviewLogs returns the user's most recent reviews, newest first.
func (db *DB) ListReviewLogs(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, question_hash, quality, interval_days, ease_factor, reviewed_at
		FROM review_log WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log for user %s: %w", userID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		if err := rows.Scan(&l.UserID, &l.QuestionHash, &l.Quality, &l.Interval, &l.EaseFactor, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func findReviewCard(ctx context.Context, q queryer, userID, hash string) (*sm2.Card, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM review_cards WHERE user_id = ? AND question_hash = ?
	`, userID, hash)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Never reviewed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review card %s for user %s: %w", hash, userID, err)
	}
	return c, nil
}

func scanCard(row rowScanner) (*sm2.Card, error) {
	var c sm2.Card
	var lastReview sql.NullTime
	if err := row.Scan(&c.ItemID, &c.EaseFactor, &c.Interval, &c.Repetitions, &c.NextReview, &lastReview); err != nil {
		return nil, err
	}
	if lastReview.Valid {
		t := lastReview.Time
		c.LastReview = &t
	}
	return &c, nil
}
