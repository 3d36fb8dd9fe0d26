package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/examprep/internal/domain"
)

const questionColumns = `hash, domain, question, options, correct_answer, explanation`

// InsertQuestion adds a question to the catalog under the given source.
// Inserting a hash that already exists is a no-op.
func (db *DB) InsertQuestion(ctx context.Context, q domain.Question, sourceID int64) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options for question %s: %w", q.Hash, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO questions (hash, domain, question, options, correct_answer, explanation, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		q.Hash,
		q.Domain,
		q.Question,
		string(options),
		q.CorrectAnswer,
		q.Explanation,
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert question %s: %w", q.Hash, err)
	}
	return nil
}

// QuestionExists reports whether a question with the given hash is in the catalog.
func (db *DB) QuestionExists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check question %s: %w", hash, err)
	}
	return true, nil
}

// FindQuestion retrieves a question by hash, or ErrNotFound.
func (db *DB) FindQuestion(ctx context.Context, hash string) (*domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE hash = ?`, hash)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question %s: %w", hash, err)
	}
	return q, nil
}

// ListQuestions returns catalog questions in insertion order, optionally
// restricted to one domain.
func (db *DB) ListQuestions(ctx context.Context, domainName string, limit int) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if domainName != "" {
		query += ` WHERE domain = ?`
		args = append(args, domainName)
	}
	query += ` ORDER BY rowid LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

// ListQuestionHashes returns every catalog item ID in insertion order.
func (db *DB) ListQuestionHashes(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT hash FROM questions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list question hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan question hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// GetQuestions loads the questions with the given hashes. Unknown hashes are
// absent from the result.
func (db *DB) GetQuestions(ctx context.Context, hashes []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE hash IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %d questions: %w", len(hashes), err)
	}
	defer rows.Close()

	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		out[q.Hash] = q
	}
	return out, nil
}

// GetQuestionHashesBySourceID lists the hashes of all questions imported from a source.
func (db *DB) GetQuestionHashesBySourceID(ctx context.Context, sourceID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT hash FROM questions WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan question row for source ID %d: %w", sourceID, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// DeleteQuestionByHash removes a question, and all review state for it, from the catalog.
func (db *DB) DeleteQuestionByHash(ctx context.Context, hash string) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM questions
		WHERE hash = ?
	`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete question with hash %s: %w", hash, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var q domain.Question
	var options string
	if err := row.Scan(&q.Hash, &q.Domain, &q.Question, &options, &q.CorrectAnswer, &q.Explanation); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options for question %s: %w", q.Hash, err)
	}
	return &q, nil
}

func scanQuestions(rows *sql.Rows) ([]domain.Question, error) {
	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}
