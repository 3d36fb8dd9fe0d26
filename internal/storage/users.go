package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/examprep/internal/domain"
)

// CreateUser registers a learner and returns it with a fresh ID.
func (db *DB) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at)
		VALUES (?, ?, ?)
	`, u.ID, u.Name, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user %s: %w", name, err)
	}
	return u, nil
}

// FindUser retrieves a user by ID, or ErrNotFound.
func (db *DB) FindUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &u, nil
}
