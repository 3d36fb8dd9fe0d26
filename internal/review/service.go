package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/examprep/internal/domain"
	"github.com/conorfennell/examprep/internal/sm2"
	"github.com/conorfennell/examprep/internal/storage"
)

// Error taxonomy of the boundary operations. Callers match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
)

// CardStore persists per-user SM-2 cards. UpdateReviewCard must run the
// read-apply-write atomically for one (user, item) key and write nothing
// when apply fails.
type CardStore interface {
	ListReviewCards(ctx context.Context, userID string) ([]sm2.Card, error)
	UpdateReviewCard(ctx context.Context, userID, itemID string, quality sm2.Quality, apply func(prior *sm2.Card) (sm2.Card, error)) (sm2.Card, error)
	ListReviewLogs(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error)
}

// Catalog is the question catalog. FindQuestion returns storage.ErrNotFound
// for unknown items.
type Catalog interface {
	FindQuestion(ctx context.Context, hash string) (*domain.Question, error)
	ListQuestionHashes(ctx context.Context) ([]string, error)
	GetQuestions(ctx context.Context, hashes []string) (map[string]domain.Question, error)
}

// UserStore looks up learners. FindUser returns storage.ErrNotFound for unknown users.
type UserStore interface {
	FindUser(ctx context.Context, id string) (*domain.User, error)
}

// Service exposes the review operations: submitting a graded review, building
// the due queue and summarising progress.
type Service struct {
	cards     CardStore
	catalog   Catalog
	users     UserStore
	scheduler *sm2.Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service with the given dependencies.
func NewService(cards CardStore, catalog Catalog, users UserStore, scheduler *sm2.Scheduler, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cards:     cards,
		catalog:   catalog,
		users:     users,
		scheduler: scheduler,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitReviewInput is a graded review. Quality is a float so that fractional
// ratings arriving from a transport are rejected rather than truncated.
type SubmitReviewInput struct {
	UserID  string  `validate:"required"`
	ItemID  string  `validate:"required"`
	Quality float64 `validate:"gte=0,lte=5"`
}

// ReviewResult is the outcome of a submitted review.
type ReviewResult struct {
	NextReview  sm2.Date `json:"next_review"`
	Interval    int      `json:"interval"`
	EaseFactor  float64  `json:"ease_factor"`
	Repetitions int      `json:"repetitions"`
}

// SubmitReview applies a graded review to the user's card for the item,
// creating the card on the first review. Invalid input is rejected before
// anything is read or written.
func (s *Service) SubmitReview(ctx context.Context, in SubmitReviewInput) (*ReviewResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	quality, err := sm2.ParseQuality(in.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: quality must be an integer between 0 and 5", ErrInvalidInput)
	}

	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.FindQuestion(ctx, in.ItemID); err != nil {
		return nil, s.lookupError(err, "item", in.ItemID)
	}

	now := s.now()
	card, err := s.cards.UpdateReviewCard(ctx, in.UserID, in.ItemID, quality, func(prior *sm2.Card) (sm2.Card, error) {
		return s.scheduler.Review(in.ItemID, prior, quality, now)
	})
	if err != nil {
		if errors.Is(err, sm2.ErrInvalidQuality) || errors.Is(err, sm2.ErrItemMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Debug("review recorded",
		"user_id", in.UserID,
		"item_id", in.ItemID,
		"quality", int(quality),
		"interval", card.Interval,
		"next_review", card.NextReview.String(),
	)

	return &ReviewResult{
		NextReview:  card.NextReview,
		Interval:    card.Interval,
		EaseFactor:  math.Round(card.EaseFactor*100) / 100,
		Repetitions: card.Repetitions,
	}, nil
}

// DueCard is a queue entry joined with its catalog question.
type DueCard struct {
	Question domain.Question
	Entry    sm2.QueueEntry
}

// DueCards returns up to limit items to review today: due cards first, then
// never-reviewed questions.
func (s *Service) DueCards(ctx context.Context, userID string, limit int) ([]DueCard, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	cards, err := s.cards.ListReviewCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	catalog, err := s.catalog.ListQuestionHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	queue := s.scheduler.DueQueue(cards, catalog, s.scheduler.Today(s.now()), limit)

	hashes := make([]string, len(queue))
	for i, e := range queue {
		hashes[i] = e.ItemID
	}
	questions, err := s.catalog.GetQuestions(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	out := make([]DueCard, 0, len(queue))
	for _, e := range queue {
		q, ok := questions[e.ItemID]
		if !ok {
			// Removed from the catalog between the two reads.
			s.logger.Warn("due card without question", "user_id", userID, "item_id", e.ItemID)
			continue
		}
		out = append(out, DueCard{Question: q, Entry: e})
	}
	return out, nil
}

// Stats summarises the user's progress over the whole catalog.
func (s *Service) Stats(ctx context.Context, userID string) (sm2.Stats, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return sm2.Stats{}, err
	}

	cards, err := s.cards.ListReviewCards(ctx, userID)
	if err != nil {
		return sm2.Stats{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	catalog, err := s.catalog.ListQuestionHashes(ctx)
	if err != nil {
		return sm2.Stats{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return s.scheduler.Statistics(cards, len(catalog), s.scheduler.Today(s.now())), nil
}

// History returns the user's most recent reviews, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	logs, err := s.cards.ListReviewLogs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return logs, nil
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return s.lookupError(err, "user", userID)
	}
	return nil
}

func (s *Service) lookupError(err error, entity, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return fmt.Errorf("%w: looking up %s %s: %w", ErrStorage, entity, id, err)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "UserID":
		return "user ID is required"
	case "ItemID":
		return "item_id is required"
	case "Quality":
		return "quality must be an integer between 0 and 5"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
