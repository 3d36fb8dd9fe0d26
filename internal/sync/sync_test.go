package sync

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/examprep/internal/seed"
	"github.com/conorfennell/examprep/internal/sm2"
	"github.com/conorfennell/examprep/internal/storage"
)

const deckA = `Q: What does CIA stand for?
O: Confidentiality, integrity, availability
O: Central intelligence agency
A: a
C: General Security Concepts
---
Q: Which port does HTTPS use by default?
O: 80
O: 443
A: b
`

const deckB = `Q: What is a honeypot?
O: A decoy system
O: A password vault
A: a
---
Q: Broken question with one option
O: lonely
A: a
`

func newTestSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, t.TempDir(), logger), db
}

func writeDeck(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, storage.SourceBuiltin, DetectType(seed.SourcePath))
	assert.Equal(t, storage.SourceGit, DetectType("https://github.com/acme/decks.git"))
	assert.Equal(t, storage.SourceGit, DetectType("git@github.com:acme/decks.git"))
	assert.Equal(t, storage.SourceLocal, DetectType("./decks"))
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)

	src, created, err := s.AddSource(ctx, "  ./decks ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "./decks", src.Path)
	assert.Equal(t, storage.SourceLocal, src.Type)

	again, created, err := s.AddSource(ctx, "./decks")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, src.ID, again.ID)

	for _, blank := range []string{"", "   \t"} {
		_, _, err = s.AddSource(ctx, blank)
		assert.ErrorIs(t, err, ErrInvalidPath)
	}

	_, _, err = s.AddSource(ctx, "builtin:nope")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestRunReconcilesLocalSource(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	dir := t.TempDir()
	writeDeck(t, dir, "a.md", deckA)
	writeDeck(t, dir, "nested/b.MD", deckB)
	writeDeck(t, dir, "notes.txt", deckB)
	writeDeck(t, dir, ".hidden/c.md", deckB)

	src, _, err := s.AddSource(ctx, dir)
	require.NoError(t, err)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Deleted)
	assert.Len(t, report.Problems, 1, "the one-option question is reported")

	hashes, err := db.ListQuestionHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 3)

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.True(t, sources[0].LastScanned.Valid)

	t.Run("second run is idempotent", func(t *testing.T) {
		report, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Inserted)
		assert.Equal(t, 0, report.Deleted)
	})

	t.Run("removed questions are deleted with their cards", func(t *testing.T) {
		user, err := db.CreateUser(ctx, "Ada")
		require.NoError(t, err)
		removed, err := db.GetQuestionHashesBySourceID(ctx, src.ID)
		require.NoError(t, err)

		writeDeck(t, dir, "nested/b.MD", "")
		var honeypot string
		for _, h := range removed {
			q, err := db.FindQuestion(ctx, h)
			require.NoError(t, err)
			if q.Question == "What is a honeypot?" {
				honeypot = h
			}
		}
		require.NotEmpty(t, honeypot)
		_, err = db.UpdateReviewCard(ctx, user.ID, honeypot, sm2.Perfect, func(prior *sm2.Card) (sm2.Card, error) {
			return sm2.DefaultScheduler().Review(honeypot, prior, sm2.Perfect, s.now())
		})
		require.NoError(t, err)

		report, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Deleted)

		_, err = db.FindQuestion(ctx, honeypot)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		cards, err := db.ListReviewCards(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, cards)
	})
}

func TestRunBuiltinSource(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)

	_, created, err := s.AddSource(ctx, seed.SourcePath)
	require.NoError(t, err)
	require.True(t, created)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Problems)
	assert.Equal(t, 10, report.Inserted)

	questions, err := db.ListQuestions(ctx, "Security Operations", 50)
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestRunMissingLocalSource(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSyncer(t)

	_, _, err := s.AddSource(ctx, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sources)
	assert.Len(t, report.Problems, 1)
}

func TestRunNoSources(t *testing.T) {
	s, _ := newTestSyncer(t)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

// unreadableFS fails to open the named files while still listing them.
type unreadableFS struct {
	fstest.MapFS
	broken map[string]bool
}

func (f unreadableFS) Open(name string) (fs.File, error) {
	if f.broken[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("input/output error")}
	}
	return f.MapFS.Open(name)
}

// reviewedSource syncs one deck into a fresh source and records a review of
// every question in it for a new learner.
func reviewedSource(t *testing.T, s *Syncer, db *storage.DB, fsys fs.FS) (storage.Source, string) {
	t.Helper()
	ctx := context.Background()
	id, err := db.InsertSource(ctx, "/decks", storage.SourceLocal)
	require.NoError(t, err)
	src := storage.Source{ID: id, Path: "/decks", Type: storage.SourceLocal}

	var report Report
	require.NoError(t, s.reconcile(ctx, src, fsys, &report))
	require.Equal(t, 2, report.Inserted)

	user, err := db.CreateUser(ctx, "Ada")
	require.NoError(t, err)
	hashes, err := db.GetQuestionHashesBySourceID(ctx, id)
	require.NoError(t, err)
	for _, h := range hashes {
		_, err := db.UpdateReviewCard(ctx, user.ID, h, sm2.Hesitant, func(prior *sm2.Card) (sm2.Card, error) {
			return sm2.DefaultScheduler().Review(h, prior, sm2.Hesitant, s.now())
		})
		require.NoError(t, err)
	}
	return src, user.ID
}

func TestReconcileKeepsQuestionsOfUnreadableDecks(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	decks := fstest.MapFS{"deck.md": {Data: []byte(deckA)}}
	src, userID := reviewedSource(t, s, db, decks)

	broken := unreadableFS{MapFS: decks, broken: map[string]bool{"deck.md": true}}
	var report Report
	require.NoError(t, s.reconcile(ctx, src, broken, &report))
	assert.Equal(t, 0, report.Deleted)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0].Error(), "input/output error")

	hashes, err := db.ListQuestionHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
	cards, err := db.ListReviewCards(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cards, 2, "review state survives a failed read")
}

func TestReconcileLongLines(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	decks := fstest.MapFS{"deck.md": {Data: []byte(deckA)}}
	src, userID := reviewedSource(t, s, db, decks)

	decks["deck.md"] = &fstest.MapFile{Data: []byte(deckA + "E: " + strings.Repeat("x", 70*1024) + "\n")}
	var report Report
	require.NoError(t, s.reconcile(ctx, src, decks, &report))
	assert.Empty(t, report.Problems)
	assert.Equal(t, 0, report.Deleted)

	cards, err := db.ListReviewCards(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}
