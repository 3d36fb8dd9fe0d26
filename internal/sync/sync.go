// Package sync reconciles question sources into the catalog.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/conorfennell/examprep/internal/gitsource"
	"github.com/conorfennell/examprep/internal/knol"
	"github.com/conorfennell/examprep/internal/parser"
	"github.com/conorfennell/examprep/internal/seed"
	"github.com/conorfennell/examprep/internal/storage"
)

var (
	// ErrUnsupportedSource is returned for sources with an unknown type.
	ErrUnsupportedSource = errors.New("unsupported source type")
	// ErrInvalidPath is returned for blank source paths.
	ErrInvalidPath = errors.New("invalid source path")
)

// Report summarises a sync run.
type Report struct {
	Sources  int     `json:"sources"`
	Parsed   int     `json:"parsed"`
	Inserted int     `json:"inserted"`
	Deleted  int     `json:"deleted"`
	Problems []error `json:"-"`
}

// Syncer reconciles sources against the catalog. Runs are serialized.
type Syncer struct {
	db       *storage.DB
	reposDir string
	logger   *slog.Logger
	running  chan struct{}
	now      func() time.Time
}

// New creates a Syncer that keeps git clones under reposDir.
func New(db *storage.DB, reposDir string, logger *slog.Logger) *Syncer {
	return &Syncer{
		db:       db,
		reposDir: reposDir,
		logger:   logger,
		running:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// DetectType classifies a source path as builtin, git or local.
func DetectType(p string) string {
	switch {
	case strings.HasPrefix(p, "builtin:"):
		return storage.SourceBuiltin
	case gitsource.IsRepoURL(p):
		return storage.SourceGit
	default:
		return storage.SourceLocal
	}
}

// AddSource registers path as a source unless it already exists. The bool
// reports whether a new source was created.
func (s *Syncer) AddSource(ctx context.Context, p string) (*storage.Source, bool, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, false, fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if existing, err := s.db.FindSourceByPath(ctx, p); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	sourceType := DetectType(p)
	if sourceType == storage.SourceBuiltin && p != seed.SourcePath {
		return nil, false, fmt.Errorf("%w: unknown built-in deck %s", ErrUnsupportedSource, p)
	}
	id, err := s.db.InsertSource(ctx, p, sourceType)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("source added", "id", id, "type", sourceType, "path", p)
	return &storage.Source{ID: id, Path: p, Type: sourceType}, true, nil
}

// Run iterates over all sources and reconciles them. A failing source is
// logged and recorded in the report; the remaining sources are still synced.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}

	s.logger.Info("starting sync process for all sources")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get sources: %w", err)
	}

	var report Report
	if len(sources) == 0 {
		s.logger.Info("no sources configured, add one with --add-source <path/or/url.git> or --seed")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.logger.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		fsys, err := s.open(ctx, source)
		if err != nil {
			s.logger.Error("error opening source", "path", source.Path, "error", err)
			report.Problems = append(report.Problems, fmt.Errorf("source %s: %w", source.Path, err))
			continue
		}
		if err := s.reconcile(ctx, source, fsys, &report); err != nil {
			s.logger.Error("error reconciling source", "path", source.Path, "error", err)
			report.Problems = append(report.Problems, fmt.Errorf("source %s: %w", source.Path, err))
			continue
		}
		report.Sources++
	}

	s.logger.Info("sync process complete",
		"sources", report.Sources,
		"inserted", report.Inserted,
		"deleted", report.Deleted,
		"problems", len(report.Problems),
	)
	return report, nil
}

// open resolves a source to the file tree holding its decks, fetching git
// sources first.
func (s *Syncer) open(ctx context.Context, source storage.Source) (fs.FS, error) {
	switch source.Type {
	case storage.SourceLocal:
		info, err := os.Stat(source.Path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", source.Path)
		}
		return os.DirFS(source.Path), nil
	case storage.SourceGit:
		localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, s.logger, source.Path, localRepoPath); err != nil {
			return nil, err
		}
		return os.DirFS(localRepoPath), nil
	case storage.SourceBuiltin:
		if source.Path != seed.SourcePath {
			return nil, fmt.Errorf("%w: unknown built-in deck %s", ErrUnsupportedSource, source.Path)
		}
		return seed.FS(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source.Type)
}

// reconcile inserts questions found in fsys that are new to the catalog and
// deletes the source's questions that are no longer present. When a deck
// cannot be read, nothing is deleted on that run.
func (s *Syncer) reconcile(ctx context.Context, source storage.Source, fsys fs.FS, report *Report) error {
	found := make(map[string]bool)
	var unreadable []string

	walkErr := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir // .git and friends
			}
			return nil
		}
		if !strings.EqualFold(path.Ext(p), ".md") {
			return nil
		}

		questions, parseErr := parser.ParseFile(fsys, p)
		if parseErr != nil {
			report.Problems = append(report.Problems, fmt.Errorf("parsing %s: %w", p, parseErr))
			if !errors.Is(parseErr, parser.ErrInvalidQuestion) {
				unreadable = append(unreadable, p)
			}
		}
		for _, q := range questions {
			q.Hash = knol.Hash(q)
			report.Parsed++
			if found[q.Hash] {
				continue
			}
			found[q.Hash] = true

			exists, err := s.db.QuestionExists(ctx, q.Hash)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			s.logger.Debug("new question found, inserting", "hash", q.Hash, "file", p)
			if err := s.db.InsertQuestion(ctx, q, source.ID); err != nil {
				return err
			}
			report.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("error walking source: %w", walkErr)
	}

	if len(unreadable) > 0 {
		s.logger.Warn("skipping orphan deletion, decks could not be read",
			"path", source.Path,
			"files", unreadable,
		)
		return nil
	}

	hashes, err := s.db.GetQuestionHashesBySourceID(ctx, source.ID)
	if err != nil {
		return err
	}
	var orphaned int
	for _, h := range hashes {
		if found[h] {
			continue
		}
		s.logger.Info("orphaned question, deleting", "hash", h)
		if err := s.db.DeleteQuestionByHash(ctx, h); err != nil {
			s.logger.Warn("failed to delete orphaned question", "hash", h, "error", err)
			continue
		}
		orphaned++
	}
	report.Deleted += orphaned

	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	s.logger.Info("reconciliation complete",
		"path", source.Path,
		"found", len(found),
		"orphaned_deleted", orphaned,
	)
	return nil
}
