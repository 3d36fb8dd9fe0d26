package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/examprep/internal/domain"
	"github.com/conorfennell/examprep/internal/review"
	"github.com/conorfennell/examprep/internal/seed"
	"github.com/conorfennell/examprep/internal/storage"
	"github.com/conorfennell/examprep/internal/sync"
)

const (
	maxBodyBytes       = 1 << 20
	defaultQuestionCap = 50
	defaultHistoryCap  = 10
)

// Options configures a Server.
type Options struct {
	DueLimit    int      // default limit of the due endpoint
	CORSOrigins []string // "*" allows any origin
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	reviews  *review.Service
	syncer   *sync.Syncer
	validate *validator.Validate
	logger   *slog.Logger
	opts     Options
	router   *http.ServeMux
	handler  http.Handler
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, reviews *review.Service, syncer *sync.Syncer, logger *slog.Logger, opts Options) *Server {
	if opts.DueLimit <= 0 {
		opts.DueLimit = 20
	}
	s := &Server{
		db:       db,
		reviews:  reviews,
		syncer:   syncer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		opts:     opts,
		router:   http.NewServeMux(),
	}
	s.routes()
	s.handler = logging(logger)(cors(opts.CORSOrigins)(s.router))
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth())

	// Learners
	s.router.HandleFunc("POST /api/users", s.handleCreateUser())
	s.router.HandleFunc("GET /api/users/{userID}", s.handleGetUser())

	// Reviews
	s.router.HandleFunc("POST /api/users/{userID}/reviews", s.handleSubmitReview())
	s.router.HandleFunc("GET /api/users/{userID}/reviews/due", s.handleGetDue())
	s.router.HandleFunc("GET /api/users/{userID}/reviews/stats", s.handleGetStats())
	s.router.HandleFunc("GET /api/users/{userID}/reviews/history", s.handleGetHistory())

	// Catalog
	s.router.HandleFunc("GET /api/questions", s.handleListQuestions())
	s.router.HandleFunc("GET /api/questions/{questionID}", s.handleGetQuestion())

	// Source management
	s.router.HandleFunc("GET /api/sources", s.handleGetSources())
	s.router.HandleFunc("POST /api/sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /api/sources/{sourceID}", s.handleDeleteSource())
	s.router.HandleFunc("POST /api/sync", s.handlePostSync())
	s.router.HandleFunc("POST /api/seed", s.handlePostSeed())
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// handleServiceError maps review and storage errors to HTTP responses.
// Returns true if an error was handled (caller should return).
func (s *Server) handleServiceError(w http.ResponseWriter, err error, entity string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, review.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, entity+" not found")
	default:
		s.logger.Error("request failed", "entity", entity, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryLimit reads the "limit" query parameter, which must be a positive integer.
func queryLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Error("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type createUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *Server) handleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, "name is required and at most 100 characters")
			return
		}
		user, err := s.db.CreateUser(r.Context(), req.Name)
		if s.handleServiceError(w, err, "user") {
			return
		}
		respondJSON(w, http.StatusCreated, user)
	}
}

func (s *Server) handleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.db.FindUser(r.Context(), r.PathValue("userID"))
		if s.handleServiceError(w, err, "user") {
			return
		}
		respondJSON(w, http.StatusOK, user)
	}
}

type submitReviewRequest struct {
	ItemID  string          `json:"item_id"`
	Quality json.RawMessage `json:"quality"`
}

type submitReviewResponse struct {
	Success bool `json:"success"`
	*review.ReviewResult
}

// parseQuality accepts only a bare JSON number. Fractional values are passed
// on so that validation rejects them.
func parseQuality(raw json.RawMessage) (float64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// handleSubmitReview records a graded review.
func (s *Server) handleSubmitReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitReviewRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Quality) == 0 || string(req.Quality) == "null" {
			respondError(w, http.StatusBadRequest, "quality is required")
			return
		}
		quality, ok := parseQuality(req.Quality)
		if !ok {
			respondError(w, http.StatusBadRequest, "quality must be an integer between 0 and 5")
			return
		}

		res, err := s.reviews.SubmitReview(r.Context(), review.SubmitReviewInput{
			UserID:  r.PathValue("userID"),
			ItemID:  req.ItemID,
			Quality: quality,
		})
		if s.handleServiceError(w, err, "item or user") {
			return
		}
		respondJSON(w, http.StatusOK, submitReviewResponse{Success: true, ReviewResult: res})
	}
}

type srData struct {
	EaseFactor  float64 `json:"ease_factor"`
	Interval    int     `json:"interval"`
	Repetitions int     `json:"repetitions"`
	IsNew       bool    `json:"is_new"`
}

type dueCardResponse struct {
	domain.Question
	SRData srData `json:"sr_data"`
}

func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryLimit(r, s.opts.DueLimit)
		if !ok {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		due, err := s.reviews.DueCards(r.Context(), r.PathValue("userID"), limit)
		if s.handleServiceError(w, err, "user") {
			return
		}

		out := make([]dueCardResponse, len(due))
		for i, d := range due {
			out[i] = dueCardResponse{
				Question: d.Question,
				SRData: srData{
					EaseFactor:  math.Round(d.Entry.Card.EaseFactor*100) / 100,
					Interval:    d.Entry.Card.Interval,
					Repetitions: d.Entry.Card.Repetitions,
					IsNew:       d.Entry.IsNew,
				},
			}
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.reviews.Stats(r.Context(), r.PathValue("userID"))
		if s.handleServiceError(w, err, "user") {
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryLimit(r, defaultHistoryCap)
		if !ok {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		logs, err := s.reviews.History(r.Context(), r.PathValue("userID"), limit)
		if s.handleServiceError(w, err, "user") {
			return
		}
		if logs == nil {
			logs = []domain.ReviewLog{}
		}
		respondJSON(w, http.StatusOK, logs)
	}
}

func (s *Server) handleListQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryLimit(r, defaultQuestionCap)
		if !ok {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		questions, err := s.db.ListQuestions(r.Context(), r.URL.Query().Get("domain"), limit)
		if s.handleServiceError(w, err, "question") {
			return
		}
		if questions == nil {
			questions = []domain.Question{}
		}
		respondJSON(w, http.StatusOK, questions)
	}
}

func (s *Server) handleGetQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := s.db.FindQuestion(r.Context(), r.PathValue("questionID"))
		if s.handleServiceError(w, err, "question") {
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

type sourceResponse struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned"`
}

func newSourceResponse(src storage.Source) sourceResponse {
	out := sourceResponse{ID: src.ID, Path: src.Path, Type: src.Type}
	if src.LastScanned.Valid {
		t := src.LastScanned.Time
		out.LastScanned = &t
	}
	return out
}

// handleGetSources lists the configured question sources.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if s.handleServiceError(w, err, "source") {
			return
		}
		out := make([]sourceResponse, len(sources))
		for i, src := range sources {
			out[i] = newSourceResponse(src)
		}
		respondJSON(w, http.StatusOK, out)
	}
}

type addSourceRequest struct {
	Path string `json:"path" validate:"required"`
}

// handlePostSource registers a new source. It is not synced until the next sync.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSourceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, "path cannot be empty")
			return
		}
		src, created, err := s.syncer.AddSource(r.Context(), req.Path)
		if errors.Is(err, sync.ErrUnsupportedSource) || errors.Is(err, sync.ErrInvalidPath) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.handleServiceError(w, err, "source") {
			return
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		respondJSON(w, status, newSourceResponse(*src))
	}
}

// handleDeleteSource deletes a source along with its questions and their review state.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("sourceID"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid source ID")
			return
		}
		if s.handleServiceError(w, s.db.DeleteSource(r.Context(), id), "source") {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type syncResponse struct {
	sync.Report
	Errors []string `json:"errors"`
}

func newSyncResponse(report sync.Report) syncResponse {
	out := syncResponse{Report: report, Errors: []string{}}
	for _, p := range report.Problems {
		out.Errors = append(out.Errors, p.Error())
	}
	return out
}

// handlePostSync runs a sync in the foreground and reports what changed.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.syncer.Run(r.Context())
		if s.handleServiceError(w, err, "source") {
			return
		}
		respondJSON(w, http.StatusOK, newSyncResponse(report))
	}
}

// handlePostSeed registers the built-in deck and syncs it.
func (s *Server) handlePostSeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := s.syncer.AddSource(r.Context(), seed.SourcePath); s.handleServiceError(w, err, "source") {
			return
		}
		report, err := s.syncer.Run(r.Context())
		if s.handleServiceError(w, err, "source") {
			return
		}
		respondJSON(w, http.StatusOK, newSyncResponse(report))
	}
}
