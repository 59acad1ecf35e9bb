package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/heytrainer/internal/coach"
	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/claude/heytrainer/internal/outbox"
	"github.com/claude/heytrainer/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence the HTTP API needs. *storage.DB implements it.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	CreateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error)
	GetRoutine(ctx context.Context, id uuid.UUID, userID int) (*models.Routine, error)
	ListRoutines(ctx context.Context, userID int) ([]models.Routine, error)
	UpdateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error)
	DeleteRoutine(ctx context.Context, id uuid.UUID, userID int) error

	ListTriggerPhrases(ctx context.Context, userID int) ([]string, error)
	AddTriggerPhrase(ctx context.Context, userID int, phrase string) error
	RemoveTriggerPhrase(ctx context.Context, userID int, phrase string) error

	QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]storage.WorkoutLogSummary, error)
	GetWorkoutLog(ctx context.Context, id uuid.UUID, userID int) (*models.WorkoutLog, error)
	UpdateWorkoutLog(ctx context.Context, wl models.WorkoutLog) error
	DeleteWorkoutLog(ctx context.Context, id uuid.UUID, userID int) error
	QueryExerciseHistory(ctx context.Context, exercise string, userID, limit int) ([]storage.ExerciseSet, error)

	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
}

// Outbox retries workout logs that failed to save.
type Outbox interface {
	Retry(ctx context.Context, userID int) (outbox.RetryResult, error)
	Pending(ctx context.Context, userID int) ([]outbox.Entry, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	sessions *coach.Registry
	outbox   Outbox
	log      *slog.Logger
	apiKey   string
	router   chi.Router

	ts      WhoIser
	devUser int
	devInfo UserInfo

	metrics    *observe.Metrics
	metricsURL http.Handler
	mcp        http.Handler
}

// New creates a new Server with all routes configured.
func New(db Store, sessions *coach.Registry, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
		devUser:  1,
		devInfo:  defaultUserInfo,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the dev user to Tailscale WhoIs.
func (s *Server) SetTailscale(lc WhoIser) {
	s.ts = lc
}

// SetDevUser sets the user every request runs as without Tailscale.
func (s *Server) SetDevUser(id int, info UserInfo) {
	s.devUser = id
	s.devInfo = info
}

// SetOutbox enables the retry endpoints.
func (s *Server) SetOutbox(o Outbox) {
	s.outbox = o
}

// SetMetrics records request latency to m and serves h on /metrics.
func (s *Server) SetMetrics(m *observe.Metrics, h http.Handler) {
	s.metrics = m
	s.metricsURL = h
}

// SetMCP serves the MCP endpoint behind the API key.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.requestMetrics)

	s.router.Get("/metrics", s.handleMetrics)
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", http.HandlerFunc(s.handleMCP))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", s.handleListRoutines)
			r.Post("/", s.handleCreateRoutine)
			r.Get("/{id}", s.handleGetRoutine)
			r.Put("/{id}", s.handleUpdateRoutine)
			r.Delete("/{id}", s.handleDeleteRoutine)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleStartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/sets", s.handleLogSet)
				r.Put("/exercises/{index}/sets/{position}", s.handleUpdateSet)
				r.Delete("/exercises/{index}/sets/{position}", s.handleRemoveSet)
				r.Post("/jump", s.handleJump)
				r.Post("/advance", s.handleAdvance)
				r.Post("/finish", s.handleFinish)
				r.Post("/transcript", s.handleTranscript)
				r.Put("/voice", s.handleSetVoice)
				r.Get("/voice/ws", s.handleVoiceWS)
			})
		})

		r.Route("/settings/trigger-phrases", func(r chi.Router) {
			r.Get("/", s.handleListTriggerPhrases)
			r.Post("/", s.handleAddTriggerPhrase)
			r.Delete("/{phrase}", s.handleRemoveTriggerPhrase)
		})

		r.Route("/workout-logs", func(r chi.Router) {
			r.Get("/", s.handleQueryWorkoutLogs)
			r.Get("/pending", s.handlePendingWorkoutLogs)
			r.Post("/retry", s.handleRetryWorkoutLogs)
			r.Get("/{id}", s.handleGetWorkoutLog)
			r.Put("/{id}", s.handleUpdateWorkoutLog)
			r.Delete("/{id}", s.handleDeleteWorkoutLog)
		})

		r.Get("/exercises/{name}/history", s.handleExerciseHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/training-summary", s.handleTrainingSummary)
	})
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		observe.Middleware(s.metrics)(next).ServeHTTP(w, r)
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metricsURL == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics disabled"})
		return
	}
	s.metricsURL.ServeHTTP(w, r)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mcp disabled"})
		return
	}
	s.mcp.ServeHTTP(w, r)
}
