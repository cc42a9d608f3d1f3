package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/ironlog/internal/metrics"
	ironmcp "github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/workouts"
	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ImportLogStore records template imports. Only the postgres backend has one.
type ImportLogStore interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Options wires a Server. Stores and Users are required.
type Options struct {
	Stores *workouts.Manager
	Users  UserResolver

	// ImportLogs enables GET /api/v1/imports and records imports.
	ImportLogs ImportLogStore

	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer
	MCP      *mcpserver.MCPServer

	// WhoIs identifies callers over the tailnet; nil means dev identity.
	WhoIs WhoIser

	// APIKey guards the import endpoint; empty disables it.
	APIKey      string
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	stores     *workouts.Manager
	users      UserResolver
	importLogs ImportLogStore
	metrics    *metrics.Manager
	log        *slog.Logger
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(opts Options) *Server {
	s := &Server{
		stores:     opts.Stores,
		users:      opts.Users,
		importLogs: opts.ImportLogs,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		router:     chi.NewRouter(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.routes(opts)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(opts Options) {
	s.router.Use(PanicRecovery(s.metrics, s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS(opts.CORSOrigins))

	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	identity := DevIdentity
	if opts.WhoIs != nil {
		identity = TailscaleIdentity(opts.WhoIs, s.log)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(identity)
		r.Use(ResolveUser(s.users, s.log))

		if opts.MCP != nil {
			r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(opts.MCP,
				mcpserver.WithHTTPContextFunc(func(ctx context.Context, req *http.Request) context.Context {
					if id, ok := userIDFromContext(req); ok {
						return ironmcp.WithUserID(ctx, id)
					}
					return ctx
				}),
			))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/me", s.handleMe)
			r.Get("/exercises", s.handleExercises)

			r.Get("/workouts", s.handleListWorkouts)
			r.Post("/workouts", s.handleCreateWorkout)
			r.Get("/workouts/{id}", s.handleGetWorkout)
			r.Put("/workouts/{id}", s.handleUpdateWorkout)
			r.Delete("/workouts/{id}", s.handleDeleteWorkout)
			r.Post("/workouts/{id}/exercises", s.handleAddExercise)
			r.Post("/workouts/{id}/session", s.handleStartSession)

			r.Get("/session", s.handleGetSession)
			r.Put("/session/exercises/{exerciseID}", s.handleUpdateSessionExercise)
			r.Patch("/session/exercises/{exerciseID}/sets/{index}", s.handleRecordSet)
			r.Post("/session/end", s.handleEndSession)

			r.Get("/notifications", s.handleNotifications)

			if opts.APIKey != "" {
				r.With(APIKeyAuth(opts.APIKey)).Post("/import/alpha", s.handleAlphaImport)
			}
			if s.importLogs != nil {
				r.Get("/imports", s.handleImportLogs)
			}
		})
	})
}
