/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLogger: zap access log (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the studio frontend

ROUTE GROUPS:
  /healthz                         Liveness
  /api/studios/{studioID}/*        Tenant-scoped finance API
  /api/scenarios/*                 Demo scenarios (development)

SECURITY NOTE:
  No authentication middleware. The studio in the path is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/studios/{studioID}", func(r chi.Router) {
			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.Post("/", h.CreateMember)
				r.Get("/{memberID}", h.GetMember)
				r.Get("/{memberID}/payable", h.GetMemberPayable)
				r.Get("/{memberID}/projects/{projectID}/payable", h.GetProjectPayable)
				r.Get("/{memberID}/breakdowns", h.GetMemberBreakdowns)
				r.Get("/{memberID}/breakdowns.xlsx", h.ExportMemberBreakdowns)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{projectID}/events", h.ListProjectEvents)
			})

			r.Put("/events/{eventID}/assignees", h.SetEventAssignees)

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListPayments)
				r.Post("/", h.RecordPayment)
			})

			r.Get("/todos", h.ListTodos)
			r.Get("/snapshots", h.ListSnapshots)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// RequestLogger logs one zap entry per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if status >= http.StatusInternalServerError {
					log.Warn("request", fields...)
					return
				}
				log.Info("request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
