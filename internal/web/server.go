package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jaminalder/cube-tic-tac-toe/internal/app"
	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

// Option customises the server.
type Option func(*handlers)

// WithSizes sets the board sizes offered in the settings form.
func WithSizes(sizes ...int) Option {
	return func(h *handlers) {
		if len(sizes) > 0 {
			h.sizes = sizes
		}
	}
}

// WithDefaults sets the settings of games created without form values.
func WithDefaults(s app.Settings) Option {
	return func(h *handlers) { h.defaults = s }
}

// NewServer wires routes and returns an http.Handler. It installs the board
// renderer used for the service's broadcasts.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	h := &handlers{
		svc:      s,
		tpl:      loadTemplates(),
		sizes:    []int{3, 4, 5},
		defaults: app.Settings{Size: 3, Shape: domain.Square, Difficulty: selector.Random},
	}
	for _, opt := range opts {
		opt(h)
	}
	s.SetRenderer(func(gs app.GameState) []byte { return h.renderBoard(gs, "") })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Get("/", h.index)
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Get("/state", h.state)
		r.Get("/events", h.events)
		r.Post("/play", h.play)
		r.Post("/reset", h.reset)
		r.Post("/swap", h.swap)
		r.Post("/settings", h.settings)
	})
	return r
}

// requestLogger logs every request through logrus at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logrus.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
