package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"tournament-bot/internal/loop"
	"tournament-bot/internal/metrics"
	"tournament-bot/internal/models"
	"tournament-bot/internal/tournament"
)

type Registrants interface {
	List(ctx context.Context) ([]models.Registrant, error)
	DataSource() string
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	ExportSecret   string
	Location       *time.Location
}

type Server struct {
	opts       Options
	loop       *loop.Loop
	tournament *tournament.Manager
	store      Registrants
	metrics    *metrics.Metrics
	logger     *slog.Logger
	exportRate *ipRateLimiter
}

func NewServer(opts Options, l *loop.Loop, t *tournament.Manager, store Registrants, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Server{
		opts:       opts,
		loop:       l,
		tournament: t,
		store:      store,
		metrics:    m,
		logger:     logger,
		exportRate: newIPRateLimiter(rate.Every(6*time.Second), 5),
	}
}

// New returns the HTTP server for the dashboard API.
func New(opts Options, l *loop.Loop, t *tournament.Manager, store Registrants, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	s := NewServer(opts, l, t, store, m, logger)
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(corsMiddleware(s.opts.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/get_players", s.getPlayers)
		r.Post("/send_lobby", s.sendLobby)
		r.Post("/schedule_tournament", s.scheduleTournament)
		r.Post("/end_tournament", s.endTournament)
		r.Get("/health", s.health)
		r.Get("/tournament_status", s.tournamentStatus)
		r.Get("/matches", s.matches)
		r.With(rateLimit(s.exportRate)).Get("/export.xlsx", s.exportXLSX)
	})
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

// execute runs fn on the bot loop and records the outcome per route.
func (s *Server) execute(ctx context.Context, route string, fn func(context.Context) error) error {
	err := s.loop.Execute(ctx, fn)
	var ve *tournament.ValidationError
	s.metrics.BridgeCall(route, err == nil || errors.As(err, &ve))
	return err
}

// call is execute for loop work that returns a value.
func call[T any](ctx context.Context, s *Server, route string, fn func(context.Context) (T, error)) (T, error) {
	v, err := loop.Call(ctx, s.loop, fn)
	var ve *tournament.ValidationError
	s.metrics.BridgeCall(route, err == nil || errors.As(err, &ve))
	return v, err
}

func (s *Server) snapshot(ctx context.Context, route string) (tournament.Snapshot, error) {
	return call(ctx, s, route, func(context.Context) (tournament.Snapshot, error) {
		return s.tournament.Snapshot(), nil
	})
}

func (s *Server) matchList(ctx context.Context, route string) ([]models.Match, error) {
	return call(ctx, s, route, func(context.Context) ([]models.Match, error) {
		return s.tournament.Matches(), nil
	})
}

func (s *Server) fail(w http.ResponseWriter, route string, err error) {
	var ve *tournament.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	s.logger.Error("request failed", "route", route, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panicked", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows the configured origins; "*" allows any origin
// without credentials.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, allowAny := origins["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := origins[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				} else if allowAny {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
