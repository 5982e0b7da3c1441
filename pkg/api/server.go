package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/fleet"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// recentEvents is how many events GET /events returns at most
const recentEvents = 100

// Evaluator reports an engine's actions with their actionability.
// *scheduler.Scheduler implements it.
type Evaluator interface {
	Evaluate(ctx context.Context) ([]scheduler.Evaluation, error)
}

// Server is the read-only status API
type Server struct {
	driver  fleet.Driver
	engines map[string]Evaluator
	secret  []byte
	router  chi.Router
	logger  zerolog.Logger

	// evalMu serializes evaluations, which refresh shared engine state
	evalMu sync.Mutex

	eventsMu sync.RWMutex
	events   []*events.Event
}

// NewServer builds the router. An empty secret disables authentication.
func NewServer(driver fleet.Driver, engines map[string]Evaluator, secret string) *Server {
	s := &Server{
		driver:  driver,
		engines: engines,
		secret:  []byte(secret),
		logger:  log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("use a versioned path like /api/v1/..."))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		if len(s.secret) > 0 {
			v1.Use(authenticate(s.secret))
		}
		v1.Get("/fleet", s.listNodes)
		v1.Get("/fleet/{nodeID}/processes", s.listProcesses)
		v1.Get("/targets", s.listTargets)
		v1.Get("/account", s.getAccount)
		v1.Get("/engines/{engine}/actions", s.listActions)
		v1.Get("/events", s.listEvents)
	})

	s.router = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Follow records broker events for GET /events until ctx is cancelled
func (s *Server) Follow(ctx context.Context, broker *events.Broker) {
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.record(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) record(ev *events.Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	s.events = append(s.events, ev)
	if len(s.events) > recentEvents {
		s.events = s.events[len(s.events)-recentEvents:]
	}
}

// Start serves on addr until the context is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("Request served")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
