// Package worker provides the retrace daemon's HTTP service: the operation
// surface for the capture scheduler, the classification router, and the
// event store, plus the SSE stream for dashboards.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/retracehq/retrace/internal/capture"
	"github.com/retracehq/retrace/internal/classify"
	"github.com/retracehq/retrace/internal/config"
	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/internal/worker/sse"
)

// Deps wires the service's collaborators.
type Deps struct {
	Version     string
	Config      *config.Config
	Store       *db.Store
	Events      *db.EventStore
	Queue       *db.QueueStore
	Scheduler   *capture.Scheduler
	Router      *classify.Router
	Broadcaster *sse.Broadcaster
}

// Service is the worker HTTP service.
type Service struct {
	version     string
	config      *config.Config
	store       *db.Store
	events      *db.EventStore
	queue       *db.QueueStore
	scheduler   *capture.Scheduler
	classifier  *classify.Router
	broadcaster *sse.Broadcaster
	consumer    *QueueConsumer

	router     chi.Router
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
	ready      atomic.Bool
}

// New creates the worker service and registers its routes.
func New(deps Deps) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:     deps.Version,
		config:      deps.Config,
		store:       deps.Store,
		events:      deps.Events,
		queue:       deps.Queue,
		scheduler:   deps.Scheduler,
		classifier:  deps.Router,
		broadcaster: deps.Broadcaster,
		router:      chi.NewRouter(),
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
	}
	svc.consumer = NewQueueConsumer(QueueConsumerDeps{
		Events:      deps.Events,
		Queue:       deps.Queue,
		Router:      deps.Router,
		Broadcaster: deps.Broadcaster,
		Config:      deps.Config,
	})
	svc.setupRoutes()
	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/scheduler/start", s.handleSchedulerStart)
		r.Post("/scheduler/stop", s.handleSchedulerStop)
		r.Post("/capture/trigger", s.handleCaptureTrigger)

		r.Get("/classify/availability", s.handleClassifyAvailability)
		r.Post("/classify", s.handleClassify)

		r.Get("/events", s.handleListEvents)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Post("/events/{id}/dismiss", s.handleDismissEvent)
		r.Get("/events/stream", s.broadcaster.HandleSSE)
	})
}

// Start binds the listen port and runs the HTTP server and the queue
// consumer until Shutdown.
func (s *Service) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.consumer.Run(s.ctx)

	s.ready.Store(true)
	log.Info().Int("port", port).Str("version", s.version).Msg("Worker service listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the queue consumer and drains the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the chi router, used by tests.
func (s *Service) Router() chi.Router {
	return s.router
}
