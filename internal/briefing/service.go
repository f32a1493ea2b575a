// Package briefing runs the NOTAM refresh cycle and answers airport and
// route briefing requests from the current collection.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-notam/internal/ai"
	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/config"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/observability"
	"github.com/yegors/co-notam/internal/sources"
	"github.com/yegors/co-notam/internal/templating"
	"github.com/yegors/co-notam/internal/weather"
	"github.com/yegors/co-notam/internal/websocket"
	"github.com/yegors/co-notam/pkg/logger"
)

var (
	// ErrUnknownAirport is returned for ICAO codes missing from the airport database
	ErrUnknownAirport = errors.New("unknown airport")
	// ErrSummaryUnavailable is returned when no summarizer is configured
	ErrSummaryUnavailable = errors.New("AI summary is not enabled")
	// ErrAllSourcesFailed is returned when a refresh could not read any source
	ErrAllSourcesFailed = errors.New("all NOTAM sources failed")
)

// Store persists NOTAMs between refreshes
type Store interface {
	Save(ctx context.Context, notams []*notam.Notam) (int, error)
	LoadAll(ctx context.Context) ([]*notam.Notam, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Broadcaster pushes events to connected clients
type Broadcaster interface {
	Broadcast(message *websocket.Message)
}

// WeatherProvider returns cached weather for an airport
type WeatherProvider interface {
	GetWeatherData(airport string) *weather.WeatherData
}

// Config holds the briefing service settings
type Config struct {
	RefreshInterval time.Duration
	DefaultRadiusNM float64
	RouteCorridorNM float64
	RetainDays      int // stored NOTAMs expired longer than this are purged; 0 keeps everything
}

// Dependencies are the collaborators of the service. Everything except
// Airports and Pipeline is optional.
type Dependencies struct {
	Sources    []sources.Source
	Pipeline   *notam.Pipeline
	Airports   *airports.Database
	Store      Store
	Weather    WeatherProvider
	Hub        Broadcaster
	Metrics    *observability.Metrics
	Templates  *templating.Service
	Summarizer ai.Summarizer
	Clock      clockwork.Clock
}

// RefreshResult describes one refresh cycle
type RefreshResult struct {
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Fetched      int               `json:"fetched"`
	Rejected     int               `json:"rejected"`
	Total        int               `json:"total"`
	Failed       []string          `json:"failed_notams,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
	Outcome      string            `json:"outcome"` // success, partial or error
}

// Service owns the live NOTAM collection
type Service struct {
	config     Config
	sources    []sources.Source
	pipeline   *notam.Pipeline
	airports   *airports.Database
	store      Store
	weather    WeatherProvider
	hub        Broadcaster
	metrics    *observability.Metrics
	templates  *templating.Service
	summarizer ai.Summarizer
	clock      clockwork.Clock
	logger     *logger.Logger

	mu          sync.RWMutex
	collection  *notam.Collection
	lastRefresh *RefreshResult

	// Serializes refresh cycles; the pipeline is single-writer
	refreshMu sync.Mutex

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stateMu sync.Mutex
}

// NewService creates a briefing service with an empty collection
func NewService(cfg Config, deps Dependencies, log *logger.Logger) (*Service, error) {
	if deps.Airports == nil {
		return nil, fmt.Errorf("briefing service needs an airport database")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("briefing service needs a categorization pipeline")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Templates == nil {
		deps.Templates = templating.NewService(config.TemplatingConfig{}, log)
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}
	if cfg.DefaultRadiusNM <= 0 {
		cfg.DefaultRadiusNM = 25
	}
	if cfg.RouteCorridorNM <= 0 {
		cfg.RouteCorridorNM = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:     cfg,
		sources:    deps.Sources,
		pipeline:   deps.Pipeline,
		airports:   deps.Airports,
		store:      deps.Store,
		weather:    deps.Weather,
		hub:        deps.Hub,
		metrics:    deps.Metrics,
		templates:  deps.Templates,
		summarizer: deps.Summarizer,
		clock:      deps.Clock,
		logger:     log.Named("briefing"),
		collection: notam.NewCollection(nil, notam.WithClock(deps.Clock)),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start loads persisted NOTAMs and begins the periodic refresh
func (s *Service) Start() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.started {
		return fmt.Errorf("briefing service already started")
	}

	if err := s.LoadFromStore(s.ctx); err != nil {
		s.logger.Warn("Failed to load stored NOTAMs", logger.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh()
	}()

	s.started = true
	s.logger.Info("Briefing service started",
		logger.Int("sources", len(s.sources)),
		logger.Duration("refresh_interval", s.config.RefreshInterval))
	return nil
}

// Stop cancels the refresh loop and waits for it to exit
func (s *Service) Stop() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !s.started {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.started = false
	s.logger.Info("Briefing service stopped")
	return nil
}

func (s *Service) backgroundRefresh() {
	if _, err := s.Refresh(s.ctx); err != nil {
		s.logger.Error("Initial NOTAM refresh failed", logger.Error(err))
	}

	ticker := s.clock.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.Refresh(s.ctx); err != nil {
				s.logger.Error("Periodic NOTAM refresh failed", logger.Error(err))
			}
		}
	}
}

// LoadFromStore replaces the collection with the persisted NOTAMs
func (s *Service) LoadFromStore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	notams, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.swap(notams)
	s.logger.Info("Loaded stored NOTAMs", logger.Int("count", len(notams)))
	return nil
}

// Refresh runs one fetch, normalize, categorize, store and publish cycle.
// When every source fails the current collection is kept.
func (s *Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	result := &RefreshResult{StartedAt: s.clock.Now(), SourceErrors: map[string]string{}}
	defer func() {
		result.Duration = s.clock.Since(result.StartedAt)
		if s.metrics != nil {
			s.metrics.RecordRefresh(result.Outcome, result.Duration, result.StartedAt)
		}
		s.mu.Lock()
		s.lastRefresh = result
		s.mu.Unlock()
	}()

	var fetched []*notam.Notam
	seen := map[string]bool{}
	succeeded := 0
	for _, src := range s.sources {
		records, err := src.Fetch(ctx)
		unparsed, err := sources.Rejected(err)
		if s.metrics != nil {
			s.metrics.RecordSourceFetch(src.Name(), err)
		}
		if err != nil {
			s.logger.Warn("NOTAM source failed",
				logger.String("source", src.Name()),
				logger.Error(err))
			result.SourceErrors[src.Name()] = err.Error()
			continue
		}
		succeeded++

		notams, errs := sources.ToNotams(records, src.Name())
		errs = append(unparsed, errs...)
		for _, e := range errs {
			s.logger.Debug("Rejected NOTAM record",
				logger.String("source", src.Name()),
				logger.Error(e))
		}
		result.Rejected += len(errs)
		for _, n := range notams {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			fetched = append(fetched, n)
		}
	}
	result.Fetched = len(fetched)
	if s.metrics != nil {
		s.metrics.RecordsRejected.Add(float64(result.Rejected))
	}

	if len(s.sources) > 0 && succeeded == 0 {
		result.Outcome = "error"
		s.publish(websocket.MessageTypeRefreshFailed, map[string]any{
			"errors": result.SourceErrors,
		})
		return result, ErrAllSourcesFailed
	}

	notam.ResolvePositions(fetched, s.airports)

	if _, err := s.pipeline.CategorizeAll(fetched); err != nil {
		var batch *notam.BatchError
		if errors.As(err, &batch) {
			result.Failed = batch.NotamIDs()
			if s.metrics != nil {
				s.metrics.CategorizationFailure.Add(float64(len(batch.Failures)))
			}
		}
		s.logger.Warn("Some NOTAMs could not be categorized", logger.Error(err))
	}

	if s.store != nil {
		if s.config.RetainDays > 0 {
			cutoff := s.clock.Now().AddDate(0, 0, -s.config.RetainDays)
			if _, err := s.store.DeleteExpired(ctx, cutoff); err != nil {
				s.logger.Warn("Failed to purge expired NOTAMs", logger.Error(err))
			}
		}
		if _, err := s.store.Save(ctx, fetched); err != nil {
			s.logger.Error("Failed to store NOTAMs", logger.Error(err))
			result.SourceErrors["store"] = err.Error()
		}
	}

	coll := s.swap(fetched)
	result.Total = coll.Len()
	result.Outcome = "success"
	if len(result.SourceErrors) > 0 || len(result.Failed) > 0 {
		result.Outcome = "partial"
	}

	s.publish(websocket.MessageTypeNotamsUpdated, map[string]any{
		"count":        result.Total,
		"airports":     locations(fetched),
		"categories":   coll.CountByCategory(),
		"refreshed_at": result.StartedAt.UTC().Format(time.RFC3339),
	})

	s.logger.Info("NOTAM refresh completed",
		logger.Int("fetched", result.Fetched),
		logger.Int("rejected", result.Rejected),
		logger.Int("uncategorized_failures", len(result.Failed)),
		logger.String("outcome", result.Outcome))
	return result, nil
}

func (s *Service) swap(notams []*notam.Notam) *notam.Collection {
	coll := notam.NewCollection(notams, notam.WithClock(s.clock))
	s.mu.Lock()
	s.collection = coll
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetCollection(coll.Len(), coll.CountByCategory())
	}
	return coll
}

func (s *Service) publish(kind string, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(&websocket.Message{Type: kind, Data: data})
}

// Collection returns the current collection. It is replaced, never mutated, by refreshes.
func (s *Service) Collection() *notam.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// Query starts a query over the current collection
func (s *Service) Query() notam.Query {
	return s.Collection().Query()
}

// LastRefresh returns the outcome of the most recent refresh, or nil
func (s *Service) LastRefresh() *RefreshResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Airports returns the airport database
func (s *Service) Airports() *airports.Database {
	return s.airports
}

// DefaultRadiusNM returns the radius used when a request gives none
func (s *Service) DefaultRadiusNM() float64 {
	return s.config.DefaultRadiusNM
}

// Now returns the service clock's time
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func locations(notams []*notam.Notam) []string {
	set := map[string]bool{}
	for _, n := range notams {
		if n.Location != "" {
			set[strings.ToUpper(n.Location)] = true
		}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
