package weather

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-notam/pkg/logger"
)

// Service manages weather data fetching and caching for a set of airports
type Service struct {
	config   WeatherConfig
	airports []string
	client   *Client
	cache    *Cache
	clock    clockwork.Clock
	logger   *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	// Initial data readiness
	initialDataReady chan struct{}
	initialDataOnce  sync.Once
}

// NewService creates a new weather service
func NewService(config WeatherConfig, airports []string, clock clockwork.Clock, logger *logger.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	codes := make([]string, 0, len(airports))
	for _, a := range airports {
		codes = append(codes, strings.ToUpper(strings.TrimSpace(a)))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config:           config,
		airports:         codes,
		client:           NewClient(config, logger),
		cache:            NewCache(config, clock, logger),
		clock:            clock,
		logger:           logger.Named("weather-service"),
		ctx:              ctx,
		cancel:           cancel,
		initialDataReady: make(chan struct{}),
	}
}

// Start begins the weather service background operations
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	s.logger.Info("Starting weather service",
		logger.Strings("airports", s.airports),
		logger.Int("refresh_interval_minutes", s.config.RefreshIntervalMinutes))

	// Perform initial fetch
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.performInitialFetch()
	}()

	// Start background refresh goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh()
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the weather service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping weather service")

	// Cancel context to signal goroutines to stop
	s.cancel()

	// Wait for all goroutines to finish
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// GetWeatherData returns the cached weather for one airport, or nil.
// Waits briefly for the initial fetch if the service just started.
func (s *Service) GetWeatherData(airport string) *WeatherData {
	s.waitForInitialData(5 * time.Second)
	return s.cache.Get(strings.ToUpper(strings.TrimSpace(airport)))
}

// GetAll returns the cached weather of every airport
func (s *Service) GetAll() []*WeatherData {
	s.waitForInitialData(5 * time.Second)
	return s.cache.All()
}

func (s *Service) waitForInitialData(timeout time.Duration) {
	if !s.IsStarted() {
		return
	}
	select {
	case <-s.initialDataReady:
	case <-s.clock.After(timeout):
		s.logger.Warn("Timeout waiting for initial weather data")
	}
}

// RefreshNow fetches weather synchronously
func (s *Service) RefreshNow(ctx context.Context) {
	s.logger.Info("Manual weather refresh triggered")
	s.fetchAndUpdateCache(ctx)
}

// GetCacheStats returns cache statistics
func (s *Service) GetCacheStats() map[string]any {
	return s.cache.GetStats()
}

// IsStarted returns whether the service is currently running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// performInitialFetch performs the first weather data fetch on service start
func (s *Service) performInitialFetch() {
	s.logger.Info("Performing initial weather data fetch",
		logger.Strings("airports", s.airports))

	s.fetchAndUpdateCache(s.ctx)

	// Signal that initial data is ready
	s.initialDataOnce.Do(func() {
		close(s.initialDataReady)
		s.logger.Info("Initial weather data fetch completed")
	})
}

// backgroundRefresh runs the periodic weather data refresh
func (s *Service) backgroundRefresh() {
	refreshInterval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute
	ticker := s.clock.NewTicker(refreshInterval)
	defer ticker.Stop()

	s.logger.Info("Background weather refresh started",
		logger.String("interval", refreshInterval.String()))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Background weather refresh stopped")
			return
		case <-ticker.Chan():
			s.logger.Debug("Periodic weather refresh triggered")
			s.fetchAndUpdateCache(s.ctx)
		}
	}
}

// fetchAndUpdateCache fetches weather data and updates the cache
func (s *Service) fetchAndUpdateCache(ctx context.Context) {
	if len(s.airports) == 0 {
		return
	}
	startTime := s.clock.Now()

	// Fetch all enabled weather data types
	results := s.client.FetchAll(ctx, s.airports)

	// Update cache with results
	s.cache.Update(results, s.airports)

	s.logger.Info("Weather data fetch completed",
		logger.Int("airports", len(s.airports)),
		logger.Duration("duration", s.clock.Since(startTime)),
		logger.Int("total_requests", len(results)))
}

// ValidateConfig validates the weather service configuration
func ValidateConfig(config WeatherConfig) error {
	if config.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("refresh_interval_minutes must be greater than 0")
	}

	if config.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be greater than 0")
	}

	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be 0 or greater")
	}

	if config.CacheExpiryMinutes <= 0 {
		return fmt.Errorf("cache_expiry_minutes must be greater than 0")
	}

	if config.APIBaseURL == "" {
		return fmt.Errorf("api_base_url cannot be empty")
	}

	// At least one weather type must be enabled
	if !config.FetchMETAR && !config.FetchTAF {
		return fmt.Errorf("at least one weather type must be enabled (fetch_metar or fetch_taf)")
	}

	return nil
}
