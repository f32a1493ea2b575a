package weather

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-notam/pkg/logger"
)

// Cache manages per-airport weather data with thread-safe operations
type Cache struct {
	airports map[string]*WeatherCache
	config   WeatherConfig
	clock    clockwork.Clock
	logger   *logger.Logger
	mu       sync.RWMutex
}

// NewCache creates a new weather cache manager
func NewCache(config WeatherConfig, clock clockwork.Clock, logger *logger.Logger) *Cache {
	return &Cache{
		airports: make(map[string]*WeatherCache),
		config:   config,
		clock:    clock,
		logger:   logger.Named("weather-cache"),
	}
}

// Get returns the cached weather data for an airport
// Returns nil if no data has been fetched yet or the entry has expired
func (c *Cache) Get(airport string) *WeatherData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.airports[airport]
	if !ok || entry.IsExpired() {
		return nil
	}

	data := entry.Get()
	if data == nil || (data.METAR == nil && data.TAF == nil && len(data.FetchErrors) == 0) {
		return nil
	}
	return data
}

// All returns the unexpired data for every airport, sorted by airport
func (c *Cache) All() []*WeatherData {
	c.mu.RLock()
	codes := make([]string, 0, len(c.airports))
	for code := range c.airports {
		codes = append(codes, code)
	}
	c.mu.RUnlock()
	sort.Strings(codes)

	out := make([]*WeatherData, 0, len(codes))
	for _, code := range codes {
		if data := c.Get(code); data != nil {
			out = append(out, data)
		}
	}
	return out
}

// Update updates the cache with new fetch results. Data that failed to
// refresh is kept until it expires.
func (c *Cache) Update(results []FetchResult, airports []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiryDuration := time.Duration(c.config.CacheExpiryMinutes) * time.Minute
	now := c.clock.Now()

	for _, airport := range airports {
		entry, ok := c.airports[airport]
		if !ok {
			entry = NewWeatherCache(c.clock)
			c.airports[airport] = entry
		}

		// Get current data or create new
		currentData := entry.Get()
		if currentData == nil || entry.IsExpired() {
			currentData = &WeatherData{Airport: airport}
		}

		newData := &WeatherData{
			Airport:     airport,
			METAR:       currentData.METAR,
			TAF:         currentData.TAF,
			LastUpdated: now,
			FetchErrors: []string{},
		}

		// Process fetch results
		for _, result := range results {
			switch result.Type {
			case WeatherTypeMETAR:
				if result.Err != nil {
					newData.FetchErrors = append(newData.FetchErrors, fmt.Sprintf("METAR: %s", result.Err.Error()))
				} else if m, ok := result.METAR[airport]; ok {
					newData.METAR = m
				}
			case WeatherTypeTAF:
				if result.Err != nil {
					newData.FetchErrors = append(newData.FetchErrors, fmt.Sprintf("TAF: %s", result.Err.Error()))
				} else if t, ok := result.TAF[airport]; ok {
					newData.TAF = t
				}
			}
		}

		entry.Set(newData, expiryDuration)
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			c.logger.Warn("Failed to fetch weather data",
				logger.String("type", string(result.Type)),
				logger.Error(result.Err))
		}
	}

	// Log cache update
	c.logger.Info("Weather cache updated",
		logger.Int("airports", len(airports)),
		logger.Int("successful_fetches", len(results)-failed),
		logger.Int("failed_fetches", failed),
		logger.Time("expires_at", now.Add(expiryDuration)))
}

// Invalidate clears the cache
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.airports = make(map[string]*WeatherCache)
	c.logger.Info("Weather cache invalidated")
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	withMETAR, withTAF, expired := 0, 0, 0
	for _, entry := range c.airports {
		if entry.IsExpired() {
			expired++
			continue
		}
		if data := entry.Get(); data != nil {
			if data.METAR != nil {
				withMETAR++
			}
			if data.TAF != nil {
				withTAF++
			}
		}
	}
	return map[string]any{
		"airports":   len(c.airports),
		"with_metar": withMETAR,
		"with_taf":   withTAF,
		"expired":    expired,
	}
}
