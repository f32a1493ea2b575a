package weather

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// METARResponse is one observation from the AviationWeather.gov METAR API
type METARResponse struct {
	ICAOID     string   `json:"icaoId"`
	ReportTime string   `json:"reportTime"`
	ObsTime    int64    `json:"obsTime"`
	Temp       *float64 `json:"temp"`
	Dewpoint   *float64 `json:"dewp"`
	WindDir    any      `json:"wdir"` // degrees or "VRB"
	WindSpeed  *int     `json:"wspd"`
	WindGust   *int     `json:"wgst,omitempty"`
	Visibility any      `json:"visib"` // statute miles or "10+"
	Altimeter  *float64 `json:"altim"` // hPa
	RawOb      string   `json:"rawOb"`
	Name       string   `json:"name,omitempty"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Elevation  float64  `json:"elev"` // metres
}

// TAFResponse is one forecast from the AviationWeather.gov TAF API
type TAFResponse struct {
	ICAOID        string `json:"icaoId"`
	IssueTime     string `json:"issueTime"`
	ValidTimeFrom int64  `json:"validTimeFrom"`
	ValidTimeTo   int64  `json:"validTimeTo"`
	RawTAF        string `json:"rawTAF"`
	Name          string `json:"name,omitempty"`
}

// WeatherData represents the weather information for one airport
type WeatherData struct {
	Airport     string         `json:"airport"`
	METAR       *METARResponse `json:"metar,omitempty"`
	TAF         *TAFResponse   `json:"taf,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
	FetchErrors []string       `json:"fetch_errors,omitempty"`
}

// WeatherCache represents cached weather data with expiration
type WeatherCache struct {
	Data      *WeatherData
	ExpiresAt time.Time
	clock     clockwork.Clock
	mu        sync.RWMutex
}

// WeatherConfig represents the weather service configuration
type WeatherConfig struct {
	RefreshIntervalMinutes int    `toml:"refresh_interval_minutes"`
	APIBaseURL             string `toml:"api_base_url"`
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	FetchMETAR             bool   `toml:"fetch_metar"`
	FetchTAF               bool   `toml:"fetch_taf"`
	CacheExpiryMinutes     int    `toml:"cache_expiry_minutes"`
}

// WeatherType represents the type of weather data
type WeatherType string

const (
	WeatherTypeMETAR WeatherType = "metar"
	WeatherTypeTAF   WeatherType = "taf"
)

// FetchResult represents the result of fetching one weather type for a set of airports
type FetchResult struct {
	Type  WeatherType
	METAR map[string]*METARResponse
	TAF   map[string]*TAFResponse
	Err   error
}

// IsExpired checks if the cached data has expired
func (wc *WeatherCache) IsExpired() bool {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.clock.Now().After(wc.ExpiresAt)
}

// Get returns the cached weather data (thread-safe)
func (wc *WeatherCache) Get() *WeatherData {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.Data
}

// Set updates the cached weather data (thread-safe)
func (wc *WeatherCache) Set(data *WeatherData, expiryDuration time.Duration) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.Data = data
	wc.ExpiresAt = wc.clock.Now().Add(expiryDuration)
}

// NewWeatherCache creates a new weather cache instance
func NewWeatherCache(clock clockwork.Clock) *WeatherCache {
	return &WeatherCache{clock: clock}
}

// DefaultWeatherConfig returns the default weather configuration
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		RefreshIntervalMinutes: 10,
		APIBaseURL:             "https://aviationweather.gov/api/data",
		RequestTimeoutSeconds:  10,
		MaxRetries:             2,
		FetchMETAR:             true,
		FetchTAF:               true,
		CacheExpiryMinutes:     60,
	}
}
