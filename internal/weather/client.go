package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/co-notam/pkg/logger"
)

// Client handles HTTP requests to weather APIs
type Client struct {
	config     WeatherConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(config WeatherConfig, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: logger.Named("weather-client"),
	}
}

func (c *Client) endpoint(kind string, airports []string) string {
	q := url.Values{}
	q.Set("ids", strings.Join(airports, ","))
	q.Set("format", "json")
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.config.APIBaseURL, "/"), kind, q.Encode())
}

// FetchMETARs fetches the latest METAR for each airport in one request
func (c *Client) FetchMETARs(ctx context.Context, airports []string) (map[string]*METARResponse, error) {
	var result []METARResponse // API returns an array
	if err := c.fetchWithRetry(ctx, c.endpoint("metar", airports), WeatherTypeMETAR, airports, &result); err != nil {
		return nil, err
	}

	latest := make(map[string]*METARResponse, len(result))
	for i := range result {
		m := &result[i]
		code := strings.ToUpper(m.ICAOID)
		// The API lists the newest observation first
		if _, seen := latest[code]; !seen {
			latest[code] = m
		}
	}
	return latest, nil
}

// FetchTAFs fetches the current TAF for each airport in one request
func (c *Client) FetchTAFs(ctx context.Context, airports []string) (map[string]*TAFResponse, error) {
	var result []TAFResponse
	if err := c.fetchWithRetry(ctx, c.endpoint("taf", airports), WeatherTypeTAF, airports, &result); err != nil {
		return nil, err
	}

	latest := make(map[string]*TAFResponse, len(result))
	for i := range result {
		t := &result[i]
		code := strings.ToUpper(t.ICAOID)
		if _, seen := latest[code]; !seen {
			latest[code] = t
		}
	}
	return latest, nil
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, reqURL string, weatherType WeatherType, airports []string, target any) error {
	var lastErr error
	airportList := strings.Join(airports, ",")

	// Try to fetch with retries
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries
			backoffDuration := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying weather data fetch",
				logger.String("type", string(weatherType)),
				logger.String("airports", airportList),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		err := c.fetchOnce(ctx, reqURL, target)
		if err == nil {
			// Success
			if attempt > 0 {
				c.logger.Info("Successfully fetched weather data after retries",
					logger.String("type", string(weatherType)),
					logger.String("airports", airportList),
					logger.Int("attempts_needed", attempt+1))
			}
			return nil
		}

		lastErr = err
		c.logger.Warn("Weather API request failed, may retry",
			logger.String("type", string(weatherType)),
			logger.String("airports", airportList),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
		if ctx.Err() != nil {
			break
		}
	}

	// If we get here, all attempts failed
	c.logger.Error("All attempts to fetch weather data failed",
		logger.String("type", string(weatherType)),
		logger.String("airports", airportList),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	// AviationWeather answers 204 when no station has data
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Read and parse the response directly into the target
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding weather data: %w", err)
	}
	return nil
}

// FetchAll fetches all enabled weather data types concurrently
func (c *Client) FetchAll(ctx context.Context, airports []string) []FetchResult {
	results := make(chan FetchResult, 2)
	var fetchCount int

	// Start concurrent fetches for enabled weather types
	if c.config.FetchMETAR {
		fetchCount++
		go func() {
			data, err := c.FetchMETARs(ctx, airports)
			results <- FetchResult{Type: WeatherTypeMETAR, METAR: data, Err: err}
		}()
	}

	if c.config.FetchTAF {
		fetchCount++
		go func() {
			data, err := c.FetchTAFs(ctx, airports)
			results <- FetchResult{Type: WeatherTypeTAF, TAF: data, Err: err}
		}()
	}

	// Collect results
	var fetchResults []FetchResult
	for i := 0; i < fetchCount; i++ {
		fetchResults = append(fetchResults, <-results)
	}

	return fetchResults
}
