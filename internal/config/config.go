package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

var icaoCode = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
	Station    StationConfig    `toml:"station"`    // Home airport and reference data
	NOTAMs     NOTAMConfig      `toml:"notams"`     // NOTAM sources and categorization settings
	Weather    WeatherConfig    `toml:"wx"`         // Weather data fetching and caching settings
	AI         AIConfig         `toml:"ai"`         // Briefing summarization settings
	Templating TemplatingConfig `toml:"templating"` // Plain-text briefing templates
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the web explorer from (e.g., "www")
	RequestsPerSecond  float64  `toml:"requests_per_second"`   // API rate limit per client (0 = unlimited)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path of the SQLite database file
	RetainDays int    `toml:"retain_days"` // Days to keep expired NOTAMs before pruning (0 = keep forever)
}

// StationConfig contains the home airport and the reference data files
type StationConfig struct {
	AirportCode    string `toml:"airport_code"`     // ICAO code of the home airport (e.g., "EGLL")
	AirportsDBPath string `toml:"airports_db_path"` // Path to airport database CSV file (OurAirports format)
	RunwaysDBPath  string `toml:"runways_db_path"`  // Path to runway database CSV file (OurAirports format)
}

// NOTAMConfig contains NOTAM fetching and categorization settings
type NOTAMConfig struct {
	Airports               []string `toml:"airports"`                 // ICAO codes to fetch NOTAMs for (home airport is always included)
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes"` // How often to refresh all sources
	RequestTimeoutSeconds  int      `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int      `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	APIBaseURL             string   `toml:"api_base_url"`             // JSON NOTAM API (queried with ?locations=ICAO,ICAO)
	HTMLSources            []string `toml:"html_sources"`             // HTML pages publishing ICAO-format NOTAMs
	PDFSources             []string `toml:"pdf_sources"`              // Local paths of PDF NOTAM bulletins
	RulesPath              string   `toml:"rules_path"`               // Optional YAML file with extra text rules
	DefaultRadiusNM        float64  `toml:"default_radius_nm"`        // Radius used by the explorer when none is given
	RouteCorridorNM        float64  `toml:"route_corridor_nm"`        // Default half-width of a route briefing corridor
	BreakerFailures        int      `toml:"breaker_failures"`         // Consecutive failures before a source host is tripped
	RequestsPerSecond      float64  `toml:"requests_per_second"`      // Outbound request rate towards NOTAM sources
}

// WeatherConfig contains weather data fetching and caching configuration
type WeatherConfig struct {
	RefreshIntervalMinutes int    `toml:"refresh_interval_minutes"` // Weather data refresh interval in minutes
	APIBaseURL             string `toml:"api_base_url"`             // Base URL for weather API (e.g., https://aviationweather.gov/api/data)
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int    `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	FetchMETAR             bool   `toml:"fetch_metar"`              // Whether to fetch METAR data
	FetchTAF               bool   `toml:"fetch_taf"`                // Whether to fetch TAF data
	CacheExpiryMinutes     int    `toml:"cache_expiry_minutes"`     // How long to keep cached data if refresh fails
}

// AIConfig contains the Gemini briefing summarizer settings
type AIConfig struct {
	Enabled      bool   `toml:"enabled"`        // Enable AI summaries of briefings
	GeminiAPIKey string `toml:"gemini_api_key"` // Gemini API key
	Model        string `toml:"model"`          // Gemini model name
	PromptPath   string `toml:"prompt_path"`    // Path to the summarization prompt template
}

// TemplatingConfig contains plain-text briefing template settings
type TemplatingConfig struct {
	BriefingTemplatePath string `toml:"briefing_template_path"` // Path to the airport briefing template (built-in when empty)
	ReloadTemplates      bool   `toml:"reload_templates"`       // Whether to reload templates from disk (development mode)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Legacy location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server requests_per_second must be 0 or greater: %v", c.Server.RequestsPerSecond)
	}

	// Set default static files directory if not specified
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/notams.db"
	}
	if c.Storage.RetainDays < 0 {
		return fmt.Errorf("storage retain_days must be 0 or greater: %d", c.Storage.RetainDays)
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}
	if err := c.ValidateNOTAMs(); err != nil {
		return err
	}
	if err := c.ValidateWeather(); err != nil {
		return err
	}

	if c.AI.Enabled {
		if c.AI.GeminiAPIKey == "" {
			c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
		}
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("ai gemini_api_key is required when ai is enabled")
		}
		if c.AI.Model == "" {
			c.AI.Model = "gemini-2.5-flash"
		}
	}

	return nil
}

// ValidateStation validates the station configuration
func (c *Config) ValidateStation() error {
	c.Station.AirportCode = strings.ToUpper(strings.TrimSpace(c.Station.AirportCode))
	if c.Station.AirportCode == "" {
		return fmt.Errorf("station airport_code is required")
	}
	if !icaoCode.MatchString(c.Station.AirportCode) {
		return fmt.Errorf("invalid station airport_code: %s", c.Station.AirportCode)
	}
	if c.Station.AirportsDBPath == "" {
		return fmt.Errorf("station airports_db_path is required")
	}
	return nil
}

// ValidateNOTAMs validates the NOTAM source configuration
func (c *Config) ValidateNOTAMs() error {
	n := &c.NOTAMs

	airports := []string{c.Station.AirportCode}
	seen := map[string]bool{c.Station.AirportCode: true}
	for _, code := range n.Airports {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !icaoCode.MatchString(code) {
			return fmt.Errorf("invalid notams airport code: %q", code)
		}
		if !seen[code] {
			airports = append(airports, code)
			seen[code] = true
		}
	}
	n.Airports = airports

	if n.RefreshIntervalMinutes == 0 {
		n.RefreshIntervalMinutes = 15
	}
	if n.RefreshIntervalMinutes < 0 {
		return fmt.Errorf("notams refresh_interval_minutes must be greater than 0: %d", n.RefreshIntervalMinutes)
	}
	if n.RequestTimeoutSeconds == 0 {
		n.RequestTimeoutSeconds = 30
	}
	if n.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("notams request_timeout_seconds must be greater than 0: %d", n.RequestTimeoutSeconds)
	}
	if n.MaxRetries < 0 {
		return fmt.Errorf("notams max_retries must be 0 or greater: %d", n.MaxRetries)
	}
	if n.DefaultRadiusNM == 0 {
		n.DefaultRadiusNM = 25
	}
	if n.DefaultRadiusNM < 0 {
		return fmt.Errorf("notams default_radius_nm must be greater than 0: %v", n.DefaultRadiusNM)
	}
	if n.RouteCorridorNM == 0 {
		n.RouteCorridorNM = 10
	}
	if n.RouteCorridorNM < 0.5 {
		return fmt.Errorf("notams route_corridor_nm must be at least 0.5: %v", n.RouteCorridorNM)
	}
	if n.BreakerFailures == 0 {
		n.BreakerFailures = 5
	}
	if n.BreakerFailures < 0 {
		return fmt.Errorf("notams breaker_failures must be greater than 0: %d", n.BreakerFailures)
	}
	if n.RequestsPerSecond == 0 {
		n.RequestsPerSecond = 2
	}
	if n.RequestsPerSecond < 0 {
		return fmt.Errorf("notams requests_per_second must be greater than 0: %v", n.RequestsPerSecond)
	}

	if n.APIBaseURL == "" && len(n.HTMLSources) == 0 && len(n.PDFSources) == 0 {
		return fmt.Errorf("at least one NOTAM source must be configured (api_base_url, html_sources, or pdf_sources)")
	}
	if n.RulesPath != "" {
		if _, err := os.Stat(n.RulesPath); err != nil {
			return fmt.Errorf("notams rules_path is not readable: %w", err)
		}
	}
	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if !c.Weather.FetchMETAR && !c.Weather.FetchTAF {
		// Weather disabled
		return nil
	}

	if c.Weather.RefreshIntervalMinutes == 0 {
		c.Weather.RefreshIntervalMinutes = 10
	}
	// Validate refresh interval
	if c.Weather.RefreshIntervalMinutes < 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}

	if c.Weather.RequestTimeoutSeconds == 0 {
		c.Weather.RequestTimeoutSeconds = 10
	}
	// Validate request timeout
	if c.Weather.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}

	// Validate max retries
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}

	if c.Weather.CacheExpiryMinutes == 0 {
		c.Weather.CacheExpiryMinutes = 60
	}
	// Validate cache expiry
	if c.Weather.CacheExpiryMinutes < 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", c.Weather.CacheExpiryMinutes)
	}

	// Validate API base URL
	if c.Weather.APIBaseURL == "" {
		return fmt.Errorf("weather api_base_url cannot be empty")
	}

	return nil
}
