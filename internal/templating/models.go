package templating

import (
	"time"

	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/weather"
)

// TemplateContext represents the raw data context for template rendering
type TemplateContext struct {
	Airport           AirportInfo               `json:"airport"`
	Weather           *weather.WeatherData      `json:"weather"`
	Runways           []RunwayInfo              `json:"runways"`
	NotamsByCategory  map[string][]*notam.Notam `json:"notams_by_category"`
	RunwayNotams      []*notam.Notam            `json:"runway_notams"`
	DensityAltitudeFt *float64                  `json:"density_altitude_ft,omitempty"`
	Summary           string                    `json:"summary,omitempty"`
	Timestamp         time.Time                 `json:"timestamp"`
}

// TemplateData represents the formatted data for template rendering
type TemplateData struct {
	Airport        string      `json:"airport"`
	AirportDetails AirportInfo `json:"airport_details"`
	Weather        string      `json:"weather"`
	Runways        string      `json:"runways"`
	Notams         string      `json:"notams"`
	RunwayNotams   string      `json:"runway_notams"`
	NotamCount     int         `json:"notam_count"`
	Summary        string      `json:"summary,omitempty"`
	Time           string      `json:"time"`
	Timestamp      time.Time   `json:"timestamp"`
}

// FormattingOptions controls what data is included and how it's formatted
type FormattingOptions struct {
	IncludeWeather       bool   `json:"include_weather"`
	IncludeRunways       bool   `json:"include_runways"`
	MaxNotamsPerCategory int    `json:"max_notams_per_category"` // 0 means no limit
	TimeFormat           string `json:"time_format"`
}

// AirportInfo represents airport information for templating
type AirportInfo struct {
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Coordinates       []float64 `json:"coordinates"`
	ElevationFt       int       `json:"elevation_ft"`
	MagneticVariation float64   `json:"magnetic_variation"` // degrees, east positive
}

// RunwayInfo represents runway information for templating
type RunwayInfo struct {
	Name     string `json:"name"`
	Heading  int    `json:"heading"`
	LengthFt int    `json:"length_ft"`
	Surface  string `json:"surface,omitempty"`
	Closed   bool   `json:"closed"`
	Notams   int    `json:"notams"` // active runway NOTAMs naming this runway
}

// DefaultFormattingOptions returns sensible defaults for template formatting
func DefaultFormattingOptions() FormattingOptions {
	return FormattingOptions{
		IncludeWeather: true,
		IncludeRunways: true,
		TimeFormat:     "Monday, January 2, 2006 at 15:04 UTC",
	}
}

// CompactFormattingOptions trims the briefing for prompts and small screens
func CompactFormattingOptions() FormattingOptions {
	opts := DefaultFormattingOptions()
	opts.MaxNotamsPerCategory = 5
	return opts
}
