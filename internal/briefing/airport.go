package briefing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/physics"
	"github.com/yegors/co-notam/internal/templating"
	"github.com/yegors/co-notam/internal/weather"
	"github.com/yegors/co-notam/pkg/logger"
)

// UncategorizedGroup keys NOTAMs without a primary category
const UncategorizedGroup = "uncategorized"

// RunwayStatus is a runway of the briefed airport with the NOTAMs naming it
type RunwayStatus struct {
	airports.Runway
	Designator string   `json:"designator"`
	NotamIDs   []string `json:"notam_ids"`
}

// AirportBriefing is everything a pilot needs about one airport at one time
type AirportBriefing struct {
	Airport           airports.Airport          `json:"airport"`
	At                time.Time                 `json:"at"`
	MagneticVariation float64                   `json:"magnetic_variation"`
	Weather           *weather.WeatherData      `json:"weather,omitempty"`
	DensityAltitudeFt *float64                  `json:"density_altitude_ft,omitempty"`
	Runways           []RunwayStatus            `json:"runways"`
	NotamsByCategory  map[string][]*notam.Notam `json:"notams_by_category"`
	RunwayNotams      []*notam.Notam            `json:"runway_notams"`
	Total             int                       `json:"total"`
	Summary           string                    `json:"summary,omitempty"`
}

// AirportBriefing builds the briefing for icao from NOTAMs active at the given time
func (s *Service) AirportBriefing(icao string, at time.Time) (*AirportBriefing, error) {
	base := s.Query().ForAirport(icao).ActiveAt(at)
	if err := base.Err(); err != nil {
		return nil, err
	}
	airport, ok := s.airports.Lookup(icao)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, strings.ToUpper(icao))
	}

	active, err := base.All()
	if err != nil {
		return nil, err
	}
	runwayNotams, err := base.RunwayRelated().All()
	if err != nil {
		return nil, err
	}

	b := &AirportBriefing{
		Airport:           airport,
		At:                at,
		MagneticVariation: physics.CalculateMagneticVariation(airport.Latitude, airport.Longitude, airport.ElevationFeet, at),
		NotamsByCategory:  map[string][]*notam.Notam{},
		RunwayNotams:      runwayNotams,
		Total:             len(active),
	}
	for _, n := range active {
		key := n.PrimaryCategory
		if key == "" {
			key = UncategorizedGroup
		}
		b.NotamsByCategory[key] = append(b.NotamsByCategory[key], n)
	}

	if s.weather != nil {
		b.Weather = s.weather.GetWeatherData(airport.ICAO)
	}
	b.DensityAltitudeFt = densityAltitude(airport, b.Weather)

	for _, rwy := range s.airports.Runways(airport.ICAO) {
		b.Runways = append(b.Runways, RunwayStatus{
			Runway:     rwy,
			Designator: rwy.Designator(),
			NotamIDs:   notamsNaming(rwy, runwayNotams),
		})
	}

	return b, nil
}

// densityAltitude needs a METAR temperature; QNH refines the pressure altitude when known
func densityAltitude(airport airports.Airport, wx *weather.WeatherData) *float64 {
	if wx == nil || wx.METAR == nil {
		return nil
	}
	temp, ok := wx.METAR.Temperature()
	if !ok {
		return nil
	}
	pressureAlt := airport.ElevationFeet
	if qnh, ok := wx.METAR.QNH(); ok {
		pressureAlt = physics.PressureAltitude(airport.ElevationFeet, qnh)
	}
	da := physics.CalculateDensityAltitude(pressureAlt, temp)
	return &da
}

// notamsNaming returns the ids of NOTAMs whose text names the runway,
// e.g. "RWY 09L", "RWY 27R" or "09L/27R"
func notamsNaming(rwy airports.Runway, notams []*notam.Notam) []string {
	var idents []string
	for _, end := range []airports.End{rwy.LowEnd, rwy.HighEnd} {
		if end.Ident != "" {
			idents = append(idents, regexp.QuoteMeta(strings.ToUpper(end.Ident)))
		}
	}
	if len(idents) == 0 {
		return nil
	}
	pattern := `\bRWY\s*(?:` + strings.Join(idents, "|") + `)\b`
	if rwy.HighEnd.Ident != "" {
		pattern += `|\b` + regexp.QuoteMeta(strings.ToUpper(rwy.Designator())) + `\b`
	}
	re := regexp.MustCompile(pattern)

	var ids []string
	for _, n := range notams {
		if re.MatchString(strings.ToUpper(n.Text)) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// TemplateContext converts the briefing for the text renderer
func (b *AirportBriefing) TemplateContext() *templating.TemplateContext {
	ctx := &templating.TemplateContext{
		Airport: templating.AirportInfo{
			Code:              b.Airport.ICAO,
			Name:              b.Airport.Name,
			Coordinates:       []float64{b.Airport.Latitude, b.Airport.Longitude},
			ElevationFt:       int(b.Airport.ElevationFeet),
			MagneticVariation: b.MagneticVariation,
		},
		Weather:           b.Weather,
		NotamsByCategory:  make(map[string][]*notam.Notam, len(b.NotamsByCategory)),
		RunwayNotams:      b.RunwayNotams,
		DensityAltitudeFt: b.DensityAltitudeFt,
		Summary:           b.Summary,
		Timestamp:         b.At,
	}
	for key, list := range b.NotamsByCategory {
		if key == UncategorizedGroup {
			key = ""
		}
		ctx.NotamsByCategory[key] = list
	}
	for _, rwy := range b.Runways {
		ctx.Runways = append(ctx.Runways, templating.RunwayInfo{
			Name:     rwy.Designator,
			Heading:  int(rwy.LowEnd.HeadingTrue),
			LengthFt: int(rwy.LengthFeet),
			Surface:  rwy.Surface,
			Closed:   rwy.Closed,
			Notams:   len(rwy.NotamIDs),
		})
	}
	return ctx
}

// RenderAirportBriefing renders the plain-text briefing
func (s *Service) RenderAirportBriefing(b *AirportBriefing) (string, error) {
	return s.templates.RenderBriefing(b.TemplateContext())
}

// Summarize attaches an AI summary to the briefing
func (s *Service) Summarize(ctx context.Context, b *AirportBriefing) error {
	if s.summarizer == nil {
		return ErrSummaryUnavailable
	}
	text, err := s.templates.RenderCompactBriefing(b.TemplateContext())
	if err != nil {
		return err
	}
	summary, err := s.summarizer.Summarize(ctx, b.Airport.ICAO, text)
	if err != nil {
		s.logger.Warn("Briefing summary failed",
			logger.String("airport", b.Airport.ICAO),
			logger.Error(err))
		return err
	}
	b.Summary = summary
	return nil
}
