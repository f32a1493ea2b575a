package briefing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/physics"
)

// MinRouteCorridorNM is the narrowest corridor a route briefing accepts
const MinRouteCorridorNM = 0.5

// RouteBriefing lists the NOTAMs along a direct route
type RouteBriefing struct {
	From       airports.Airport `json:"from"`
	To         airports.Airport `json:"to"`
	At         time.Time        `json:"at"`
	DistanceNM float64          `json:"distance_nm"`
	CorridorNM float64          `json:"corridor_nm"`
	Samples    int              `json:"samples"`
	Notams     []*notam.Notam   `json:"notams"`
	ByCategory map[string]int   `json:"by_category"`
}

// RouteBriefing returns the NOTAMs active at the given time within corridorNM of
// the great-circle route. The corridor is covered by circles of that radius
// centred on points sampled every corridorNM along the route. A corridor of
// zero or less selects the configured default. Corridors narrower than
// MinRouteCorridorNM, or so narrow that the route would need more than
// physics.MaxPathSegments samples, are rejected with a *notam.QueryError.
func (s *Service) RouteBriefing(from, to string, corridorNM float64, at time.Time) (*RouteBriefing, error) {
	if math.IsNaN(corridorNM) || math.IsInf(corridorNM, 0) {
		return nil, &notam.QueryError{Op: "RouteBriefing", Arg: corridorNM, Reason: "corridor must be finite"}
	}
	if corridorNM <= 0 {
		corridorNM = s.config.RouteCorridorNM
	}
	if corridorNM < MinRouteCorridorNM {
		return nil, &notam.QueryError{Op: "RouteBriefing", Arg: corridorNM,
			Reason: fmt.Sprintf("corridor must be at least %g NM", MinRouteCorridorNM)}
	}

	coll := s.Collection()
	if err := coll.Query().ForAirport(from).ForAirport(to).ActiveAt(at).Err(); err != nil {
		return nil, err
	}
	origin, ok := s.airports.Lookup(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, strings.ToUpper(from))
	}
	dest, ok := s.airports.Lookup(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, strings.ToUpper(to))
	}

	distance := physics.DistanceNM(origin.Latitude, origin.Longitude, dest.Latitude, dest.Longitude)
	if distance/corridorNM > physics.MaxPathSegments {
		return nil, &notam.QueryError{Op: "RouteBriefing", Arg: corridorNM,
			Reason: fmt.Sprintf("corridor too narrow for a %.0f NM route", distance)}
	}

	points := physics.GreatCirclePoints(origin.Latitude, origin.Longitude, dest.Latitude, dest.Longitude, corridorNM)
	active := coll.Query().ActiveAt(at)

	hit := map[*notam.Notam]bool{}
	for _, p := range points {
		found, err := active.WithinRadius(p.Lat, p.Lon, corridorNM).All()
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			hit[n] = true
		}
	}

	rb := &RouteBriefing{
		From:       origin,
		To:         dest,
		At:         at,
		DistanceNM: distance,
		CorridorNM: corridorNM,
		Samples:    len(points),
		Notams:     []*notam.Notam{},
		ByCategory: map[string]int{},
	}
	// Collection order, each NOTAM once
	for _, n := range coll.Notams() {
		if !hit[n] {
			continue
		}
		rb.Notams = append(rb.Notams, n)
		key := n.PrimaryCategory
		if key == "" {
			key = UncategorizedGroup
		}
		rb.ByCategory[key]++
	}
	return rb, nil
}
