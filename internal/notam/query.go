package notam

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/physics"
)

var icaoPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)

type predicate struct {
	match func(*Notam) bool

	// Index keys used to narrow candidates before matching
	location string
	category string
}

// Query is an immutable filter over a Collection. Each transition returns a
// new Query with one more predicate, all joined with AND. A bad argument
// records a *QueryError at the transition that received it; Err reports it
// immediately, later transitions are ignored and every terminal returns it.
type Query struct {
	coll  *Collection
	preds []predicate
	err   error
}

// Err returns the first invalid argument recorded on this query
func (q Query) Err() error { return q.err }

func (q Query) with(p predicate) Query {
	if q.err != nil {
		return q
	}
	preds := make([]predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	return Query{coll: q.coll, preds: append(preds, p)}
}

func (q Query) fail(op string, arg any, reason string) Query {
	if q.err != nil {
		return q
	}
	return Query{coll: q.coll, preds: q.preds, err: &QueryError{Op: op, Arg: arg, Reason: reason}}
}

// ForAirport keeps NOTAMs whose location equals icao, ignoring case
func (q Query) ForAirport(icao string) Query {
	code := strings.ToUpper(strings.TrimSpace(icao))
	if !icaoPattern.MatchString(code) {
		return q.fail("ForAirport", icao, "malformed ICAO code")
	}
	return q.with(predicate{
		location: code,
		match: func(n *Notam) bool {
			return strings.EqualFold(strings.TrimSpace(n.Location), code)
		},
	})
}

// ActiveNow keeps NOTAMs active at the collection clock's current time,
// captured when ActiveNow is called
func (q Query) ActiveNow() Query {
	now := time.Now()
	if q.coll != nil {
		now = q.coll.clock.Now()
	}
	return q.ActiveAt(now)
}

// ActiveAt keeps NOTAMs whose validity window contains t, both ends inclusive
func (q Query) ActiveAt(t time.Time) Query {
	if t.IsZero() {
		return q.fail("ActiveAt", t, "time is required")
	}
	return q.with(predicate{match: func(n *Notam) bool { return n.IsActiveAt(t) }})
}

// ActiveBetween keeps NOTAMs whose validity window overlaps [from, to]
func (q Query) ActiveBetween(from, to time.Time) Query {
	if from.IsZero() || to.IsZero() {
		return q.fail("ActiveBetween", [2]time.Time{from, to}, "both bounds are required")
	}
	if from.After(to) {
		return q.fail("ActiveBetween", [2]time.Time{from, to}, "from is after to")
	}
	return q.with(predicate{match: func(n *Notam) bool { return n.OverlapsWindow(from, to) }})
}

// WithinRadius keeps NOTAMs whose resolved position lies within radiusNM of
// the point. NOTAMs without a position never match.
func (q Query) WithinRadius(lat, lon, radiusNM float64) Query {
	switch {
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return q.fail("WithinRadius", lat, "latitude out of range")
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return q.fail("WithinRadius", lon, "longitude out of range")
	case math.IsNaN(radiusNM) || math.IsInf(radiusNM, 0) || radiusNM < 0:
		return q.fail("WithinRadius", radiusNM, "radius must be a finite non-negative number")
	}
	return q.with(predicate{match: func(n *Notam) bool {
		if n.Position == nil {
			return false
		}
		return physics.DistanceNM(lat, lon, n.Position.Lat, n.Position.Lon) <= radiusNM
	}})
}

// Category keeps NOTAMs carrying the category
func (q Query) Category(name string) Query {
	label := normalizeLabel(name)
	if label == "" {
		return q.fail("Category", name, "category is required")
	}
	return q.with(predicate{
		category: label,
		match:    func(n *Notam) bool { return n.CustomCategories.Has(label) },
	})
}

// AnyCategory keeps NOTAMs carrying at least one of the categories
func (q Query) AnyCategory(names ...string) Query {
	if len(names) == 0 {
		return q.fail("AnyCategory", names, "at least one category is required")
	}
	labels := make([]string, 0, len(names))
	for _, name := range names {
		label := normalizeLabel(name)
		if label == "" {
			return q.fail("AnyCategory", names, "blank category")
		}
		labels = append(labels, label)
	}
	return q.with(predicate{match: func(n *Notam) bool { return n.CustomCategories.HasAny(labels...) }})
}

// Tag keeps NOTAMs carrying the tag
func (q Query) Tag(name string) Query {
	label := normalizeLabel(name)
	if label == "" {
		return q.fail("Tag", name, "tag is required")
	}
	return q.with(predicate{match: func(n *Notam) bool { return n.CustomTags.Has(label) }})
}

// RunwayRelated keeps NOTAMs with the runway category or a runway tag
func (q Query) RunwayRelated() Query {
	return q.with(predicate{match: IsRunwayRelated})
}

// Where keeps NOTAMs accepted by fn. fn must not modify the NOTAM.
func (q Query) Where(fn func(*Notam) bool) Query {
	if fn == nil {
		return q.fail("Where", nil, "predicate is nil")
	}
	return q.with(predicate{match: fn})
}

// All returns the matching NOTAMs in insertion order
func (q Query) All() ([]*Notam, error) {
	var out []*Notam
	err := q.each(func(n *Notam) bool {
		out = append(out, n)
		return true
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Notam{}
	}
	return out, nil
}

// First returns the earliest inserted match, or nil when nothing matches
func (q Query) First() (*Notam, error) {
	var first *Notam
	err := q.each(func(n *Notam) bool {
		first = n
		return false
	})
	return first, err
}

// Count returns the number of matches
func (q Query) Count() (int, error) {
	count := 0
	err := q.each(func(*Notam) bool {
		count++
		return true
	})
	return count, err
}

// each calls yield for every match in insertion order until yield returns false
func (q Query) each(yield func(*Notam) bool) error {
	if q.err != nil {
		return q.err
	}
	if q.coll == nil {
		return nil
	}
	snap := q.coll.snapshot()

	candidates, indexed := q.candidates(snap)
	if indexed {
		for _, i := range candidates {
			if n := snap.notams[i]; q.matches(n) && !yield(n) {
				return nil
			}
		}
		return nil
	}
	for _, n := range snap.notams {
		if q.matches(n) && !yield(n) {
			return nil
		}
	}
	return nil
}

// candidates picks the smallest index list named by the predicates
func (q Query) candidates(snap collectionSnapshot) ([]int, bool) {
	var best []int
	found := false
	consider := func(list []int) {
		if !found || len(list) < len(best) {
			best, found = list, true
		}
	}
	for _, p := range q.preds {
		if p.location != "" {
			consider(snap.byLocation[p.location])
		}
		if p.category != "" {
			consider(snap.byCategory[p.category])
		}
	}
	return best, found
}

func (q Query) matches(n *Notam) bool {
	for _, p := range q.preds {
		if !p.match(n) {
			return false
		}
	}
	return true
}
