package notam

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	egll = Point{Lat: 51.4706, Lon: -0.461941}
	egkk = Point{Lat: 51.1481, Lon: -0.190278}
	lfpg = Point{Lat: 49.0097, Lon: 2.5479}
)

func timePtr(t time.Time) *time.Time { return &t }

func fixture(t0 time.Time) []*Notam {
	return []*Notam{
		{
			ID: "A1/24", Location: "EGLL", Position: &egll,
			EffectiveStart: t0, EffectiveEnd: timePtr(t0.Add(time.Hour)),
			PrimaryCategory: CategoryRunway, CustomCategories: NewSet(CategoryRunway), CustomTags: NewSet(TagClosed),
		},
		{
			ID: "A2/24", Location: "egll", Position: &egll,
			EffectiveStart: t0.Add(-24 * time.Hour),
			PrimaryCategory: CategoryTaxiway, CustomCategories: NewSet(CategoryTaxiway), CustomTags: NewSet(TagWorkInProgress),
		},
		{
			ID: "A3/24", Location: "EGKK", Position: &egkk,
			EffectiveStart: t0, EffectiveEnd: timePtr(t0.Add(2 * time.Hour)),
			PrimaryCategory: CategoryNavigation, CustomCategories: NewSet(CategoryNavigation), CustomTags: NewSet(TagILS),
		},
		{
			ID: "A4/24", Location: "LFPG", Position: &lfpg,
			EffectiveStart: t0.Add(time.Hour), EffectiveEnd: timePtr(t0.Add(3 * time.Hour)),
			PrimaryCategory: CategoryRunway, CustomCategories: NewSet(CategoryRunway, CategoryLighting), CustomTags: NewSet(),
		},
		{
			ID: "A5/24", Location: "EGTT", // FIR, no position
			EffectiveStart: t0,
			PrimaryCategory: CategoryAirspace, CustomCategories: NewSet(CategoryAirspace), CustomTags: NewSet(TagActivated),
		},
	}
}

func ids(notams []*Notam) []string {
	out := make([]string, len(notams))
	for i, n := range notams {
		out[i] = n.ID
	}
	return out
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestQueryForAirport(t *testing.T) {
	coll := NewCollection(fixture(t0))

	got, err := coll.Query().ForAirport("egll").All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1/24", "A2/24"}, ids(got))

	got, err = coll.Query().ForAirport("KJFK").All()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestQueryTemporalBoundaries(t *testing.T) {
	n := &Notam{ID: "T", Location: "EGLL", EffectiveStart: t0, EffectiveEnd: timePtr(t0.Add(time.Hour))}
	coll := NewCollection([]*Notam{n})

	tests := []struct {
		at    time.Time
		count int
	}{
		{t0, 1},
		{t0.Add(time.Hour), 1},
		{t0.Add(-time.Second), 0},
		{t0.Add(time.Hour + time.Second), 0},
	}
	for _, tt := range tests {
		count, err := coll.Query().ActiveAt(tt.at).Count()
		require.NoError(t, err)
		assert.Equal(t, tt.count, count, tt.at)
	}
}

func TestQueryActiveNowUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0.Add(90 * time.Minute))
	coll := NewCollection(fixture(t0), WithClock(clock))

	q := coll.Query().ActiveNow()
	got, err := q.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2/24", "A3/24", "A4/24", "A5/24"}, ids(got))

	// the instant is captured when ActiveNow is called
	clock.Advance(2 * time.Hour)
	again, err := q.All()
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(again))

	later, err := coll.Query().ActiveNow().All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2/24", "A5/24"}, ids(later))
}

func TestQueryActiveBetween(t *testing.T) {
	coll := NewCollection(fixture(t0))
	got, err := coll.Query().ActiveBetween(t0.Add(150*time.Minute), t0.Add(4*time.Hour)).All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2/24", "A4/24", "A5/24"}, ids(got))
}

func TestQueryWithinRadius(t *testing.T) {
	coll := NewCollection(fixture(t0))

	got, err := coll.Query().WithinRadius(egll.Lat, egll.Lon, 5).All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1/24", "A2/24"}, ids(got))

	got, err = coll.Query().WithinRadius(egll.Lat, egll.Lon, 30).All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1/24", "A2/24", "A3/24"}, ids(got))

	got, err = coll.Query().WithinRadius(0, 0, 0).All()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryUnresolvableLocationNeverInRadius(t *testing.T) {
	coll := NewCollection(fixture(t0))
	for _, radius := range []float64{0, 10, 1000, 20000, math.MaxFloat64} {
		got, err := coll.Query().WithinRadius(51.0, -0.5, radius).All()
		require.NoError(t, err)
		assert.NotContains(t, ids(got), "A5/24")
	}
}

func TestQueryCategoryAndTag(t *testing.T) {
	coll := NewCollection(fixture(t0))

	got, err := coll.Query().Category("RUNWAY").All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1/24", "A4/24"}, ids(got))

	got, err = coll.Query().Category("lighting").All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A4/24"}, ids(got))

	got, err = coll.Query().Tag("ils").All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A3/24"}, ids(got))

	got, err = coll.Query().AnyCategory("taxiway", "airspace").All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2/24", "A5/24"}, ids(got))
}

func TestQueryRunwayRelated(t *testing.T) {
	coll := NewCollection(fixture(t0))
	got, err := coll.Query().RunwayRelated().All()
	require.NoError(t, err)
	// ILS tag counts as runway related
	assert.Equal(t, []string{"A1/24", "A3/24", "A4/24"}, ids(got))
}

func TestQueryNarrowingIsCommutative(t *testing.T) {
	coll := NewCollection(fixture(t0))
	base := coll.Query()

	filters := map[string]func(Query) Query{
		"airport":  func(q Query) Query { return q.ForAirport("EGLL") },
		"active":   func(q Query) Query { return q.ActiveAt(t0.Add(30 * time.Minute)) },
		"radius":   func(q Query) Query { return q.WithinRadius(egll.Lat, egll.Lon, 50) },
		"category": func(q Query) Query { return q.Category(CategoryRunway) },
		"tag":      func(q Query) Query { return q.Tag(TagClosed) },
		"runway":   func(q Query) Query { return q.RunwayRelated() },
		"where":    func(q Query) Query { return q.Where(func(n *Notam) bool { return n.ID != "A3/24" }) },
	}
	for n1, f1 := range filters {
		for n2, f2 := range filters {
			ab, err := f2(f1(base)).All()
			require.NoError(t, err)
			ba, err := f1(f2(base)).All()
			require.NoError(t, err)
			assert.Equal(t, ids(ab), ids(ba), "%s then %s", n1, n2)

			one, err := f1(base).Count()
			require.NoError(t, err)
			assert.LessOrEqual(t, len(ab), one)
		}
	}
}

func TestQueryIsImmutableAndReusable(t *testing.T) {
	coll := NewCollection(fixture(t0))
	egllQuery := coll.Query().ForAirport("EGLL")

	runway := egllQuery.Category(CategoryRunway)
	taxiway := egllQuery.Category(CategoryTaxiway)

	all, err := egllQuery.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	r, err := runway.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1/24"}, ids(r))

	tw, err := taxiway.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2/24"}, ids(tw))

	count, err := egllQuery.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 5, coll.Len())
}

func TestQueryFirst(t *testing.T) {
	coll := NewCollection(fixture(t0))

	first, err := coll.Query().Category(CategoryRunway).First()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "A1/24", first.ID)

	none, err := coll.Query().Tag("nothing").First()
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestQueryErrorsFailFast(t *testing.T) {
	coll := NewCollection(fixture(t0))

	tests := map[string]Query{
		"malformed icao":    coll.Query().ForAirport("EG"),
		"icao with symbols": coll.Query().ForAirport("EG-L"),
		"negative radius":   coll.Query().WithinRadius(51, 0, -1),
		"nan radius":        coll.Query().WithinRadius(51, 0, math.NaN()),
		"infinite radius":   coll.Query().WithinRadius(51, 0, math.Inf(1)),
		"bad latitude":      coll.Query().WithinRadius(91, 0, 10),
		"bad longitude":     coll.Query().WithinRadius(0, 181, 10),
		"empty category":    coll.Query().Category(" "),
		"empty tag":         coll.Query().Tag(""),
		"no categories":     coll.Query().AnyCategory(),
		"zero time":         coll.Query().ActiveAt(time.Time{}),
		"inverted window":   coll.Query().ActiveBetween(t0.Add(time.Hour), t0),
		"nil predicate":     coll.Query().Where(nil),
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			require.Error(t, q.Err())
			assert.ErrorIs(t, q.Err(), ErrQuery)

			_, err := q.All()
			assert.ErrorIs(t, err, ErrQuery)
			_, err = q.First()
			assert.ErrorIs(t, err, ErrQuery)
			_, err = q.Count()
			assert.ErrorIs(t, err, ErrQuery)
		})
	}
}

func TestQueryErrorStaysAtOffendingCall(t *testing.T) {
	coll := NewCollection(fixture(t0))
	q := coll.Query().ForAirport("EGLL").WithinRadius(0, 0, -5).Tag("").ForAirport("??")

	var qErr *QueryError
	require.ErrorAs(t, q.Err(), &qErr)
	assert.Equal(t, "WithinRadius", qErr.Op)
	assert.Equal(t, -5.0, qErr.Arg)
}

func TestCollectionIndexFollowsRecategorizing(t *testing.T) {
	notams := []*Notam{{ID: "A", Location: "EGLL", Text: "TWY A CLSD"}}
	coll := NewCollection(notams)

	count, err := coll.Query().Category(CategoryTaxiway).Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = DefaultPipeline().CategorizeAll(notams)
	require.NoError(t, err)

	count, err = coll.Query().Category(CategoryTaxiway).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	scanned, err := coll.Query().Where(func(n *Notam) bool { return n.CustomCategories.Has(CategoryTaxiway) }).Count()
	require.NoError(t, err)
	assert.Equal(t, scanned, count)

	notams[0].ClearClassification()
	count, err = coll.Query().Category(CategoryTaxiway).Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCollectionReindexAfterDirectEdit(t *testing.T) {
	n := &Notam{ID: "A", Location: "EGLL", CustomCategories: NewSet(CategoryApron)}
	coll := NewCollection([]*Notam{n})
	count, err := coll.Query().Category(CategoryApron).Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	n.CustomCategories = NewSet(CategoryTaxiway)
	coll.Reindex()

	count, err = coll.Query().Category(CategoryTaxiway).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectionAddGetAndCounts(t *testing.T) {
	coll := NewCollection(nil)
	coll.Add(fixture(t0)...)
	coll.Add(nil)
	assert.Equal(t, 5, coll.Len())

	n, ok := coll.Get("A3/24")
	require.True(t, ok)
	assert.Equal(t, "EGKK", n.Location)
	_, ok = coll.Get("missing")
	assert.False(t, ok)

	counts := coll.CountByCategory()
	assert.Equal(t, 2, counts[CategoryRunway])
	assert.Equal(t, 1, counts[CategoryAirspace])

	// later inserts are visible to existing queries
	q := coll.Query().ForAirport("EGLL")
	coll.Add(&Notam{ID: "A6/24", Location: "EGLL"})
	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	listed := coll.Notams()
	listed[0] = nil
	first, err := coll.Query().First()
	require.NoError(t, err)
	assert.Equal(t, "A1/24", first.ID)
}

func TestZeroQueryIsEmpty(t *testing.T) {
	var q Query
	got, err := q.ForAirport("EGLL").All()
	require.NoError(t, err)
	assert.Empty(t, got)
}
