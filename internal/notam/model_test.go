package notam

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotamValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, (&Notam{ID: "A", EffectiveStart: start}).Validate())
	assert.NoError(t, (&Notam{ID: "A", EffectiveStart: start, EffectiveEnd: timePtr(start)}).Validate())

	assert.ErrorIs(t, (&Notam{}).Validate(), ErrMalformedInput)
	assert.ErrorIs(t, (&Notam{ID: "A", EffectiveStart: start, EffectiveEnd: timePtr(start.Add(-time.Minute))}).Validate(), ErrMalformedInput)
	assert.ErrorIs(t, (&Notam{ID: "A", PrimaryCategory: "runway"}).Validate(), ErrMalformedInput)
}

func TestMapRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	n := &Notam{
		ID:               "A1234/24",
		Text:             "RWY 09/27 CLSD DUE WIP",
		RawText:          "A1234/24 NOTAMN\nE) RWY 09/27 CLSD DUE WIP",
		Location:         "EGLL",
		FIR:              "EGTT",
		QCode:            "QMRLC",
		Source:           "icao",
		Position:         &Point{Lat: 51.47, Lon: -0.46},
		EffectiveStart:   start,
		EffectiveEnd:     timePtr(start.Add(2 * time.Hour)),
		IssuedAt:         start.Add(-time.Hour),
		Fields:           map[string]string{"E": "RWY 09/27 CLSD DUE WIP"},
		PrimaryCategory:  CategoryRunway,
		CustomCategories: NewSet(CategoryRunway),
		CustomTags:       NewSet(TagClosed, TagWorkInProgress),
	}

	back, err := FromMap(n.ToMap())
	require.NoError(t, err)
	assert.Equal(t, n, back)

	// through JSON, as the file and API layers do
	data, err := json.Marshal(n.ToMap())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	back, err = FromMap(decoded)
	require.NoError(t, err)
	assert.Equal(t, n, back)
}

func TestFromMapUncategorized(t *testing.T) {
	n, err := FromMap(map[string]any{
		"id":                "B1/24",
		"text":              "TWY A CLSD",
		"location":          "egkk",
		"effective_start":   "2024-03-01T08:00:00Z",
		"effective_end":     "",
		"primary_category":  "",
		"custom_categories": "",
	})
	require.NoError(t, err)
	assert.Equal(t, "EGKK", n.Location)
	assert.Nil(t, n.EffectiveEnd)
	assert.True(t, n.IsPermanent())
	assert.False(t, n.IsCategorized())
	assert.NotNil(t, n.CustomCategories)
	assert.NotNil(t, n.CustomTags)
}

func TestFromMapListForms(t *testing.T) {
	tests := map[string]any{
		"strings":   []string{"closed", "limited"},
		"any":       []any{"closed", "limited"},
		"json text": `["closed","limited"]`,
		"separated": "closed; limited",
		"commas":    "closed,limited",
	}
	for name, tags := range tests {
		t.Run(name, func(t *testing.T) {
			n, err := FromMap(map[string]any{"id": "X", "custom_tags": tags})
			require.NoError(t, err)
			assert.Equal(t, []string{"closed", "limited"}, n.CustomTags.Sorted())
		})
	}
}

func TestFromMapAddsPrimaryToCategories(t *testing.T) {
	n, err := FromMap(map[string]any{"id": "X", "primary_category": "Runway"})
	require.NoError(t, err)
	assert.Equal(t, "runway", n.PrimaryCategory)
	assert.True(t, n.CustomCategories.Has("runway"))
}

func TestFromMapErrors(t *testing.T) {
	_, err := FromMap(map[string]any{"text": "no id"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = FromMap(map[string]any{"id": "X", "effective_start": "yesterday"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = FromMap(map[string]any{
		"id":              "X",
		"effective_start": "2024-03-01T08:00:00Z",
		"effective_end":   "2024-03-01T07:00:00Z",
	})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestResolvePositions(t *testing.T) {
	locator := LocatorFunc(func(icao string) (Point, bool) {
		if icao == "EGLL" {
			return Point{Lat: 51.47, Lon: -0.46}, true
		}
		return Point{}, false
	})
	notams := []*Notam{
		{ID: "1", Location: "egll"},
		{ID: "2", Location: "ZZZZ", Position: &Point{Lat: 1, Lon: 1}},
		nil,
	}

	assert.Equal(t, 1, ResolvePositions(notams, locator))
	require.NotNil(t, notams[0].Position)
	assert.Equal(t, 51.47, notams[0].Position.Lat)
	assert.Nil(t, notams[1].Position)
	assert.Zero(t, ResolvePositions(notams, nil))
}

func TestSetJSON(t *testing.T) {
	s := NewSet("Closed", " wip ", "", "closed")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["closed","wip"]`, string(data))

	var back Set
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, s.Equal(back))

	var empty Set
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
