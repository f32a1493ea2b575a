package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/internal/export"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/pkg/logger"
)

const input = `{"notams": [
  {"id": "A1234/24", "location": "EGLL", "text": "RWY 09L/27R CLSD DUE TO WIP",
   "effective_start": "2024-06-01T06:00:00Z", "effective_end": "2024-06-01T18:00:00Z"},
  {"id": "A2000/24", "location": "EGLL", "text": "TWY A CLSD",
   "effective_start": "2024-06-01T14:00:00Z", "effective_end": "2024-06-01T18:00:00Z"},
  {"id": "B0001/24", "location": "EGKK", "text": "AVGAS NOT AVBL",
   "effective_start": "2024-05-01T00:00:00Z"},
  {"id": "", "location": "EGKK", "text": "no id", "effective_start": "2024-05-01T00:00:00Z"}
]}`

const airportsCSV = `ident,type,name,latitude_deg,longitude_deg,elevation_ft,iso_country,municipality,iata_code
EGLL,large_airport,London Heathrow Airport,51.4706,-0.461941,83,GB,London,LHR
EGKK,large_airport,London Gatwick Airport,51.148102,-0.190278,202,GB,London,LGW
`

const rulesYAML = `rules:
  - name: fuel
    pattern: '\b(FUEL|AVGAS)\b'
    category: services
    tags: [fuel]
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runJSON(t *testing.T, opts options) []*notam.Notam {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, run(opts, &buf, logger.NewNop()))
	var out []*notam.Notam
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func ids(notams []*notam.Notam) []string {
	out := make([]string, len(notams))
	for i, n := range notams {
		out[i] = n.ID
	}
	return out
}

func TestRunFilters(t *testing.T) {
	in := writeFixture(t, "notams.json", input)

	all := runJSON(t, options{in: in})
	assert.Equal(t, []string{"A1234/24", "A2000/24", "B0001/24"}, ids(all))
	assert.Equal(t, notam.CategoryRunway, all[0].PrimaryCategory)

	active := runJSON(t, options{in: in, airport: "egll", activeAt: "2024-06-01T12:00:00Z"})
	assert.Equal(t, []string{"A1234/24"}, ids(active))

	tagged := runJSON(t, options{in: in, tag: "closed, work_in_progress"})
	assert.Equal(t, []string{"A1234/24"}, ids(tagged))

	cats := runJSON(t, options{in: in, category: "runway,taxiway"})
	assert.Equal(t, []string{"A1234/24", "A2000/24"}, ids(cats))
}

func TestRunRadiusNeedsAirports(t *testing.T) {
	in := writeFixture(t, "notams.json", input)
	db := writeFixture(t, "airports.csv", airportsCSV)

	none := runJSON(t, options{in: in, lat: 51.47, lon: -0.46, radiusNM: 5})
	assert.Empty(t, none, "positions are unresolved without an airport database")

	near := runJSON(t, options{in: in, airportsCSV: db, lat: 51.47, lon: -0.46, radiusNM: 5})
	assert.Equal(t, []string{"A1234/24", "A2000/24"}, ids(near))
	require.NotNil(t, near[0].Position)
}

func TestRunCustomRules(t *testing.T) {
	in := writeFixture(t, "notams.json", input)
	rules := writeFixture(t, "rules.yaml", rulesYAML)

	out := runJSON(t, options{in: in, rules: rules, category: "services"})
	require.Len(t, out, 1)
	assert.True(t, out[0].CustomTags.Has("fuel"))
}

func TestRunCSV(t *testing.T) {
	in := writeFixture(t, "notams.json", input)

	var buf bytes.Buffer
	require.NoError(t, run(options{in: in, format: "csv", runway: true}, &buf, logger.NewNop()))
	got, err := export.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1234/24"}, ids(got))
}

func TestRunRejectsBadArguments(t *testing.T) {
	in := writeFixture(t, "notams.json", input)

	var buf bytes.Buffer
	assert.ErrorIs(t, run(options{in: in, activeAt: "noon"}, &buf, logger.NewNop()), notam.ErrQuery)
	assert.ErrorIs(t, run(options{in: in, airport: "XX"}, &buf, logger.NewNop()), notam.ErrQuery)
	assert.Error(t, run(options{in: in, format: "pdf"}, &buf, logger.NewNop()))
}
