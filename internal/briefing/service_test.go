package briefing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/observability"
	"github.com/yegors/co-notam/internal/sources"
	"github.com/yegors/co-notam/internal/weather"
	"github.com/yegors/co-notam/internal/websocket"
	"github.com/yegors/co-notam/pkg/logger"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name    string
	records []sources.RawRecord
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]sources.RawRecord, error) {
	f.calls.Add(1)
	return f.records, f.err
}

type memoryStore struct {
	mu      sync.Mutex
	saved   map[string]*notam.Notam
	purged  []time.Time
	loadAll []*notam.Notam
}

func (m *memoryStore) Save(_ context.Context, notams []*notam.Notam) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]*notam.Notam{}
	}
	for _, n := range notams {
		m.saved[n.ID] = n
	}
	return len(notams), nil
}

func (m *memoryStore) LoadAll(context.Context) ([]*notam.Notam, error) {
	return m.loadAll, nil
}

func (m *memoryStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, before)
	return 0, nil
}

type recordingHub struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (h *recordingHub) Broadcast(message *websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *recordingHub) last() *websocket.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return nil
	}
	return h.messages[len(h.messages)-1]
}

type staticWeather map[string]*weather.WeatherData

func (w staticWeather) GetWeatherData(airport string) *weather.WeatherData { return w[airport] }

type fixedSummarizer struct{ text string }

func (f fixedSummarizer) Summarize(context.Context, string, string) (string, error) {
	return f.text, nil
}

func record(id, location, qcode, text string, start time.Time, end *time.Time) sources.RawRecord {
	r := sources.RawRecord{
		ID:             id,
		Location:       location,
		QCode:          qcode,
		Text:           text,
		EffectiveStart: start.Format(time.RFC3339),
	}
	if end != nil {
		r.EffectiveEnd = end.Format(time.RFC3339)
	}
	return r
}

func at(h int) *time.Time {
	t := time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func fixtureRecords() []sources.RawRecord {
	return []sources.RawRecord{
		record("A1234/24", "EGLL", "QMRLC", "RWY 09L/27R CLSD DUE TO WIP", *at(6), at(18)),
		record("A2000/24", "EGLL", "", "TWY A CLSD", *at(10), at(20)),
		record("B0001/24", "EGKK", "", "CRANE ERECTED 300FT AGL", *at(0), nil),
		record("C0001/24", "LFPG", "", "ILS RWY 27L U/S", *at(0), at(23)),
		record("E0001/24", "EGSS", "", "APRON STAND 5 CLSD", *at(0), nil),
		record("D0001/24", "ZZZZ", "", "BIRD ACTIVITY", *at(0), nil),
		record("", "EGLL", "", "missing id", *at(0), nil),
	}
}

func fixtureAirports() *airports.Database {
	return airports.New(
		[]airports.Airport{
			{ICAO: "EGLL", Name: "London Heathrow Airport", Latitude: 51.4706, Longitude: -0.4619, ElevationFeet: 83},
			{ICAO: "EGKK", Name: "London Gatwick Airport", Latitude: 51.1481, Longitude: -0.1903, ElevationFeet: 202},
			{ICAO: "EGSS", Name: "London Stansted Airport", Latitude: 51.885, Longitude: 0.235, ElevationFeet: 348},
			{ICAO: "LFPG", Name: "Paris Charles de Gaulle Airport", Latitude: 49.0097, Longitude: 2.5479, ElevationFeet: 392},
			{ICAO: "YSSY", Name: "Sydney Kingsford Smith International Airport", Latitude: -33.9461, Longitude: 151.177, ElevationFeet: 21},
		},
		[]airports.Runway{
			{AirportICAO: "EGLL", LengthFeet: 12799, Surface: "ASP", LowEnd: airports.End{Ident: "09L", HeadingTrue: 89.6}, HighEnd: airports.End{Ident: "27R"}},
			{AirportICAO: "EGLL", LengthFeet: 12008, Surface: "ASP", LowEnd: airports.End{Ident: "09R"}, HighEnd: airports.End{Ident: "27L"}},
		},
	)
}

type harness struct {
	svc    *Service
	source *fakeSource
	store  *memoryStore
	hub    *recordingHub
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T, mutate func(*Dependencies)) *harness {
	t.Helper()
	h := &harness{
		source: &fakeSource{name: "api", records: fixtureRecords()},
		store:  &memoryStore{},
		hub:    &recordingHub{},
		clock:  clockwork.NewFakeClockAt(t0),
	}
	temp, qnh := 25.0, 1013.25
	deps := Dependencies{
		Sources:  []sources.Source{h.source},
		Pipeline: notam.DefaultPipeline(),
		Airports: fixtureAirports(),
		Store:    h.store,
		Hub:      h.hub,
		Metrics:  observability.NewMetrics(),
		Weather: staticWeather{"EGLL": {
			Airport: "EGLL",
			METAR:   &weather.METARResponse{RawOb: "METAR EGLL 011150Z 24008KT CAVOK 25/12 Q1013", Temp: &temp, Altimeter: &qnh},
		}},
		Clock: h.clock,
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewService(Config{RetainDays: 7}, deps, logger.NewNop())
	require.NoError(t, err)
	h.svc = svc
	return h
}

func ids(notams []*notam.Notam) []string {
	out := make([]string, len(notams))
	for i, n := range notams {
		out[i] = n.ID
	}
	return out
}

func TestRefreshBuildsCategorizedCollection(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Outcome)
	assert.Equal(t, 6, result.Fetched)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 6, result.Total)

	coll := h.svc.Collection()
	rwy, ok := coll.Get("A1234/24")
	require.True(t, ok)
	assert.Equal(t, notam.CategoryRunway, rwy.PrimaryCategory)
	assert.True(t, rwy.CustomTags.Has(notam.TagClosed))
	require.NotNil(t, rwy.Position, "position resolved from the airport database")

	unknown, ok := coll.Get("D0001/24")
	require.True(t, ok)
	assert.Nil(t, unknown.Position)

	assert.Len(t, h.store.saved, 6)
	require.Len(t, h.store.purged, 1)
	assert.Equal(t, t0.AddDate(0, 0, -7), h.store.purged[0])

	msg := h.hub.last()
	require.NotNil(t, msg)
	assert.Equal(t, websocket.MessageTypeNotamsUpdated, msg.Type)
	assert.Equal(t, []string{"EGKK", "EGLL", "EGSS", "LFPG", "ZZZZ"}, msg.Data["airports"])
	assert.Same(t, result, h.svc.LastRefresh())
}

func TestRefreshKeepsCollectionWhenAllSourcesFail(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Refresh(context.Background())
	require.NoError(t, err)

	h.source.err = errors.New("upstream down")
	result, err := h.svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, "error", result.Outcome)
	assert.Equal(t, 6, h.svc.Collection().Len())
	assert.Equal(t, websocket.MessageTypeRefreshFailed, h.hub.last().Type)
}

func TestRefreshPartialOutcomes(t *testing.T) {
	broken := &fakeSource{name: "html:broken", err: errors.New("timeout")}
	h := newHarness(t, func(d *Dependencies) {
		d.Sources = append(d.Sources, broken)
		p, err := notam.NewPipeline(
			notam.NewQCodeCategorizer(),
			notam.NewFuncCategorizer("flaky", func(n *notam.Notam) notam.CategorizationResult {
				if n.ID == "A2000/24" {
					panic("flaky categorizer")
				}
				return notam.EmptyResult("flaky")
			}),
		)
		require.NoError(t, err)
		d.Pipeline = p
	})

	result, err := h.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", result.Outcome)
	assert.Equal(t, []string{"A2000/24"}, result.Failed)
	assert.Contains(t, result.SourceErrors, "html:broken")

	n, ok := h.svc.Collection().Get("A2000/24")
	require.True(t, ok)
	assert.False(t, n.IsCategorized())
}

func TestRefreshKeepsParsedNotamsOfDamagedBulletin(t *testing.T) {
	bulletin := "F0001/24 NOTAMN\nA) EGLL B) 2406010600 C) 2406011800 E) TWY B CLSD\n\n" +
		"F0002/24 NOTAMN\nA) EGLL B) 24013 E) TWY C CLSD\n"
	records, err := sources.ParseICAO(bulletin)
	require.Error(t, err)
	pdfSource := &fakeSource{name: "pdf:bulletin.pdf", records: records, err: err}
	h := newHarness(t, func(d *Dependencies) { d.Sources = append(d.Sources, pdfSource) })

	result, err := h.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Outcome)
	assert.NotContains(t, result.SourceErrors, "pdf:bulletin.pdf")
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 7, result.Total)

	_, ok := h.svc.Collection().Get("F0001/24")
	assert.True(t, ok)
	_, ok = h.svc.Collection().Get("F0002/24")
	assert.False(t, ok)
}

func TestRefreshDeduplicatesAcrossSources(t *testing.T) {
	dup := &fakeSource{name: "html:mirror", records: []sources.RawRecord{
		record("A1234/24", "EGLL", "", "RWY 09L/27R CLSD", *at(6), at(18)),
	}}
	h := newHarness(t, func(d *Dependencies) { d.Sources = append(d.Sources, dup) })

	result, err := h.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Total)
	n, _ := h.svc.Collection().Get("A1234/24")
	assert.Equal(t, "api", n.Source, "first source wins")
}

func TestLoadFromStore(t *testing.T) {
	h := newHarness(t, nil)
	h.store.loadAll = []*notam.Notam{{ID: "X1/24", Location: "EGLL", EffectiveStart: t0}}

	require.NoError(t, h.svc.LoadFromStore(context.Background()))
	assert.Equal(t, 1, h.svc.Collection().Len())
}

func TestStartRefreshesOnTicker(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.svc.Start())
	defer h.svc.Stop()

	require.Eventually(t, func() bool { return h.svc.LastRefresh() != nil }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(15 * time.Minute)

	require.Eventually(t, func() bool { return h.source.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Error(t, h.svc.Start(), "already started")
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{}, Dependencies{Pipeline: notam.DefaultPipeline()}, logger.NewNop())
	assert.Error(t, err)
	_, err = NewService(Config{}, Dependencies{Airports: fixtureAirports()}, logger.NewNop())
	assert.Error(t, err)
}
