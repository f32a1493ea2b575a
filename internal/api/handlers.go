package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/briefing"
	"github.com/yegors/co-notam/internal/config"
	"github.com/yegors/co-notam/internal/export"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/weather"
	"github.com/yegors/co-notam/internal/websocket"
	"github.com/yegors/co-notam/pkg/logger"
)

// WeatherSource is the part of the weather service the API reads
type WeatherSource interface {
	GetWeatherData(airport string) *weather.WeatherData
	GetAll() []*weather.WeatherData
}

// Handler contains the API handlers
type Handler struct {
	briefingService *briefing.Service
	weatherService  WeatherSource
	wsServer        *websocket.Server
	config          *config.Config
	logger          *logger.Logger
}

// NewHandler creates a new API handler. weatherService and wsServer may be nil.
func NewHandler(briefingService *briefing.Service, weatherService WeatherSource, wsServer *websocket.Server, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		briefingService: briefingService,
		weatherService:  weatherService,
		wsServer:        wsServer,
		config:          config,
		logger:          logger.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	last := h.briefingService.LastRefresh()
	if last != nil && last.Outcome == "error" {
		status = "degraded"
	}

	response := map[string]interface{}{
		"status":      status,
		"notam_count": h.briefingService.Collection().Len(),
		"airports":    h.briefingService.Airports().Len(),
	}
	if last != nil {
		response["last_refresh"] = last
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]interface{}{
		"station": map[string]interface{}{
			"airport_code": h.config.Station.AirportCode,
		},
		"notams": map[string]interface{}{
			"airports":                 h.config.NOTAMs.Airports,
			"refresh_interval_minutes": h.config.NOTAMs.RefreshIntervalMinutes,
			"default_radius_nm":        h.briefingService.DefaultRadiusNM(),
			"route_corridor_nm":        h.config.NOTAMs.RouteCorridorNM,
		},
		"categories": notam.Categories,
		"ai": map[string]interface{}{
			"enabled": h.config.AI.Enabled,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetNotams returns the NOTAMs matching the query string filters.
// format=csv or format=xlsx downloads the result instead of JSON.
func (h *Handler) GetNotams(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	query, err := h.parseNotamFilters(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	notams, err := query.All()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		format, err := export.ParseFormat(f)
		if err != nil {
			h.writeError(w, &notam.QueryError{Op: "format", Arg: f, Reason: err.Error()})
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=notams.%s", format))
		if err := export.Write(w, format, notams); err != nil {
			h.logger.Error("Failed to export NOTAMs", logger.String("format", string(format)), logger.Error(err))
		}
		return
	}

	h.logger.Debug("NOTAM query completed",
		logger.Int("count", len(notams)),
		logger.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(notams),
		"notams": notams,
	})
}

// GetNotamByID returns a single NOTAM
func (h *Handler) GetNotamByID(w http.ResponseWriter, r *http.Request) {
	// NOTAM ids contain a slash, so clients send it escaped
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, &notam.QueryError{Op: "id", Arg: chi.URLParam(r, "id"), Reason: "bad escape"})
		return
	}
	n, ok := h.briefingService.Collection().Get(id)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, fmt.Sprintf("NOTAM %s not found", id))
		return
	}
	WriteJSON(w, http.StatusOK, n)
}

type categoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GetCategories returns every category with its current NOTAM count. The
// built-in vocabulary comes first, then categories added by custom rules.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	counts := h.briefingService.Collection().CountByCategory()

	result := make([]categoryCount, 0, len(counts)+len(notam.Categories))
	known := make(map[string]bool, len(notam.Categories))
	for _, name := range notam.Categories {
		known[name] = true
		result = append(result, categoryCount{Name: name, Count: counts[name]})
	}

	var extra []string
	for name := range counts {
		if !known[name] && name != "" {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		result = append(result, categoryCount{Name: name, Count: counts[name]})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories":    result,
		"uncategorized": counts[""],
	})
}

// GetAirport returns an airport with its runways and active NOTAM count
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	icao := strings.ToUpper(chi.URLParam(r, "icao"))
	query := h.briefingService.Query().ForAirport(icao)
	if err := query.Err(); err != nil {
		h.writeError(w, err)
		return
	}

	db := h.briefingService.Airports()
	airport, ok := db.Lookup(icao)
	if !ok {
		h.writeError(w, fmt.Errorf("%w: %s", briefing.ErrUnknownAirport, icao))
		return
	}
	active, err := query.ActiveAt(h.briefingService.Now()).Count()
	if err != nil {
		h.writeError(w, err)
		return
	}

	runways := db.Runways(icao)
	if runways == nil {
		runways = []airports.Runway{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"airport":       airport,
		"runways":       runways,
		"active_notams": active,
	})
}

// GetBriefing returns the briefing for one airport. format=text returns the
// rendered plain-text briefing; summary=true adds the AI summary.
func (h *Handler) GetBriefing(w http.ResponseWriter, r *http.Request) {
	icao := chi.URLParam(r, "icao")
	at, err := parseTime(r, "at", h.briefingService.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	b, err := h.briefingService.AirportBriefing(icao, at)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if wantSummary, _ := strconv.ParseBool(r.URL.Query().Get("summary")); wantSummary {
		if err := h.briefingService.Summarize(r.Context(), b); err != nil {
			h.writeError(w, err)
			return
		}
	}

	if r.URL.Query().Get("format") == "text" {
		text, err := h.briefingService.RenderAirportBriefing(b)
		if err != nil {
			h.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
		return
	}

	WriteJSON(w, http.StatusOK, b)
}

// GetRoute returns the NOTAMs along a direct route between two airports
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	at, err := parseTime(r, "at", h.briefingService.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	corridor, err := parseFloat(r, "corridor_nm", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rb, err := h.briefingService.RouteBriefing(params.Get("from"), params.Get("to"), corridor, at)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rb)
}

// GetWeatherData returns cached weather data, for one airport with ?airport=
func (h *Handler) GetWeatherData(w http.ResponseWriter, r *http.Request) {
	if h.weatherService == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "Weather service not available")
		return
	}

	if airport := strings.ToUpper(r.URL.Query().Get("airport")); airport != "" {
		data := h.weatherService.GetWeatherData(airport)
		if data == nil {
			writeErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no weather for %s", airport))
			return
		}
		WriteJSON(w, http.StatusOK, data)
		return
	}

	WriteJSON(w, http.StatusOK, h.weatherService.GetAll())
}

// TriggerRefresh runs a refresh cycle immediately
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.briefingService.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("Manual refresh failed", logger.Error(err))
		WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   err.Error(),
			"refresh": result,
		})
		return
	}

	h.logger.Info("Manual refresh completed",
		logger.Int("total", result.Total),
		logger.String("outcome", result.Outcome))
	WriteJSON(w, http.StatusOK, result)
}

// parseNotamFilters builds a query from the request. Every filter is optional
// and they combine with AND.
func (h *Handler) parseNotamFilters(r *http.Request) (notam.Query, error) {
	params := r.URL.Query()
	query := h.briefingService.Query()

	if airport := params.Get("airport"); airport != "" {
		query = query.ForAirport(airport)
	}

	if active, _ := strconv.ParseBool(params.Get("active_now")); active {
		query = query.ActiveNow()
	}
	if params.Has("active_at") {
		at, err := parseTime(r, "active_at", time.Time{})
		if err != nil {
			return query, err
		}
		query = query.ActiveAt(at)
	}
	if params.Has("from") || params.Has("to") {
		from, err := parseTime(r, "from", time.Time{})
		if err != nil {
			return query, err
		}
		to, err := parseTime(r, "to", time.Time{})
		if err != nil {
			return query, err
		}
		query = query.ActiveBetween(from, to)
	}

	if params.Has("lat") || params.Has("lon") {
		lat, err := parseFloat(r, "lat", 0)
		if err != nil {
			return query, err
		}
		lon, err := parseFloat(r, "lon", 0)
		if err != nil {
			return query, err
		}
		if !params.Has("lat") || !params.Has("lon") {
			return query, &notam.QueryError{Op: "WithinRadius", Arg: params.Encode(), Reason: "lat and lon must be given together"}
		}
		radius, err := parseFloat(r, "radius_nm", h.briefingService.DefaultRadiusNM())
		if err != nil {
			return query, err
		}
		query = query.WithinRadius(lat, lon, radius)
	}

	if categories := params["category"]; len(categories) == 1 {
		query = query.Category(categories[0])
	} else if len(categories) > 1 {
		query = query.AnyCategory(categories...)
	}
	for _, tag := range params["tag"] {
		query = query.Tag(tag)
	}
	if runway, _ := strconv.ParseBool(params.Get("runway")); runway {
		query = query.RunwayRelated()
	}

	return query, query.Err()
}

func parseTime(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &notam.QueryError{Op: name, Arg: value, Reason: "expected an RFC3339 time"}
	}
	return t, nil
}

func parseFloat(r *http.Request, name string, fallback float64) (float64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &notam.QueryError{Op: name, Arg: value, Reason: "expected a number"}
	}
	return f, nil
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, notam.ErrQuery):
		status = http.StatusBadRequest
	case errors.Is(err, briefing.ErrUnknownAirport):
		status = http.StatusNotFound
	case errors.Is(err, briefing.ErrSummaryUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, briefing.ErrAllSourcesFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", logger.Error(err))
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
