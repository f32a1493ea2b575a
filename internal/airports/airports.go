// Package airports loads OurAirports reference data and answers coordinate
// and runway lookups by ICAO code.
package airports

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/pkg/logger"
)

// Airport is one row of airports.csv
type Airport struct {
	ICAO          string  `json:"icao"`
	IATA          string  `json:"iata,omitempty"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Latitude      float64 `json:"lat"`
	Longitude     float64 `json:"lon"`
	ElevationFeet float64 `json:"elevation_ft"`
	Country       string  `json:"country,omitempty"`
	Municipality  string  `json:"municipality,omitempty"`
}

// Runway is one row of runways.csv
type Runway struct {
	AirportICAO string  `json:"airport"`
	LengthFeet  float64 `json:"length_ft"`
	WidthFeet   float64 `json:"width_ft"`
	Surface     string  `json:"surface"`
	Lighted     bool    `json:"lighted"`
	Closed      bool    `json:"closed"`
	LowEnd      End     `json:"le"`
	HighEnd     End     `json:"he"`
}

// End is one threshold of a runway
type End struct {
	Ident                string  `json:"ident"`
	Latitude             float64 `json:"lat,omitempty"`
	Longitude            float64 `json:"lon,omitempty"`
	HeadingTrue          float64 `json:"heading_true,omitempty"`
	DisplacedThresholdFt float64 `json:"displaced_threshold_ft,omitempty"`
}

// Designator returns the runway name as used in NOTAMs, e.g. "09L/27R"
func (r Runway) Designator() string {
	if r.HighEnd.Ident == "" {
		return r.LowEnd.Ident
	}
	return r.LowEnd.Ident + "/" + r.HighEnd.Ident
}

// Database holds airports and runways keyed by ICAO code
type Database struct {
	airports map[string]Airport
	runways  map[string][]Runway
}

// Load reads airports.csv and, when runwaysPath is set, runways.csv
func Load(airportsPath, runwaysPath string, log *logger.Logger) (*Database, error) {
	log = log.Named("airports")

	f, err := os.Open(airportsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer f.Close()

	db := &Database{runways: map[string][]Runway{}}
	if db.airports, err = ReadAirports(f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", airportsPath, err)
	}

	if runwaysPath != "" {
		rf, err := os.Open(runwaysPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open runways file: %w", err)
		}
		defer rf.Close()
		if db.runways, err = ReadRunways(rf); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", runwaysPath, err)
		}
	}

	log.Info("Loaded airport reference data",
		logger.Int("airports", len(db.airports)),
		logger.Int("runway_airports", len(db.runways)))
	return db, nil
}

// New builds a database from already loaded rows
func New(airports []Airport, runways []Runway) *Database {
	db := &Database{airports: map[string]Airport{}, runways: map[string][]Runway{}}
	for _, a := range airports {
		db.airports[strings.ToUpper(a.ICAO)] = a
	}
	for _, r := range runways {
		key := strings.ToUpper(r.AirportICAO)
		db.runways[key] = append(db.runways[key], r)
	}
	return db
}

// Lookup returns the airport with the given ICAO code
func (db *Database) Lookup(icao string) (Airport, bool) {
	a, ok := db.airports[strings.ToUpper(strings.TrimSpace(icao))]
	return a, ok
}

// Coordinates implements notam.Locator
func (db *Database) Coordinates(icao string) (notam.Point, bool) {
	a, ok := db.Lookup(icao)
	if !ok {
		return notam.Point{}, false
	}
	return notam.Point{Lat: a.Latitude, Lon: a.Longitude}, true
}

// Runways returns the open and closed runways of an airport
func (db *Database) Runways(icao string) []Runway {
	return db.runways[strings.ToUpper(strings.TrimSpace(icao))]
}

// Len returns the number of airports
func (db *Database) Len() int { return len(db.airports) }

type columns map[string]int

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) float(record []string, name string) float64 {
	v, err := strconv.ParseFloat(c.get(record, name), 64)
	if err != nil {
		return 0
	}
	return v
}

func readHeader(reader *csv.Reader, required ...string) (columns, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := columns{}
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// ReadAirports parses OurAirports airports.csv. Rows are keyed by their
// ICAO code, falling back to gps_code and ident.
func ReadAirports(r io.Reader) (map[string]Airport, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	cols, err := readHeader(reader, "ident", "latitude_deg", "longitude_deg")
	if err != nil {
		return nil, err
	}

	airports := make(map[string]Airport)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		code := cols.get(record, "icao_code")
		if code == "" {
			code = cols.get(record, "gps_code")
		}
		if code == "" {
			code = cols.get(record, "ident")
		}
		code = strings.ToUpper(code)
		if code == "" {
			continue
		}

		lat, latErr := strconv.ParseFloat(cols.get(record, "latitude_deg"), 64)
		lon, lonErr := strconv.ParseFloat(cols.get(record, "longitude_deg"), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		airports[code] = Airport{
			ICAO:          code,
			IATA:          cols.get(record, "iata_code"),
			Name:          cols.get(record, "name"),
			Type:          cols.get(record, "type"),
			Latitude:      lat,
			Longitude:     lon,
			ElevationFeet: cols.float(record, "elevation_ft"),
			Country:       cols.get(record, "iso_country"),
			Municipality:  cols.get(record, "municipality"),
		}
	}
	return airports, nil
}

// ReadRunways parses OurAirports runways.csv grouped by airport ident
func ReadRunways(r io.Reader) (map[string][]Runway, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	cols, err := readHeader(reader, "airport_ident", "le_ident")
	if err != nil {
		return nil, err
	}

	runways := make(map[string][]Runway)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		airport := strings.ToUpper(cols.get(record, "airport_ident"))
		if airport == "" {
			continue
		}
		runways[airport] = append(runways[airport], Runway{
			AirportICAO: airport,
			LengthFeet:  cols.float(record, "length_ft"),
			WidthFeet:   cols.float(record, "width_ft"),
			Surface:     cols.get(record, "surface"),
			Lighted:     cols.get(record, "lighted") == "1",
			Closed:      cols.get(record, "closed") == "1",
			LowEnd: End{
				Ident:                cols.get(record, "le_ident"),
				Latitude:             cols.float(record, "le_latitude_deg"),
				Longitude:            cols.float(record, "le_longitude_deg"),
				HeadingTrue:          cols.float(record, "le_heading_degT"),
				DisplacedThresholdFt: cols.float(record, "le_displaced_threshold_ft"),
			},
			HighEnd: End{
				Ident:                cols.get(record, "he_ident"),
				Latitude:             cols.float(record, "he_latitude_deg"),
				Longitude:            cols.float(record, "he_longitude_deg"),
				HeadingTrue:          cols.float(record, "he_heading_degT"),
				DisplacedThresholdFt: cols.float(record, "he_displaced_threshold_ft"),
			},
		})
	}
	return runways, nil
}
