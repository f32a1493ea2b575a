// Command notamctl categorizes and filters a NOTAM file offline, without the
// server. Input may be JSON, ICAO text, HTML or a PDF bulletin; output is
// JSON, CSV or XLSX.
//
// Usage:
//
//	go run ./cmd/notamctl \
//	  -in data/notams.json \
//	  -airports data/airports.csv \
//	  -airport EGLL -active-at 2024-06-01T12:00:00Z \
//	  -category runway -format csv -out egll.csv
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/export"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/sources"
	"github.com/yegors/co-notam/pkg/logger"
)

type options struct {
	in          string
	inFormat    string
	out         string
	format      string
	rules       string
	airportsCSV string
	runwaysCSV  string

	airport  string
	category string
	tag      string
	runway   bool
	activeAt string
	lat      float64
	lon      float64
	radiusNM float64
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "NOTAM input file (required)")
	flag.StringVar(&opts.inFormat, "in-format", "", "input format: json, icao, html or pdf (default: from extension)")
	flag.StringVar(&opts.out, "out", "", "output file (default: stdout)")
	flag.StringVar(&opts.format, "format", "json", "output format: json, csv or xlsx")
	flag.StringVar(&opts.rules, "rules", "", "YAML file with extra text rules")
	flag.StringVar(&opts.airportsCSV, "airports", "", "OurAirports airports.csv, used to resolve positions")
	flag.StringVar(&opts.runwaysCSV, "runways", "", "OurAirports runways.csv")
	flag.StringVar(&opts.airport, "airport", "", "keep NOTAMs for this ICAO location")
	flag.StringVar(&opts.category, "category", "", "keep NOTAMs in these categories (comma separated, any match)")
	flag.StringVar(&opts.tag, "tag", "", "keep NOTAMs carrying all of these tags (comma separated)")
	flag.BoolVar(&opts.runway, "runway", false, "keep runway related NOTAMs only")
	flag.StringVar(&opts.activeAt, "active-at", "", "keep NOTAMs active at this RFC3339 time, or \"now\"")
	flag.Float64Var(&opts.lat, "lat", 0, "latitude of a radius filter")
	flag.Float64Var(&opts.lon, "lon", 0, "longitude of a radius filter")
	flag.Float64Var(&opts.radiusNM, "radius", 0, "radius filter in nautical miles (0 = off)")
	flag.Parse()

	if opts.in == "" {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var w io.Writer = os.Stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := run(opts, w, log); err != nil {
		fmt.Fprintf(os.Stderr, "notamctl: %v\n", err)
		if errors.Is(err, notam.ErrQuery) || errors.Is(err, notam.ErrMalformedInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(opts options, w io.Writer, log *logger.Logger) error {
	records, err := sources.ReadFile(opts.in, opts.inFormat)
	unparsed, err := sources.Rejected(err)
	if err != nil {
		return err
	}
	notams, rejected := sources.ToNotams(records, "file:"+opts.in)
	rejected = append(unparsed, rejected...)
	for _, e := range rejected {
		log.Warn("Skipping record", logger.Error(e))
	}

	if opts.airportsCSV != "" {
		db, err := airports.Load(opts.airportsCSV, opts.runwaysCSV, log)
		if err != nil {
			return err
		}
		notam.ResolvePositions(notams, db)
	}

	pipeline := notam.DefaultPipeline()
	if opts.rules != "" {
		rules, err := notam.LoadTextRulesFile(opts.rules)
		if err != nil {
			return err
		}
		if pipeline, err = notam.PipelineWithRules(rules...); err != nil {
			return err
		}
	}
	if _, err := pipeline.CategorizeAll(notams); err != nil {
		// Failed NOTAMs stay in the output uncategorized
		log.Warn("Some NOTAMs could not be categorized", logger.Error(err))
	}

	query, err := buildQuery(notam.NewCollection(notams).Query(), opts)
	if err != nil {
		return err
	}
	matched, err := query.All()
	if err != nil {
		return err
	}

	switch strings.ToLower(opts.format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matched)
	default:
		format, err := export.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		return export.Write(w, format, matched)
	}
}

func buildQuery(q notam.Query, opts options) (notam.Query, error) {
	if opts.airport != "" {
		q = q.ForAirport(opts.airport)
	}
	switch opts.activeAt {
	case "":
	case "now":
		q = q.ActiveNow()
	default:
		at, err := time.Parse(time.RFC3339, opts.activeAt)
		if err != nil {
			return q, &notam.QueryError{Op: "active-at", Arg: opts.activeAt, Reason: "expected an RFC3339 time"}
		}
		q = q.ActiveAt(at)
	}
	if opts.radiusNM != 0 {
		q = q.WithinRadius(opts.lat, opts.lon, opts.radiusNM)
	}
	if cats := splitList(opts.category); len(cats) > 0 {
		q = q.AnyCategory(cats...)
	}
	for _, tag := range splitList(opts.tag) {
		q = q.Tag(tag)
	}
	if opts.runway {
		q = q.RunwayRelated()
	}
	return q, q.Err()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
