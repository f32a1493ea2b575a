package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// APISource queries a JSON NOTAM API for a set of airports
type APISource struct {
	fetcher  *Fetcher
	baseURL  string
	airports []string
}

// NewAPISource creates a JSON API source. The airports are sent as a
// comma-separated "locations" query parameter.
func NewAPISource(fetcher *Fetcher, baseURL string, airports []string) *APISource {
	return &APISource{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), airports: airports}
}

func (s *APISource) Name() string { return "api" }

func (s *APISource) Fetch(ctx context.Context) ([]RawRecord, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTAM API URL: %w", err)
	}
	q := u.Query()
	q.Set("locations", strings.Join(s.airports, ","))
	u.RawQuery = q.Encode()

	body, err := s.fetcher.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return DecodeJSON(bytes.NewReader(body))
}

// HTMLSource scrapes ICAO-format NOTAMs from a web page
type HTMLSource struct {
	fetcher *Fetcher
	url     string
}

// NewHTMLSource creates a source for one HTML page
func NewHTMLSource(fetcher *Fetcher, pageURL string) *HTMLSource {
	return &HTMLSource{fetcher: fetcher, url: pageURL}
}

func (s *HTMLSource) Name() string { return "html:" + s.url }

func (s *HTMLSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return ParseHTML(bytes.NewReader(body))
}

// PDFSource reads a PDF bulletin from disk
type PDFSource struct {
	path string
}

// NewPDFSource creates a source for a local PDF bulletin
func NewPDFSource(path string) *PDFSource {
	return &PDFSource{path: path}
}

func (s *PDFSource) Name() string { return "pdf:" + filepath.Base(s.path) }

func (s *PDFSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ExtractPDF(s.path)
}

// ReadFile parses a local file in the given format: json, icao, html or pdf
func ReadFile(path, format string) ([]RawRecord, error) {
	if format == "" {
		format = FormatFromExtension(path)
	}
	if format == "pdf" {
		return ExtractPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch format {
	case "json":
		return DecodeJSON(bytes.NewReader(data))
	case "html":
		return ParseHTML(bytes.NewReader(data))
	case "icao", "txt":
		return ParseICAO(string(data))
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

// FormatFromExtension guesses the input format from a file name
func FormatFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	default:
		return "icao"
	}
}
