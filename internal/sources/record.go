// Package sources turns NOTAM publications (JSON APIs, ICAO-format text,
// HTML pages and PDF bulletins) into notam.Notam values.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/notam"
)

// RawRecord is a NOTAM as published by a source, before normalization
type RawRecord struct {
	ID             string            `json:"id"`
	Text           string            `json:"text"`
	RawText        string            `json:"raw_text,omitempty"`
	Location       string            `json:"location"`
	FIR            string            `json:"fir,omitempty"`
	QCode          string            `json:"q_code,omitempty"`
	EffectiveStart string            `json:"effective_start"`
	EffectiveEnd   string            `json:"effective_end,omitempty"`
	IssuedAt       string            `json:"issued_at,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// Source produces raw records from one publication
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

func (r RawRecord) toMap(source string) map[string]any {
	m := map[string]any{
		"id":              r.ID,
		"text":            r.Text,
		"raw_text":        r.RawText,
		"location":        r.Location,
		"fir":             r.FIR,
		"q_code":          r.QCode,
		"source":          source,
		"effective_start": r.EffectiveStart,
		"effective_end":   r.EffectiveEnd,
		"issued_at":       r.IssuedAt,
	}
	if len(r.Fields) > 0 {
		m["fields"] = r.Fields
	}
	return m
}

// ToNotams normalizes raw records. Malformed records are skipped and
// reported in the returned error slice; the rest are returned in order.
func ToNotams(records []RawRecord, source string) ([]*notam.Notam, []error) {
	notams := make([]*notam.Notam, 0, len(records))
	var errs []error
	for i, r := range records {
		if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.RawText) != "" {
			r.Text = r.RawText
		}
		n, err := notam.FromMap(r.toMap(source))
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d (%s): %w", i, r.ID, err))
			continue
		}
		notams = append(notams, n)
	}
	return notams, errs
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
