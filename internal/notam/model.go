// Package notam holds the NOTAM model, the categorization pipeline and the
// queryable collection used by briefings and the web explorer.
//
// Everything in this package is synchronous and in-memory. A Pipeline and a
// Collection follow a single-writer contract: mutating a pipeline's
// categorizer list, or running CategorizeAll over the same NOTAMs from two
// goroutines, must be serialized by the caller. Query values are immutable
// and may be shared freely.
package notam

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/physics"
)

// Point is a resolved geographic position
type Point = physics.Point

// Locator resolves an ICAO location to coordinates
type Locator interface {
	Coordinates(icao string) (Point, bool)
}

// LocatorFunc adapts a function to Locator
type LocatorFunc func(icao string) (Point, bool)

func (f LocatorFunc) Coordinates(icao string) (Point, bool) { return f(icao) }

// Notam is a Notice to Airmen normalized from any source
type Notam struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	RawText  string `json:"raw_text,omitempty"`
	Location string `json:"location"`
	FIR      string `json:"fir,omitempty"`
	QCode    string `json:"q_code,omitempty"`
	Source   string `json:"source,omitempty"`

	Position *Point `json:"position,omitempty"`

	EffectiveStart time.Time  `json:"effective_start"`
	EffectiveEnd   *time.Time `json:"effective_end,omitempty"` // nil until further notice
	IssuedAt       time.Time  `json:"issued_at"`

	// Structured ICAO items (A..G) when the source provided them
	Fields map[string]string `json:"fields,omitempty"`

	// Classification, owned by the categorization pipeline
	PrimaryCategory  string `json:"primary_category,omitempty"`
	CustomCategories Set    `json:"custom_categories"`
	CustomTags       Set    `json:"custom_tags"`
}

// Validate checks the model invariants
func (n *Notam) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: notam id is required", ErrMalformedInput)
	}
	if n.EffectiveEnd != nil && n.EffectiveEnd.Before(n.EffectiveStart) {
		return fmt.Errorf("%w: notam %s ends before it starts", ErrMalformedInput, n.ID)
	}
	if n.PrimaryCategory != "" && !n.CustomCategories.Has(n.PrimaryCategory) {
		return fmt.Errorf("%w: notam %s primary category %q missing from categories", ErrMalformedInput, n.ID, n.PrimaryCategory)
	}
	return nil
}

// IsActiveAt reports whether t falls inside the validity window, both ends inclusive
func (n *Notam) IsActiveAt(t time.Time) bool {
	if t.Before(n.EffectiveStart) {
		return false
	}
	return n.EffectiveEnd == nil || !t.After(*n.EffectiveEnd)
}

// OverlapsWindow reports whether the validity window intersects [from, to]
func (n *Notam) OverlapsWindow(from, to time.Time) bool {
	if n.EffectiveStart.After(to) {
		return false
	}
	return n.EffectiveEnd == nil || !n.EffectiveEnd.Before(from)
}

// IsPermanent reports an open-ended NOTAM
func (n *Notam) IsPermanent() bool {
	return n.EffectiveEnd == nil
}

// IsCategorized reports whether any classification has been written
func (n *Notam) IsCategorized() bool {
	return n.PrimaryCategory != "" || n.CustomCategories.Len() > 0 || n.CustomTags.Len() > 0
}

// ClearClassification resets the categorizer-owned fields
func (n *Notam) ClearClassification() {
	n.PrimaryCategory = ""
	n.CustomCategories = Set{}
	n.CustomTags = Set{}
	classificationChanged()
}

// ResolvePositions fills Position from the locator for every NOTAM whose
// location is known. Unknown locations are left without a position.
func ResolvePositions(notams []*Notam, locator Locator) int {
	if locator == nil {
		return 0
	}
	resolved := 0
	for _, n := range notams {
		if n == nil {
			continue
		}
		if p, ok := locator.Coordinates(strings.ToUpper(strings.TrimSpace(n.Location))); ok {
			pos := p
			n.Position = &pos
			resolved++
		} else {
			n.Position = nil
		}
	}
	return resolved
}

// ToMap renders the NOTAM as a flat map for persistence layers
func (n *Notam) ToMap() map[string]any {
	m := map[string]any{
		"id":                n.ID,
		"text":              n.Text,
		"raw_text":          n.RawText,
		"location":          n.Location,
		"fir":               n.FIR,
		"q_code":            n.QCode,
		"source":            n.Source,
		"effective_start":   formatTime(n.EffectiveStart),
		"effective_end":     nil,
		"issued_at":         formatTime(n.IssuedAt),
		"primary_category":  nil,
		"custom_categories": n.CustomCategories.Sorted(),
		"custom_tags":       n.CustomTags.Sorted(),
	}
	if n.EffectiveEnd != nil {
		m["effective_end"] = formatTime(*n.EffectiveEnd)
	}
	if n.PrimaryCategory != "" {
		m["primary_category"] = n.PrimaryCategory
	}
	if n.Position != nil {
		m["lat"] = n.Position.Lat
		m["lon"] = n.Position.Lon
	}
	if len(n.Fields) > 0 {
		fields := make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = v
		}
		m["fields"] = fields
	}
	return m
}

// FromMap rebuilds a NOTAM from ToMap output or from a decoded JSON/CSV row.
// Missing or empty classification reads back as uncategorized.
func FromMap(m map[string]any) (*Notam, error) {
	n := &Notam{
		ID:       stringValue(m["id"]),
		Text:     stringValue(m["text"]),
		RawText:  stringValue(m["raw_text"]),
		Location: strings.ToUpper(stringValue(m["location"])),
		FIR:      strings.ToUpper(stringValue(m["fir"])),
		QCode:    strings.ToUpper(stringValue(m["q_code"])),
		Source:   stringValue(m["source"]),
	}

	var err error
	if n.EffectiveStart, err = timeValue(m["effective_start"]); err != nil {
		return nil, fmt.Errorf("%w: effective_start: %v", ErrMalformedInput, err)
	}
	if n.IssuedAt, err = timeValue(m["issued_at"]); err != nil {
		return nil, fmt.Errorf("%w: issued_at: %v", ErrMalformedInput, err)
	}
	end, err := timeValue(m["effective_end"])
	if err != nil {
		return nil, fmt.Errorf("%w: effective_end: %v", ErrMalformedInput, err)
	}
	if !end.IsZero() {
		n.EffectiveEnd = &end
	}

	lat, latOK := floatValue(m["lat"])
	lon, lonOK := floatValue(m["lon"])
	if latOK && lonOK {
		n.Position = &Point{Lat: lat, Lon: lon}
	}

	if raw, ok := m["fields"]; ok && raw != nil {
		n.Fields = map[string]string{}
		switch fields := raw.(type) {
		case map[string]string:
			for k, v := range fields {
				n.Fields[k] = v
			}
		case map[string]any:
			for k, v := range fields {
				n.Fields[k] = stringValue(v)
			}
		}
	}

	n.PrimaryCategory = normalizeLabel(stringValue(m["primary_category"]))
	n.CustomCategories = NewSet(listValue(m["custom_categories"])...)
	n.CustomTags = NewSet(listValue(m["custom_tags"])...)
	if n.PrimaryCategory != "" {
		n.CustomCategories.Add(n.PrimaryCategory)
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}
}

func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	case json.Number:
		parsed, err := f.Float64()
		return parsed, err == nil
	case string:
		if strings.TrimSpace(f) == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// listValue accepts []string, []any, JSON array text or a ;/, separated string
func listValue(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case []string:
		return l
	case Set:
		return l.Sorted()
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, stringValue(item))
		}
		return out
	case string:
		s := strings.TrimSpace(l)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var items []string
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return items
			}
		}
		return strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	default:
		return nil
	}
}
