package sources

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/notam"
)

var (
	notamHeader = regexp.MustCompile(`(?m)^\s*([A-Z]\d{4}/\d{2})\s+NOTAM([NRC])\b`)
	itemMarker  = regexp.MustCompile(`(?m)(?:^|\s)([QA-G])\)\s*`)
	spaces      = regexp.MustCompile(`\s+`)
)

// ICAO validity times are yyMMddHHmm UTC
const icaoTimeLayout = "0601021504"

// BulletinError reports the NOTAMs of a bulletin that could not be parsed.
// It is returned alongside the records that did parse.
type BulletinError struct {
	Errors []error
}

func (e *BulletinError) Error() string {
	return fmt.Sprintf("%d NOTAM(s) could not be parsed: %v", len(e.Errors), errors.Join(e.Errors...))
}

func (e *BulletinError) Unwrap() []error { return e.Errors }

// Rejected separates per-NOTAM parse failures from a fetch error. It returns
// the rejected NOTAM errors and a nil error when err is a *BulletinError,
// otherwise it returns err unchanged.
func Rejected(err error) ([]error, error) {
	var be *BulletinError
	if errors.As(err, &be) {
		return be.Errors, nil
	}
	return nil, err
}

// ParseICAO splits a bulletin into ICAO-format NOTAMs and parses their items.
// NOTAMs that cannot be parsed are skipped; the returned *BulletinError lists
// them and wraps ErrMalformedInput. The parsed records are returned either way.
func ParseICAO(text string) ([]RawRecord, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	headers := notamHeader.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil, nil
	}

	records := make([]RawRecord, 0, len(headers))
	var errs []error
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		block := strings.TrimSpace(text[h[0]:end])
		id := text[h[2]:h[3]]
		kind := text[h[4]:h[5]]

		record, err := parseICAOBlock(id, kind, block, text[h[1]:end])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, record)
	}
	if len(errs) > 0 {
		return records, &BulletinError{Errors: errs}
	}
	return records, nil
}

func parseICAOBlock(id, kind, block, body string) (RawRecord, error) {
	items := splitItems(body)
	record := RawRecord{
		ID:      id,
		RawText: block,
		Fields:  map[string]string{"type": "NOTAM" + kind},
	}
	for k, v := range items {
		record.Fields[k] = v
	}

	if q, ok := items["Q"]; ok {
		parts := strings.Split(q, "/")
		if len(parts) > 0 {
			record.FIR = strings.TrimSpace(parts[0])
		}
		if len(parts) > 1 {
			record.QCode = strings.TrimSpace(parts[1])
		}
	}

	locations := strings.Fields(items["A"])
	if len(locations) > 0 {
		record.Location = locations[0]
	} else {
		record.Location = record.FIR
	}

	record.Text = spaces.ReplaceAllString(strings.TrimSpace(items["E"]), " ")
	if record.Text == "" {
		return RawRecord{}, fmt.Errorf("%w: NOTAM %s has no E) item", notam.ErrMalformedInput, id)
	}

	start, err := parseICAOTime(items["B"])
	if err != nil {
		return RawRecord{}, fmt.Errorf("%w: NOTAM %s B) item: %v", notam.ErrMalformedInput, id, err)
	}
	record.EffectiveStart = formatTime(start)

	c := strings.ToUpper(strings.TrimSpace(items["C"]))
	switch {
	case c == "" || c == "PERM":
		// open-ended
	default:
		if strings.HasSuffix(c, "EST") {
			c = strings.TrimSpace(strings.TrimSuffix(c, "EST"))
			record.Fields["estimated_end"] = "true"
		}
		end, err := parseICAOTime(c)
		if err != nil {
			return RawRecord{}, fmt.Errorf("%w: NOTAM %s C) item: %v", notam.ErrMalformedInput, id, err)
		}
		record.EffectiveEnd = formatTime(end)
	}

	return record, nil
}

// splitItems returns the text following each item letter up to the next marker
func splitItems(body string) map[string]string {
	items := make(map[string]string)
	markers := itemMarker.FindAllStringSubmatchIndex(body, -1)
	for i, m := range markers {
		end := len(body)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		key := body[m[2]:m[3]]
		if _, seen := items[key]; seen {
			continue
		}
		items[key] = strings.TrimSpace(body[m[1]:end])
	}
	return items
}

func parseICAOTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing time")
	}
	return time.ParseInLocation(icaoTimeLayout, s, time.UTC)
}
