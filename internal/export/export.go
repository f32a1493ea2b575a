// Package export renders query results as CSV or XLSX for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yegors/co-notam/internal/notam"
)

// Format is a tabular export format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet holding exported NOTAMs
const SheetName = "NOTAMs"

// Columns is the header row shared by every format
var Columns = []string{
	"id", "location", "fir", "q_code", "source",
	"effective_start", "effective_end", "issued_at",
	"primary_category", "custom_categories", "custom_tags",
	"lat", "lon", "text",
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// ParseFormat accepts "csv" or "xlsx" in any case
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Write renders notams in the given format
func Write(w io.Writer, format Format, notams []*notam.Notam) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, notams)
	case FormatXLSX:
		return WriteXLSX(w, notams)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func row(n *notam.Notam) []string {
	m := n.ToMap()
	out := make([]string, len(Columns))
	for i, col := range Columns {
		switch col {
		case "custom_categories":
			out[i] = strings.Join(n.CustomCategories.Sorted(), ";")
		case "custom_tags":
			out[i] = strings.Join(n.CustomTags.Sorted(), ";")
		case "lat", "lon":
			if v, ok := m[col].(float64); ok {
				out[i] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		default:
			if v, ok := m[col].(string); ok {
				out[i] = v
			}
		}
	}
	return out
}

// WriteCSV writes a header row followed by one row per NOTAM.
// Sets are joined with ";" in sorted order.
func WriteCSV(w io.Writer, notams []*notam.Notam) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, n := range notams {
		if err := cw.Write(row(n)); err != nil {
			return fmt.Errorf("failed to write CSV row %s: %w", n.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses WriteCSV output back into NOTAMs
func ReadCSV(r io.Reader) ([]*notam.Notam, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", notam.ErrMalformedInput, err)
	}
	return fromRows(records)
}

// WriteXLSX writes a single-sheet workbook with a frozen header row
func WriteXLSX(w io.Writer, notams []*notam.Notam) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, n := range notams {
		cells := row(n)
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %s: %w", n.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadXLSX parses a workbook produced by WriteXLSX
func ReadXLSX(r io.Reader) ([]*notam.Notam, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", notam.ErrMalformedInput, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", notam.ErrMalformedInput, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]*notam.Notam, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	var notams []*notam.Notam
	for i, r := range rows[1:] {
		m := make(map[string]any, len(header))
		for j, col := range header {
			if j < len(r) {
				m[strings.TrimSpace(col)] = r[j]
			}
		}
		n, err := notam.FromMap(m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		notams = append(notams, n)
	}
	return notams, nil
}
