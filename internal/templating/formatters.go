package templating

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/weather"
)

// FormatNotamGroups formats NOTAMs grouped by primary category.
// Groups are sorted by name, with uncategorized NOTAMs last.
func FormatNotamGroups(groups map[string][]*notam.Notam, maxPerGroup int) string {
	if len(groups) == 0 {
		return "No active NOTAMs."
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := groups[""]; ok {
		names = append(names, "")
	}

	var builder strings.Builder
	for _, name := range names {
		list := groups[name]
		title := strings.ToUpper(name)
		if name == "" {
			title = "UNCATEGORIZED"
		}
		builder.WriteString(fmt.Sprintf("%s (%d):\n", title, len(list)))
		for i, n := range list {
			if maxPerGroup > 0 && i == maxPerGroup {
				builder.WriteString(fmt.Sprintf("  ... %d more\n", len(list)-maxPerGroup))
				break
			}
			builder.WriteString(FormatNotam(n))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n") + "\n"
}

// FormatNotamList formats a flat NOTAM list, one per line
func FormatNotamList(notams []*notam.Notam) string {
	if len(notams) == 0 {
		return "None."
	}
	var builder strings.Builder
	for _, n := range notams {
		builder.WriteString(FormatNotam(n))
		builder.WriteString("\n")
	}
	return builder.String()
}

// FormatNotam formats a single NOTAM line
func FormatNotam(n *notam.Notam) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("• %s %s", n.ID, n.Location))

	validity := n.EffectiveStart.UTC().Format("021504")
	if n.EffectiveEnd != nil {
		validity += "-" + n.EffectiveEnd.UTC().Format("021504")
	} else {
		validity += "-PERM"
	}
	builder.WriteString(fmt.Sprintf(" [%s]", validity))

	if tags := n.CustomTags.Sorted(); len(tags) > 0 {
		builder.WriteString(fmt.Sprintf(" {%s}", strings.Join(tags, ",")))
	}
	builder.WriteString(": ")
	builder.WriteString(n.Text)
	return builder.String()
}

// FormatWeatherData formats weather data for template rendering
func FormatWeatherData(wx *weather.WeatherData, densityAltitudeFt *float64, now time.Time) string {
	if wx == nil {
		return "Weather data not available."
	}

	var builder strings.Builder

	if wx.METAR != nil {
		builder.WriteString(fmt.Sprintf("METAR: %s\n", wx.METAR.RawOb))

		if temp, ok := wx.METAR.Temperature(); ok {
			builder.WriteString(fmt.Sprintf("Temperature: %.1f°C", temp))
			if qnh, ok := wx.METAR.QNH(); ok {
				builder.WriteString(fmt.Sprintf(", QNH %.0f hPa", qnh))
			}
			builder.WriteString("\n")
		}
	}
	if densityAltitudeFt != nil {
		builder.WriteString(fmt.Sprintf("Density altitude: %.0f ft\n", *densityAltitudeFt))
	}

	if wx.TAF != nil {
		builder.WriteString(fmt.Sprintf("TAF: %s\n", wx.TAF.RawTAF))
	}

	if !wx.LastUpdated.IsZero() {
		builder.WriteString(fmt.Sprintf("Last updated: %s ago\n", formatDuration(now.Sub(wx.LastUpdated))))
	}

	return builder.String()
}

// FormatRunwayData formats runway data for template rendering
func FormatRunwayData(runways []RunwayInfo) string {
	if len(runways) == 0 {
		return "Runway information not available."
	}

	var builder strings.Builder

	for _, runway := range runways {
		builder.WriteString(fmt.Sprintf("• Runway %s", runway.Name))
		if runway.LengthFt > 0 {
			builder.WriteString(fmt.Sprintf(" (%d ft", runway.LengthFt))
			if runway.Surface != "" {
				builder.WriteString(", " + runway.Surface)
			}
			builder.WriteString(")")
		}
		if runway.Closed {
			builder.WriteString(" CLOSED")
		}
		if runway.Notams > 0 {
			builder.WriteString(fmt.Sprintf(" - %d NOTAM(s)", runway.Notams))
		}
		builder.WriteString("\n")
	}

	return builder.String()
}

// FormatAirportData formats airport information for template rendering
func FormatAirportData(airport AirportInfo) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s (%s)\n", airport.Name, airport.Code))
	if len(airport.Coordinates) >= 2 {
		builder.WriteString(fmt.Sprintf("Coordinates: %.4f°, %.4f°\n", airport.Coordinates[0], airport.Coordinates[1]))
	}
	if airport.ElevationFt > 0 {
		builder.WriteString(fmt.Sprintf("Elevation: %d ft MSL\n", airport.ElevationFt))
	}
	direction := "E"
	variation := airport.MagneticVariation
	if variation < 0 {
		direction = "W"
		variation = -variation
	}
	builder.WriteString(fmt.Sprintf("Magnetic variation: %.1f°%s\n", variation, direction))
	return builder.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
}
