package weather

import (
	"regexp"
	"strconv"
)

var (
	reTGroup   = regexp.MustCompile(`\bRMK\b.*\bT([01])(\d{3})[01]\d{3}\b`)
	reStandard = regexp.MustCompile(`\s(M)?(\d{2})/(?:M)?\d{2}\b`)
	reQNH      = regexp.MustCompile(`\bQ(\d{4})\b`)
	reAltInHg  = regexp.MustCompile(`\bA(\d{4})\b`)
)

// ParseTemperature extracts the temperature in Celsius from a raw METAR.
// Standard Format: "22/M05" (22°C, Dewpoint -5°C) or "M02/M10" (-2°C / -10°C)
// Also supports RMK T-group: "T00561050" (Precise Temp: 5.6°C)
func ParseTemperature(raw string) (float64, bool) {
	// High precision T-group in remarks
	// Format: T00561050 -> T s ttt s ddd (s=sign 0=pos,1=neg; ttt=temp*10)
	if matches := reTGroup.FindStringSubmatch(raw); len(matches) == 3 {
		val, err := strconv.ParseFloat(matches[2], 64)
		if err == nil {
			val = val / 10.0
			if matches[1] == "1" {
				val = -val
			}
			return val, true
		}
	}

	// Standard temperature/dewpoint group
	// Examples: " 22/10", " M03/M05", " 00/M01"
	if matches := reStandard.FindStringSubmatch(raw); len(matches) == 3 {
		val, err := strconv.ParseFloat(matches[2], 64)
		if err == nil {
			if matches[1] == "M" {
				val = -val
			}
			return val, true
		}
	}

	return 0, false
}

// ParseQNH extracts the altimeter setting in hPa from a raw METAR
func ParseQNH(raw string) (float64, bool) {
	if matches := reQNH.FindStringSubmatch(raw); len(matches) == 2 {
		val, err := strconv.ParseFloat(matches[1], 64)
		return val, err == nil
	}
	if matches := reAltInHg.FindStringSubmatch(raw); len(matches) == 2 {
		val, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			return 0, false
		}
		return val / 100 * 33.8639, true
	}
	return 0, false
}

// Temperature returns the observed temperature, preferring the decoded field
func (m *METARResponse) Temperature() (float64, bool) {
	if m == nil {
		return 0, false
	}
	if m.Temp != nil {
		return *m.Temp, true
	}
	return ParseTemperature(m.RawOb)
}

// QNH returns the altimeter setting in hPa, preferring the decoded field
func (m *METARResponse) QNH() (float64, bool) {
	if m == nil {
		return 0, false
	}
	if m.Altimeter != nil {
		return *m.Altimeter, true
	}
	return ParseQNH(m.RawOb)
}
