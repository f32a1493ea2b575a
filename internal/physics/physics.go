package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	T0          = 288.15 // Standard Sea Level Temperature (K)
	P0          = 1013.25
	L           = 0.0065 // Temperature Lapse Rate (K/m) in Troposphere
	ZeroCelsius = 273.15
	FeetToM     = 0.3048

	TropopauseAltFt   = 36089.2
	StratosphereTempK = 216.65

	EarthRadiusM  = 6371000.0
	EarthRadiusNM = 3440.065 // 6371 km / 1.852 km/nm
	MetersPerNM   = 1852.0

	// Pressure altitude changes by roughly 27 ft per hPa near sea level
	FeetPerHPa = 27.0
)

// Point is a geographic position in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// ------------------------------------------------------------------------------------------------
// NAVIGATION
// ------------------------------------------------------------------------------------------------

// Haversine returns the great-circle distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// MetersToNM converts meters to nautical miles
func MetersToNM(m float64) float64 {
	return m / MetersPerNM
}

// DistanceNM returns the great-circle distance between two points in nautical miles
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	return MetersToNM(Haversine(lat1, lon1, lat2, lon2))
}

// InitialBearing calculates the initial true bearing from point 1 to point 2
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1, lon1, lat2, lon2 = toRad(lat1), toRad(lon1), toRad(lat2), toRad(lon2)

	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	bearing := toDeg(math.Atan2(y, x))

	// Normalize to 0-360
	return math.Mod(math.Mod(bearing, 360)+360, 360)
}

// DestinationPoint returns the point reached from (lat, lon) after travelling
// distanceNM along the given initial true bearing
func DestinationPoint(lat, lon, bearing, distanceNM float64) (float64, float64) {
	lat, lon, bearing = toRad(lat), toRad(lon), toRad(bearing)

	distRatio := distanceNM / EarthRadiusNM
	lat2 := math.Asin(math.Sin(lat)*math.Cos(distRatio) + math.Cos(lat)*math.Sin(distRatio)*math.Cos(bearing))
	lon2 := lon + math.Atan2(
		math.Sin(bearing)*math.Sin(distRatio)*math.Cos(lat),
		math.Cos(distRatio)-math.Sin(lat)*math.Sin(lat2),
	)

	lon2deg := math.Mod(toDeg(lon2)+540, 360) - 180
	return toDeg(lat2), lon2deg
}

// MaxPathSegments bounds the number of segments GreatCirclePoints produces
const MaxPathSegments = 10000

// GreatCirclePoints samples the great-circle path between two points so that
// consecutive samples are at most stepNM apart. Both endpoints are included.
// When that would need more than MaxPathSegments segments the step is widened
// to total/MaxPathSegments.
func GreatCirclePoints(lat1, lon1, lat2, lon2, stepNM float64) []Point {
	total := DistanceNM(lat1, lon1, lat2, lon2)
	if total == 0 || !(stepNM > 0) {
		return []Point{{Lat: lat1, Lon: lon1}, {Lat: lat2, Lon: lon2}}
	}

	segments := MaxPathSegments
	if n := math.Ceil(total / stepNM); n < MaxPathSegments {
		segments = int(n)
	}
	points := make([]Point, 0, segments+1)

	rlat1, rlon1, rlat2, rlon2 := toRad(lat1), toRad(lon1), toRad(lat2), toRad(lon2)
	delta := total / EarthRadiusNM

	for i := 0; i <= segments; i++ {
		f := float64(i) / float64(segments)
		a := math.Sin((1-f)*delta) / math.Sin(delta)
		b := math.Sin(f*delta) / math.Sin(delta)
		x := a*math.Cos(rlat1)*math.Cos(rlon1) + b*math.Cos(rlat2)*math.Cos(rlon2)
		y := a*math.Cos(rlat1)*math.Sin(rlon1) + b*math.Cos(rlat2)*math.Sin(rlon2)
		z := a*math.Sin(rlat1) + b*math.Sin(rlat2)
		points = append(points, Point{
			Lat: toDeg(math.Atan2(z, math.Sqrt(x*x+y*y))),
			Lon: toDeg(math.Atan2(y, x)),
		})
	}
	return points
}

// ------------------------------------------------------------------------------------------------
// ATMOSPHERE
// ------------------------------------------------------------------------------------------------

// PressureAltitude returns pressure altitude in feet for a field elevation and QNH (hPa)
func PressureAltitude(elevationFt, qnhHPa float64) float64 {
	return elevationFt + (P0-qnhHPa)*FeetPerHPa
}

// CalculateDensityAltitude returns density altitude in feet
func CalculateDensityAltitude(pressureAltFt float64, tempCelsius float64) float64 {
	// ISA Temp at pressure altitude
	isaTempK := T0 - (L * (pressureAltFt * FeetToM))
	if pressureAltFt > TropopauseAltFt {
		isaTempK = StratosphereTempK
	}
	isaTempC := isaTempK - ZeroCelsius

	// DA = PA + 120 * (OAT - ISA_Temp)
	return pressureAltFt + 120*(tempCelsius-isaTempC)
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}

	return mag.D()
}
