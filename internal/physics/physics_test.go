package physics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceNM(t *testing.T) {
	// EGLL to EGKK is roughly 22 NM
	d := DistanceNM(51.4706, -0.461941, 51.148102, -0.190278)
	assert.InDelta(t, 21.8, d, 0.5)

	assert.Zero(t, DistanceNM(10, 10, 10, 10))
}

func TestMetersToNM(t *testing.T) {
	assert.InDelta(t, 1.0, MetersToNM(1852), 1e-9)
}

func TestInitialBearing(t *testing.T) {
	assert.InDelta(t, 90, InitialBearing(0, 0, 0, 1), 1e-6)
	assert.InDelta(t, 0, InitialBearing(0, 0, 1, 0), 1e-6)
	assert.InDelta(t, 270, InitialBearing(0, 0, 0, -1), 1e-6)
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	lat, lon := DestinationPoint(51.47, -0.46, 45, 100)
	assert.InDelta(t, 100, DistanceNM(51.47, -0.46, lat, lon), 0.01)
	assert.InDelta(t, 45, InitialBearing(51.47, -0.46, lat, lon), 0.01)
}

func TestGreatCirclePoints(t *testing.T) {
	points := GreatCirclePoints(51.47, -0.46, 48.35, 11.78, 50)
	require.GreaterOrEqual(t, len(points), 3)

	assert.InDelta(t, 51.47, points[0].Lat, 1e-6)
	assert.InDelta(t, 11.78, points[len(points)-1].Lon, 1e-6)
	for i := 1; i < len(points); i++ {
		step := DistanceNM(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		assert.LessOrEqual(t, step, 50.0+1e-6)
	}
}

func TestGreatCirclePoints_SegmentCap(t *testing.T) {
	points := GreatCirclePoints(51.47, -0.45, 40.64, -73.78, 1e-9)
	assert.Len(t, points, MaxPathSegments+1)
	assert.InDelta(t, 40.64, points[len(points)-1].Lat, 1e-6)
}

func TestGreatCirclePoints_SamePoint(t *testing.T) {
	points := GreatCirclePoints(10, 10, 10, 10, 25)
	assert.Len(t, points, 2)
}

func TestDensityAltitude(t *testing.T) {
	// ISA conditions: density altitude equals pressure altitude
	assert.InDelta(t, 0, CalculateDensityAltitude(0, 15), 1e-6)
	// Hot day raises density altitude
	assert.Greater(t, CalculateDensityAltitude(1000, 35), 1000.0)
}

func TestPressureAltitude(t *testing.T) {
	assert.InDelta(t, 500, PressureAltitude(500, 1013.25), 1e-9)
	assert.InDelta(t, 770, PressureAltitude(500, 1003.25), 1e-9)
}

func TestMagneticVariation(t *testing.T) {
	v := CalculateMagneticVariation(51.47, -0.46, 83, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	// London declination is close to zero, a couple of degrees at most
	assert.InDelta(t, 0, v, 5)
}
