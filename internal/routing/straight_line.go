package routing

import "math"

// earthRadiusM is the mean Earth radius used for great-circle distances.
const earthRadiusM = 6_371_000.0

// StraightLine returns a two-point route joining the endpoints directly.
// Its distance is the haversine distance and it carries no duration.
func StraightLine(startLng, startLat, endLng, endLat float64) *RouteResult {
	return &RouteResult{
		Geometry: NewLineString(
			[]float64{startLng, startLat},
			[]float64{endLng, endLat},
		),
		DistanceM: HaversineMeters(startLat, startLng, endLat, endLng),
		DurationS: nil,
		Source:    SourceStraightLine,
	}
}

// HaversineMeters computes the great-circle distance in whole meters between
// two WGS84 points given in degrees.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) int {
	const deg2rad = math.Pi / 180.0

	dLat := (lat2 - lat1) * deg2rad
	dLon := (lon2 - lon1) * deg2rad
	lat1r := lat1 * deg2rad
	lat2r := lat2 * deg2rad

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	a := sinDLat*sinDLat + math.Cos(lat1r)*math.Cos(lat2r)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(math.Round(earthRadiusM * c))
}
