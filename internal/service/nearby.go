package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/mmcloughlin/geohash"
)

// Nearby search limits, in meters.
const (
	DefaultNearbyRadiusM = 5000
	MaxNearbyRadiusM     = 50000
)

// NearbySegment is a segment whose start lies within the search radius.
type NearbySegment struct {
	storage.Segment
	DistanceM int // from the search center to the segment start
}

// FindNearby returns segments of published trips starting within radiusM of
// (lat, lng), closest first. Candidates come from the geohash cell containing
// the center and its eight neighbors, then are filtered by haversine distance.
func (s *SegmentService) FindNearby(ctx context.Context, lat, lng float64, radiusM int) ([]NearbySegment, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusM <= 0 || radiusM > MaxNearbyRadiusM {
		return nil, &ValidationError{Field: "radius", Message: fmt.Sprintf("must be between 1 and %d", MaxNearbyRadiusM)}
	}

	cells := searchCells(lat, lng, radiusM)
	candidates, err := s.segments.FindSegmentsByGeohash(ctx, cells)
	if err != nil {
		return nil, fmt.Errorf("service: FindNearby: %w", err)
	}

	out := make([]NearbySegment, 0, len(candidates))
	for _, seg := range candidates {
		d := routing.HaversineMeters(lat, lng, seg.StartLat, seg.StartLng)
		if d <= radiusM {
			out = append(out, NearbySegment{Segment: seg, DistanceM: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}

// searchCells returns the cell containing the center and its neighbors at
// the finest precision whose cells span at least radiusM, so the 3x3 block
// covers the search circle. When no precision fits (close to the poles) it
// returns a single empty prefix, which matches every cell.
func searchCells(lat, lng float64, radiusM int) []string {
	p, ok := nearbyPrecision(lat, radiusM)
	if !ok {
		return []string{""}
	}
	center := geohash.EncodeWithPrecision(lat, lng, p)
	return append([]string{center}, geohash.Neighbors(center)...)
}

// maxNearbyPrecision caps the search at ~0.6 km cells.
const maxNearbyPrecision = 6

// metersPerDegree is the length of one degree of latitude on the mean sphere.
const metersPerDegree = 2 * math.Pi * 6_371_000.0 / 360

// nearbyPrecision picks the longest geohash whose cells are at least radiusM
// tall and wide. Width shrinks with cos(latitude), so it is measured at the
// circle's poleward edge.
func nearbyPrecision(lat float64, radiusM int) (uint, bool) {
	r := float64(radiusM)
	edgeLat := math.Min(math.Abs(lat)+r/metersPerDegree, 90)
	shrink := math.Cos(edgeLat * math.Pi / 180)

	for p := uint(maxNearbyPrecision); p >= 1; p-- {
		lngBits := (5*p + 1) / 2
		latBits := 5 * p / 2
		heightM := 180 / math.Exp2(float64(latBits)) * metersPerDegree
		widthM := 360 / math.Exp2(float64(lngBits)) * metersPerDegree * shrink
		if heightM >= r && widthM >= r {
			return p, true
		}
	}
	return 0, false
}
