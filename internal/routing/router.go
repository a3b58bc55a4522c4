// Package routing resolves the drawable route of a trip segment: a GeoJSON
// LineString plus its length, either from OpenRouteService or from a
// straight-line great-circle estimate.
package routing

import (
	"context"
	"errors"
	"fmt"
)

// TransportType is how a segment was travelled.
type TransportType string

const (
	Hitchhiking TransportType = "hitchhiking"
	Car         TransportType = "car"
	Train       TransportType = "train"
	Bus         TransportType = "bus"
	Ferry       TransportType = "ferry"
	Walk        TransportType = "walk"
	Bike        TransportType = "bike"
	Other       TransportType = "other"
)

// TransportTypes lists the values a segment may be stored with.
// Car is accepted by ProfileFor but is not a storable segment type.
var TransportTypes = []TransportType{Hitchhiking, Train, Bus, Ferry, Walk, Bike, Other}

// Valid reports whether t is one of TransportTypes.
func (t TransportType) Valid() bool {
	for _, v := range TransportTypes {
		if t == v {
			return true
		}
	}
	return false
}

// RoutingRequest holds the two endpoints of a segment and its transport type.
type RoutingRequest struct {
	StartLng      float64
	StartLat      float64
	EndLng        float64
	EndLat        float64
	TransportType TransportType
}

// LineString is a GeoJSON LineString. Positions are [lng, lat] and may carry
// a third (elevation) element when the provider returns one.
type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// NewLineString builds a LineString from the given positions.
func NewLineString(coords ...[]float64) LineString {
	return LineString{Type: "LineString", Coordinates: coords}
}

// Source identifies where a RouteResult came from.
type Source string

const (
	SourceProvider     Source = "provider"
	SourceStraightLine Source = "straight_line"
)

// RouteResult is the route stored on a segment.
type RouteResult struct {
	Geometry  LineString
	DistanceM int
	// DurationS is nil for straight-line results; the fallback never
	// estimates travel time.
	DurationS *float64

	// Source is for logging and metrics only and is never persisted.
	Source Source
}

// ErrRoutingUnavailable is matched (errors.Is) by every failure of the
// directions provider.
var ErrRoutingUnavailable = errors.New("routing unavailable")

// RoutingError describes why the provider could not produce a route.
type RoutingError struct {
	Profile    Profile
	StatusCode int    // 0 when no HTTP response was received
	Body       string // provider response body, if any
	Err        error
}

func (e *RoutingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("routing: ors: %s: status %d: %s", e.Profile, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("routing: ors: %s: %v", e.Profile, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// Is makes every RoutingError match ErrRoutingUnavailable.
func (e *RoutingError) Is(target error) bool { return target == ErrRoutingUnavailable }

// DirectionsClient fetches a route for two [lng, lat] positions from an
// external provider using the given profile.
type DirectionsClient interface {
	Directions(ctx context.Context, profile Profile, start, end []float64) (*RouteResult, error)
}

// Router resolves a route for a segment.
type Router interface {
	// ResolveRoute returns a provider route, or an error matching
	// ErrRoutingUnavailable.
	ResolveRoute(ctx context.Context, req RoutingRequest) (*RouteResult, error)

	// StraightLine returns the fallback route for req. It never fails.
	StraightLine(req RoutingRequest) *RouteResult
}

// Logger is a printf-style logging function.
type Logger func(format string, args ...any)
