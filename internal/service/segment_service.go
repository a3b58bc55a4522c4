package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/mmcloughlin/geohash"
)

// Sentinel errors for segment and trip operations.
var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrForbidden       = errors.New("forbidden")
)

// persistTimeout bounds the write that follows route resolution. The write
// does not inherit the request deadline, which the provider call may have
// used up.
const persistTimeout = 5 * time.Second

// startGeohashPrecision is the length of the geohash stored for each
// segment's start point (~5 m cells).
const startGeohashPrecision = 9

// Logger is a printf-style logging function.
type Logger func(format string, args ...any)

var defaultLogger Logger = log.Printf

// SegmentInput carries the fields of a new segment.
type SegmentInput struct {
	TripID        int32
	StartLat      float64
	StartLng      float64
	EndLat        float64
	EndLng        float64
	StartName     string
	EndName       string
	TransportType routing.TransportType // empty means hitchhiking
	StartTime     *time.Time
	EndTime       *time.Time
	Description   string
	PhotoURL      string
	SegmentOrder  int32
}

// SegmentUpdate is a partial update. Nil fields are left unchanged.
type SegmentUpdate struct {
	StartLat      *float64
	StartLng      *float64
	EndLat        *float64
	EndLng        *float64
	StartName     *string
	EndName       *string
	TransportType *routing.TransportType
	StartTime     *time.Time
	EndTime       *time.Time
	Description   *string
	PhotoURL      *string
	SegmentOrder  *int32

	// RegenerateRoute forces a new route even when no routing input changed.
	RegenerateRoute bool
}

// SegmentService owns the segment lifecycle, including when and how a
// segment's route is resolved.
type SegmentService struct {
	segments storage.SegmentsRepository
	trips    storage.TripsRepository
	router   routing.Router
	logger   Logger
}

// SegmentServiceOption configures a SegmentService.
type SegmentServiceOption func(*SegmentService)

// WithLogger replaces the default log.Printf logger.
func WithLogger(l Logger) SegmentServiceOption {
	return func(s *SegmentService) { s.logger = l }
}

// NewSegmentService creates a SegmentService.
func NewSegmentService(
	segments storage.SegmentsRepository,
	trips storage.TripsRepository,
	router routing.Router,
	opts ...SegmentServiceOption,
) *SegmentService {
	s := &SegmentService{
		segments: segments,
		trips:    trips,
		router:   router,
		logger:   defaultLogger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetSegment returns a segment by ID, or ErrSegmentNotFound.
func (s *SegmentService) GetSegment(ctx context.Context, id int32) (*storage.Segment, error) {
	seg, err := s.segments.GetSegment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: GetSegment: %w", err)
	}
	if seg == nil {
		return nil, ErrSegmentNotFound
	}
	return seg, nil
}

// ListTripSegments returns the segments of a trip visible to viewer.
func (s *SegmentService) ListTripSegments(ctx context.Context, viewer *Actor, tripID int32) ([]storage.Segment, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service: ListTripSegments: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if !CanViewTrip(trip, viewer) {
		return nil, ErrForbidden
	}

	segs, err := s.segments.ListSegmentsByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service: ListTripSegments: %w", err)
	}
	return segs, nil
}

// CreateSegment stores a new segment with a freshly resolved route. When the
// provider is unavailable the segment gets a straight line instead, so
// creation never fails because of routing.
func (s *SegmentService) CreateSegment(ctx context.Context, actor *Actor, in SegmentInput) (*storage.Segment, error) {
	if in.TransportType == "" {
		in.TransportType = routing.Hitchhiking
	}
	if !in.TransportType.Valid() {
		return nil, &ValidationError{Field: "transport_type", Message: fmt.Sprintf("unsupported value %q", in.TransportType)}
	}
	if err := validateEndpoints(in.StartLat, in.StartLng, in.EndLat, in.EndLng); err != nil {
		return nil, err
	}

	if _, err := s.authorize(ctx, actor, in.TripID); err != nil {
		return nil, err
	}

	req := routing.RoutingRequest{
		StartLng: in.StartLng, StartLat: in.StartLat,
		EndLng: in.EndLng, EndLat: in.EndLat,
		TransportType: in.TransportType,
	}
	route := s.resolveOrStraightLine(ctx, req)

	geometry, err := json.Marshal(route.Geometry)
	if err != nil {
		return nil, fmt.Errorf("service: CreateSegment: encode geometry: %w", err)
	}

	seg := &storage.Segment{
		TripID:        in.TripID,
		StartLat:      in.StartLat,
		StartLng:      in.StartLng,
		EndLat:        in.EndLat,
		EndLng:        in.EndLng,
		StartName:     in.StartName,
		EndName:       in.EndName,
		RouteGeometry: string(geometry),
		Distance:      route.DistanceM,
		TransportType: string(in.TransportType),
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Description:   in.Description,
		PhotoURL:      in.PhotoURL,
		SegmentOrder:  in.SegmentOrder,
		StartGeohash:  geohash.EncodeWithPrecision(in.StartLat, in.StartLng, startGeohashPrecision),
	}

	wctx, cancel := persistContext(ctx)
	defer cancel()

	created, err := s.segments.CreateSegment(wctx, seg)
	if err != nil {
		return nil, fmt.Errorf("service: CreateSegment: %w", err)
	}
	return created, nil
}

// UpdateSegment applies a partial update. The route is regenerated only when
// ShouldRegenerate says so; if the provider then fails, the previously stored
// route is kept and the update still succeeds.
func (s *SegmentService) UpdateSegment(ctx context.Context, actor *Actor, id int32, upd SegmentUpdate) (*storage.Segment, error) {
	stored, err := s.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, stored.TripID); err != nil {
		return nil, err
	}

	merged := applyUpdate(*stored, upd)
	if !routing.TransportType(merged.TransportType).Valid() {
		return nil, &ValidationError{Field: "transport_type", Message: fmt.Sprintf("unsupported value %q", merged.TransportType)}
	}
	if err := validateEndpoints(merged.StartLat, merged.StartLng, merged.EndLat, merged.EndLng); err != nil {
		return nil, err
	}

	if ShouldRegenerate(upd, stored) {
		req := routing.RoutingRequest{
			StartLng: merged.StartLng, StartLat: merged.StartLat,
			EndLng: merged.EndLng, EndLat: merged.EndLat,
			TransportType: routing.TransportType(merged.TransportType),
		}
		route, err := s.router.ResolveRoute(ctx, req)
		if err != nil {
			s.logger("service: segment %d: keeping previous route: %s", id, routeFailure(err))
		} else {
			geometry, err := json.Marshal(route.Geometry)
			if err != nil {
				return nil, fmt.Errorf("service: UpdateSegment: encode geometry: %w", err)
			}
			merged.RouteGeometry = string(geometry)
			merged.Distance = route.DistanceM
		}
	}
	merged.StartGeohash = geohash.EncodeWithPrecision(merged.StartLat, merged.StartLng, startGeohashPrecision)

	wctx, cancel := persistContext(ctx)
	defer cancel()

	if err := s.segments.UpdateSegment(wctx, &merged); err != nil {
		return nil, fmt.Errorf("service: UpdateSegment: %w", err)
	}
	return &merged, nil
}

// DeleteSegment removes a segment owned by actor.
func (s *SegmentService) DeleteSegment(ctx context.Context, actor *Actor, id int32) error {
	stored, err := s.GetSegment(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, actor, stored.TripID); err != nil {
		return err
	}

	deleted, err := s.segments.DeleteSegment(ctx, id)
	if err != nil {
		return fmt.Errorf("service: DeleteSegment: %w", err)
	}
	if !deleted {
		return ErrSegmentNotFound
	}
	return nil
}

// SetPhoto records the URL of an uploaded photo on a segment owned by actor.
func (s *SegmentService) SetPhoto(ctx context.Context, actor *Actor, id int32, photoURL string) error {
	stored, err := s.GetSegment(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, actor, stored.TripID); err != nil {
		return err
	}
	if err := s.segments.SetSegmentPhoto(ctx, id, photoURL); err != nil {
		return fmt.Errorf("service: SetPhoto: %w", err)
	}
	return nil
}

// PreviewRoute returns the route a segment with these endpoints would get on
// creation, without storing anything.
func (s *SegmentService) PreviewRoute(ctx context.Context, req routing.RoutingRequest) (*routing.RouteResult, error) {
	if req.TransportType == "" {
		req.TransportType = routing.Hitchhiking
	}
	if err := validateEndpoints(req.StartLat, req.StartLng, req.EndLat, req.EndLng); err != nil {
		return nil, err
	}
	return s.resolveOrStraightLine(ctx, req), nil
}

// ShouldRegenerate reports whether an update requires a new route: it is
// forced, or it supplies a coordinate or transport type that differs from
// the stored segment.
func ShouldRegenerate(upd SegmentUpdate, stored *storage.Segment) bool {
	if upd.RegenerateRoute {
		return true
	}
	changed := func(v *float64, old float64) bool { return v != nil && *v != old }
	if changed(upd.StartLat, stored.StartLat) || changed(upd.StartLng, stored.StartLng) ||
		changed(upd.EndLat, stored.EndLat) || changed(upd.EndLng, stored.EndLng) {
		return true
	}
	return upd.TransportType != nil && string(*upd.TransportType) != stored.TransportType
}

func (s *SegmentService) resolveOrStraightLine(ctx context.Context, req routing.RoutingRequest) *routing.RouteResult {
	route, err := s.router.ResolveRoute(ctx, req)
	if err != nil {
		s.logger("service: falling back to straight line: %s", routeFailure(err))
		return s.router.StraightLine(req)
	}
	return route
}

// persistContext detaches ctx from its cancellation and gives the write its
// own deadline.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// routeFailure summarizes a resolution error for logs without the provider's
// response body.
func routeFailure(err error) string {
	var rerr *routing.RoutingError
	if !errors.As(err, &rerr) {
		return err.Error()
	}
	if rerr.StatusCode != 0 {
		return fmt.Sprintf("profile %s: status %d", rerr.Profile, rerr.StatusCode)
	}
	if rerr.Err != nil {
		return fmt.Sprintf("profile %s: %v", rerr.Profile, rerr.Err)
	}
	return fmt.Sprintf("profile %s: unavailable", rerr.Profile)
}

// authorize loads the trip and checks that actor may manage it.
func (s *SegmentService) authorize(ctx context.Context, actor *Actor, tripID int32) (*storage.Trip, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service: load trip %d: %w", tripID, err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if !CanManageTrip(trip, actor) {
		return nil, ErrForbidden
	}
	return trip, nil
}

func applyUpdate(seg storage.Segment, upd SegmentUpdate) storage.Segment {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setS := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}

	setF(&seg.StartLat, upd.StartLat)
	setF(&seg.StartLng, upd.StartLng)
	setF(&seg.EndLat, upd.EndLat)
	setF(&seg.EndLng, upd.EndLng)
	setS(&seg.StartName, upd.StartName)
	setS(&seg.EndName, upd.EndName)
	setS(&seg.Description, upd.Description)
	setS(&seg.PhotoURL, upd.PhotoURL)
	if upd.TransportType != nil {
		seg.TransportType = string(*upd.TransportType)
	}
	if upd.StartTime != nil {
		seg.StartTime = upd.StartTime
	}
	if upd.EndTime != nil {
		seg.EndTime = upd.EndTime
	}
	if upd.SegmentOrder != nil {
		seg.SegmentOrder = *upd.SegmentOrder
	}
	return seg
}
