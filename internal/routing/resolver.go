package routing

import (
	"context"
	"errors"
	"time"
)

// Resolution outcomes reported to a Recorder.
const (
	OutcomeProvider     = "provider"
	OutcomeBypass       = "bypass"
	OutcomeUnavailable  = "unavailable"
	OutcomeStraightLine = "straight_line"
)

// Recorder receives one observation per resolution attempt. profile is empty
// for bypassed transport types.
type Recorder interface {
	ObserveResolution(profile, outcome string, elapsed time.Duration)
}

// Resolver implements Router. It holds no mutable state and is safe for
// concurrent use.
type Resolver struct {
	client   DirectionsClient
	recorder Recorder
	logger   Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRecorder reports every resolution to rec.
func WithRecorder(rec Recorder) ResolverOption {
	return func(r *Resolver) { r.recorder = rec }
}

// WithLogger sets a printf-style logger. If not set, the resolver is silent.
func WithLogger(l Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver backed by client.
func NewResolver(client DirectionsClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolveRoute returns the provider route for req, or the straight line when
// the transport type is never routed. It does not fall back on provider
// failure: such errors match ErrRoutingUnavailable and the caller decides
// how to degrade.
func (r *Resolver) ResolveRoute(ctx context.Context, req RoutingRequest) (*RouteResult, error) {
	start := time.Now()

	if StraightLineOnly(req.TransportType) {
		r.logf("routing: %q uses straight line", req.TransportType)
		r.observe("", OutcomeBypass, start)
		return StraightLine(req.StartLng, req.StartLat, req.EndLng, req.EndLat), nil
	}

	profile := ProfileFor(req.TransportType)
	res, err := r.client.Directions(ctx, profile,
		[]float64{req.StartLng, req.StartLat},
		[]float64{req.EndLng, req.EndLat},
	)
	if err != nil {
		r.observe(string(profile), OutcomeUnavailable, start)
		var rerr *RoutingError
		if !errors.As(err, &rerr) {
			err = &RoutingError{Profile: profile, Err: err}
		}
		return nil, err
	}

	r.logf("routing: %s route resolved: %d m", profile, res.DistanceM)
	r.observe(string(profile), OutcomeProvider, start)
	return res, nil
}

// StraightLine is the fallback a caller substitutes after ResolveRoute fails.
// It is recorded so degraded resolutions show up in metrics.
func (r *Resolver) StraightLine(req RoutingRequest) *RouteResult {
	r.observe(string(ProfileFor(req.TransportType)), OutcomeStraightLine, time.Now())
	return StraightLine(req.StartLng, req.StartLat, req.EndLng, req.EndLat)
}

func (r *Resolver) observe(profile, outcome string, start time.Time) {
	if r.recorder != nil {
		r.recorder.ObserveResolution(profile, outcome, time.Since(start))
	}
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger(format, args...)
	}
}
