package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
)

// --- mock TripsRepository ---

type mockTripsRepo struct {
	trips map[int32]*storage.Trip
	err   error
}

func (m *mockTripsRepo) ListTrips(_ context.Context, publishedOnly bool) ([]storage.Trip, error) {
	var out []storage.Trip
	for _, t := range m.trips {
		if !publishedOnly || t.Status == storage.TripPublished {
			out = append(out, *t)
		}
	}
	return out, m.err
}

func (m *mockTripsRepo) GetTrip(_ context.Context, id int32) (*storage.Trip, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.trips[id], nil
}

func (m *mockTripsRepo) CreateTrip(_ context.Context, t *storage.Trip) (*storage.Trip, error) {
	return t, m.err
}

func (m *mockTripsRepo) UpdateTrip(_ context.Context, _ *storage.Trip) error { return m.err }

func (m *mockTripsRepo) DeleteTrip(_ context.Context, _ int32) (bool, error) { return true, m.err }

// --- mock SegmentsRepository ---

type mockSegmentsRepo struct {
	segments  map[int32]*storage.Segment
	nearby    []storage.Segment
	lastCells []string
	created   *storage.Segment
	updated   *storage.Segment
	photo     string
	nextID    int32
	err       error
}

func newMockSegmentsRepo(segs ...*storage.Segment) *mockSegmentsRepo {
	m := &mockSegmentsRepo{segments: map[int32]*storage.Segment{}, nextID: 100}
	for _, s := range segs {
		m.segments[s.ID] = s
	}
	return m
}

func (m *mockSegmentsRepo) ListSegmentsByTrip(_ context.Context, tripID int32) ([]storage.Segment, error) {
	var out []storage.Segment
	for _, s := range m.segments {
		if s.TripID == tripID {
			out = append(out, *s)
		}
	}
	return out, m.err
}

func (m *mockSegmentsRepo) GetSegment(_ context.Context, id int32) (*storage.Segment, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.segments[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSegmentsRepo) CreateSegment(ctx context.Context, s *storage.Segment) (*storage.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	s.ID = m.nextID
	m.nextID++
	m.created = s
	m.segments[s.ID] = s
	return s, nil
}

func (m *mockSegmentsRepo) UpdateSegment(ctx context.Context, s *storage.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	cp := *s
	m.updated = &cp
	m.segments[s.ID] = &cp
	return nil
}

func (m *mockSegmentsRepo) DeleteSegment(_ context.Context, id int32) (bool, error) {
	if _, ok := m.segments[id]; !ok {
		return false, m.err
	}
	delete(m.segments, id)
	return true, m.err
}

func (m *mockSegmentsRepo) SetSegmentPhoto(_ context.Context, _ int32, url string) error {
	m.photo = url
	return m.err
}

func (m *mockSegmentsRepo) FindSegmentsByGeohash(_ context.Context, cells []string) ([]storage.Segment, error) {
	m.lastCells = cells
	return m.nearby, m.err
}

// --- mock Router ---

// mockRouter returns a canned route or error from ResolveRoute and counts
// calls to both methods.
type mockRouter struct {
	res           *routing.RouteResult
	err           error
	calls         int
	straightCalls int
	lastReq       routing.RoutingRequest
}

func (m *mockRouter) ResolveRoute(_ context.Context, req routing.RoutingRequest) (*routing.RouteResult, error) {
	m.calls++
	m.lastReq = req
	return m.res, m.err
}

func (m *mockRouter) StraightLine(req routing.RoutingRequest) *routing.RouteResult {
	m.straightCalls++
	return routing.StraightLine(req.StartLng, req.StartLat, req.EndLng, req.EndLat)
}

// --- mock DirectionsClient ---

type mockDirections struct {
	res   *routing.RouteResult
	err   error
	calls int
}

func (m *mockDirections) Directions(_ context.Context, _ routing.Profile, _, _ []float64) (*routing.RouteResult, error) {
	m.calls++
	return m.res, m.err
}

// --- mock UsersRepository ---

type mockUsersRepo struct {
	byEmail map[string]*storage.User
	byID    map[int32]*storage.User
	nextID  int32
	err     error
}

func newMockUsersRepo() *mockUsersRepo {
	return &mockUsersRepo{byEmail: map[string]*storage.User{}, byID: map[int32]*storage.User{}, nextID: 1}
}

func (m *mockUsersRepo) CreateUser(_ context.Context, u *storage.User) (*storage.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, storage.ErrDuplicate
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *mockUsersRepo) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	return m.byEmail[email], m.err
}

func (m *mockUsersRepo) GetUserByID(_ context.Context, id int32) (*storage.User, error) {
	return m.byID[id], m.err
}

// --- mock RefreshTokensRepository ---

type mockTokensRepo struct {
	tokens map[string]*storage.RefreshToken
}

func newMockTokensRepo() *mockTokensRepo {
	return &mockTokensRepo{tokens: map[string]*storage.RefreshToken{}}
}

func (m *mockTokensRepo) StoreRefreshToken(_ context.Context, hash string, userID int32, expiresAt time.Time) error {
	m.tokens[hash] = &storage.RefreshToken{TokenHash: hash, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *mockTokensRepo) GetRefreshToken(_ context.Context, hash string) (*storage.RefreshToken, error) {
	t, ok := m.tokens[hash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTokensRepo) RevokeRefreshToken(_ context.Context, hash string) error {
	if t, ok := m.tokens[hash]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *mockTokensRepo) RevokeAllUserTokens(_ context.Context, userID int32) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

// --- helpers ---

var errProviderDown = &routing.RoutingError{Profile: routing.ProfileDriving, StatusCode: 503, Body: "down"}

// captureLogger collects formatted log lines.
type captureLogger struct {
	lines []string
}

func (c *captureLogger) logf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

var errDB = errors.New("db error")

func ptr[T any](v T) *T { return &v }
