package handler

import (
	"context"
	"sort"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type mockTripsRepo struct {
	trips         map[int32]*storage.Trip
	lastPublished bool
	nextID        int32
}

func (m *mockTripsRepo) ListTrips(_ context.Context, publishedOnly bool) ([]storage.Trip, error) {
	m.lastPublished = publishedOnly
	var out []storage.Trip
	for _, t := range m.trips {
		if !publishedOnly || t.Status == storage.TripPublished {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockTripsRepo) GetTrip(_ context.Context, id int32) (*storage.Trip, error) {
	t, ok := m.trips[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTripsRepo) CreateTrip(_ context.Context, t *storage.Trip) (*storage.Trip, error) {
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	m.trips[t.ID] = t
	return t, nil
}

func (m *mockTripsRepo) UpdateTrip(_ context.Context, t *storage.Trip) error {
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *mockTripsRepo) DeleteTrip(_ context.Context, id int32) (bool, error) {
	if _, ok := m.trips[id]; !ok {
		return false, nil
	}
	delete(m.trips, id)
	return true, nil
}

type mockSegmentsRepo struct {
	segments map[int32]*storage.Segment
	updated  *storage.Segment
	photo    string
	nextID   int32
}

func (m *mockSegmentsRepo) ListSegmentsByTrip(_ context.Context, tripID int32) ([]storage.Segment, error) {
	var out []storage.Segment
	for _, s := range m.segments {
		if s.TripID == tripID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentOrder < out[j].SegmentOrder })
	return out, nil
}

func (m *mockSegmentsRepo) GetSegment(_ context.Context, id int32) (*storage.Segment, error) {
	s, ok := m.segments[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSegmentsRepo) CreateSegment(_ context.Context, s *storage.Segment) (*storage.Segment, error) {
	m.nextID++
	s.ID = m.nextID
	m.segments[s.ID] = s
	return s, nil
}

func (m *mockSegmentsRepo) UpdateSegment(_ context.Context, s *storage.Segment) error {
	cp := *s
	m.updated = &cp
	m.segments[s.ID] = &cp
	return nil
}

func (m *mockSegmentsRepo) DeleteSegment(_ context.Context, id int32) (bool, error) {
	if _, ok := m.segments[id]; !ok {
		return false, nil
	}
	delete(m.segments, id)
	return true, nil
}

func (m *mockSegmentsRepo) SetSegmentPhoto(_ context.Context, _ int32, url string) error {
	m.photo = url
	return nil
}

func (m *mockSegmentsRepo) FindSegmentsByGeohash(_ context.Context, _ []string) ([]storage.Segment, error) {
	var out []storage.Segment
	for _, s := range m.segments {
		out = append(out, *s)
	}
	return out, nil
}

type mockCommentsRepo struct {
	comments map[int32]*storage.Comment
	nextID   int32
}

func (m *mockCommentsRepo) ListCommentsBySegment(_ context.Context, segmentID int32) ([]storage.Comment, error) {
	var out []storage.Comment
	for _, c := range m.comments {
		if c.SegmentID == segmentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockCommentsRepo) GetComment(_ context.Context, id int32) (*storage.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCommentsRepo) CreateComment(_ context.Context, c *storage.Comment) (*storage.Comment, error) {
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	m.comments[c.ID] = c
	return c, nil
}

func (m *mockCommentsRepo) DeleteComment(_ context.Context, id int32) (bool, error) {
	if _, ok := m.comments[id]; !ok {
		return false, nil
	}
	delete(m.comments, id)
	return true, nil
}

type mockSuggestionsRepo struct {
	suggestions map[int32]*storage.Suggestion
	byOwner     int
	byUser      int
	nextID      int32
}

func (m *mockSuggestionsRepo) ListSuggestionsByTripOwner(_ context.Context, ownerID int32) ([]storage.Suggestion, error) {
	m.byOwner++
	var out []storage.Suggestion
	for _, s := range m.suggestions {
		if s.TripOwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSuggestionsRepo) ListSuggestionsByUser(_ context.Context, userID int32) ([]storage.Suggestion, error) {
	m.byUser++
	var out []storage.Suggestion
	for _, s := range m.suggestions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSuggestionsRepo) GetSuggestion(_ context.Context, id int32) (*storage.Suggestion, error) {
	s, ok := m.suggestions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSuggestionsRepo) CreateSuggestion(_ context.Context, s *storage.Suggestion) (*storage.Suggestion, error) {
	m.nextID++
	s.ID = m.nextID
	m.suggestions[s.ID] = s
	return s, nil
}

func (m *mockSuggestionsRepo) UpdateSuggestionStatus(_ context.Context, id int32, status string) error {
	if s, ok := m.suggestions[id]; ok {
		s.Status = status
	}
	return nil
}

func (m *mockSuggestionsRepo) DeleteSuggestion(_ context.Context, id int32) (bool, error) {
	if _, ok := m.suggestions[id]; !ok {
		return false, nil
	}
	delete(m.suggestions, id)
	return true, nil
}

type mockUsersRepo struct {
	byEmail map[string]*storage.User
	byID    map[int32]*storage.User
}

func (m *mockUsersRepo) CreateUser(_ context.Context, u *storage.User) (*storage.User, error) {
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, storage.ErrDuplicate
	}
	u.ID = int32(len(m.byID) + 1)
	u.CreatedAt = time.Now()
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *mockUsersRepo) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUsersRepo) GetUserByID(_ context.Context, id int32) (*storage.User, error) {
	return m.byID[id], nil
}

type mockTokensRepo struct {
	tokens map[string]*storage.RefreshToken
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

// mockRouter returns res or err from ResolveRoute and counts calls.
type mockRouter struct {
	res   *routing.RouteResult
	err   error
	calls int
}

func (m *mockRouter) ResolveRoute(_ context.Context, _ routing.RoutingRequest) (*routing.RouteResult, error) {
	m.calls++
	return m.res, m.err
}

func (m *mockRouter) StraightLine(req routing.RoutingRequest) *routing.RouteResult {
	return routing.StraightLine(req.StartLng, req.StartLat, req.EndLng, req.EndLat)
}
