package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/middleware"
	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	// Suppress gin debug output in tests.
	gin.SetMode(gin.TestMode)
}

const (
	ownerID    = 7 // admin owning trips 1 and 2
	otherAdmin = 8
	userID     = 20
	strangerID = 21

	storedGeometry = `{"type":"LineString","coordinates":[[2.35,48.85],[4.83,45.76]]}`
)

// testEnv wires real handlers and services to in-memory repositories.
type testEnv struct {
	trips       *mockTripsRepo
	segments    *mockSegmentsRepo
	comments    *mockCommentsRepo
	suggestions *mockSuggestionsRepo
	router      *mockRouter
	uploadDir   string
	engine      *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dur := 3600.0
	env := &testEnv{
		trips: &mockTripsRepo{nextID: 100, trips: map[int32]*storage.Trip{
			1: {ID: 1, UserID: ownerID, Username: "owner", Title: "Paris to Lyon", Status: storage.TripPublished},
			2: {ID: 2, UserID: ownerID, Username: "owner", Title: "Secret draft", Status: storage.TripDraft},
		}},
		segments: &mockSegmentsRepo{nextID: 100, segments: map[int32]*storage.Segment{
			10: {
				ID: 10, TripID: 1,
				StartLat: 48.85, StartLng: 2.35, EndLat: 45.76, EndLng: 4.83,
				RouteGeometry: storedGeometry, Distance: 391000,
				TransportType: string(routing.Hitchhiking),
			},
		}},
		comments: &mockCommentsRepo{nextID: 100, comments: map[int32]*storage.Comment{
			50: {ID: 50, SegmentID: 10, UserID: userID, Username: "ana", Content: "waited 10 min"},
		}},
		suggestions: &mockSuggestionsRepo{nextID: 100, suggestions: map[int32]*storage.Suggestion{
			60: {ID: 60, UserID: userID, TripID: 1, TripOwnerID: ownerID, Title: "Typo", Content: "Lyon", Status: storage.SuggestionPending},
		}},
		router: &mockRouter{res: &routing.RouteResult{
			Geometry:  routing.NewLineString([]float64{2.35, 48.85}, []float64{3.5, 47}, []float64{4.83, 45.76}),
			DistanceM: 465000,
			DurationS: &dur,
			Source:    routing.SourceProvider,
		}},
		uploadDir: t.TempDir(),
	}

	users := &mockUsersRepo{byEmail: map[string]*storage.User{}, byID: map[int32]*storage.User{}}
	tokens := &mockTokensRepo{tokens: map[string]*storage.RefreshToken{}}
	authSvc := service.NewAuthService(users, tokens, "test-secret", 15*time.Minute, time.Hour)
	segSvc := service.NewSegmentService(env.segments, env.trips, env.router,
		service.WithLogger(func(string, ...any) {}))
	uploads := NewUploadHandler(env.uploadDir)

	env.engine = gin.New()
	RegisterRoutes(env.engine.Group("/api/v1"), Handlers{
		Auth:        NewAuthHandler(authSvc),
		Trips:       NewTripHandler(env.trips),
		Segments:    NewSegmentHandler(segSvc, uploads),
		Comments:    NewCommentHandler(env.comments, segSvc),
		Suggestions: NewSuggestionHandler(env.suggestions, env.trips),
		Uploads:     uploads,
	}, fakeAuth(true), fakeAuth(false))
	return env
}

// fakeAuth authenticates from an "X-Test-User: <id>:<role>" header.
func fakeAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Test-User")
		if raw == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			c.Next()
			return
		}
		parts := strings.SplitN(raw, ":", 2)
		id, _ := strconv.Atoi(parts[0])
		c.Set(middleware.ContextKeyUserID, int32(id))
		c.Set(middleware.ContextKeyUsername, "user"+parts[0])
		c.Set(middleware.ContextKeyRole, parts[1])
		c.Next()
	}
}

func asAdmin(id int) string { return strconv.Itoa(id) + ":" + storage.RoleAdmin }
func asUser(id int) string  { return strconv.Itoa(id) + ":" + storage.RoleUser }

func (e *testEnv) do(method, path, body, user string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

// ---------------------------------------------------------------------------
// Trips
// ---------------------------------------------------------------------------

func TestListTrips_Visibility(t *testing.T) {
	for _, tc := range []struct {
		name          string
		user          string
		wantPublished bool
		wantCount     float64
	}{
		{"anonymous", "", true, 1},
		{"user", asUser(userID), true, 1},
		{"admin", asAdmin(otherAdmin), false, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodGet, "/api/v1/trips", "", tc.user)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if env.trips.lastPublished != tc.wantPublished {
				t.Errorf("publishedOnly = %v, want %v", env.trips.lastPublished, tc.wantPublished)
			}
			if got := decode(t, w)["count"]; got != tc.wantCount {
				t.Errorf("count = %v, want %v", got, tc.wantCount)
			}
		})
	}
}

func TestGetTrip_Draft(t *testing.T) {
	for _, tc := range []struct {
		name string
		user string
		want int
	}{
		{"anonymous", "", http.StatusForbidden},
		{"other user", asUser(userID), http.StatusForbidden},
		{"owner", asAdmin(ownerID), http.StatusOK},
		{"other admin", asAdmin(otherAdmin), http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodGet, "/api/v1/trips/2", "", tc.user)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestGetTrip_InvalidAndMissing(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodGet, "/api/v1/trips/abc", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id: status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/trips/999", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing trip: status = %d, want 404", w.Code)
	}
}

func TestCreateTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/trips", `{"title":"  Baltic loop ","start_date":"2024-06-01","end_date":"2024-07-15"}`, asAdmin(ownerID))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["title"] != "Baltic loop" {
		t.Errorf("title = %v, want trimmed", body["title"])
	}
	if body["status"] != storage.TripDraft {
		t.Errorf("status = %v, want draft", body["status"])
	}
	if body["start_date"] != "2024-06-01" {
		t.Errorf("start_date = %v", body["start_date"])
	}
}

func TestCreateTrip_Rejections(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		user string
		want int
	}{
		{"anonymous", `{"title":"x"}`, "", http.StatusUnauthorized},
		{"regular user", `{"title":"x"}`, asUser(userID), http.StatusForbidden},
		{"missing title", `{"description":"x"}`, asAdmin(ownerID), http.StatusBadRequest},
		{"blank title", `{"title":"   "}`, asAdmin(ownerID), http.StatusBadRequest},
		{"bad status", `{"title":"x","status":"deleted"}`, asAdmin(ownerID), http.StatusBadRequest},
		{"bad date", `{"title":"x","start_date":"June"}`, asAdmin(ownerID), http.StatusBadRequest},
		{"end before start", `{"title":"x","start_date":"2024-06-02","end_date":"2024-06-01"}`, asAdmin(ownerID), http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/api/v1/trips", tc.body, tc.user)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestUpdateTrip_RequiresOwnership(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/v1/trips/1", `{"title":"hijacked"}`, asAdmin(otherAdmin))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if env.trips.trips[1].Title != "Paris to Lyon" {
		t.Error("trip was modified by a non-owner")
	}

	w = env.do(http.MethodPut, "/api/v1/trips/1", `{"title":"Paris to Marseille","status":"archived"}`, asAdmin(ownerID))
	if w.Code != http.StatusOK {
		t.Fatalf("owner status = %d, want 200", w.Code)
	}
	if got := env.trips.trips[1]; got.Title != "Paris to Marseille" || got.Status != storage.TripArchived {
		t.Errorf("stored trip = %+v", got)
	}
}

func TestDeleteTrip(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodDelete, "/api/v1/trips/1", "", asAdmin(otherAdmin)); w.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/v1/trips/1", "", asAdmin(ownerID)); w.Code != http.StatusNoContent {
		t.Errorf("owner status = %d, want 204", w.Code)
	}
	if _, ok := env.trips.trips[1]; ok {
		t.Error("trip still stored")
	}
}

// ---------------------------------------------------------------------------
// Segments
// ---------------------------------------------------------------------------

func TestGetSegment_ParsesGeometry(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/segments/10", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	geom, ok := decode(t, w)["route_geometry"].(map[string]any)
	if !ok {
		t.Fatalf("route_geometry is not an object: %s", w.Body.String())
	}
	if geom["type"] != "LineString" {
		t.Errorf("type = %v", geom["type"])
	}

	if w := env.do(http.MethodGet, "/api/v1/segments/999", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing segment: status = %d, want 404", w.Code)
	}
}

func TestListTripSegments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/trips/1/segments", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	if w := env.do(http.MethodGet, "/api/v1/trips/2/segments", "", ""); w.Code != http.StatusForbidden {
		t.Errorf("draft trip: status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/trips/999/segments", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing trip: status = %d, want 404", w.Code)
	}
}

const newSegmentBody = `{"trip_id":1,"start_lat":48.85,"start_lng":2.35,"end_lat":45.76,"end_lng":4.83,"start_name":"Paris","end_name":"Lyon"}`

func TestCreateSegment_StoresResolvedRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/segments", newSegmentBody, asAdmin(ownerID))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	if env.router.calls != 1 {
		t.Errorf("router calls = %d, want 1", env.router.calls)
	}
	body := decode(t, w)
	if body["distance"] != float64(465000) {
		t.Errorf("distance = %v, want 465000", body["distance"])
	}
	if body["transport_type"] != string(routing.Hitchhiking) {
		t.Errorf("transport_type = %v, want hitchhiking", body["transport_type"])
	}
	coords := body["route_geometry"].(map[string]any)["coordinates"].([]any)
	if len(coords) != 3 {
		t.Errorf("coordinates = %d, want 3", len(coords))
	}
}

func TestCreateSegment_ProviderDownStoresStraightLine(t *testing.T) {
	env := newTestEnv(t)
	env.router.res = nil
	env.router.err = &routing.RoutingError{Profile: routing.ProfileDriving, StatusCode: 502}

	w := env.do(http.MethodPost, "/api/v1/segments", newSegmentBody, asAdmin(ownerID))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; provider failure must not surface", w.Code)
	}
	body := decode(t, w)
	want := routing.HaversineMeters(48.85, 2.35, 45.76, 4.83)
	if body["distance"] != float64(want) {
		t.Errorf("distance = %v, want straight-line %d", body["distance"], want)
	}
	coords := body["route_geometry"].(map[string]any)["coordinates"].([]any)
	if len(coords) != 2 {
		t.Errorf("coordinates = %d, want 2", len(coords))
	}
}

func TestCreateSegment_Rejections(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		user string
		want int
	}{
		{"regular user", newSegmentBody, asUser(userID), http.StatusForbidden},
		{"not trip owner", newSegmentBody, asAdmin(otherAdmin), http.StatusForbidden},
		{"missing coordinate", `{"trip_id":1,"start_lat":1,"start_lng":2,"end_lat":3}`, asAdmin(ownerID), http.StatusBadRequest},
		{"latitude out of range", `{"trip_id":1,"start_lat":91,"start_lng":2,"end_lat":3,"end_lng":4}`, asAdmin(ownerID), http.StatusBadRequest},
		{"unknown transport", `{"trip_id":1,"start_lat":1,"start_lng":2,"end_lat":3,"end_lng":4,"transport_type":"rocket"}`, asAdmin(ownerID), http.StatusBadRequest},
		{"car is not storable", `{"trip_id":1,"start_lat":1,"start_lng":2,"end_lat":3,"end_lng":4,"transport_type":"car"}`, asAdmin(ownerID), http.StatusBadRequest},
		{"unknown trip", `{"trip_id":999,"start_lat":1,"start_lng":2,"end_lat":3,"end_lng":4}`, asAdmin(ownerID), http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/api/v1/segments", tc.body, tc.user)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d; body %s", w.Code, tc.want, w.Body.String())
			}
			if env.router.calls != 0 {
				t.Errorf("router called %d times for a rejected request", env.router.calls)
			}
		})
	}
}

func TestCreateSegment_ZeroCoordinatesAccepted(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/segments",
		`{"trip_id":1,"start_lat":0,"start_lng":0,"end_lat":1,"end_lng":1,"transport_type":"train"}`, asAdmin(ownerID))
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
}

func TestUpdateSegment_KeepsRouteWhenEndpointsUnchanged(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/v1/segments/10", `{"description":"sunny","start_lat":48.85}`, asAdmin(ownerID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if env.router.calls != 0 {
		t.Errorf("router calls = %d, want 0", env.router.calls)
	}
	if env.segments.updated.RouteGeometry != storedGeometry {
		t.Errorf("route_geometry changed: %s", env.segments.updated.RouteGeometry)
	}
	if env.segments.updated.Distance != 391000 || env.segments.updated.Description != "sunny" {
		t.Errorf("updated = %+v", env.segments.updated)
	}
}

func TestUpdateSegment_RegeneratesOnChange(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"moved end", `{"end_lat":45.0}`},
		{"new transport", `{"transport_type":"bus"}`},
		{"forced", `{"regenerate_route":true}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPut, "/api/v1/segments/10", tc.body, asAdmin(ownerID))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if env.router.calls != 1 {
				t.Errorf("router calls = %d, want 1", env.router.calls)
			}
			if env.segments.updated.Distance != 465000 {
				t.Errorf("distance = %d, want 465000", env.segments.updated.Distance)
			}
		})
	}
}

func TestUpdateSegment_ProviderDownKeepsPreviousRoute(t *testing.T) {
	env := newTestEnv(t)
	env.router.res = nil
	env.router.err = errors.New("boom")

	w := env.do(http.MethodPut, "/api/v1/segments/10", `{"end_lat":45.0}`, asAdmin(ownerID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.segments.updated.RouteGeometry != storedGeometry || env.segments.updated.EndLat != 45.0 {
		t.Errorf("updated = %+v", env.segments.updated)
	}
}

func TestDeleteSegment(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodDelete, "/api/v1/segments/10", "", asAdmin(otherAdmin)); w.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/v1/segments/10", "", asAdmin(ownerID)); w.Code != http.StatusNoContent {
		t.Errorf("owner status = %d, want 204", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/v1/segments/10", "", asAdmin(ownerID)); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestNearbySegments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/segments/nearby?lat=48.86&lng=2.35", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", body["count"])
	}
	first := body["segments"].([]any)[0].(map[string]any)
	if d := first["distance_m"].(float64); d < 1000 || d > 1200 {
		t.Errorf("distance_m = %v, want about 1112", d)
	}

	w = env.do(http.MethodGet, "/api/v1/segments/nearby?lat=40.0&lng=-3.7&radius=1000", "", "")
	if got := decode(t, w)["count"]; got != float64(0) {
		t.Errorf("far away count = %v, want 0", got)
	}
}

func TestNearbySegments_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{
		"lng=2.35",
		"lat=48.8",
		"lat=x&lng=2",
		"lat=95&lng=2",
		"lat=48&lng=2&radius=0",
		"lat=48&lng=2&radius=50001",
		"lat=48&lng=2&radius=1.5",
	} {
		w := env.do(http.MethodGet, "/api/v1/segments/nearby?"+q, "", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// Route preview
// ---------------------------------------------------------------------------

func TestPreviewRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/routes/preview?start_lat=48.85&start_lng=2.35&end_lat=45.76&end_lng=4.83", "", asUser(userID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["distance_m"] != float64(465000) || body["duration_s"] != float64(3600) {
		t.Errorf("body = %v", body)
	}
	if _, leaked := body["source"]; leaked {
		t.Error("route source must not be exposed")
	}
	if len(env.segments.segments) != 1 {
		t.Error("preview stored a segment")
	}
}

func TestPreviewRoute_Errors(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodGet, "/api/v1/routes/preview?start_lat=1&start_lng=2&end_lat=3&end_lng=4", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/routes/preview?start_lat=1&start_lng=2&end_lat=3", "", asUser(userID)); w.Code != http.StatusBadRequest {
		t.Errorf("missing end_lng status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/routes/preview?start_lat=1&start_lng=2&end_lat=3&end_lng=4&transport_type=zeppelin", "", asUser(userID)); w.Code != http.StatusBadRequest {
		t.Errorf("bad transport status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, path, user string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "photo.png", data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestUploadPhoto(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "/api/v1/segments/10/photo", asAdmin(ownerID), pngHeader)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	filename := body["filename"].(string)
	if !strings.HasSuffix(filename, ".png") {
		t.Errorf("filename = %q, want .png", filename)
	}
	if env.segments.photo != body["url"] {
		t.Errorf("photo_url = %q, want %v", env.segments.photo, body["url"])
	}
	if !strings.HasPrefix(env.segments.photo, "http://example.com/api/v1/uploads/images/") {
		t.Errorf("photo_url = %q", env.segments.photo)
	}

	served := env.do(http.MethodGet, "/api/v1/uploads/images/"+filename, "", "")
	if served.Code != http.StatusOK {
		t.Errorf("serve status = %d, want 200", served.Code)
	}
}

func TestUploadPhoto_Rejections(t *testing.T) {
	env := newTestEnv(t)

	if w := env.upload(t, "/api/v1/segments/10/photo", asAdmin(ownerID), []byte("just some text")); w.Code != http.StatusBadRequest {
		t.Errorf("text file status = %d, want 400", w.Code)
	}
	if w := env.upload(t, "/api/v1/segments/10/photo", asAdmin(otherAdmin), pngHeader); w.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d, want 403", w.Code)
	}
	oversized := append(append([]byte{}, pngHeader...), make([]byte, maxUploadSize)...)
	if w := env.upload(t, "/api/v1/segments/10/photo", asAdmin(ownerID), oversized); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want 413", w.Code)
	}

	entries, err := os.ReadDir(env.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d files, want 0", len(entries))
	}
}

func TestServeImage_RejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodGet, "/api/v1/uploads/images/..secret", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/uploads/images/missing.png", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

func TestComments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/comments", `{"segment_id":10,"content":"  great pickup spot  "}`, asUser(strangerID))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", w.Code)
	}
	if got := decode(t, w)["content"]; got != "great pickup spot" {
		t.Errorf("content = %v, want trimmed", got)
	}

	w = env.do(http.MethodGet, "/api/v1/segments/10/comments", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
	newest := body["comments"].([]any)[0].(map[string]any)
	if newest["content"] != "great pickup spot" {
		t.Errorf("first comment = %v, want newest", newest["content"])
	}
}

func TestCreateComment_Rejections(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		user string
		want int
	}{
		{"anonymous", `{"segment_id":10,"content":"hi"}`, "", http.StatusUnauthorized},
		{"blank content", `{"segment_id":10,"content":"   "}`, asUser(userID), http.StatusBadRequest},
		{"missing segment id", `{"content":"hi"}`, asUser(userID), http.StatusBadRequest},
		{"unknown segment", `{"segment_id":999,"content":"hi"}`, asUser(userID), http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if w := env.do(http.MethodPost, "/api/v1/comments", tc.body, tc.user); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestDeleteComment(t *testing.T) {
	for _, tc := range []struct {
		name string
		user string
		want int
	}{
		{"stranger", asUser(strangerID), http.StatusForbidden},
		{"author", asUser(userID), http.StatusNoContent},
		{"any admin", asAdmin(otherAdmin), http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if w := env.do(http.MethodDelete, "/api/v1/comments/50", "", tc.user); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Suggestions
// ---------------------------------------------------------------------------

func TestListSuggestions_ByRole(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/v1/suggestions", "", asAdmin(ownerID)); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	if env.suggestions.byOwner != 1 || env.suggestions.byUser != 0 {
		t.Errorf("admin: byOwner=%d byUser=%d", env.suggestions.byOwner, env.suggestions.byUser)
	}

	w := env.do(http.MethodGet, "/api/v1/suggestions", "", asUser(userID))
	if env.suggestions.byUser != 1 {
		t.Errorf("user: byUser=%d, want 1", env.suggestions.byUser)
	}
	if got := decode(t, w)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestGetSuggestion_Access(t *testing.T) {
	for _, tc := range []struct {
		name string
		user string
		want int
	}{
		{"author", asUser(userID), http.StatusOK},
		{"trip owner", asAdmin(ownerID), http.StatusOK},
		{"other admin", asAdmin(otherAdmin), http.StatusOK},
		{"stranger", asUser(strangerID), http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if w := env.do(http.MethodGet, "/api/v1/suggestions/60", "", tc.user); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestCreateSuggestion(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/suggestions", `{"trip_id":1,"title":" Stop in Dijon ","content":"Worth it"}`, asUser(strangerID))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != storage.SuggestionPending || body["title"] != "Stop in Dijon" {
		t.Errorf("body = %v", body)
	}
	if body["trip_owner_id"] != float64(ownerID) {
		t.Errorf("trip_owner_id = %v", body["trip_owner_id"])
	}
}

func TestCreateSuggestion_Rejections(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		user string
		want int
	}{
		{"admin", `{"trip_id":1,"title":"t","content":"c"}`, asAdmin(otherAdmin), http.StatusForbidden},
		{"blank title", `{"trip_id":1,"title":" ","content":"c"}`, asUser(userID), http.StatusBadRequest},
		{"missing content", `{"trip_id":1,"title":"t"}`, asUser(userID), http.StatusBadRequest},
		{"draft trip", `{"trip_id":2,"title":"t","content":"c"}`, asUser(userID), http.StatusNotFound},
		{"unknown trip", `{"trip_id":999,"title":"t","content":"c"}`, asUser(userID), http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if w := env.do(http.MethodPost, "/api/v1/suggestions", tc.body, tc.user); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestUpdateSuggestionStatus(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodPut, "/api/v1/suggestions/60/status", `{"status":"accepted"}`, asUser(userID)); w.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodPut, "/api/v1/suggestions/60/status", `{"status":"done"}`, asAdmin(ownerID)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", w.Code)
	}
	w := env.do(http.MethodPut, "/api/v1/suggestions/60/status", `{"status":"accepted"}`, asAdmin(ownerID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.suggestions.suggestions[60].Status != storage.SuggestionAccepted {
		t.Errorf("stored status = %q", env.suggestions.suggestions[60].Status)
	}
	if w := env.do(http.MethodPut, "/api/v1/suggestions/999/status", `{"status":"accepted"}`, asAdmin(ownerID)); w.Code != http.StatusNotFound {
		t.Errorf("missing suggestion = %d, want 404", w.Code)
	}
}

func TestDeleteSuggestion(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodDelete, "/api/v1/suggestions/60", "", asUser(strangerID)); w.Code != http.StatusForbidden {
		t.Errorf("stranger status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/v1/suggestions/60", "", asUser(userID)); w.Code != http.StatusNoContent {
		t.Errorf("author status = %d, want 204", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/register", `{"username":"ana","email":"Ana@Example.com","password":"secret1"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	user := body["user"].(map[string]any)
	if user["role"] != storage.RoleUser || user["email"] != "ana@example.com" {
		t.Errorf("user = %v", user)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Error("missing tokens")
	}

	if w := env.do(http.MethodPost, "/api/v1/auth/register", `{"username":"ana2","email":"ana@example.com","password":"secret1"}`, ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"wrong-pass"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"secret1"}`, ""); w.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", w.Code)
	}

	id := int(user["id"].(float64))
	w = env.do(http.MethodGet, "/api/v1/auth/me", "", asUser(id))
	if w.Code != http.StatusOK || decode(t, w)["username"] != "ana" {
		t.Errorf("me status = %d body %s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/api/v1/auth/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous me status = %d, want 401", w.Code)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{
		`{"username":"ana","email":"ana@example.com"}`,
		`{"username":"ana","email":"not-an-email","password":"secret1"}`,
		`{"username":"ana","email":"ana@example.com","password":"short"}`,
	} {
		if w := env.do(http.MethodPost, "/api/v1/auth/register", body, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/register", `{"username":"ana","email":"ana@example.com","password":"secret1"}`, "")
	refresh := decode(t, w)["refresh_token"].(string)

	w = env.do(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", w.Code)
	}
	rotated := decode(t, w)["refresh_token"].(string)

	if w := env.do(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"`+refresh+`"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("reused token status = %d, want 401", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/auth/logout", `{"refresh_token":"`+rotated+`"}`, ""); w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d, want 204", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"`+rotated+`"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", w.Code)
	}
}
