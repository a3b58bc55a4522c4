// Package storage provides PostgreSQL-backed repository implementations.
package storage

import (
	"context"
	"time"
)

// Roles stored in users.role.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Trip statuses stored in trips.status.
const (
	TripDraft     = "draft"
	TripPublished = "published"
	TripArchived  = "archived"
)

// Suggestion statuses stored in trip_suggestions.status.
const (
	SuggestionPending  = "pending"
	SuggestionReviewed = "reviewed"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
)

// Trip is a journey owned by a user. Username is the owner's username.
type Trip struct {
	ID          int32
	UserID      int32
	Username    string
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      string
	CreatedAt   time.Time
}

// Segment is one leg of a trip. RouteGeometry holds serialized GeoJSON and is
// written only from a resolved route; Distance is in meters.
type Segment struct {
	ID            int32
	TripID        int32
	StartLat      float64
	StartLng      float64
	EndLat        float64
	EndLng        float64
	StartName     string
	EndName       string
	RouteGeometry string
	Distance      int
	TransportType string
	StartTime     *time.Time
	EndTime       *time.Time
	Description   string
	PhotoURL      string
	SegmentOrder  int32
	StartGeohash  string
	CreatedAt     time.Time
}

// Comment is a user comment on a segment.
type Comment struct {
	ID        int32
	SegmentID int32
	UserID    int32
	Username  string
	Content   string
	CreatedAt time.Time
}

// Suggestion is an improvement proposal for a trip, triaged by its owner.
type Suggestion struct {
	ID          int32
	UserID      int32
	Username    string
	TripID      int32
	TripTitle   string
	TripOwnerID int32
	Title       string
	Content     string
	Status      string
	CreatedAt   time.Time
}

// TripsRepository defines operations on the trips table.
type TripsRepository interface {
	// ListTrips returns trips ordered by start_date descending. When
	// publishedOnly is set, drafts and archived trips are omitted.
	ListTrips(ctx context.Context, publishedOnly bool) ([]Trip, error)

	// GetTrip returns a trip by ID, or (nil, nil) if not found.
	GetTrip(ctx context.Context, id int32) (*Trip, error)

	CreateTrip(ctx context.Context, t *Trip) (*Trip, error)

	// UpdateTrip overwrites the mutable fields of t.
	UpdateTrip(ctx context.Context, t *Trip) error

	// DeleteTrip removes a trip and, by cascade, its segments and suggestions.
	// It reports whether a row was deleted.
	DeleteTrip(ctx context.Context, id int32) (bool, error)
}

// SegmentsRepository defines operations on the segments table.
type SegmentsRepository interface {
	// ListSegmentsByTrip returns a trip's segments by segment_order, then
	// start_time.
	ListSegmentsByTrip(ctx context.Context, tripID int32) ([]Segment, error)

	// GetSegment returns a segment by ID, or (nil, nil) if not found.
	GetSegment(ctx context.Context, id int32) (*Segment, error)

	CreateSegment(ctx context.Context, s *Segment) (*Segment, error)

	// UpdateSegment overwrites every mutable column of s, including the route.
	UpdateSegment(ctx context.Context, s *Segment) error

	DeleteSegment(ctx context.Context, id int32) (bool, error)

	// SetSegmentPhoto sets photo_url on a segment.
	SetSegmentPhoto(ctx context.Context, id int32, photoURL string) error

	// FindSegmentsByGeohash returns segments whose start_geohash begins with
	// any of the given cell prefixes. Only segments of published trips are
	// returned.
	FindSegmentsByGeohash(ctx context.Context, cells []string) ([]Segment, error)
}

// CommentsRepository defines operations on the comments table.
type CommentsRepository interface {
	// ListCommentsBySegment returns comments newest first.
	ListCommentsBySegment(ctx context.Context, segmentID int32) ([]Comment, error)

	// GetComment returns a comment by ID, or (nil, nil) if not found.
	GetComment(ctx context.Context, id int32) (*Comment, error)

	CreateComment(ctx context.Context, c *Comment) (*Comment, error)

	DeleteComment(ctx context.Context, id int32) (bool, error)
}

// SuggestionsRepository defines operations on the trip_suggestions table.
type SuggestionsRepository interface {
	// ListSuggestionsByTripOwner returns suggestions on trips owned by ownerID.
	ListSuggestionsByTripOwner(ctx context.Context, ownerID int32) ([]Suggestion, error)

	// ListSuggestionsByUser returns suggestions written by userID.
	ListSuggestionsByUser(ctx context.Context, userID int32) ([]Suggestion, error)

	// GetSuggestion returns a suggestion by ID, or (nil, nil) if not found.
	GetSuggestion(ctx context.Context, id int32) (*Suggestion, error)

	CreateSuggestion(ctx context.Context, s *Suggestion) (*Suggestion, error)

	UpdateSuggestionStatus(ctx context.Context, id int32, status string) error

	DeleteSuggestion(ctx context.Context, id int32) (bool, error)
}
