package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/middleware"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// TripHandler holds dependencies for trip endpoints.
type TripHandler struct {
	trips storage.TripsRepository
}

// NewTripHandler creates a TripHandler backed by trips.
func NewTripHandler(trips storage.TripsRepository) *TripHandler {
	return &TripHandler{trips: trips}
}

type tripJSON struct {
	ID          int32     `json:"id"`
	UserID      int32     `json:"user_id"`
	Username    string    `json:"username"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   *string   `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTripJSON(t *storage.Trip) tripJSON {
	return tripJSON{
		ID:          t.ID,
		UserID:      t.UserID,
		Username:    t.Username,
		Title:       t.Title,
		Description: t.Description,
		StartDate:   formatDate(t.StartDate),
		EndDate:     formatDate(t.EndDate),
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	}
}

type tripRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      string  `json:"status" binding:"omitempty,oneof=draft published archived"`
}

// apply copies the request onto t, writing a 400 on invalid dates.
func (req *tripRequest) apply(c *gin.Context, t *storage.Trip) bool {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return false
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return false
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
		return false
	}
	if start != nil && end != nil && end.Before(*start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must not precede start_date"})
		return false
	}

	t.Title = title
	t.Description = req.Description
	t.StartDate = start
	t.EndDate = end
	if req.Status != "" {
		t.Status = req.Status
	}
	return true
}

// ListTrips handles GET /api/v1/trips
//
// Admins see every trip; everyone else sees published trips only.
//
// Response 200: {"trips": [...], "count": N}
func (h *TripHandler) ListTrips(c *gin.Context) {
	publishedOnly := !actorFromContext(c).IsAdmin()

	trips, err := h.trips.ListTrips(c.Request.Context(), publishedOnly)
	if err != nil {
		writeServiceError(c, err, "failed to list trips")
		return
	}

	out := make([]tripJSON, len(trips))
	for i := range trips {
		out[i] = toTripJSON(&trips[i])
	}
	c.JSON(http.StatusOK, gin.H{"trips": out, "count": len(out)})
}

// GetTrip handles GET /api/v1/trips/:id
//
// Response 403: the trip is not published and the caller is neither its
// owner nor an admin.
// Response 404: trip does not exist.
func (h *TripHandler) GetTrip(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	trip, ok := h.loadTrip(c, id)
	if !ok {
		return
	}
	if !service.CanViewTrip(trip, actorFromContext(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "trip is not published"})
		return
	}

	c.JSON(http.StatusOK, toTripJSON(trip))
}

// CreateTrip handles POST /api/v1/trips (admin only)
//
// Request body:
//
//	{"title": "Lisbon to Tallinn", "description": "...", "start_date": "2024-06-01", "end_date": "2024-07-15", "status": "draft"}
//
// Response 201: the created trip.
func (h *TripHandler) CreateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trip := &storage.Trip{UserID: actor.UserID, Username: c.GetString(middleware.ContextKeyUsername), Status: storage.TripDraft}
	if !req.apply(c, trip) {
		return
	}

	created, err := h.trips.CreateTrip(c.Request.Context(), trip)
	if err != nil {
		writeServiceError(c, err, "failed to create trip")
		return
	}

	c.JSON(http.StatusCreated, toTripJSON(created))
}

// UpdateTrip handles PUT /api/v1/trips/:id (admin who owns the trip)
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trip, ok := h.loadTrip(c, id)
	if !ok {
		return
	}
	if !service.CanManageTrip(trip, actor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the trip owner can modify it"})
		return
	}
	if !req.apply(c, trip) {
		return
	}

	if err := h.trips.UpdateTrip(c.Request.Context(), trip); err != nil {
		writeServiceError(c, err, "failed to update trip")
		return
	}

	c.JSON(http.StatusOK, toTripJSON(trip))
}

// DeleteTrip handles DELETE /api/v1/trips/:id (admin who owns the trip)
//
// Segments, their comments and the trip's suggestions are removed with it.
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	trip, ok := h.loadTrip(c, id)
	if !ok {
		return
	}
	if !service.CanManageTrip(trip, actor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the trip owner can delete it"})
		return
	}

	deleted, err := h.trips.DeleteTrip(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to delete trip")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// loadTrip fetches a trip, writing a 404 or 500 on failure.
func (h *TripHandler) loadTrip(c *gin.Context, id int32) (*storage.Trip, bool) {
	trip, err := h.trips.GetTrip(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to query trip")
		return nil, false
	}
	if trip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return nil, false
	}
	return trip, true
}
