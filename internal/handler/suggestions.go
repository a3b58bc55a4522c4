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

// SuggestionHandler holds dependencies for trip suggestion endpoints.
type SuggestionHandler struct {
	suggestions storage.SuggestionsRepository
	trips       storage.TripsRepository
}

// NewSuggestionHandler creates a SuggestionHandler.
func NewSuggestionHandler(suggestions storage.SuggestionsRepository, trips storage.TripsRepository) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, trips: trips}
}

type suggestionJSON struct {
	ID          int32     `json:"id"`
	UserID      int32     `json:"user_id"`
	Username    string    `json:"username"`
	TripID      int32     `json:"trip_id"`
	TripTitle   string    `json:"trip_title"`
	TripOwnerID int32     `json:"trip_owner_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSuggestionJSON(s *storage.Suggestion) suggestionJSON {
	return suggestionJSON{
		ID:          s.ID,
		UserID:      s.UserID,
		Username:    s.Username,
		TripID:      s.TripID,
		TripTitle:   s.TripTitle,
		TripOwnerID: s.TripOwnerID,
		Title:       s.Title,
		Content:     s.Content,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
	}
}

// ListSuggestions handles GET /api/v1/suggestions
//
// Admins receive the suggestions made on their own trips; users receive the
// suggestions they wrote.
func (h *SuggestionHandler) ListSuggestions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var (
		list []storage.Suggestion
		err  error
	)
	if actor.IsAdmin() {
		list, err = h.suggestions.ListSuggestionsByTripOwner(c.Request.Context(), actor.UserID)
	} else {
		list, err = h.suggestions.ListSuggestionsByUser(c.Request.Context(), actor.UserID)
	}
	if err != nil {
		writeServiceError(c, err, "failed to list suggestions")
		return
	}

	out := make([]suggestionJSON, len(list))
	for i := range list {
		out[i] = toSuggestionJSON(&list[i])
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out, "count": len(out)})
}

// GetSuggestion handles GET /api/v1/suggestions/:id
//
// Visible to its author, the owner of the trip, and admins.
func (h *SuggestionHandler) GetSuggestion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	s, ok := h.loadSuggestion(c)
	if !ok {
		return
	}
	if s.UserID != actor.UserID && s.TripOwnerID != actor.UserID && !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, toSuggestionJSON(s))
}

type createSuggestionRequest struct {
	TripID  int32  `json:"trip_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// CreateSuggestion handles POST /api/v1/suggestions
//
// Admins own trips and cannot suggest changes to them; they get 403.
//
// Response 201: the created suggestion with status "pending".
// Response 404: trip does not exist or is not visible to the caller.
func (h *SuggestionHandler) CreateSuggestion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins cannot create suggestions"})
		return
	}

	var req createSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trip_id, title and content are required"})
		return
	}
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content must not be empty"})
		return
	}

	trip, err := h.trips.GetTrip(c.Request.Context(), req.TripID)
	if err != nil {
		writeServiceError(c, err, "failed to query trip")
		return
	}
	if trip == nil || !service.CanViewTrip(trip, actor) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return
	}

	created, err := h.suggestions.CreateSuggestion(c.Request.Context(), &storage.Suggestion{
		UserID:      actor.UserID,
		Username:    c.GetString(middleware.ContextKeyUsername),
		TripID:      trip.ID,
		TripTitle:   trip.Title,
		TripOwnerID: trip.UserID,
		Title:       title,
		Content:     content,
		Status:      storage.SuggestionPending,
	})
	if err != nil {
		writeServiceError(c, err, "failed to create suggestion")
		return
	}

	c.JSON(http.StatusCreated, toSuggestionJSON(created))
}

type updateSuggestionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending reviewed accepted rejected"`
}

// UpdateSuggestionStatus handles PUT /api/v1/suggestions/:id/status (admin only)
//
// Request body:
//
//	{"status": "accepted"}
func (h *SuggestionHandler) UpdateSuggestionStatus(c *gin.Context) {
	var req updateSuggestionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, reviewed, accepted, rejected"})
		return
	}

	s, ok := h.loadSuggestion(c)
	if !ok {
		return
	}

	if err := h.suggestions.UpdateSuggestionStatus(c.Request.Context(), s.ID, req.Status); err != nil {
		writeServiceError(c, err, "failed to update suggestion")
		return
	}
	s.Status = req.Status

	c.JSON(http.StatusOK, toSuggestionJSON(s))
}

// DeleteSuggestion handles DELETE /api/v1/suggestions/:id
//
// Only the author or an admin may delete a suggestion.
func (h *SuggestionHandler) DeleteSuggestion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	s, ok := h.loadSuggestion(c)
	if !ok {
		return
	}
	if s.UserID != actor.UserID && !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author can delete this suggestion"})
		return
	}

	deleted, err := h.suggestions.DeleteSuggestion(c.Request.Context(), s.ID)
	if err != nil {
		writeServiceError(c, err, "failed to delete suggestion")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// loadSuggestion parses :id and fetches the suggestion, writing 400, 404 or
// 500 on failure.
func (h *SuggestionHandler) loadSuggestion(c *gin.Context) (*storage.Suggestion, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	s, err := h.suggestions.GetSuggestion(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to query suggestion")
		return nil, false
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
		return nil, false
	}
	return s, true
}
