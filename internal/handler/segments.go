package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// SegmentHandler holds dependencies for segment endpoints.
type SegmentHandler struct {
	segments *service.SegmentService
	uploads  *UploadHandler
}

// NewSegmentHandler creates a SegmentHandler. uploads stores segment photos.
func NewSegmentHandler(segments *service.SegmentService, uploads *UploadHandler) *SegmentHandler {
	return &SegmentHandler{segments: segments, uploads: uploads}
}

type segmentJSON struct {
	ID            int32           `json:"id"`
	TripID        int32           `json:"trip_id"`
	StartLat      float64         `json:"start_lat"`
	StartLng      float64         `json:"start_lng"`
	EndLat        float64         `json:"end_lat"`
	EndLng        float64         `json:"end_lng"`
	StartName     string          `json:"start_name"`
	EndName       string          `json:"end_name"`
	RouteGeometry json.RawMessage `json:"route_geometry"`
	Distance      int             `json:"distance"`
	TransportType string          `json:"transport_type"`
	StartTime     *time.Time      `json:"start_time"`
	EndTime       *time.Time      `json:"end_time"`
	Description   string          `json:"description"`
	PhotoURL      string          `json:"photo_url"`
	SegmentOrder  int32           `json:"segment_order"`
	CreatedAt     time.Time       `json:"created_at"`
}

// toSegmentJSON embeds the stored GeoJSON text as a JSON object. Unparseable
// geometry is reported as null.
func toSegmentJSON(s *storage.Segment) segmentJSON {
	geometry := json.RawMessage("null")
	if s.RouteGeometry != "" && json.Valid([]byte(s.RouteGeometry)) {
		geometry = json.RawMessage(s.RouteGeometry)
	}
	return segmentJSON{
		ID:            s.ID,
		TripID:        s.TripID,
		StartLat:      s.StartLat,
		StartLng:      s.StartLng,
		EndLat:        s.EndLat,
		EndLng:        s.EndLng,
		StartName:     s.StartName,
		EndName:       s.EndName,
		RouteGeometry: geometry,
		Distance:      s.Distance,
		TransportType: s.TransportType,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Description:   s.Description,
		PhotoURL:      s.PhotoURL,
		SegmentOrder:  s.SegmentOrder,
		CreatedAt:     s.CreatedAt,
	}
}

// GetSegment handles GET /api/v1/segments/:id
func (h *SegmentHandler) GetSegment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	seg, err := h.segments.GetSegment(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to query segment")
		return
	}

	c.JSON(http.StatusOK, toSegmentJSON(seg))
}

// ListTripSegments handles GET /api/v1/trips/:id/segments
//
// Response 200: {"segments": [...], "count": N}, ordered by segment_order
// then start_time.
func (h *SegmentHandler) ListTripSegments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	segs, err := h.segments.ListTripSegments(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		writeServiceError(c, err, "failed to list segments")
		return
	}

	out := make([]segmentJSON, len(segs))
	for i := range segs {
		out[i] = toSegmentJSON(&segs[i])
	}
	c.JSON(http.StatusOK, gin.H{"segments": out, "count": len(out)})
}

// NearbySegments handles GET /api/v1/segments/nearby
//
// Query params:
//   - lat    (required) float64 WGS-84 latitude
//   - lng    (required) float64 WGS-84 longitude
//   - radius (optional) int search radius in metres; default 5000, max 50000
//
// Response 200: {"segments": [{..., "distance_m": 1200}], "count": N}
func (h *SegmentHandler) NearbySegments(c *gin.Context) {
	lat, ok := parseRequiredFloat(c, "lat")
	if !ok {
		return
	}
	lng, ok := parseRequiredFloat(c, "lng")
	if !ok {
		return
	}

	radius := service.DefaultNearbyRadiusM
	if raw := c.Query("radius"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be an integer number of metres"})
			return
		}
		radius = v
	}

	found, err := h.segments.FindNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		writeServiceError(c, err, "failed to search segments")
		return
	}

	type nearbyJSON struct {
		segmentJSON
		DistanceM int `json:"distance_m"`
	}
	out := make([]nearbyJSON, len(found))
	for i := range found {
		out[i] = nearbyJSON{segmentJSON: toSegmentJSON(&found[i].Segment), DistanceM: found[i].DistanceM}
	}
	c.JSON(http.StatusOK, gin.H{"segments": out, "count": len(out)})
}

type createSegmentRequest struct {
	TripID        int32      `json:"trip_id" binding:"required"`
	StartLat      *float64   `json:"start_lat" binding:"required"`
	StartLng      *float64   `json:"start_lng" binding:"required"`
	EndLat        *float64   `json:"end_lat" binding:"required"`
	EndLng        *float64   `json:"end_lng" binding:"required"`
	StartName     string     `json:"start_name"`
	EndName       string     `json:"end_name"`
	TransportType string     `json:"transport_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Description   string     `json:"description"`
	PhotoURL      string     `json:"photo_url"`
	SegmentOrder  int32      `json:"segment_order"`
}

// CreateSegment handles POST /api/v1/segments (admin who owns the trip)
//
// The route is resolved from the endpoints and transport type. If the
// routing provider is unavailable the segment is stored with a straight line.
//
// Response 201: the created segment.
// Response 400: missing fields, bad coordinates or unknown transport_type.
// Response 403: caller does not own the trip.
// Response 404: trip does not exist.
func (h *SegmentHandler) CreateSegment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seg, err := h.segments.CreateSegment(c.Request.Context(), actor, service.SegmentInput{
		TripID:        req.TripID,
		StartLat:      *req.StartLat,
		StartLng:      *req.StartLng,
		EndLat:        *req.EndLat,
		EndLng:        *req.EndLng,
		StartName:     req.StartName,
		EndName:       req.EndName,
		TransportType: routing.TransportType(req.TransportType),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Description:   req.Description,
		PhotoURL:      req.PhotoURL,
		SegmentOrder:  req.SegmentOrder,
	})
	if err != nil {
		writeServiceError(c, err, "failed to create segment")
		return
	}

	c.JSON(http.StatusCreated, toSegmentJSON(seg))
}

// updateSegmentRequest is a partial update; omitted fields are unchanged.
type updateSegmentRequest struct {
	StartLat        *float64   `json:"start_lat"`
	StartLng        *float64   `json:"start_lng"`
	EndLat          *float64   `json:"end_lat"`
	EndLng          *float64   `json:"end_lng"`
	StartName       *string    `json:"start_name"`
	EndName         *string    `json:"end_name"`
	TransportType   *string    `json:"transport_type"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Description     *string    `json:"description"`
	PhotoURL        *string    `json:"photo_url"`
	SegmentOrder    *int32     `json:"segment_order"`
	RegenerateRoute bool       `json:"regenerate_route"`
}

// UpdateSegment handles PUT /api/v1/segments/:id (admin who owns the trip)
//
// The route is regenerated only when a coordinate or the transport type
// changes, or when regenerate_route is true. Otherwise the stored route is
// returned untouched.
func (h *SegmentHandler) UpdateSegment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := service.SegmentUpdate{
		StartLat:        req.StartLat,
		StartLng:        req.StartLng,
		EndLat:          req.EndLat,
		EndLng:          req.EndLng,
		StartName:       req.StartName,
		EndName:         req.EndName,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Description:     req.Description,
		PhotoURL:        req.PhotoURL,
		SegmentOrder:    req.SegmentOrder,
		RegenerateRoute: req.RegenerateRoute,
	}
	if req.TransportType != nil {
		tt := routing.TransportType(*req.TransportType)
		upd.TransportType = &tt
	}

	seg, err := h.segments.UpdateSegment(c.Request.Context(), actor, id, upd)
	if err != nil {
		writeServiceError(c, err, "failed to update segment")
		return
	}

	c.JSON(http.StatusOK, toSegmentJSON(seg))
}

// DeleteSegment handles DELETE /api/v1/segments/:id (admin who owns the trip)
func (h *SegmentHandler) DeleteSegment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.segments.DeleteSegment(c.Request.Context(), actor, id); err != nil {
		writeServiceError(c, err, "failed to delete segment")
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadPhoto handles POST /api/v1/segments/:id/photo (admin who owns the trip)
//
// Expects a multipart form with a "file" field (<= 5 MB; JPEG, PNG or WebP).
//
// Response 201: {"filename": "...", "url": "..."}
func (h *SegmentHandler) UploadPhoto(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	filename, ok := h.uploads.saveImage(c)
	if !ok {
		return
	}
	url := imageURL(c, filename)

	if err := h.segments.SetPhoto(c.Request.Context(), actor, id, url); err != nil {
		h.uploads.removeImage(filename)
		writeServiceError(c, err, "failed to attach photo")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"filename": filename,
		"url":      url,
	})
}
