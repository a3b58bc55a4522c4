package handler

import (
	"net/http"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/gin-gonic/gin"
)

// PreviewRoute handles GET /api/v1/routes/preview
//
// Query params:
//   - start_lat, start_lng (required) float64 segment start
//   - end_lat, end_lng     (required) float64 segment end
//   - transport_type       (optional) defaults to hitchhiking
//
// Response 200:
//
//	{"geometry":{"type":"LineString","coordinates":[[lng,lat],...]},"distance_m":500,"duration_s":600}
//
// duration_s is null when the route is a straight line, either because the
// transport type is not routed or because the provider was unavailable.
//
// Response 400: missing or invalid query parameters.
func (h *SegmentHandler) PreviewRoute(c *gin.Context) {
	var req routing.RoutingRequest
	var ok bool
	if req.StartLat, ok = parseRequiredFloat(c, "start_lat"); !ok {
		return
	}
	if req.StartLng, ok = parseRequiredFloat(c, "start_lng"); !ok {
		return
	}
	if req.EndLat, ok = parseRequiredFloat(c, "end_lat"); !ok {
		return
	}
	if req.EndLng, ok = parseRequiredFloat(c, "end_lng"); !ok {
		return
	}
	req.TransportType = routing.TransportType(c.Query("transport_type"))
	if req.TransportType != "" && !req.TransportType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported transport_type"})
		return
	}

	route, err := h.segments.PreviewRoute(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err, "failed to calculate route")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"geometry":   route.Geometry,
		"distance_m": route.DistanceM,
		"duration_s": route.DurationS,
	})
}
