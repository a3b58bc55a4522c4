package handler

import (
	"github.com/FooledKiwi/hitchmap-api/internal/middleware"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// Handlers groups the handlers mounted under /api/v1.
type Handlers struct {
	Auth        *AuthHandler
	Trips       *TripHandler
	Segments    *SegmentHandler
	Comments    *CommentHandler
	Suggestions *SuggestionHandler
	Uploads     *UploadHandler
}

// RegisterRoutes mounts every API route on api. requireAuth rejects
// anonymous requests; optionalAuth identifies the caller when a token is
// present and lets anonymous requests through.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, requireAuth, optionalAuth gin.HandlerFunc) {
	adminOnly := middleware.RequireRole(storage.RoleAdmin)

	// Auth endpoints.
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", requireAuth, h.Auth.Me)
	}

	// Trips: public reads, admin writes.
	api.GET("/trips", optionalAuth, h.Trips.ListTrips)
	api.GET("/trips/:id", optionalAuth, h.Trips.GetTrip)
	api.GET("/trips/:id/segments", optionalAuth, h.Segments.ListTripSegments)
	api.POST("/trips", requireAuth, adminOnly, h.Trips.CreateTrip)
	api.PUT("/trips/:id", requireAuth, adminOnly, h.Trips.UpdateTrip)
	api.DELETE("/trips/:id", requireAuth, adminOnly, h.Trips.DeleteTrip)

	// Segments.
	api.GET("/segments/nearby", h.Segments.NearbySegments)
	api.GET("/segments/:id", h.Segments.GetSegment)
	api.GET("/segments/:id/comments", h.Comments.ListComments)
	api.POST("/segments", requireAuth, adminOnly, h.Segments.CreateSegment)
	api.PUT("/segments/:id", requireAuth, adminOnly, h.Segments.UpdateSegment)
	api.DELETE("/segments/:id", requireAuth, adminOnly, h.Segments.DeleteSegment)
	api.POST("/segments/:id/photo", requireAuth, adminOnly, h.Segments.UploadPhoto)
	api.GET("/uploads/images/:filename", h.Uploads.ServeImage)

	api.GET("/routes/preview", requireAuth, h.Segments.PreviewRoute)

	// Comments.
	api.POST("/comments", requireAuth, h.Comments.CreateComment)
	api.DELETE("/comments/:id", requireAuth, h.Comments.DeleteComment)

	// Suggestions.
	suggestions := api.Group("/suggestions", requireAuth)
	{
		suggestions.GET("", h.Suggestions.ListSuggestions)
		suggestions.GET("/:id", h.Suggestions.GetSuggestion)
		suggestions.POST("", h.Suggestions.CreateSuggestion)
		suggestions.PUT("/:id/status", adminOnly, h.Suggestions.UpdateSuggestionStatus)
		suggestions.DELETE("/:id", h.Suggestions.DeleteSuggestion)
	}
}
