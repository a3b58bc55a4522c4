// Package handler implements the gin HTTP handlers of the API.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/middleware"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/gin-gonic/gin"
)

// dateLayout is the wire format of trip start and end dates.
const dateLayout = "2006-01-02"

// parseID extracts and validates a positive int32 :id path parameter.
func parseID(c *gin.Context) (int32, bool) {
	raw := c.Param("id")
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return int32(v), true
}

// parseRequiredFloat extracts a required float64 query parameter.
// On failure it writes a 400 response and returns (0, false).
func parseRequiredFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " query parameter is required"})
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid number"})
		return 0, false
	}
	return v, true
}

// authUserID extracts the authenticated user's ID from the gin context.
// Returns 0 and sends a 401 if the value is missing.
func authUserID(c *gin.Context) (int32, bool) {
	uid, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return 0, false
	}
	id, ok := uid.(int32)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid auth context"})
		return 0, false
	}
	return id, true
}

// actorFromContext returns the caller set by the auth middleware, or nil for
// anonymous requests.
func actorFromContext(c *gin.Context) *service.Actor {
	uid, ok := c.Get(middleware.ContextKeyUserID)
	if !ok {
		return nil
	}
	id, ok := uid.(int32)
	if !ok {
		return nil
	}
	return &service.Actor{UserID: id, Role: c.GetString(middleware.ContextKeyRole)}
}

// requireActor is actorFromContext for routes behind JWTAuth.
func requireActor(c *gin.Context) (*service.Actor, bool) {
	if _, ok := authUserID(c); !ok {
		return nil, false
	}
	return actorFromContext(c), true
}

// writeServiceError maps service errors to HTTP responses. Unexpected errors
// are logged and reported as 500 with the given message.
func writeServiceError(c *gin.Context, err error, internalMsg string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
	case errors.Is(err, service.ErrSegmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
	case errors.Is(err, service.ErrAccountTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrJWTSecretMissing):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication service not configured"})
	default:
		log.Printf("handler: %s: %v", internalMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}

// parseDate parses an optional YYYY-MM-DD date. Empty input yields nil.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
