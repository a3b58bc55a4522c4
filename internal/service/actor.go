package service

import "github.com/FooledKiwi/hitchmap-api/internal/storage"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int32
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == storage.RoleAdmin
}

// CanViewTrip reports whether viewer (nil when anonymous) may read t.
// Published trips are public; other statuses are visible to the owner and
// to admins.
func CanViewTrip(t *storage.Trip, viewer *Actor) bool {
	if t.Status == storage.TripPublished {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.IsAdmin() || viewer.UserID == t.UserID
}

// CanManageTrip reports whether a may modify t and its segments: the caller
// must be an admin and own the trip.
func CanManageTrip(t *storage.Trip, a *Actor) bool {
	return a.IsAdmin() && a.UserID == t.UserID
}
