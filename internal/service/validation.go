package service

import (
	"fmt"
	"math"
)

// ValidationError reports an invalid input field. Handlers map it to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateCoordinates checks that lat and lng are finite WGS84 degrees.
func ValidateCoordinates(lat, lng float64) error {
	switch {
	case math.IsNaN(lat) || math.IsInf(lat, 0):
		return &ValidationError{Field: "lat", Message: "must be a finite number"}
	case math.IsNaN(lng) || math.IsInf(lng, 0):
		return &ValidationError{Field: "lng", Message: "must be a finite number"}
	case lat < -90 || lat > 90:
		return &ValidationError{Field: "lat", Message: "must be between -90 and 90"}
	case lng < -180 || lng > 180:
		return &ValidationError{Field: "lng", Message: "must be between -180 and 180"}
	}
	return nil
}

// validateEndpoints validates both endpoints of a segment, naming the
// offending field with its start_/end_ prefix.
func validateEndpoints(startLat, startLng, endLat, endLng float64) error {
	if err := validatePoint("start_", startLat, startLng); err != nil {
		return err
	}
	return validatePoint("end_", endLat, endLng)
}

func validatePoint(prefix string, lat, lng float64) error {
	err := ValidateCoordinates(lat, lng)
	if verr, ok := err.(*ValidationError); ok {
		verr.Field = prefix + verr.Field
	}
	return err
}
