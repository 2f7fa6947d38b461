package models

import (
	"errors"
	"math"
	"time"
)

type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Valid reports whether both coordinates are finite and in range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return false
	}
	return p.Longitude >= -180 && p.Longitude <= 180 && p.Latitude >= -90 && p.Latitude <= 90
}

type MatchRequest struct {
	RequesterID string   `json:"requester_id"`
	Origin      GeoPoint `json:"origin"`
	Destination GeoPoint `json:"destination"`
}

var ErrInvalidRequest = errors.New("invalid match request")

func (r MatchRequest) Validate() error {
	if r.RequesterID == "" {
		return ErrInvalidRequest
	}
	if !r.Origin.Valid() || !r.Destination.Valid() {
		return ErrInvalidRequest
	}
	return nil
}

// CandidateDriver is one hit from the location search for a radius tier.
// Candidates are transient and never persisted.
type CandidateDriver struct {
	DriverID       string  `json:"driver_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

type VehicleInfo struct {
	LicensePlate string `json:"license_plate"`
	Model        string `json:"model"`
}

type DriverInfo struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	RatingAvg float64     `json:"rating_avg"` // 0..5
	Vehicle   VehicleInfo `json:"vehicle"`
}

// MatchedTripFact is the durable record of a decided match, serialized into
// the outbox payload. Immutable once created.
type MatchedTripFact struct {
	TripID      string    `json:"trip_id"`
	RequesterID string    `json:"requester_id"`
	DriverID    string    `json:"driver_id"`
	Origin      GeoPoint  `json:"origin"`
	Destination GeoPoint  `json:"destination"`
	MatchedAt   time.Time `json:"matched_at"`
}

// MatchResponse is the synchronous acknowledgement; the match decision itself
// is only observable on the matching_events topic.
type MatchResponse struct {
	Message        string `json:"message"`
	MatchRequestID string `json:"match_request_id"`
}

type OutboxStatus string

const (
	OutboxReady      OutboxStatus = "READY"
	OutboxPublishing OutboxStatus = "PUBLISHING"
	OutboxDone       OutboxStatus = "DONE"
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	Topic       string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
}

const (
	TripCompleted = "trip.completed"
	TripCanceled  = "trip.canceled"
)

// TripEvent arrives on the trip_events topic; both lifecycle endings free the
// driver.
type TripEvent struct {
	EventType string `json:"event_type"`
	DriverID  string `json:"driver_id"`
}
