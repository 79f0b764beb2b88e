package domain

import (
	"time"

	"grocery-backend/pkg/geo"
)

// PositionSample is a raw fix reported by the driver's device. Samples are
// immutable once recorded.
type PositionSample struct {
	Latitude  float64   `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" binding:"gte=-180,lte=180"`
	Heading   float64   `json:"heading"`  // degrees clockwise from north, negative when unknown
	Speed     float64   `json:"speed"`    // m/s, negative when unknown
	Accuracy  float64   `json:"accuracy"` // meters, negative when unknown
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// Normalize replaces the negative "unknown" values devices report. An unknown
// heading keeps the previous sample's heading so the marker does not snap north.
func (s PositionSample) Normalize(previous *PositionSample) PositionSample {
	if s.Heading < 0 {
		s.Heading = 0
		if previous != nil {
			s.Heading = previous.Heading
		}
	}
	s.Heading = geo.NormalizeDegrees(s.Heading)
	if s.Speed < 0 {
		s.Speed = 0
	}
	if s.Accuracy < 0 {
		s.Accuracy = 0
	}
	return s
}

// Point returns the sample's coordinate
func (s PositionSample) Point() geo.Point {
	return geo.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// Position is a display position produced by the smoother
type Position struct {
	PositionSample
	Interpolated bool `json:"interpolated"`
	Step         int  `json:"step"` // 0 for a snapped position, 1..N inside a sequence
}

// Fix is the result of one poll of the position feed
type Fix struct {
	OrderID          string         `json:"order_id"`
	DriverID         string         `json:"driver_id"`
	Sample           PositionSample `json:"sample"`
	Destination      geo.Point      `json:"destination"`
	DistanceMeters   float64        `json:"distance_meters"`
	EstimatedArrival *time.Time     `json:"estimated_arrival,omitempty"`
}

// Reading is what the milestone detector sees after each successful poll
type Reading struct {
	OrderID        string
	DistanceMeters float64
	ETA            time.Duration
	HasETA         bool
}
