package models

import (
	"time"
)

// ObservationResult is what the user saw when they checked the stalls.
type ObservationResult string

const (
	ResultOccupied  ObservationResult = "occupied"
	ResultAvailable ObservationResult = "available"
	ResultFull      ObservationResult = "full"
)

// Valid reports whether r is one of the known result values.
func (r ObservationResult) Valid() bool {
	switch r {
	case ResultOccupied, ResultAvailable, ResultFull:
		return true
	}
	return false
}

// Observation is a single crowd-sourced occupancy report. Immutable once
// created; identity is ID.
type Observation struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	LocationID  string            `json:"locationId"`
	Result      ObservationResult `json:"result"`
	TotalStalls int               `json:"totalStalls,omitempty"`
	UserID      string            `json:"userId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
}

type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TotalStalls int       `json:"totalStalls"`
	CreatedAt   time.Time `json:"createdAt"`
	IsDefault   bool      `json:"isDefault,omitempty"`
}

// CompressedBucket is the lossy replacement for a group of raw observations
// older than the retention window, keyed by a 30-minute slot key.
// A "full" result counts toward OccupiedCount, so
// AvailableCount + OccupiedCount == TotalRecords.
type CompressedBucket struct {
	LocationID     string    `json:"locationId"`
	SlotKey        string    `json:"slotKey"`
	TotalRecords   int       `json:"totalRecords"`
	AvailableCount int       `json:"availableCount"`
	OccupiedCount  int       `json:"occupiedCount"`
	LastTimestamp  time.Time `json:"lastTimestamp"`
}

type Settings struct {
	DefaultLocationID string `json:"defaultLocationId,omitempty"`
	Theme             string `json:"theme"`
	Notifications     bool   `json:"notifications"`
	DefaultTimeOffset int    `json:"defaultTimeOffset"`
}

// DefaultSettings is what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		Theme:             "auto",
		Notifications:     true,
		DefaultTimeOffset: 2,
	}
}
