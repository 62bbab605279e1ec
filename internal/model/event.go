package model

import (
	"time"
)

// EventType represents the type of a state feed event.
type EventType string

const (
	EventTypeConnected EventType = "connected"
	EventTypeState     EventType = "state"
	EventTypeHeartbeat EventType = "heartbeat"
)

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// SettingsRequest updates a single persisted setting.
type SettingsRequest struct {
	APIKey string `json:"apiKey,omitempty"`
	Locale string `json:"locale,omitempty"`
}
