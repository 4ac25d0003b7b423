// Package server exposes switcher status over HTTP, WebSocket and gRPC health.
package server

import "time"

// Server configuration constants
const (
	// Default and maximum entries returned by /api/history
	HistoryDefaultLimit = 20
	HistoryMaxLimit     = 100

	// Pause/resume requests allowed per interval, with burst
	ToggleInterval = time.Second
	ToggleBurst    = 3

	// Per-client WebSocket write deadline
	WSWriteTimeout = 2 * time.Second

	// How often the gRPC health status is refreshed
	HealthCheckInterval = 2 * time.Second

	// Service name registered with the gRPC health server
	ServiceName = "soundswitch"
)
