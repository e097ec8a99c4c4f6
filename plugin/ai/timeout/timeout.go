// Package timeout defines centralized timeout constants for scheduling operations.
package timeout

import "time"

const (
	// CalendarFetchTimeout bounds a single busy-interval fetch from a calendar provider.
	CalendarFetchTimeout = 5 * time.Second

	// CalendarWriteTimeout bounds a single event creation call.
	CalendarWriteTimeout = 10 * time.Second

	// HTTPClientTimeout is the transport-level ceiling for outbound calendar HTTP clients.
	HTTPClientTimeout = 15 * time.Second

	// ServerShutdownTimeout is how long the HTTP server waits for in-flight requests.
	ServerShutdownTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
