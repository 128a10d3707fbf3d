package preview

import (
	"net/http"
	"time"
)

// ServerBuilderOption is a functional option for configuring a Server.
type ServerBuilderOption func(*server)

// WithCommandBuffer sets how many viewer commands may queue before new ones
// are dropped. Defaults to 64.
//
// Parameters:
//   - n: the queue length (minimum 1)
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithCommandBuffer(n int) ServerBuilderOption {
	return func(s *server) {
		s.commands = make(chan Command, max(n, 1))
	}
}

// WithCheckOrigin sets the websocket origin check. By default only same-origin
// requests are upgraded.
//
// Parameters:
//   - fn: returns true to accept the request
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithCheckOrigin(fn func(r *http.Request) bool) ServerBuilderOption {
	return func(s *server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithWriteTimeout sets the per-frame write deadline. Defaults to 2 seconds.
//
// Parameters:
//   - d: the deadline
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithWriteTimeout(d time.Duration) ServerBuilderOption {
	return func(s *server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}
