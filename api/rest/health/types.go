package health

import "context"

// Response represents the health check response
type Response struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PingResponse struct {
	Message string `json:"message"`
}

// reports whether a backing dependency is reachable
type Check func(ctx context.Context) error
