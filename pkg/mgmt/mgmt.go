package mgmt

import "context"

// StatusFunc returns a JSON-encoded status payload for the management
// /status endpoint. Using []byte avoids import cycles on monitor types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// Server exposes the read-only management surface (/status, /healthz,
// /metrics) of a running monitor.
type Server interface {
    Start(ctx context.Context, status StatusFunc) error
    Addr() string
    Stop(ctx context.Context) error
}
