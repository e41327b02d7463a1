package monitor

import (
    "errors"
    "log"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/mgmt"
    "github.com/amirimatin/go-forgewatch/pkg/peersource"
)

// DefaultInterval is the delay between the end of one reconciliation cycle
// and the start of the next.
const DefaultInterval = 10 * time.Second

// Options carries dependency-injected components and runtime configuration
// used to assemble the monitor. Instances are typically produced from
// bootstrap.Config.
type Options struct {
    // Source is the peer-data collaborator the monitor polls (required).
    Source peersource.Source
    // Interval is the delay between cycles; DefaultInterval when zero.
    Interval time.Duration
    // Logger is used by the monitor to report operational messages.
    Logger *log.Logger

    // Mgmt optionally serves /status, /healthz and /metrics while the
    // monitor runs.
    Mgmt mgmt.Server
}

// Validate performs a minimal validation of Options. It does not start any
// network activity and is safe to call before New.
func (o Options) Validate() error {
    if o.Source == nil {
        return errors.New("monitor: nil Source")
    }
    if o.Logger == nil {
        return errors.New("monitor: nil Logger")
    }
    return nil
}
