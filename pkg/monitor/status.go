package monitor

import (
    "context"
    "encoding/json"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
)

// NetworkStatus is the read-only view served at /status and returned by
// Status. It is a point-in-time copy; mutating it has no effect on the
// monitor.
type NetworkStatus struct {
    Healthy      bool                     `json:"healthy"`
    Height       uint64                   `json:"height"`
    Round        uint64                   `json:"round"`
    Cycles       uint64                   `json:"cycles"`
    LastCycleAt  time.Time                `json:"lastCycleAt"`
    LastError    string                   `json:"lastError,omitempty"`
    StatusCounts map[delegate.Status]int  `json:"statusCounts"`
    Delegates    []*delegate.Delegate     `json:"delegates"`
}

// Status assembles a consistent snapshot of the tracked state. It briefly
// blocks an in-flight cycle to read, so the copy never observes a half
// reconciled roster.
func (m *Monitor) Status() NetworkStatus {
    m.cycleMu.Lock()
    height := m.led.BestHeight()
    all := m.reg.All()
    ds := make([]*delegate.Delegate, 0, len(all))
    counts := make(map[delegate.Status]int, 8)
    for _, d := range all {
        ds = append(ds, d.Clone())
        counts[d.Status]++
    }
    m.cycleMu.Unlock()

    m.statsMu.Lock()
    cycles, lastAt, lastErr := m.cycles, m.lastCycleAt, m.lastErr
    m.statsMu.Unlock()

    return NetworkStatus{
        Healthy:      lastErr == "" && cycles > 0,
        Height:       height,
        Round:        chain.RoundOf(height),
        Cycles:       cycles,
        LastCycleAt:  lastAt,
        LastError:    lastErr,
        StatusCounts: counts,
        Delegates:    ds,
    }
}

func (m *Monitor) statusJSON(context.Context) ([]byte, error) {
    return json.Marshal(m.Status())
}
