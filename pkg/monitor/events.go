package monitor

import (
    "context"
    "sync"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/delegate"
)

type EventType string

// The event set is closed; subscribers are expected to switch exhaustively
// over these five kinds.
const (
    // EventRankChanged fires when a tracked delegate's roster rank moved.
    EventRankChanged EventType = "rank_changed"
    // EventNewTop fires when a public key enters the forging set.
    EventNewTop EventType = "new_top"
    // EventDroppedTop fires when a public key leaves the forging set.
    EventDroppedTop EventType = "dropped_top"
    // EventStatusChanged fires when a delegate's forging status transitions.
    EventStatusChanged EventType = "status_changed"
    // EventBlockMissed fires when the expected forger produced no block.
    EventBlockMissed EventType = "block_missed"
)

// Event is a consumer-facing notification of one delegate-state change.
// Only the fields relevant for an event type are populated: Snapshot for
// the roster events, Delegate (a detached copy) for status and missed-block
// events, RankDelta only for EventRankChanged (negative = climbed),
// OldStatus/NewStatus only for EventStatusChanged.
type Event struct {
    Type      EventType
    At        time.Time
    Snapshot  *delegate.Snapshot
    Delegate  *delegate.Delegate
    RankDelta int
    OldStatus delegate.Status
    NewStatus delegate.Status
}

// Subscribe returns a channel of events. The returned channel is buffered and
// closed automatically when ctx is done. Events may be dropped if the consumer
// is too slow (best-effort delivery) to avoid back-pressuring the cycle.
func (m *Monitor) Subscribe(ctx context.Context) <-chan Event {
    ch := make(chan Event, 64)
    m.eb.add(ch)
    go func() {
        <-ctx.Done()
        m.eb.remove(ch)
        close(ch)
    }()
    return ch
}

// internal event bus
type eventBus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
}

func (e *eventBus) add(ch chan Event) {
    e.mu.Lock()
    if e.subs == nil {
        e.subs = make(map[chan Event]struct{})
    }
    e.subs[ch] = struct{}{}
    e.mu.Unlock()
}

func (e *eventBus) remove(ch chan Event) {
    e.mu.Lock()
    if e.subs != nil {
        delete(e.subs, ch)
    }
    e.mu.Unlock()
}

func (e *eventBus) publish(ev Event) {
    e.mu.Lock()
    for ch := range e.subs {
        select {
        case ch <- ev:
        default:
            // drop if receiver is slow
        }
    }
    e.mu.Unlock()
}
