// Package monitor ties the roster registry, the forger schedule and the
// block ledger into a periodic reconciliation loop and exposes the resulting
// delegate-state changes as events.
package monitor

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
    "github.com/amirimatin/go-forgewatch/pkg/internal/logutil"
    "github.com/amirimatin/go-forgewatch/pkg/ledger"
    "github.com/amirimatin/go-forgewatch/pkg/observability/metrics"
    "github.com/amirimatin/go-forgewatch/pkg/observability/tracing"
    "github.com/amirimatin/go-forgewatch/pkg/schedule"
)

// Monitor is the public facade. It owns the tracked state and serializes all
// mutation inside the active cycle; everything handed to subscribers or the
// management surface is a detached copy.
type Monitor struct {
    opts Options

    mu      sync.Mutex
    started bool
    closed  bool
    cancel  context.CancelFunc
    done    chan struct{}

    // cycleMu enforces single-flight cycles: a manual Cycle call and the
    // periodic loop never run concurrently.
    cycleMu sync.Mutex
    reg     *delegate.Registry
    led     *ledger.Ledger
    sched   *schedule.Schedule

    eb eventBus

    statsMu     sync.Mutex
    cycles      uint64
    lastCycleAt time.Time
    lastErr     string
}

// New validates opts and constructs a stopped Monitor. Call Start to begin
// the periodic loop.
func New(opts Options) (*Monitor, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    if opts.Interval <= 0 {
        opts.Interval = DefaultInterval
    }
    return &Monitor{
        opts:  opts,
        reg:   delegate.NewRegistry(),
        led:   ledger.New(),
        sched: schedule.New(),
    }, nil
}

// Start launches the reconciliation loop. The first cycle runs immediately;
// subsequent cycles are re-armed a fixed interval after the previous one
// finished, so a slow peer stretches the period instead of stacking cycles.
// The loop runs until Stop, Close or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) error {
    m.mu.Lock()
    if m.closed {
        m.mu.Unlock()
        return ErrClosed
    }
    if m.started {
        m.mu.Unlock()
        return ErrAlreadyStarted
    }
    m.started = true
    runCtx, cancel := context.WithCancel(ctx)
    m.cancel = cancel
    m.done = make(chan struct{})
    m.mu.Unlock()

    metrics.Register()

    if m.opts.Mgmt != nil {
        if err := m.opts.Mgmt.Start(runCtx, m.statusJSON); err != nil {
            cancel()
            m.mu.Lock()
            m.started = false
            m.mu.Unlock()
            return fmt.Errorf("monitor: mgmt server: %w", err)
        }
        logutil.Infof(m.opts.Logger, "management server listening on %s", m.opts.Mgmt.Addr())
    }

    go m.loop(runCtx, m.done)
    logutil.Infof(m.opts.Logger, "monitor started, interval %s", m.opts.Interval)
    return nil
}

// done is passed in rather than read from m.done so the loop always closes
// the channel Start created, even after Stop has cleared the field.
func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
    defer close(done)
    for {
        if err := m.Cycle(ctx); err != nil {
            if ctx.Err() != nil {
                return
            }
            logutil.Warnf(m.opts.Logger, "cycle failed: %v", err)
        }
        select {
        case <-ctx.Done():
            return
        case <-time.After(m.opts.Interval):
        }
    }
}

// Cycle runs one full reconciliation pass: roster, schedule, blocks and
// classification, strictly in that order. A phase failure skips the
// remaining phases and surfaces as the returned error; state already
// reconciled by earlier phases is kept. Concurrent calls serialize.
func (m *Monitor) Cycle(ctx context.Context) error {
    m.cycleMu.Lock()
    defer m.cycleMu.Unlock()

    ctx, end := tracing.StartSpan(ctx, "monitor.cycle")
    defer end()

    err := m.runPhases(ctx)

    m.statsMu.Lock()
    m.cycles++
    m.lastCycleAt = time.Now()
    if err != nil {
        m.lastErr = err.Error()
    } else {
        m.lastErr = ""
    }
    m.statsMu.Unlock()

    if err != nil {
        metrics.Cycles.WithLabelValues("error").Inc()
        return err
    }
    metrics.Cycles.WithLabelValues("ok").Inc()
    return nil
}

func (m *Monitor) runPhases(ctx context.Context) error {
    if err := m.phaseRoster(ctx); err != nil {
        return fmt.Errorf("roster: %w", err)
    }
    if err := m.phaseSchedule(ctx); err != nil {
        return fmt.Errorf("schedule: %w", err)
    }
    if err := m.phaseBlocks(ctx); err != nil {
        return fmt.Errorf("blocks: %w", err)
    }
    m.phaseClassify(ctx)
    return nil
}

// phaseRoster fetches the ranked forging set, diffs it against the tracked
// delegates and publishes the resulting membership and rank events.
func (m *Monitor) phaseRoster(ctx context.Context) error {
    ctx, end := tracing.StartSpan(ctx, "monitor.roster")
    defer end()

    roster, err := m.opts.Source.DelegateRoster(ctx)
    if err != nil {
        return err
    }
    for _, c := range m.reg.Reconcile(roster) {
        snap := c.Snapshot
        switch c.Kind {
        case delegate.ChangeRank:
            m.emit(Event{Type: EventRankChanged, Snapshot: &snap, RankDelta: c.RankDelta})
        case delegate.ChangeJoined:
            logutil.Infof(m.opts.Logger, "delegate %s entered the forging set at rank %d", snap.PublicKey, snap.Rank)
            m.emit(Event{Type: EventNewTop, Snapshot: &snap})
        case delegate.ChangeLeft:
            logutil.Infof(m.opts.Logger, "delegate %s dropped out of the forging set", snap.PublicKey)
            m.emit(Event{Type: EventDroppedTop, Snapshot: &snap})
        }
    }
    return nil
}

// phaseSchedule fetches the upcoming-forger list, detects a missed block on
// slot rollover and refreshes per-delegate slot assignments.
func (m *Monitor) phaseSchedule(ctx context.Context) error {
    ctx, end := tracing.StartSpan(ctx, "monitor.schedule")
    defer end()

    view, err := m.opts.Source.ForgerSchedule(ctx)
    if err != nil {
        return err
    }
    if missed := m.sched.Reconcile(view, m.led, m.reg, m.led.BestHeight()); missed != nil {
        metrics.BlocksMissed.Inc()
        logutil.Warnf(m.opts.Logger, "delegate %s missed its forging slot", missed.PublicKey)
        m.emit(Event{Type: EventBlockMissed, Delegate: missed.Clone()})
    }
    return nil
}

// phaseBlocks ingests the recent block window and backfills the last forged
// block of any producer the window did not cover.
func (m *Monitor) phaseBlocks(ctx context.Context) error {
    ctx, end := tracing.StartSpan(ctx, "monitor.blocks")
    defer end()

    blocks, err := m.opts.Source.RecentBlocks(ctx)
    if err != nil {
        return err
    }
    if n := m.led.Ingest(blocks, m.reg); n > 0 {
        metrics.BlocksIngested.Add(float64(n))
        logutil.Debugf(m.opts.Logger, "ingested %d new blocks, best height %d", n, m.led.BestHeight())
    }
    lookups, err := m.led.Backfill(ctx, m.reg, m.opts.Source)
    metrics.BackfillLookups.Add(float64(lookups))
    return err
}

// phaseClassify recomputes every tracked delegate's forging status against
// the freshly ingested best height and publishes transitions. It needs no
// peer calls and cannot fail.
func (m *Monitor) phaseClassify(ctx context.Context) {
    _, end := tracing.StartSpan(ctx, "monitor.classify")
    defer end()

    height := m.led.BestHeight()
    for _, d := range m.reg.All() {
        next := delegate.Classify(d, height)
        if next == d.Status {
            continue
        }
        old := d.Status
        d.Status = next
        logutil.Infof(m.opts.Logger, "delegate %s status %s -> %s", d.PublicKey, old, next)
        m.emit(Event{Type: EventStatusChanged, Delegate: d.Clone(), OldStatus: old, NewStatus: next})
    }
    metrics.DelegatesTracked.Set(float64(m.reg.Len()))
    metrics.NetworkHeight.Set(float64(height))
    metrics.NetworkRound.Set(float64(chain.RoundOf(height)))
}

func (m *Monitor) emit(ev Event) {
    ev.At = time.Now()
    metrics.Events.WithLabelValues(string(ev.Type)).Inc()
    m.eb.publish(ev)
}

// Stop halts the periodic loop and the management server, waiting for an
// in-flight cycle to finish or ctx to expire. The monitor stays usable for
// manual Cycle calls until Close.
func (m *Monitor) Stop(ctx context.Context) error {
    m.mu.Lock()
    if !m.started {
        m.mu.Unlock()
        return ErrNotStarted
    }
    m.started = false
    cancel, done := m.cancel, m.done
    m.cancel, m.done = nil, nil
    m.mu.Unlock()

    cancel()
    select {
    case <-done:
    case <-ctx.Done():
        return ctx.Err()
    }
    if m.opts.Mgmt != nil {
        return m.opts.Mgmt.Stop(ctx)
    }
    return nil
}

// Close stops the loop if running and marks the monitor unusable.
func (m *Monitor) Close() error {
    m.mu.Lock()
    if m.closed {
        m.mu.Unlock()
        return nil
    }
    m.closed = true
    started := m.started
    m.mu.Unlock()

    if started {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        return m.Stop(ctx)
    }
    return nil
}
