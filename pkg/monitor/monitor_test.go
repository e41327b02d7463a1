package monitor

import (
    "context"
    "errors"
    "io"
    "log"
    "sync"
    "testing"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
    "github.com/amirimatin/go-forgewatch/pkg/schedule"
)

// fakeSource is an in-memory peersource.Source recording the order of calls.
type fakeSource struct {
    mu    sync.Mutex
    calls []string

    roster    []delegate.Snapshot
    rosterErr error
    view      schedule.View
    viewErr   error
    blocks    []chain.Block
    blocksErr error
    last      map[string]chain.Block
}

func (f *fakeSource) record(name string) {
    f.mu.Lock()
    f.calls = append(f.calls, name)
    f.mu.Unlock()
}

func (f *fakeSource) callCount(name string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    n := 0
    for _, c := range f.calls {
        if c == name {
            n++
        }
    }
    return n
}

func (f *fakeSource) DelegateRoster(ctx context.Context) ([]delegate.Snapshot, error) {
    f.record("roster")
    return f.roster, f.rosterErr
}

func (f *fakeSource) ForgerSchedule(ctx context.Context) (schedule.View, error) {
    f.record("schedule")
    return f.view, f.viewErr
}

func (f *fakeSource) RecentBlocks(ctx context.Context) ([]chain.Block, error) {
    f.record("blocks")
    return f.blocks, f.blocksErr
}

func (f *fakeSource) LastBlockOf(ctx context.Context, publicKey string) (chain.Block, error) {
    f.record("lastBlockOf")
    b, ok := f.last[publicKey]
    if !ok {
        return chain.Block{}, errors.New("no block for " + publicKey)
    }
    return b, nil
}

func newTestMonitor(t *testing.T, src *fakeSource) *Monitor {
    t.Helper()
    m, err := New(Options{
        Source:   src,
        Interval: 10 * time.Millisecond,
        Logger:   log.New(io.Discard, "", 0),
    })
    if err != nil {
        t.Fatalf("New: %v", err)
    }
    return m
}

func drain(ch <-chan Event) []Event {
    var out []Event
    for {
        select {
        case ev := <-ch:
            out = append(out, ev)
        default:
            return out
        }
    }
}

func TestOptionsValidate(t *testing.T) {
    if err := (Options{}).Validate(); err == nil {
        t.Fatal("expected error for nil Source")
    }
    if err := (Options{Source: &fakeSource{}}).Validate(); err == nil {
        t.Fatal("expected error for nil Logger")
    }
    if err := (Options{Source: &fakeSource{}, Logger: log.Default()}).Validate(); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
}

func TestCycle_PhaseOrder(t *testing.T) {
    src := &fakeSource{
        roster: []delegate.Snapshot{{PublicKey: "d1", Rank: 1, ProducedBlocks: 1}},
        view:   schedule.View{CurrentSlot: 10, Entries: []schedule.SlotEntry{{PublicKey: "d1", NextSlot: 11}}},
        blocks: []chain.Block{{Height: 5, GeneratorPublicKey: "d1"}},
    }
    m := newTestMonitor(t, src)
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("Cycle: %v", err)
    }
    want := []string{"roster", "schedule", "blocks"}
    if len(src.calls) != len(want) {
        t.Fatalf("calls = %v, want %v", src.calls, want)
    }
    for i, c := range want {
        if src.calls[i] != c {
            t.Fatalf("call %d = %q, want %q", i, src.calls[i], c)
        }
    }
}

func TestCycle_EmitsMembershipAndStatusEvents(t *testing.T) {
    src := &fakeSource{
        roster: []delegate.Snapshot{
            {PublicKey: "d1", Rank: 1, ProducedBlocks: 4},
            {PublicKey: "d2", Rank: 2, ProducedBlocks: 0},
        },
        view:   schedule.View{CurrentSlot: 10, Entries: []schedule.SlotEntry{{PublicKey: "d1", NextSlot: 11}}},
        blocks: []chain.Block{{Height: 9, GeneratorPublicKey: "d1"}},
    }
    m := newTestMonitor(t, src)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := m.Subscribe(ctx)

    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("Cycle: %v", err)
    }
    events := drain(ch)

    counts := map[EventType]int{}
    for _, ev := range events {
        counts[ev.Type]++
    }
    if counts[EventNewTop] != 2 {
        t.Fatalf("new_top events = %d, want 2", counts[EventNewTop])
    }
    // d1 forged in the current round, d2 never produced a block
    if counts[EventStatusChanged] != 2 {
        t.Fatalf("status_changed events = %d, want 2", counts[EventStatusChanged])
    }
    for _, ev := range events {
        if ev.Type != EventStatusChanged {
            continue
        }
        switch ev.Delegate.PublicKey {
        case "d1":
            if ev.NewStatus != delegate.StatusForgedThisRound {
                t.Fatalf("d1 status = %s, want %s", ev.NewStatus, delegate.StatusForgedThisRound)
            }
        case "d2":
            if ev.NewStatus != delegate.StatusNew {
                t.Fatalf("d2 status = %s, want %s", ev.NewStatus, delegate.StatusNew)
            }
        }
        if ev.OldStatus != delegate.StatusUnknown {
            t.Fatalf("old status = %s, want %s", ev.OldStatus, delegate.StatusUnknown)
        }
    }
}

func TestCycle_RankChangeAndDeparture(t *testing.T) {
    src := &fakeSource{
        roster: []delegate.Snapshot{
            {PublicKey: "d1", Rank: 1, ProducedBlocks: 1},
            {PublicKey: "d2", Rank: 2, ProducedBlocks: 1},
        },
        view:   schedule.View{CurrentSlot: 10},
        blocks: []chain.Block{{Height: 5, GeneratorPublicKey: "d1"}, {Height: 6, GeneratorPublicKey: "d2"}},
    }
    m := newTestMonitor(t, src)
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("first cycle: %v", err)
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := m.Subscribe(ctx)

    // d2 climbs to rank 1, d1 drops out, d3 enters
    src.roster = []delegate.Snapshot{
        {PublicKey: "d2", Rank: 1, ProducedBlocks: 1},
        {PublicKey: "d3", Rank: 2, ProducedBlocks: 1},
    }
    src.last = map[string]chain.Block{"d3": {Height: 4, GeneratorPublicKey: "d3"}}
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("second cycle: %v", err)
    }

    var rank, joined, left int
    for _, ev := range drain(ch) {
        switch ev.Type {
        case EventRankChanged:
            rank++
            if ev.Snapshot.PublicKey != "d2" || ev.RankDelta != -1 {
                t.Fatalf("rank event = %+v, want d2 delta -1", ev)
            }
        case EventNewTop:
            joined++
            if ev.Snapshot.PublicKey != "d3" {
                t.Fatalf("joined key = %s, want d3", ev.Snapshot.PublicKey)
            }
        case EventDroppedTop:
            left++
            if ev.Snapshot.PublicKey != "d1" {
                t.Fatalf("departed key = %s, want d1", ev.Snapshot.PublicKey)
            }
        }
    }
    if rank != 1 || joined != 1 || left != 1 {
        t.Fatalf("rank/joined/left = %d/%d/%d, want 1/1/1", rank, joined, left)
    }
}

func TestCycle_MissedBlockEvent(t *testing.T) {
    src := &fakeSource{
        roster: []delegate.Snapshot{{PublicKey: "d1", Rank: 1, ProducedBlocks: 3}},
        view:   schedule.View{CurrentSlot: 100, Entries: []schedule.SlotEntry{{PublicKey: "d1", NextSlot: 101}}},
        blocks: []chain.Block{
            {Height: 10, GeneratorPublicKey: "x"},
            {Height: 11, GeneratorPublicKey: "y"},
            {Height: 12, GeneratorPublicKey: "z"},
        },
        last: map[string]chain.Block{"d1": {Height: 5, GeneratorPublicKey: "d1"}},
    }
    m := newTestMonitor(t, src)
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("first cycle: %v", err)
    }

    // first rollover arms the expectation on d1, the head of the previous
    // upcoming list
    src.view = schedule.View{CurrentSlot: 101, Entries: []schedule.SlotEntry{{PublicKey: "d1", NextSlot: 202}}}
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("second cycle: %v", err)
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := m.Subscribe(ctx)

    // second rollover: none of the recent heights carry d1's key
    src.view = schedule.View{CurrentSlot: 102, Entries: []schedule.SlotEntry{{PublicKey: "d1", NextSlot: 303}}}
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("third cycle: %v", err)
    }

    var missed []Event
    for _, ev := range drain(ch) {
        if ev.Type == EventBlockMissed {
            missed = append(missed, ev)
        }
    }
    if len(missed) != 1 {
        t.Fatalf("block_missed events = %d, want 1", len(missed))
    }
    if missed[0].Delegate.PublicKey != "d1" {
        t.Fatalf("missed key = %s, want d1", missed[0].Delegate.PublicKey)
    }
}

func TestCycle_PhaseFailureSkipsRemainingPhases(t *testing.T) {
    src := &fakeSource{
        rosterErr: errors.New("peer down"),
    }
    m := newTestMonitor(t, src)
    if err := m.Cycle(context.Background()); err == nil {
        t.Fatal("expected cycle error")
    }
    if got := src.callCount("schedule") + src.callCount("blocks"); got != 0 {
        t.Fatalf("later phases ran %d times after roster failure", got)
    }

    // a schedule failure keeps the roster already reconciled
    src.rosterErr = nil
    src.roster = []delegate.Snapshot{{PublicKey: "d1", Rank: 1, ProducedBlocks: 0}}
    src.viewErr = errors.New("peer down")
    if err := m.Cycle(context.Background()); err == nil {
        t.Fatal("expected cycle error")
    }
    if src.callCount("blocks") != 0 {
        t.Fatal("blocks phase ran after schedule failure")
    }
    st := m.Status()
    if len(st.Delegates) != 1 {
        t.Fatalf("tracked = %d, want 1", len(st.Delegates))
    }
    if st.LastError == "" {
        t.Fatal("expected LastError to be set")
    }
}

func TestLoop_SurvivesCycleErrors(t *testing.T) {
    src := &fakeSource{rosterErr: errors.New("peer down")}
    m := newTestMonitor(t, src)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    if err := m.Start(ctx); err != nil {
        t.Fatalf("Start: %v", err)
    }
    defer m.Close()

    deadline := time.Now().Add(2 * time.Second)
    for src.callCount("roster") < 3 {
        if time.Now().After(deadline) {
            t.Fatalf("loop stalled after %d cycles", src.callCount("roster"))
        }
        time.Sleep(5 * time.Millisecond)
    }

    if err := m.Stop(context.Background()); err != nil {
        t.Fatalf("Stop: %v", err)
    }
}

func TestStartStopLifecycle(t *testing.T) {
    src := &fakeSource{view: schedule.View{CurrentSlot: 1}}
    m := newTestMonitor(t, src)

    if err := m.Stop(context.Background()); !errors.Is(err, ErrNotStarted) {
        t.Fatalf("Stop before Start = %v, want ErrNotStarted", err)
    }
    ctx := context.Background()
    if err := m.Start(ctx); err != nil {
        t.Fatalf("Start: %v", err)
    }
    if err := m.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
        t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
    }
    if err := m.Close(); err != nil {
        t.Fatalf("Close: %v", err)
    }
    if err := m.Start(ctx); !errors.Is(err, ErrClosed) {
        t.Fatalf("Start after Close = %v, want ErrClosed", err)
    }
}

func TestStatus_Snapshot(t *testing.T) {
    src := &fakeSource{
        roster: []delegate.Snapshot{
            {PublicKey: "d1", Rank: 1, ProducedBlocks: 2},
            {PublicKey: "d2", Rank: 2, ProducedBlocks: 0},
        },
        view:   schedule.View{CurrentSlot: 10},
        blocks: []chain.Block{{Height: 150, GeneratorPublicKey: "d1"}},
    }
    m := newTestMonitor(t, src)
    if err := m.Cycle(context.Background()); err != nil {
        t.Fatalf("Cycle: %v", err)
    }

    st := m.Status()
    if !st.Healthy {
        t.Fatalf("healthy = false, lastError = %q", st.LastError)
    }
    if st.Height != 150 {
        t.Fatalf("height = %d, want 150", st.Height)
    }
    if st.Round != 2 {
        t.Fatalf("round = %d, want 2", st.Round)
    }
    if st.Cycles != 1 {
        t.Fatalf("cycles = %d, want 1", st.Cycles)
    }
    if len(st.Delegates) != 2 || st.Delegates[0].PublicKey != "d1" {
        t.Fatalf("delegates = %+v, want d1 first", st.Delegates)
    }
    if st.StatusCounts[delegate.StatusForgedThisRound] != 1 || st.StatusCounts[delegate.StatusNew] != 1 {
        t.Fatalf("status counts = %v", st.StatusCounts)
    }

    // the snapshot is detached from the live registry
    st.Delegates[0].Status = delegate.StatusMissedMore
    if d, _ := m.reg.Get("d1"); d.Status == delegate.StatusMissedMore {
        t.Fatal("status snapshot aliases registry state")
    }
}

func TestSubscribe_ClosesOnContextCancel(t *testing.T) {
    m := newTestMonitor(t, &fakeSource{})
    ctx, cancel := context.WithCancel(context.Background())
    ch := m.Subscribe(ctx)
    cancel()

    deadline := time.Now().Add(time.Second)
    for {
        if _, open := <-ch; !open {
            return
        }
        if time.Now().After(deadline) {
            t.Fatal("channel not closed after cancel")
        }
    }
}
