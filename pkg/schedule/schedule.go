package schedule

import (
    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
    "github.com/amirimatin/go-forgewatch/pkg/ledger"
)

// graceDepth is how many of the most recent block heights are checked before
// declaring a block missed. Three heights ≈ one extra slot of propagation
// delay between the node's slot counter and its block window.
const graceDepth = 3

// SlotEntry is one upcoming-forger entry as reported by the peer API.
type SlotEntry struct {
    PublicKey string `json:"publicKey"`
    NextSlot  int64  `json:"nextSlot"`
}

// View is the forging-schedule snapshot consumed by Reconcile.
type View struct {
    CurrentSlot int64       `json:"currentSlot"`
    Entries     []SlotEntry `json:"delegates"`
}

// Schedule holds the forging slot counter and the ordered upcoming-forger
// list across cycles, and detects missed-block conditions on slot rollover.
// Not safe for concurrent use; the monitor serializes all access inside the
// active cycle.
type Schedule struct {
    currentSlot  int64
    upcoming     []SlotEntry
    lastExpected *delegate.Delegate
}

func New() *Schedule { return &Schedule{} }

// CurrentSlot returns the slot counter as of the last reconciliation.
func (s *Schedule) CurrentSlot() int64 { return s.currentSlot }

// Upcoming returns the current upcoming-forger list.
func (s *Schedule) Upcoming() []SlotEntry {
    return append([]SlotEntry(nil), s.upcoming...)
}

// Reconcile applies a schedule snapshot. When the slot counter advanced
// since the previous cycle, the previously expected forger is checked
// against the generators of the last graceDepth block heights; if none
// match, that delegate is returned as missed. The expected forger is then
// re-armed from the head of the outgoing list (left unset when that key is
// not tracked). Regardless of rollover, the upcoming list is replaced,
// matching tracked delegates get their NextSlot and round membership
// updated (entry i stays in the round iff RoundOf(h) == RoundOf(h+i+1)),
// and the slot counter is stored. Delegates absent from the new list keep
// their previous slot state.
func (s *Schedule) Reconcile(v View, led *ledger.Ledger, reg *delegate.Registry, networkHeight uint64) (missed *delegate.Delegate) {
    if v.CurrentSlot > s.currentSlot {
        if s.lastExpected != nil && !forgedWithinGrace(led, s.lastExpected.PublicKey) {
            missed = s.lastExpected
        }
        s.lastExpected = nil
        if len(s.upcoming) > 0 {
            if d, ok := reg.Get(s.upcoming[0].PublicKey); ok {
                s.lastExpected = d
            }
        }
    }

    s.upcoming = append([]SlotEntry(nil), v.Entries...)
    networkRound := chain.RoundOf(networkHeight)
    for i, e := range v.Entries {
        d, ok := reg.Get(e.PublicKey)
        if !ok {
            continue
        }
        d.NextSlot = e.NextSlot
        d.RoundMember = chain.RoundOf(networkHeight+uint64(i)+1) == networkRound
    }
    s.currentSlot = v.CurrentSlot
    return missed
}

func forgedWithinGrace(led *ledger.Ledger, publicKey string) bool {
    best := led.BestHeight()
    for i := uint64(0); i < graceDepth && best > i; i++ {
        if g, ok := led.GeneratorAt(best - i); ok && g == publicKey {
            return true
        }
    }
    return false
}
