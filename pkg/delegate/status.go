package delegate

import "github.com/amirimatin/go-forgewatch/pkg/chain"

// Classify derives a delegate's forging status from its accumulated state
// and the current network height. Pure: it never mutates the delegate and
// returns the stored status when no rule applies (no snapshot yet, or a
// producing delegate whose last forged block is still unresolved).
//
// awaitingSlots counts rounds since the delegate last forged: 0 means it
// forged in the current round, -1 marks a delegate that never produced.
// The case order is load-bearing: the round-membership guards must be
// evaluated before the plain awaiting cases, which overlap them.
func Classify(d *Delegate, networkHeight uint64) Status {
    if d.Snapshot == nil {
        return d.Status
    }

    var awaiting int64
    switch {
    case d.LastForged != nil:
        awaiting = int64(chain.RoundOf(networkHeight)) - int64(chain.RoundOf(d.LastForged.Height))
    case d.Snapshot.ProducedBlocks == 0:
        awaiting = -1
    default:
        return d.Status
    }

    switch {
    case awaiting == 0:
        return StatusForgedThisRound
    case awaiting == -1:
        return StatusNew
    case !d.RoundMember && awaiting == 1:
        return StatusMissedThisBlock
    case !d.RoundMember && awaiting > 1:
        return StatusMissedMore
    case awaiting == 1:
        return StatusAwaitingForgedLast
    case awaiting == 2:
        return StatusAwaitingMissedLast
    case awaiting > 1:
        return StatusAwaitingMissedMore
    }
    // awaiting < -1: the ledger is ahead of the reported height, keep the
    // previous classification until the snapshots agree again.
    return d.Status
}
