package delegate

import (
    "github.com/amirimatin/go-forgewatch/pkg/chain"
)

// Snapshot is one roster entry as reported by the peer API. It is replaced
// wholesale on every roster cycle.
type Snapshot struct {
    PublicKey      string `json:"publicKey"`
    Rank           int    `json:"rank"`
    ProducedBlocks int    `json:"producedblocks"`
}

// Status classifies a delegate's forging health relative to the current
// network round. The set is closed; the monitor relies on exhaustive
// handling of these values.
type Status string

const (
    // StatusUnknown is the zero state before the first classification.
    StatusUnknown Status = "unknown"
    // StatusForgedThisRound means the last forged block is in the current round.
    StatusForgedThisRound Status = "forged_this_round"
    // StatusNew means the delegate has never produced a block.
    StatusNew Status = "new"
    // StatusMissedThisBlock means the delegate fell out of the round after
    // forging in the previous one.
    StatusMissedThisBlock Status = "missed_this_block"
    // StatusMissedMore means the delegate is out of the round and has not
    // forged for more than one round.
    StatusMissedMore Status = "missed_more"
    // StatusAwaitingForgedLast means the delegate forged last round and still
    // has a slot coming up in this one.
    StatusAwaitingForgedLast Status = "awaiting_forged_last"
    // StatusAwaitingMissedLast means the delegate skipped the previous round
    // but still has a slot coming up.
    StatusAwaitingMissedLast Status = "awaiting_missed_last"
    // StatusAwaitingMissedMore means the delegate skipped several rounds but
    // still has a slot coming up.
    StatusAwaitingMissedMore Status = "awaiting_missed_more"
)

// Delegate is the tracked per-delegate state, keyed by public key and owned
// exclusively by the Registry. Snapshot is nil until the first roster
// reconciliation applies one; LastForged is nil until a block by this
// delegate is seen or backfilled.
type Delegate struct {
    PublicKey   string       `json:"publicKey"`
    Snapshot    *Snapshot    `json:"snapshot,omitempty"`
    LastForged  *chain.Block `json:"lastForged,omitempty"`
    NextSlot    int64        `json:"nextSlot"`
    RoundMember bool         `json:"roundMember"`
    Status      Status       `json:"status"`
}

// Clone returns a deep copy safe to hand to event subscribers while the
// registry keeps mutating the original.
func (d *Delegate) Clone() *Delegate {
    cp := *d
    if d.Snapshot != nil {
        s := *d.Snapshot
        cp.Snapshot = &s
    }
    if d.LastForged != nil {
        b := *d.LastForged
        cp.LastForged = &b
    }
    return &cp
}
