package ledger

import (
    "context"
    "fmt"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
)

// LastBlockSource is the narrow slice of the peer contract Backfill needs:
// the most recent block forged by a given delegate.
type LastBlockSource interface {
    LastBlockOf(ctx context.Context, publicKey string) (chain.Block, error)
}

// Ledger is an append-only, deduplicated height→block map over the recent
// block window, plus per-delegate last-forged bookkeeping. Not safe for
// concurrent use; the monitor serializes all access inside the active cycle.
type Ledger struct {
    blocks map[uint64]chain.Block
    best   uint64
}

func New() *Ledger {
    return &Ledger{blocks: make(map[uint64]chain.Block)}
}

// BestHeight returns the highest ingested height (0 when empty). It is the
// monitor's notion of network height.
func (l *Ledger) BestHeight() uint64 { return l.best }

// Len returns the number of retained blocks.
func (l *Ledger) Len() int { return len(l.blocks) }

// GeneratorAt returns the generator public key of the block at a height, if
// the ledger holds it.
func (l *Ledger) GeneratorAt(height uint64) (string, bool) {
    b, ok := l.blocks[height]
    return b.GeneratorPublicKey, ok
}

// Ingest records blocks in any order, skipping heights already held: a
// height entry is never overwritten, so re-ingesting a window is a no-op.
// For every newly stored block by a tracked delegate the delegate's
// LastForged advances if the block is newer; it never moves backwards.
// Returns the number of newly stored blocks.
func (l *Ledger) Ingest(blocks []chain.Block, reg *delegate.Registry) int {
    stored := 0
    for _, b := range blocks {
        if _, ok := l.blocks[b.Height]; ok {
            continue
        }
        l.blocks[b.Height] = b
        stored++
        if b.Height > l.best {
            l.best = b.Height
        }
        d, ok := reg.Get(b.GeneratorPublicKey)
        if !ok {
            continue
        }
        if d.LastForged == nil || d.LastForged.Height < b.Height {
            blk := b
            d.LastForged = &blk
        }
    }
    return stored
}

// Backfill resolves the last forged block for tracked delegates whose
// snapshot reports produced blocks but whose LastForged is still unknown
// (their most recent block fell outside the retained window). One lookup per
// delegate; the first failure aborts, leaving the remaining delegates for
// the next cycle. Returns the number of lookups performed.
func (l *Ledger) Backfill(ctx context.Context, reg *delegate.Registry, src LastBlockSource) (int, error) {
    looked := 0
    for _, d := range reg.All() {
        if d.LastForged != nil || d.Snapshot == nil || d.Snapshot.ProducedBlocks == 0 {
            continue
        }
        b, err := src.LastBlockOf(ctx, d.PublicKey)
        if err != nil {
            return looked, fmt.Errorf("backfill %s: %w", d.PublicKey, err)
        }
        looked++
        blk := b
        d.LastForged = &blk
    }
    return looked, nil
}
