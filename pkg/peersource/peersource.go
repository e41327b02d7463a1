package peersource

import (
    "context"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
    "github.com/amirimatin/go-forgewatch/pkg/schedule"
)

// Source is the read-only peer-data contract the monitor consumes. Every
// call may fail; the monitor treats a failure as a transport error, skips
// the rest of the cycle and relies on the next cycle as the retry.
// Implementations must not retry internally.
type Source interface {
    // DelegateRoster returns the current ranked forging set.
    DelegateRoster(ctx context.Context) ([]delegate.Snapshot, error)
    // ForgerSchedule returns the slot counter and the upcoming-forger list.
    ForgerSchedule(ctx context.Context) (schedule.View, error)
    // RecentBlocks returns a bounded window of recent blocks, any order.
    RecentBlocks(ctx context.Context) ([]chain.Block, error)
    // LastBlockOf returns the most recent block forged by a delegate.
    LastBlockOf(ctx context.Context, publicKey string) (chain.Block, error)
}
