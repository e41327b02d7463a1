package delegate

import "sort"

// ChangeKind tags one roster change detected by Reconcile.
type ChangeKind string

const (
    // ChangeRank indicates a tracked delegate's rank moved between rosters.
    ChangeRank ChangeKind = "rank"
    // ChangeJoined indicates a public key entered the forging set.
    ChangeJoined ChangeKind = "joined"
    // ChangeLeft indicates a public key dropped out of the forging set.
    ChangeLeft ChangeKind = "left"
)

// Change is one roster diff record. For ChangeRank and ChangeJoined the
// Snapshot is the incoming one; for ChangeLeft it is the last snapshot the
// departed delegate was tracked with. RankDelta is newRank-oldRank and only
// set for ChangeRank (negative means the delegate climbed).
type Change struct {
    Kind      ChangeKind
    Snapshot  Snapshot
    RankDelta int
}

// Registry owns the tracked delegate set. It is not safe for concurrent use;
// the monitor serializes all access inside the active cycle.
type Registry struct {
    delegates map[string]*Delegate
}

func NewRegistry() *Registry {
    return &Registry{delegates: make(map[string]*Delegate)}
}

// Get returns the tracked delegate for a public key, if any.
func (r *Registry) Get(publicKey string) (*Delegate, bool) {
    d, ok := r.delegates[publicKey]
    return d, ok
}

// Len returns the number of tracked delegates.
func (r *Registry) Len() int { return len(r.delegates) }

// All returns the tracked delegates ordered by rank (unranked last, then by
// key for stability).
func (r *Registry) All() []*Delegate {
    out := make([]*Delegate, 0, len(r.delegates))
    for _, d := range r.delegates {
        out = append(out, d)
    }
    sort.Slice(out, func(i, j int) bool {
        si, sj := out[i].Snapshot, out[j].Snapshot
        switch {
        case si == nil && sj == nil:
            return out[i].PublicKey < out[j].PublicKey
        case si == nil:
            return false
        case sj == nil:
            return true
        case si.Rank != sj.Rank:
            return si.Rank < sj.Rank
        }
        return out[i].PublicKey < out[j].PublicKey
    })
    return out
}

// Reconcile diffs an incoming roster snapshot against the tracked set and
// applies it. Duplicate keys in the input collapse to the last entry. The
// returned changes follow the processing order: rank moves over pre-update
// state first, then joins, then departures. Snapshots are applied strictly
// after the diff so every comparison observes the previous cycle's values.
func (r *Registry) Reconcile(roster []Snapshot) []Change {
    next := make(map[string]Snapshot, len(roster))
    for _, s := range roster {
        next[s.PublicKey] = s
    }

    var changes []Change

    for key, d := range r.delegates {
        s, ok := next[key]
        if !ok || d.Snapshot == nil {
            continue
        }
        if s.Rank != d.Snapshot.Rank {
            changes = append(changes, Change{Kind: ChangeRank, Snapshot: s, RankDelta: s.Rank - d.Snapshot.Rank})
        }
    }

    for key, s := range next {
        if _, ok := r.delegates[key]; ok {
            continue
        }
        r.delegates[key] = &Delegate{PublicKey: key, Status: StatusUnknown}
        changes = append(changes, Change{Kind: ChangeJoined, Snapshot: s})
    }

    for key, d := range r.delegates {
        if _, ok := next[key]; ok {
            continue
        }
        var last Snapshot
        if d.Snapshot != nil {
            last = *d.Snapshot
        }
        delete(r.delegates, key)
        changes = append(changes, Change{Kind: ChangeLeft, Snapshot: last})
    }

    // Apply last: every remaining key is in next, the set now mirrors the
    // roster exactly.
    for key, d := range r.delegates {
        s := next[key]
        d.Snapshot = &s
    }
    return changes
}
