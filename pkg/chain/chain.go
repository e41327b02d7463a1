package chain

// RoundSize is the fixed number of forging slots per round (the consensus
// set size). Every delegate in the forging set gets exactly one slot per
// round.
const RoundSize = 101

// Block is the minimal view of a chain block the monitor cares about.
// Immutable once ingested.
type Block struct {
    Height             uint64 `json:"height"`
    GeneratorPublicKey string `json:"generatorPublicKey"`
}

// RoundOf returns the 1-based round a height belongs to: ceil(h/RoundSize).
// RoundOf(0) is 0 (no block yet).
func RoundOf(height uint64) uint64 {
    return (height + RoundSize - 1) / RoundSize
}
