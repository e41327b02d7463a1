package chain

import "testing"

func TestRoundOf(t *testing.T) {
    cases := []struct {
        height uint64
        want   uint64
    }{
        {0, 0},
        {1, 1},
        {100, 1},
        {101, 1},
        {102, 2},
        {202, 2},
        {203, 3},
        {303, 3},
        {304, 4},
    }
    for _, c := range cases {
        if got := RoundOf(c.height); got != c.want {
            t.Fatalf("RoundOf(%d) = %d, want %d", c.height, got, c.want)
        }
    }
}

func TestRoundBoundary(t *testing.T) {
    // Every round holds exactly RoundSize heights.
    for r := uint64(1); r <= 5; r++ {
        first := (r-1)*RoundSize + 1
        last := r * RoundSize
        if RoundOf(first) != r {
            t.Fatalf("first height %d of round %d classified as %d", first, r, RoundOf(first))
        }
        if RoundOf(last) != r {
            t.Fatalf("last height %d of round %d classified as %d", last, r, RoundOf(last))
        }
        if RoundOf(last+1) != r+1 {
            t.Fatalf("height %d should open round %d, got %d", last+1, r+1, RoundOf(last+1))
        }
    }
}
