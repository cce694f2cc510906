// Package patterns detects volatility contraction patterns and primary bases.
package patterns

// SwingKind distinguishes local peaks from troughs.
type SwingKind int

const (
	SwingPeak SwingKind = iota + 1
	SwingTrough
)

// Swing is a local extreme at a bar index.
type Swing struct {
	Index int
	Price float64
	Kind  SwingKind
}

// Swings extracts alternating peaks (on highs) and troughs (on lows) using a
// zigzag filter: an extreme is confirmed once price reverses by at least
// minMovePct percent from it. The last, still unconfirmed extreme is appended
// so a contraction in progress is visible.
func Swings(highs, lows []float64, minMovePct float64) []Swing {
	n := len(highs)
	if n == 0 || len(lows) != n {
		return nil
	}
	th := minMovePct / 100

	var out []Swing
	dir := 0
	hi, lo := 0, 0
	for i := 1; i < n; i++ {
		switch dir {
		case 0:
			if highs[i] > highs[hi] {
				hi = i
			}
			if lows[i] < lows[lo] {
				lo = i
			}
			switch {
			case lo < hi && highs[hi] >= lows[lo]*(1+th):
				out = append(out, Swing{Index: lo, Price: lows[lo], Kind: SwingTrough})
				dir = 1
			case hi < lo && lows[lo] <= highs[hi]*(1-th):
				out = append(out, Swing{Index: hi, Price: highs[hi], Kind: SwingPeak})
				dir = -1
			}
		case 1:
			if highs[i] > highs[hi] {
				hi = i
			} else if lows[i] <= highs[hi]*(1-th) {
				out = append(out, Swing{Index: hi, Price: highs[hi], Kind: SwingPeak})
				dir, lo = -1, i
			}
		case -1:
			if lows[i] < lows[lo] {
				lo = i
			} else if highs[i] >= lows[lo]*(1+th) {
				out = append(out, Swing{Index: lo, Price: lows[lo], Kind: SwingTrough})
				dir, hi = 1, i
			}
		}
	}

	switch dir {
	case 1:
		out = append(out, Swing{Index: hi, Price: highs[hi], Kind: SwingPeak})
	case -1:
		out = append(out, Swing{Index: lo, Price: lows[lo], Kind: SwingTrough})
	}
	return out
}
