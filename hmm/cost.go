package hmm

import (
	"math"
	"strconv"
)

// All dynamic programming runs in additive negative-log cost space, where
// smaller is better and inf marks an impossible transition or emission.
var inf = math.Inf(1)

func costOf(p float64) float64 {
	return -math.Log(p)
}

func probOf(c float64) float64 {
	return math.Exp(-c)
}

// parseCost reads one HMMER profile value: "*" is an impossible
// transition, anything else is a negative-log probability.
func parseCost(tok string) (float64, error) {
	if tok == "*" {
		return inf, nil
	}
	c, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	return c, nil
}

// formatCost renders a cost the way parseCost reads it.
func formatCost(c float64) string {
	if math.IsInf(c, 1) {
		return "*"
	}
	return strconv.FormatFloat(c, 'f', 5, 64)
}

// whichMin returns the label of the smallest candidate; ties go to the
// earliest listed. len(labels) must equal len(vals).
func whichMin(vals []float64, labels string) byte {
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[best] {
			best = i
		}
	}
	return labels[best]
}
