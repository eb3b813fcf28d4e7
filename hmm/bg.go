package hmm

import (
	"gonum.org/v1/gonum/floats"
)

// A Background models unaligned sequence as a geometric-length run of
// residues drawn from a fixed base composition. Its loop length K sets
// the expected run length.
type Background struct {
	k    int
	freq [4]float64
}

func NewBackground(k int) Background {
	return Background{
		k:    k,
		freq: [4]float64{0.25, 0.25, 0.25, 0.25},
	}
}

func (bg *Background) SetSize(k int) {
	bg.k = k
}

// SetFreq replaces the base composition, renormalising it.
func (bg *Background) SetFreq(freq [4]float64) {
	total := floats.Sum(freq[:])
	if total <= 0 {
		return
	}
	for i := range freq {
		bg.freq[i] = freq[i] / total
	}
}

func (bg *Background) EmitPr() [4]float64 {
	return bg.freq
}

// TransPr is the probability of staying in the background run.
func (bg *Background) TransPr() float64 {
	return float64(bg.k) / float64(bg.k+1)
}

// TermPr is the probability of leaving the background run.
func (bg *Background) TermPr() float64 {
	return 1 / float64(bg.k+1)
}
