package hmm

import (
	"gonum.org/v1/gonum/floats"
)

// AlignMode selects whether the 5' and 3' flanks of the query may loop
// in the N and C states (local) or must enter/leave the profile
// immediately (global).
type AlignMode int

const (
	ModeGlobal AlignMode = iota // global on both ends
	ModeLocal                   // local on both ends
	ModeNGCL                    // global 5', local 3'
	ModeCGNL                    // local 5', global 3'
)

// SetSequenceMode configures the special-state transitions for the given
// flank mode. Exit always goes through E->C.
func (h *HMM) SetSequenceMode(mode AlignMode) {
	switch mode {
	case ModeGlobal:
		h.TSp[spN][spN] = 0
		h.TSp[spC][spC] = 0
	case ModeLocal:
		h.TSp[spN][spN] = h.bg.TermPr()
		h.TSp[spC][spC] = h.bg.TermPr()
	case ModeNGCL:
		h.TSp[spN][spN] = 0
		h.TSp[spC][spC] = h.bg.TermPr()
	case ModeCGNL:
		h.TSp[spN][spN] = h.bg.TermPr()
		h.TSp[spC][spC] = 0
	}
	h.TSp[spN][spB] = 1 - h.TSp[spN][spN]
	h.TSp[spE][spC] = 1
	for i := 0; i < nSpecial; i++ {
		for j := 0; j < nSpecial; j++ {
			h.TSpCost[i][j] = costOf(h.TSp[i][j])
		}
	}
}

// setSpEmissionFreq sets the N and C flanking states to emit at the
// given composition; B and E do not emit.
func (h *HMM) setSpEmissionFreq(freq [4]float64) {
	total := floats.Sum(freq[:])
	for b := 0; b < 4; b++ {
		h.SpEmit[spN][b] = freq[b] / total
		h.SpEmit[spC][b] = freq[b] / total
		h.SpEmit[spB][b] = 0
		h.SpEmit[spE][b] = 0
	}
	for i := 0; i < nSpecial; i++ {
		for b := 0; b < 4; b++ {
			h.SpEmitCost[i][b] = costOf(h.SpEmit[i][b])
		}
	}
}

// enableProfileLocalMode spreads the free entry/exit mass uniformly over
// all match positions.
func (h *HMM) enableProfileLocalMode() {
	free := 1 - h.bg.TransPr()
	h.EntryPr[0] = 0
	h.ExitPr[0] = 0
	for k := 1; k <= h.K; k++ {
		h.EntryPr[k] = free
		h.ExitPr[k] = free
	}
	h.resetEntryExitCost()
}

// adjustProfileLocalMode rebases the uniform entry/exit mass on the
// profile's own begin and end match transitions, as read from a profile
// file.
func (h *HMM) adjustProfileLocalMode() {
	h.EntryPr[0] = 0
	h.ExitPr[0] = 0
	for k := 1; k <= h.K; k++ {
		h.EntryPr[k] = h.Tmat[0][stM][stM]
		h.ExitPr[k] = h.Tmat[h.K][stM][stM]
	}
	h.resetEntryExitCost()
}

func (h *HMM) resetEntryExitCost() {
	for k := 0; k <= h.K; k++ {
		h.EntryCost[k] = costOf(h.EntryPr[k])
		h.ExitCost[k] = costOf(h.ExitPr[k])
	}
}

// WingRetract folds every pure-deletion path from Begin into a match
// position onto its direct entry probability, and every pure-deletion
// path from a match position to End onto its exit probability. The
// alignment recurrence may then ignore the first and last delete states
// entirely. Retracting twice is a no-op.
func (h *HMM) WingRetract() {
	if h.wingRetracted {
		return
	}
	// B -> D1 -> ... -> Dj-1 -> Mj
	for j := 2; j <= h.K; j++ {
		cost := h.TmatCost[0][stM][stD]
		for i := 1; i < j-1; i++ {
			cost += h.TmatCost[i][stD][stD]
		}
		cost += h.TmatCost[j-1][stD][stM]
		h.EntryPr[j] += probOf(cost)
		if h.EntryPr[j] > 1 {
			h.EntryPr[j] = 1
		}
	}
	// Mi -> Di+1 -> ... -> DK -> E
	for i := 1; i <= h.K-1; i++ {
		cost := h.TmatCost[i][stM][stD]
		for j := i + 1; j < h.K; j++ {
			cost += h.TmatCost[j][stD][stD]
		}
		cost += h.TmatCost[h.K][stD][stM]
		h.ExitPr[i] += probOf(cost)
		if h.ExitPr[i] > 1 {
			h.ExitPr[i] = 1
		}
	}
	h.resetEntryExitCost()
	h.wingRetracted = true
}
