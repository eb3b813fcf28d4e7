package hmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/palc/HmmUFOtu/seq"
)

// Main states of a Plan7 profile position.
const (
	stM = iota
	stI
	stD
	nMain
)

// Special flanking states.
const (
	spN = iota
	spB
	spE
	spC
	nSpecial
)

const (
	// kMaxProfile bounds both the profile length and the consensus
	// width; 16S rRNA profiles stay well under it.
	kMaxProfile = 10000

	// kMinGapFrac widens search bands relative to the flanking query
	// length.
	kMinGapFrac = 0.2

	consThreshold = 0.9
	defaultERE    = 1.0
)

// A TMat holds the per-position transition probabilities (or costs)
// between the three main states. Rows are source states, columns are
// destination states; I->D and D->I stay zero (cost inf).
type TMat [nMain][nMain]float64

// An HMM is a Plan7 profile hidden Markov model over DNA. Position 0 of
// every per-position array doubles as the Begin state; emissions at
// column 0 of the match table carry the compositional background.
//
// Probabilities and their negative-log costs are kept side by side; the
// cost view is the one the alignment recurrence reads. Every mutator
// refreshes the cost view before returning.
type HMM struct {
	Name    string
	Version string

	K int // profile length
	L int // consensus width

	abc *seq.DegenAlphabet
	bg  Background

	Tmat     []TMat
	TmatCost []TMat

	MatEmit     [][4]float64
	MatEmitCost [][4]float64
	InsEmit     [][4]float64
	InsEmitCost [][4]float64

	TSp        [nSpecial][nSpecial]float64
	TSpCost    [nSpecial][nSpecial]float64
	SpEmit     [nSpecial][4]float64
	SpEmitCost [nSpecial][4]float64

	EntryPr   []float64
	ExitPr    []float64
	EntryCost []float64
	ExitCost  []float64

	gapBeforeLimit []int
	gapAfterLimit  []int

	cs2ProfileIdx []int
	profile2CSIdx []int

	optTagNames []string
	optTags     map[string]string
	locOptTags  map[string][]string

	NSeq int
	EffN float64

	wingRetracted bool
}

// New creates an empty profile of length k. Only the DNA alphabet is
// supported.
func New(name string, k int, abc *seq.DegenAlphabet) (*HMM, error) {
	if abc.Alias() != "DNA" || abc.Size() != 4 {
		return nil, fmt.Errorf("profile HMMs support only the DNA alphabet, got %q", abc.Alias())
	}
	if k <= 0 || k > kMaxProfile {
		return nil, fmt.Errorf("invalid profile length %d", k)
	}
	h := &HMM{
		Name:       name,
		abc:        abc,
		bg:         NewBackground(k),
		optTags:    make(map[string]string),
		locOptTags: make(map[string][]string),
	}
	h.SetProfileSize(k)
	h.enableProfileLocalMode()
	h.setSpEmissionFreq(h.bg.EmitPr())
	return h, nil
}

func (h *HMM) Abc() *seq.DegenAlphabet {
	return h.abc
}

func (h *HMM) Bg() Background {
	return h.bg
}

func (h *HMM) WingRetracted() bool {
	return h.wingRetracted
}

// SetProfileSize resizes every per-position array to k+1 slots and
// resets them to the impossible state.
func (h *HMM) SetProfileSize(k int) {
	h.K = k
	h.bg.SetSize(k)
	h.initTransitionParams()
	h.initEmissionParams()
	h.initSpecialParams()
	h.initLimits()
	if h.profile2CSIdx == nil || len(h.profile2CSIdx) != k+1 {
		h.profile2CSIdx = make([]int, k+1)
	}
	if h.cs2ProfileIdx == nil {
		h.cs2ProfileIdx = make([]int, 1)
	}
	h.wingRetracted = false
}

func (h *HMM) initTransitionParams() {
	h.Tmat = make([]TMat, h.K+1)
	h.TmatCost = make([]TMat, h.K+1)
	for k := range h.TmatCost {
		for i := 0; i < nMain; i++ {
			for j := 0; j < nMain; j++ {
				h.TmatCost[k][i][j] = inf
			}
		}
	}
}

func (h *HMM) initEmissionParams() {
	h.MatEmit = make([][4]float64, h.K+1)
	h.InsEmit = make([][4]float64, h.K+1)
	h.MatEmitCost = make([][4]float64, h.K+1)
	h.InsEmitCost = make([][4]float64, h.K+1)
	for k := 0; k <= h.K; k++ {
		h.MatEmitCost[k] = [4]float64{inf, inf, inf, inf}
		h.InsEmitCost[k] = [4]float64{inf, inf, inf, inf}
	}
}

func (h *HMM) initSpecialParams() {
	h.EntryPr = make([]float64, h.K+1)
	h.ExitPr = make([]float64, h.K+1)
	h.EntryCost = make([]float64, h.K+1)
	h.ExitCost = make([]float64, h.K+1)
	for k := 0; k <= h.K; k++ {
		h.EntryCost[k] = inf
		h.ExitCost[k] = inf
	}
	for i := 0; i < nSpecial; i++ {
		for j := 0; j < nSpecial; j++ {
			h.TSp[i][j] = 0
			h.TSpCost[i][j] = inf
		}
		h.SpEmit[i] = [4]float64{}
		h.SpEmitCost[i] = [4]float64{inf, inf, inf, inf}
	}
}

func (h *HMM) initLimits() {
	h.gapBeforeLimit = make([]int, h.K+1)
	h.gapAfterLimit = make([]int, h.K+1)
	for j := 1; j <= h.K; j++ {
		h.gapBeforeLimit[j] = int(float64(j) * kMinGapFrac)
		h.gapAfterLimit[j] = int(float64(h.K-j) * kMinGapFrac)
	}
}

// ensureCSIndex grows the consensus index to hold column j.
func (h *HMM) ensureCSIndex(j int) {
	for len(h.cs2ProfileIdx) <= j {
		h.cs2ProfileIdx = append(h.cs2ProfileIdx, 0)
	}
}

// extendIndex points every consensus column past the last mapped one at
// the final profile position, so off-end lookups clamp instead of
// overflowing.
func (h *HMM) extendIndex() {
	last := h.profile2CSIdx[h.K]
	for j := last + 1; j <= h.L && j < kMaxProfile; j++ {
		h.ensureCSIndex(j)
		h.cs2ProfileIdx[j] = h.K
	}
}

// ProfileLoc maps a 1-based consensus column to the profile position
// whose match state owns it; insert-only columns map to the position on
// their left and off-end columns clamp to K.
func (h *HMM) ProfileLoc(csLoc int) int {
	if csLoc <= 0 {
		return 0
	}
	if csLoc < len(h.cs2ProfileIdx) {
		return h.cs2ProfileIdx[csLoc]
	}
	return h.K
}

// CSLocOf maps a profile position to its 1-based consensus column.
func (h *HMM) CSLocOf(k int) int {
	if k < 0 || k >= len(h.profile2CSIdx) {
		return 0
	}
	return h.profile2CSIdx[k]
}

// pinBoundaries enforces the fixed Begin/End delete-transition cells and
// rescales the last match row so it still sums to one without its M->D
// cell.
func (h *HMM) pinBoundaries() {
	h.Tmat[0][stD][stM] = 1
	h.Tmat[0][stD][stD] = 0
	h.Tmat[h.K][stM][stD] = 0
	if total := h.Tmat[h.K][stM][stM] + h.Tmat[h.K][stM][stI]; total > 0 {
		h.Tmat[h.K][stM][stM] /= total
		h.Tmat[h.K][stM][stI] /= total
	}
	h.Tmat[h.K][stD][stM] = 1
	h.Tmat[h.K][stD][stD] = 0
}

// resetCostByProb rebuilds every cost array from its probability twin.
func (h *HMM) resetCostByProb() {
	for k := 0; k <= h.K; k++ {
		for i := 0; i < nMain; i++ {
			for j := 0; j < nMain; j++ {
				h.TmatCost[k][i][j] = costOf(h.Tmat[k][i][j])
			}
		}
		for b := 0; b < 4; b++ {
			h.MatEmitCost[k][b] = costOf(h.MatEmit[k][b])
			h.InsEmitCost[k][b] = costOf(h.InsEmit[k][b])
		}
		h.EntryCost[k] = costOf(h.EntryPr[k])
		h.ExitCost[k] = costOf(h.ExitPr[k])
	}
	for i := 0; i < nSpecial; i++ {
		for j := 0; j < nSpecial; j++ {
			h.TSpCost[i][j] = costOf(h.TSp[i][j])
		}
		for b := 0; b < 4; b++ {
			h.SpEmitCost[i][b] = costOf(h.SpEmit[i][b])
		}
	}
}

// resetProbByCost rebuilds the main probability arrays from the cost
// view; the parser fills costs first and derives probabilities once.
func (h *HMM) resetProbByCost() {
	for k := 0; k <= h.K; k++ {
		for i := 0; i < nMain; i++ {
			for j := 0; j < nMain; j++ {
				h.Tmat[k][i][j] = probOf(h.TmatCost[k][i][j])
			}
		}
		for b := 0; b < 4; b++ {
			h.MatEmit[k][b] = probOf(h.MatEmitCost[k][b])
			h.InsEmit[k][b] = probOf(h.InsEmitCost[k][b])
		}
	}
}

// Scale multiplies all raw transition and emission counts by r and
// rebuilds costs. Used while fitting the effective sequence count.
func (h *HMM) Scale(r float64) {
	for k := 0; k <= h.K; k++ {
		for i := 0; i < nMain; i++ {
			floats.Scale(r, h.Tmat[k][i][:])
		}
		floats.Scale(r, h.MatEmit[k][:])
		floats.Scale(r, h.InsEmit[k][:])
	}
	h.resetCostByProb()
}

// Normalize turns raw counts into probabilities: transition rows and
// emission columns each sum to one, with the Begin/End boundary cells
// re-pinned afterwards. Empty rows are left untouched.
func (h *HMM) Normalize() {
	for k := 0; k <= h.K; k++ {
		for i := 0; i < nMain; i++ {
			if total := floats.Sum(h.Tmat[k][i][:]); total > 0 {
				floats.Scale(1/total, h.Tmat[k][i][:])
			}
		}
		if total := floats.Sum(h.MatEmit[k][:]); total > 0 {
			floats.Scale(1/total, h.MatEmit[k][:])
		}
		if total := floats.Sum(h.InsEmit[k][:]); total > 0 {
			floats.Scale(1/total, h.InsEmit[k][:])
		}
	}
	h.pinBoundaries()
	h.resetCostByProb()
}

// EstimateParams replaces every observed count vector with its posterior
// mean under the matching Dirichlet mixture, re-pins the boundaries and
// rebuilds costs.
func (h *HMM) EstimateParams(prior *Prior) {
	for k := 0; k <= h.K; k++ {
		mRow := prior.DmMT.MeanPostP(h.Tmat[k][stM][:])
		copy(h.Tmat[k][stM][:], mRow)

		iRow := prior.DmIT.MeanPostP([]float64{h.Tmat[k][stI][stM], h.Tmat[k][stI][stI]})
		h.Tmat[k][stI][stM] = iRow[0]
		h.Tmat[k][stI][stI] = iRow[1]

		dRow := prior.DmDT.MeanPostP([]float64{h.Tmat[k][stD][stM], h.Tmat[k][stD][stD]})
		h.Tmat[k][stD][stM] = dRow[0]
		h.Tmat[k][stD][stD] = dRow[1]

		me := prior.DmME.MeanPostP(h.MatEmit[k][:])
		copy(h.MatEmit[k][:], me)
		ie := prior.DmIE.MeanPostP(h.InsEmit[k][:])
		copy(h.InsEmit[k][:], ie)
	}
	h.pinBoundaries()
	h.resetCostByProb()
}

// MeanRelativeEntropy averages, over all match positions, the relative
// entropy of the match emission against the background composition.
func (h *HMM) MeanRelativeEntropy() float64 {
	bg := h.bg.EmitPr()
	var ent float64
	for k := 1; k <= h.K; k++ {
		ent += relativeEntropy(h.MatEmit[k][:], bg[:])
	}
	return ent / float64(h.K)
}

func relativeEntropy(p, q []float64) float64 {
	var ent float64
	for i := range p {
		if p[i] > 0 {
			ent += p[i] * math.Log(p[i]/q[i])
		}
	}
	return ent
}

// Clone returns a deep copy sharing only the alphabet.
func (h *HMM) Clone() *HMM {
	c := *h
	c.Tmat = append([]TMat(nil), h.Tmat...)
	c.TmatCost = append([]TMat(nil), h.TmatCost...)
	c.MatEmit = append([][4]float64(nil), h.MatEmit...)
	c.MatEmitCost = append([][4]float64(nil), h.MatEmitCost...)
	c.InsEmit = append([][4]float64(nil), h.InsEmit...)
	c.InsEmitCost = append([][4]float64(nil), h.InsEmitCost...)
	c.EntryPr = append([]float64(nil), h.EntryPr...)
	c.ExitPr = append([]float64(nil), h.ExitPr...)
	c.EntryCost = append([]float64(nil), h.EntryCost...)
	c.ExitCost = append([]float64(nil), h.ExitCost...)
	c.gapBeforeLimit = append([]int(nil), h.gapBeforeLimit...)
	c.gapAfterLimit = append([]int(nil), h.gapAfterLimit...)
	c.cs2ProfileIdx = append([]int(nil), h.cs2ProfileIdx...)
	c.profile2CSIdx = append([]int(nil), h.profile2CSIdx...)
	c.optTagNames = append([]string(nil), h.optTagNames...)
	c.optTags = make(map[string]string, len(h.optTags))
	for name, val := range h.optTags {
		c.optTags[name] = val
	}
	c.locOptTags = make(map[string][]string, len(h.locOptTags))
	for name, vals := range h.locOptTags {
		c.locOptTags[name] = append([]string(nil), vals...)
	}
	return &c
}

// OptTag returns the value of a header tag, or "" when absent.
func (h *HMM) OptTag(name string) string {
	return h.optTags[name]
}

// SetOptTag records a header tag, preserving first-seen order for the
// writer.
func (h *HMM) SetOptTag(name, val string) {
	if _, ok := h.optTags[name]; !ok {
		h.optTagNames = append(h.optTagNames, name)
	}
	h.optTags[name] = val
}

// OptTagNames returns the header tags in the order they were recorded.
func (h *HMM) OptTagNames() []string {
	return h.optTagNames
}

// LocOptTag returns the per-position annotation of a tag at position k.
func (h *HMM) LocOptTag(name string, k int) string {
	vals := h.locOptTags[name]
	if k < 0 || k >= len(vals) {
		return "-"
	}
	return vals[k]
}

// SetLocOptTag records a per-position annotation at position k.
func (h *HMM) SetLocOptTag(name, val string, k int) {
	vals := h.locOptTags[name]
	for len(vals) <= k {
		vals = append(vals, "-")
	}
	vals[k] = val
	h.locOptTags[name] = vals
}

// validateIndex checks that the consensus maps are monotone and that no
// match position lost its column.
func (h *HMM) validateIndex() error {
	for k := 2; k <= h.K; k++ {
		if h.profile2CSIdx[k] <= h.profile2CSIdx[k-1] {
			return fmt.Errorf("consensus map not increasing at position %d", k)
		}
	}
	for k := 1; k <= h.K; k++ {
		if h.profile2CSIdx[k] == 0 {
			return fmt.Errorf("match position %d has no consensus column", k)
		}
	}
	return nil
}
