package hmm

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/palc/HmmUFOtu/seq"
)

// p7State classifies one aligned residue cell during training.
type p7State byte

const (
	pM p7State = iota // residue in a consensus column
	pI                // residue in an insert column
	pD                // gap in a consensus column
	pP                // padding: gap in an insert column or outside the row
)

// Build trains a profile from a weighted alignment. Columns whose
// weighted symbol fraction reaches symfrac become match positions; the
// effective sequence count is then fitted so the mean relative entropy
// of the match emissions hits the regularisation target.
//
// The result is in local sequence mode but not wing-retracted; callers
// align after WingRetract, or round-trip through Write/Parse.
func Build(msa *seq.MSA, symfrac float64, prior *Prior, name string) (*HMM, error) {
	if msa.MSALen() == 0 {
		return nil, fmt.Errorf("empty alignment")
	}
	if !(symfrac > 0 && symfrac < 1) {
		return nil, fmt.Errorf("symfrac must be between 0 and 1, got %g", symfrac)
	}
	if name == "" {
		name = msa.Name()
	}
	if name == "" {
		name = "unnamed"
	}

	csLen := msa.CSLen()
	if csLen > kMaxProfile {
		return nil, fmt.Errorf("alignment is %d columns wide, limit is %d", csLen, kMaxProfile)
	}
	numSeq := msa.NumSeq()

	// assign consensus columns to match positions
	cs2Profile := make([]int, csLen+1)
	profile2CS := make([]int, 1, csLen+1)
	k := 0
	for j := 1; j <= csLen; j++ {
		if msa.SymWFrac(j-1) >= symfrac {
			k++
			profile2CS = append(profile2CS, j)
		}
		cs2Profile[j] = k
	}
	if k == 0 {
		return nil, fmt.Errorf("no column reaches symfrac=%g; cannot size the profile", symfrac)
	}

	h, err := New(name, k, msa.Abc())
	if err != nil {
		return nil, err
	}
	h.L = csLen
	h.cs2ProfileIdx = cs2Profile
	copy(h.profile2CSIdx, profile2CS)

	h.countObservations(msa)

	h.NSeq = numSeq
	h.EffN = float64(numSeq)

	// fit the effective sequence count to the entropy target
	target := func(x float64) float64 {
		probe := h.Clone()
		if x > probe.EffN {
			return 0
		}
		probe.EffN = x
		probe.Scale(probe.EffN / float64(probe.NSeq))
		probe.EstimateParams(prior)
		return probe.MeanRelativeEntropy() - defaultERE
	}
	effN := rootBisection(target, 0, float64(numSeq))
	if math.IsNaN(effN) {
		effN = float64(numSeq)
	}
	h.EffN = effN
	h.Scale(effN / float64(numSeq))
	h.EstimateParams(prior)

	h.bg.SetFreq(h.MatEmit[0])
	h.setSpEmissionFreq(h.MatEmit[0])

	h.setBuildTags(msa)
	h.extendIndex()
	h.enableProfileLocalMode()
	h.SetSequenceMode(ModeLocal)
	return h, nil
}

// countObservations accumulates weighted emission and transition counts
// from every aligned residue, walking each row from its first to its
// last residue symbol.
func (h *HMM) countObservations(msa *seq.MSA) {
	csLen := msa.CSLen()
	numSeq := msa.NumSeq()

	for j := 1; j <= csLen; j++ {
		k := h.cs2ProfileIdx[j]
		for i := 0; i < numSeq; i++ {
			w := msa.SeqWeight(i)
			sm := h.stateAt(msa, i, j)
			if sm == pP {
				continue
			}

			b := msa.EncodeAt(i, j-1)
			if sm == pM && b >= 0 {
				h.MatEmit[0][b] += w // compositional background
				h.MatEmit[k][b] += w
			} else if sm == pI && b >= 0 {
				h.InsEmit[k][b] += w
			}

			// transition to the next non-padding cell of this row
			jn := j + 1
			smn := pP
			for ; jn <= csLen; jn++ {
				if smn = h.stateAt(msa, i, jn); smn != pP {
					break
				}
			}
			if jn > csLen || smn == pP {
				continue
			}
			if (sm == pI && smn == pD) || (sm == pD && smn == pI) {
				continue
			}
			h.Tmat[k][sm][smn] += w
		}
	}

	// begin and end transitions
	for i := 0; i < numSeq; i++ {
		w := msa.SeqWeight(i)
		start, end := msa.SeqStart(i), msa.SeqEnd(i)
		if start < 0 {
			continue
		}
		h.Tmat[0][stM][h.stateAt(msa, i, start+1)] += w
		h.Tmat[h.K][h.stateAt(msa, i, end+1)][stM] += w
	}
}

// stateAt classifies row i at 1-based column j: a residue symbol in a
// consensus column is a match, a gap there a deletion, a symbol in an
// insert column an insertion; everything else, including cells outside
// the row's own span, is padding.
func (h *HMM) stateAt(msa *seq.MSA, i, j int) p7State {
	if start := msa.SeqStart(i); start < 0 || j-1 < start || j-1 > msa.SeqEnd(i) {
		return pP
	}
	k := h.cs2ProfileIdx[j]
	matchCol := k > 0 && h.profile2CSIdx[k] == j
	symbol := msa.Abc().IsSymbol(msa.CharAt(i, j-1))
	switch {
	case matchCol && symbol:
		return pM
	case matchCol:
		return pD
	case symbol:
		return pI
	}
	return pP
}

func (h *HMM) setBuildTags(msa *seq.MSA) {
	h.SetOptTag("MAXL", strconv.Itoa(h.L))
	h.SetOptTag("RF", "no")
	h.SetOptTag("MM", "no")
	h.SetOptTag("CONS", "yes")
	h.SetOptTag("CS", "no")
	h.SetOptTag("MAP", "yes")
	h.SetOptTag("NSEQ", strconv.Itoa(h.NSeq))
	h.SetOptTag("EFFN", strconv.FormatFloat(h.EffN, 'g', -1, 64))

	for k := 1; k <= h.K; k++ {
		cs := h.profile2CSIdx[k]
		h.SetLocOptTag("MAP", strconv.Itoa(cs), k)
		c := msa.CSBaseAt(cs - 1)
		if msa.WIdentityAt(cs-1) < consThreshold {
			c = lower(c)
		}
		h.SetLocOptTag("CONS", string([]byte{c}), k)
	}

	h.SetOptTag("DATE", time.Now().Format(time.ANSIC))
}

func lower(ch byte) byte {
	if ch >= 'A' && ch <= 'Z' {
		return ch - 'A' + 'a'
	}
	return ch
}

// rootBisection finds a zero of f on (a, b]. It returns NaN when the
// endpoints do not bracket a sign change.
func rootBisection(f func(float64) float64, a, b float64) float64 {
	fa, fb := f(a), f(b)
	if math.IsNaN(fa) || math.IsNaN(fb) || fa*fb > 0 {
		return math.NaN()
	}
	if fa == 0 {
		return a
	}
	if fb == 0 {
		return b
	}
	for i := 0; i < 200 && b-a > 1e-6; i++ {
		mid := (a + b) / 2
		fm := f(mid)
		if fm == 0 {
			return mid
		}
		if fa*fm < 0 {
			b = mid
		} else {
			a, fa = mid, fm
		}
	}
	return (a + b) / 2
}
