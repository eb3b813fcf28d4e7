package hmm

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/palc/HmmUFOtu/seq"
)

// ViterbiScores holds the dynamic-programming layers for one alignment:
// match, insert and delete scores plus the combined exit-score matrix.
// Everything is in cost space, so the minimum wins. A ViterbiScores may
// be reused across calls but never shared between concurrent ones.
type ViterbiScores struct {
	L int

	DPM [][]float64 // (L+1) x (K+1)
	DPI [][]float64 // (L+1) x (K+1)
	DPD [][]float64 // (L+1) x (K+1)
	S   [][]float64 // (L+1) x (K+2); column K+1 is the insert exit
}

// NewViterbiScores allocates DP buffers for a query of length l against
// profile h.
func NewViterbiScores(h *HMM, l int) *ViterbiScores {
	return &ViterbiScores{
		L:   l,
		DPM: infMatrix(l+1, h.K+1),
		DPI: infMatrix(l+1, h.K+1),
		DPD: infMatrix(l+1, h.K+1),
		S:   infMatrix(l+1, h.K+2),
	}
}

func infMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		row := make([]float64, cols)
		for j := range row {
			row[j] = inf
		}
		m[i] = row
	}
	return m
}

func (vs *ViterbiScores) reset() {
	for _, m := range [][][]float64{vs.DPM, vs.DPI, vs.DPD, vs.S} {
		for _, row := range m {
			for j := range row {
				row[j] = inf
			}
		}
	}
}

// MinScore returns the smallest exit score and its cell.
func (vs *ViterbiScores) MinScore() (score float64, row, col int) {
	score = inf
	for i, r := range vs.S {
		for j, v := range r {
			if v < score {
				score, row, col = v, i, j
			}
		}
	}
	return score, row, col
}

// prepareViterbiScores clears the buffers and seeds column 0 with the
// geometric 5'-flank prior; column 0 doubles as the Begin state.
func (h *HMM) prepareViterbiScores(vs *ViterbiScores) {
	vs.reset()
	for i := 1; i <= vs.L; i++ {
		if i == 1 {
			vs.DPM[i][0] = h.TSpCost[spN][spB]
		} else {
			vs.DPM[i][0] = h.TSpCost[spN][spN]*float64(i-1) + h.TSpCost[spN][spB]
		}
		vs.DPI[i][0] = vs.DPM[i][0]
	}
}

func (h *HMM) checkViterbiArgs(sq *seq.PrimarySeq, vs *ViterbiScores) {
	if sq.Length() != vs.L {
		panic(fmt.Sprintf("query length %d does not match DP buffer length %d",
			sq.Length(), vs.L))
	}
	if !h.wingRetracted {
		panic("alignment requested before wing retraction")
	}
}

// fillCell runs the main recurrence at one cell, optionally allowing
// direct entry from the Begin state.
func (h *HMM) fillCell(vs *ViterbiScores, b int8, i, j int, allowEntry bool) {
	mPrev := vs.DPM[i-1][j-1] + h.TmatCost[j-1][stM][stM]
	iPrev := vs.DPI[i-1][j-1] + h.TmatCost[j-1][stI][stM]
	dPrev := vs.DPD[i-1][j-1] + h.TmatCost[j-1][stD][stM]
	best := min(mPrev, iPrev, dPrev)
	if allowEntry {
		best = min(best, vs.DPM[i][0]+h.EntryCost[j])
	}
	vs.DPM[i][j] = h.MatEmitCost[j][b] + best

	vs.DPI[i][j] = h.InsEmitCost[j][b] + min(
		vs.DPM[i-1][j]+h.TmatCost[j][stM][stI],
		vs.DPI[i-1][j]+h.TmatCost[j][stI][stI])

	if j > 1 && j < h.K {
		// the first and last delete states are wing-retracted
		vs.DPD[i][j] = min(
			vs.DPM[i][j-1]+h.TmatCost[j-1][stM][stD],
			vs.DPD[i][j-1]+h.TmatCost[j-1][stD][stD])
	}
}

// finishScores folds exit, E->C and the geometric 3'-flank prior into
// the combined score matrix.
func (h *HMM) finishScores(vs *ViterbiScores) {
	for i := 0; i <= vs.L; i++ {
		for j := 0; j <= h.K; j++ {
			vs.S[i][j] = vs.DPM[i][j] + h.ExitCost[j]
		}
		vs.S[i][h.K+1] = vs.DPI[i][h.K] + h.TmatCost[h.K][stI][stM]
		floats.AddConst(h.TSpCost[spE][spC], vs.S[i])
	}
	for i := 1; i < vs.L; i++ {
		floats.AddConst(h.TSpCost[spC][spC]*float64(vs.L-i), vs.S[i])
	}
}

// CalcViterbiScores fills the full dynamic program for the query. The
// profile must be wing-retracted.
func (h *HMM) CalcViterbiScores(sq *seq.PrimarySeq, vs *ViterbiScores) {
	h.checkViterbiArgs(sq, vs)
	h.prepareViterbiScores(vs)
	for j := 1; j <= h.K; j++ {
		for i := 1; i <= vs.L; i++ {
			h.fillCell(vs, sq.EncodeAt(i-1), i, j, true)
		}
	}
	h.finishScores(vs)
}

// A VPath anchors a known partial alignment: profile range [Start, End],
// query range [From, To] (all 1-based inclusive) and the number of
// inserted and deleted positions along it.
type VPath struct {
	Start, End int
	From, To   int
	NIns, NDel int
}

// diagDist is the anti-diagonal offset of (i, j) from the segment
// anchor: positive when the query runs ahead of the profile.
func diagDist(i, j, from, start int) int {
	return (i - from) - (j - start)
}

// CalcViterbiScoresBanded fills the dynamic program only inside bands
// around the given known path segments, which must be sorted by query
// position. Cells outside every band keep cost inf and can never win.
// With no segments the buffers are left untouched.
func (h *HMM) CalcViterbiScoresBanded(sq *seq.PrimarySeq, vs *ViterbiScores, vpaths []VPath) {
	h.checkViterbiArgs(sq, vs)
	if len(vpaths) == 0 {
		return
	}
	h.prepareViterbiScores(vs)

	for n, vp := range vpaths {
		// band upstream of this segment
		var upQLen, upStart, upFrom int
		if n == 0 {
			upQLen = vp.From - 1
		} else {
			upQLen = vp.From - vpaths[n-1].To
		}
		if upQLen < 0 {
			upQLen = 0
		}
		if n == 0 {
			upStart = vp.Start - int(float64(upQLen)*(1+kMinGapFrac))
			upFrom = vp.From - int(float64(upQLen)*(1+kMinGapFrac))
		} else {
			upStart = vpaths[n-1].End
			upFrom = vpaths[n-1].To
		}
		upStart = max(upStart, 1)
		upFrom = max(upFrom, 1)

		for j := upStart; j <= vp.Start; j++ {
			for i := upFrom; i <= vp.From; i++ {
				h.fillCell(vs, sq.EncodeAt(i-1), i, j, true)
			}
		}

		// inside the segment only a diagonal band is live
		for j := vp.Start; j <= vp.End; j++ {
			for i := vp.From; i <= vp.To; i++ {
				dist := diagDist(i, j, vp.From, vp.Start)
				if dist > vp.NIns || dist < -vp.NDel {
					continue
				}
				h.fillCell(vs, sq.EncodeAt(i-1), i, j, true)
			}
		}
	}

	// band downstream of the last segment; no fresh entry from Begin
	last := vpaths[len(vpaths)-1]
	downQLen := vs.L - last.To
	downEnd := min(h.K, last.End+int(float64(downQLen)*(1+kMinGapFrac)))
	downTo := min(vs.L, last.To+int(float64(downQLen)*(1+kMinGapFrac)))
	for j := last.End; j <= downEnd; j++ {
		for i := last.To; i <= downTo; i++ {
			h.fillCell(vs, sq.EncodeAt(i-1), i, j, false)
		}
	}

	h.finishScores(vs)
}

// A CSLoc is a seed hit expressed on the consensus: the 1-based column
// range it covers and its gapped consensus-row text.
type CSLoc struct {
	Start, End int
	CS         string
}

// BuildAlignPath converts a consensus seed hit spanning query positions
// [csFrom, csTo] into a profile-coordinate known path segment.
func (h *HMM) BuildAlignPath(loc CSLoc, csFrom, csTo int) (VPath, error) {
	if loc.Start <= 0 || loc.End < loc.Start || loc.End-loc.Start+1 != len(loc.CS) {
		return VPath{}, fmt.Errorf("inconsistent consensus location %d-%d for %d columns",
			loc.Start, loc.End, len(loc.CS))
	}
	nSym := 0
	for n := 0; n < len(loc.CS); n++ {
		if h.abc.IsSymbol(loc.CS[n]) {
			nSym++
		}
	}
	if csFrom <= 0 || csTo-csFrom+1 != nSym {
		return VPath{}, fmt.Errorf("query range %d-%d does not hold the %d hit residues",
			csFrom, csTo, nSym)
	}

	var vp VPath
	i, j := csFrom, loc.Start
	for n := 0; n < len(loc.CS); n++ {
		k := h.ProfileLoc(j)
		nonGap := h.abc.IsSymbol(loc.CS[n])
		if vp.From == 0 && nonGap {
			vp.From = i
		}
		if nonGap {
			vp.To = i
		}
		if k != 0 {
			if vp.Start == 0 {
				vp.Start = k
			}
			vp.End = k
			if !nonGap {
				vp.NDel++
			}
		} else if nonGap {
			vp.NIns++
		}
		j++
		if nonGap {
			i++
		}
	}
	return vp, nil
}
