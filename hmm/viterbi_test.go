package hmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palc/HmmUFOtu/seq"
)

// newDeltaHMM builds a sharp test profile whose match states emit
// exactly the consensus bases, with mild insert/delete transitions and
// one consensus column per match position.
func newDeltaHMM(tb testing.TB, consensus string) *HMM {
	tb.Helper()
	h, err := New("delta", len(consensus), seq.DNA())
	require.NoError(tb, err)

	for k := 0; k <= h.K; k++ {
		h.Tmat[k] = TMat{
			{0.8, 0.1, 0.1}, // M -> M, I, D
			{0.8, 0.2, 0},   // I -> M, I
			{0.8, 0, 0.2},   // D -> M, D
		}
		h.InsEmit[k] = [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	h.MatEmit[0] = [4]float64{0.25, 0.25, 0.25, 0.25}
	for k := 1; k <= h.K; k++ {
		b := h.abc.Encode(consensus[k-1])
		require.GreaterOrEqual(tb, b, int8(0))
		h.MatEmit[k][b] = 1
	}
	h.pinBoundaries()

	h.L = h.K
	h.cs2ProfileIdx = make([]int, h.K+1)
	for k := 0; k <= h.K; k++ {
		h.cs2ProfileIdx[k] = k
		h.profile2CSIdx[k] = k
	}

	h.resetCostByProb()
	h.SetSequenceMode(ModeLocal)
	h.enableProfileLocalMode()
	h.WingRetract()
	return h
}

func alignQuery(tb testing.TB, h *HMM, query string) (*ViterbiScores, ViterbiAlignTrace) {
	tb.Helper()
	sq, err := seq.NewPrimarySeq("query", query, h.abc)
	require.NoError(tb, err)
	vs := NewViterbiScores(h, sq.Length())
	h.CalcViterbiScores(sq, vs)
	var vt ViterbiAlignTrace
	h.BuildViterbiTrace(vs, &vt)
	return vs, vt
}

func TestViterbiTrivialMatch(t *testing.T) {
	h := newDeltaHMM(t, "ACGT")
	_, vt := alignQuery(t, h, "ACGT")

	require.True(t, vt.Valid())
	assert.Equal(t, "BMMMME", vt.AlnTrace)
	assert.Equal(t, 1, vt.AlnStart)
	assert.Equal(t, 4, vt.AlnEnd)
	assert.Equal(t, 1, vt.AlnFrom)
	assert.Equal(t, 4, vt.AlnTo)

	// only entry, match extensions and exit are paid
	want := h.TSpCost[spN][spB] + h.EntryCost[1] +
		h.TmatCost[1][stM][stM] + h.TmatCost[2][stM][stM] + h.TmatCost[3][stM][stM] +
		h.ExitCost[4] + h.TSpCost[spE][spC]
	assert.InDelta(t, want, vt.MinScore, 1e-9)
}

func TestViterbiTrivialMatchAlignment(t *testing.T) {
	h := newDeltaHMM(t, "ACGT")
	sq, err := seq.NewPrimarySeq("query", "ACGT", h.abc)
	require.NoError(t, err)
	vs := NewViterbiScores(h, sq.Length())
	h.CalcViterbiScores(sq, vs)
	var vt ViterbiAlignTrace
	h.BuildViterbiTrace(vs, &vt)

	aln := h.BuildGlobalAlign(sq, vs, &vt)
	assert.Equal(t, "ACGT", aln.Align)
	assert.Len(t, aln.Align, h.L)
	assert.Equal(t, h.profile2CSIdx[aln.HmmStart], aln.CSStart)
	assert.Equal(t, h.profile2CSIdx[aln.HmmEnd], aln.CSEnd)
}

func TestViterbiSingleInsertion(t *testing.T) {
	h := newDeltaHMM(t, "ACGT")
	sq, err := seq.NewPrimarySeq("query", "ACAGT", h.abc)
	require.NoError(t, err)
	vs := NewViterbiScores(h, sq.Length())
	h.CalcViterbiScores(sq, vs)
	var vt ViterbiAlignTrace
	h.BuildViterbiTrace(vs, &vt)

	require.True(t, vt.Valid())
	assert.Equal(t, "BMMIMME", vt.AlnTrace)
	assert.Equal(t, 1, vt.AlnFrom)
	assert.Equal(t, 5, vt.AlnTo)
	assert.Equal(t, 1, vt.AlnStart)
	assert.Equal(t, 4, vt.AlnEnd)

	// adjacent consensus columns leave no slot for the insert
	aln := h.BuildGlobalAlign(sq, vs, &vt)
	assert.Equal(t, "ACGT", aln.Align)

	want := h.TSpCost[spN][spB] + h.EntryCost[1] +
		h.TmatCost[1][stM][stM] +
		h.TmatCost[2][stM][stI] + h.InsEmitCost[2][encodeBase(t, h, 'A')] + h.TmatCost[2][stI][stM] +
		h.TmatCost[3][stM][stM] +
		h.ExitCost[4] + h.TSpCost[spE][spC]
	assert.InDelta(t, want, vt.MinScore, 1e-9)
}

// encodeBase encodes a base through the profile's own alphabet.
func encodeBase(tb testing.TB, h *HMM, ch byte) int8 {
	tb.Helper()
	b := h.abc.Encode(ch)
	require.GreaterOrEqual(tb, b, int8(0))
	return b
}

func TestViterbiSingleDeletion(t *testing.T) {
	// with free-flank looping a local trim can undercut the deletion,
	// so pin both flanks
	h := newDeltaHMM(t, "ACGT")
	h.SetSequenceMode(ModeGlobal)
	sq, err := seq.NewPrimarySeq("query", "ACT", h.abc)
	require.NoError(t, err)
	vs := NewViterbiScores(h, sq.Length())
	h.CalcViterbiScores(sq, vs)
	var vt ViterbiAlignTrace
	h.BuildViterbiTrace(vs, &vt)

	require.True(t, vt.Valid())
	assert.Equal(t, "BMMDME", vt.AlnTrace)
	assert.Equal(t, 1, vt.AlnFrom)
	assert.Equal(t, 3, vt.AlnTo)

	aln := h.BuildGlobalAlign(sq, vs, &vt)
	assert.Equal(t, "AC-T", aln.Align)
}

func TestViterbiLocalTrim(t *testing.T) {
	h := newDeltaHMM(t, "ACGTCA")
	sq, err := seq.NewPrimarySeq("query", "TTCGTCGG", h.abc)
	require.NoError(t, err)
	vs := NewViterbiScores(h, sq.Length())
	h.CalcViterbiScores(sq, vs)
	var vt ViterbiAlignTrace
	h.BuildViterbiTrace(vs, &vt)

	require.True(t, vt.Valid())
	assert.Equal(t, 2, vt.AlnStart)
	assert.Equal(t, 5, vt.AlnEnd)
	assert.Equal(t, 3, vt.AlnFrom)
	assert.Equal(t, 6, vt.AlnTo)

	aln := h.BuildGlobalAlign(sq, vs, &vt)
	assert.Equal(t, "TCGTCG", aln.Align)
	assert.LessOrEqual(t, aln.SeqStart, aln.SeqEnd)
	assert.LessOrEqual(t, aln.HmmStart, aln.HmmEnd)
}

func TestViterbiImpossibleAlignment(t *testing.T) {
	h := newDeltaHMM(t, "ACGT")
	h.SetSequenceMode(ModeGlobal)
	_, vt := alignQuery(t, h, "AAAA")

	assert.False(t, vt.Valid())
	assert.True(t, math.IsInf(vt.MinScore, 1))
}

// newRandomHMM draws a well-behaved random profile: every probability
// stays off zero so all costs are finite.
func newRandomHMM(tb testing.TB, k int, rng *rand.Rand) *HMM {
	tb.Helper()
	bases := "ACGT"
	consensus := make([]byte, k)
	for n := range consensus {
		consensus[n] = bases[rng.Intn(4)]
	}
	h := newDeltaHMM(tb, string(consensus))

	for pos := 0; pos <= k; pos++ {
		for row := 0; row < nMain; row++ {
			for col := 0; col < nMain; col++ {
				h.Tmat[pos][row][col] = 0.1 + rng.Float64()
			}
		}
		h.Tmat[pos][stI][stD] = 0
		h.Tmat[pos][stD][stI] = 0
		for b := 0; b < 4; b++ {
			h.MatEmit[pos][b] = 0.1 + rng.Float64()
			h.InsEmit[pos][b] = 0.1 + rng.Float64()
		}
	}
	h.Normalize()
	h.wingRetracted = false
	h.SetSequenceMode(ModeGlobal)
	h.enableProfileLocalMode()
	h.WingRetract()
	return h
}

func TestBandedViterbiCoversFullGrid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const K, L = 20, 30
	h := newRandomHMM(t, K, rng)

	bases := "ACGT"
	query := make([]byte, L)
	for n := range query {
		query[n] = bases[rng.Intn(4)]
	}
	sq, err := seq.NewPrimarySeq("query", string(query), h.abc)
	require.NoError(t, err)

	full := NewViterbiScores(h, L)
	h.CalcViterbiScores(sq, full)

	banded := NewViterbiScores(h, L)
	h.CalcViterbiScoresBanded(sq, banded, []VPath{
		{Start: 1, End: K, From: 1, To: L, NIns: L, NDel: K},
	})

	assertMatrixEqual(t, full.DPM, banded.DPM)
	assertMatrixEqual(t, full.DPI, banded.DPI)
	assertMatrixEqual(t, full.DPD, banded.DPD)
	assertMatrixEqual(t, full.S, banded.S)

	fullMin, _, _ := full.MinScore()
	bandMin, _, _ := banded.MinScore()
	assert.InDelta(t, fullMin, bandMin, 1e-9)
}

func TestBandedViterbiNeverBeatsFull(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const K, L = 20, 30
	h := newRandomHMM(t, K, rng)

	bases := "ACGT"
	query := make([]byte, L)
	for n := range query {
		query[n] = bases[rng.Intn(4)]
	}
	sq, err := seq.NewPrimarySeq("query", string(query), h.abc)
	require.NoError(t, err)

	full := NewViterbiScores(h, L)
	h.CalcViterbiScores(sq, full)
	fullMin, _, _ := full.MinScore()

	banded := NewViterbiScores(h, L)
	h.CalcViterbiScoresBanded(sq, banded, []VPath{
		{Start: 3, End: 10, From: 4, To: 15, NIns: 5, NDel: 5},
		{Start: 12, End: 18, From: 17, To: 25, NIns: 3, NDel: 3},
	})
	bandMin, _, _ := banded.MinScore()

	assert.GreaterOrEqual(t, bandMin, fullMin-1e-9)
}

func assertMatrixEqual(t *testing.T, want, got [][]float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.Equal(t, len(want[i]), len(got[i]))
		for j := range want[i] {
			if math.IsInf(want[i][j], 1) {
				assert.True(t, math.IsInf(got[i][j], 1),
					"cell (%d,%d): want +inf, got %v", i, j, got[i][j])
				continue
			}
			assert.InDelta(t, want[i][j], got[i][j], 1e-9,
				"cell (%d,%d)", i, j)
		}
	}
}

func TestBuildAlignPath(t *testing.T) {
	h := newDeltaHMM(t, "ACGT")

	vp, err := h.BuildAlignPath(CSLoc{Start: 1, End: 4, CS: "AC-T"}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, vp.Start)
	assert.Equal(t, 4, vp.End)
	assert.Equal(t, 1, vp.From)
	assert.Equal(t, 3, vp.To)
	assert.Equal(t, 0, vp.NIns)
	assert.Equal(t, 1, vp.NDel)

	_, err = h.BuildAlignPath(CSLoc{Start: 1, End: 3, CS: "AC-T"}, 1, 3)
	assert.Error(t, err)
}
