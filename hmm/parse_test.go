package hmm

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palc/HmmUFOtu/seq"
)

func buildTestMSA(tb testing.TB, rows ...string) *seq.MSA {
	tb.Helper()
	msa := seq.NewMSA("test-aln", seq.DNA())
	for i, row := range rows {
		require.NoError(tb, msa.Add(string(rune('a'+i)), row))
	}
	return msa
}

func buildTestHMM(tb testing.TB) *HMM {
	tb.Helper()
	rows := make([]string, 10)
	for i := range rows {
		rows[i] = "ACGTACGT"
	}
	msa := buildTestMSA(tb, rows...)
	h, err := Build(msa, 0.5, DefaultPrior(), "test-profile")
	require.NoError(tb, err)
	return h
}

func TestParseWriteRoundTrip(t *testing.T) {
	h := buildTestHMM(t)

	var text bytes.Buffer
	require.NoError(t, Write(&text, h))

	back, err := Parse(bytes.NewReader(text.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, h.Name, back.Name)
	assert.Equal(t, h.K, back.K)
	assert.Equal(t, h.L, back.L)
	assert.Equal(t, h.NSeq, back.NSeq)
	assert.InDelta(t, h.EffN, back.EffN, 1e-9)
	assert.True(t, back.WingRetracted())

	for k := 0; k <= h.K; k++ {
		assert.Equal(t, h.profile2CSIdx[k], back.profile2CSIdx[k], "profile2CS at %d", k)
		for b := 0; b < 4; b++ {
			assertCostEqual(t, h.MatEmitCost[k][b], back.MatEmitCost[k][b])
			assertCostEqual(t, h.InsEmitCost[k][b], back.InsEmitCost[k][b])
		}
		for i := 0; i < nMain; i++ {
			for j := 0; j < nMain; j++ {
				assertCostEqual(t, h.TmatCost[k][i][j], back.TmatCost[k][i][j])
			}
		}
	}
	for j := 1; j <= h.L; j++ {
		assert.Equal(t, h.cs2ProfileIdx[j], back.cs2ProfileIdx[j], "cs2Profile at %d", j)
	}
	for _, name := range h.OptTagNames() {
		assert.Equal(t, h.OptTag(name), back.OptTag(name), "tag %s", name)
	}
	for k := 1; k <= h.K; k++ {
		assert.Equal(t, h.LocOptTag("MAP", k), back.LocOptTag("MAP", k))
		assert.Equal(t, h.LocOptTag("CONS", k), back.LocOptTag("CONS", k))
	}

	// writing again reproduces the same text
	var again bytes.Buffer
	require.NoError(t, Write(&again, back))
	assert.Equal(t, text.String(), again.String())
}

func assertCostEqual(t *testing.T, want, got float64) {
	t.Helper()
	if math.IsInf(want, 1) {
		assert.True(t, math.IsInf(got, 1), "want +inf, got %v", got)
		return
	}
	assert.InDelta(t, want, got, 1e-4)
}

func TestParseRejectsMissingTerminator(t *testing.T) {
	h := buildTestHMM(t)
	var text bytes.Buffer
	require.NoError(t, Write(&text, h))

	truncated := strings.TrimSuffix(text.String(), "//\n")
	_, err := Parse(strings.NewReader(truncated))
	assert.ErrorContains(t, err, "terminator")
}

func TestParseRejectsObsoleteVersion(t *testing.T) {
	_, err := Parse(strings.NewReader("HMMER3/b [3.0]\nNAME x\nLENG 4\nALPH DNA\n//\n"))
	assert.ErrorContains(t, err, "obsolete")
}

func TestParseRejectsWrongAlphabet(t *testing.T) {
	_, err := Parse(strings.NewReader("HMMER3/f [3.1]\nNAME x\nLENG 4\nALPH amino\n//\n"))
	assert.ErrorContains(t, err, "must be DNA")
}

func TestParseRejectsMissingMAP(t *testing.T) {
	h := buildTestHMM(t)
	var text bytes.Buffer
	require.NoError(t, Write(&text, h))

	// drop the MAP=yes header; the body still has MAP columns
	mangled := strings.Replace(text.String(), "MAP  yes\n", "", 1)
	_, err := Parse(strings.NewReader(mangled))
	assert.ErrorContains(t, err, "MAP")
}

func TestParseKeepsStatsTags(t *testing.T) {
	h := buildTestHMM(t)
	h.SetOptTag("STATS LOCAL MSV", "-9.8664  0.70957")

	var text bytes.Buffer
	require.NoError(t, Write(&text, h))
	back, err := Parse(bytes.NewReader(text.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "-9.8664 0.70957", back.OptTag("STATS LOCAL MSV"))
}

func TestParsedProfileIsAlignable(t *testing.T) {
	h := buildTestHMM(t)
	var text bytes.Buffer
	require.NoError(t, Write(&text, h))
	back, err := Parse(bytes.NewReader(text.Bytes()))
	require.NoError(t, err)

	sq, err := seq.NewPrimarySeq("consensus", "ACGTACGT", seq.DNA())
	require.NoError(t, err)
	vs := NewViterbiScores(back, sq.Length())
	back.CalcViterbiScores(sq, vs)

	var vt ViterbiAlignTrace
	back.BuildViterbiTrace(vs, &vt)
	require.True(t, vt.Valid())
	aln := back.BuildGlobalAlign(sq, vs, &vt)
	assert.Len(t, aln.Align, back.L)
}
