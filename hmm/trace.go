package hmm

// A ViterbiAlignTrace is the recovered state path of one alignment,
// spelled as a string over B, M, I, D, E, together with its profile and
// query coordinate span (1-based, inclusive) and the alignment cost.
type ViterbiAlignTrace struct {
	AlnTrace string

	AlnStart, AlnEnd int // profile positions
	AlnFrom, AlnTo   int // query positions

	MinScore float64
}

// Valid reports whether the trace describes a possible alignment.
func (vt *ViterbiAlignTrace) Valid() bool {
	return vt.MinScore < inf && len(vt.AlnTrace) > 0
}

// BuildViterbiTrace walks the filled score buffers backwards from the
// best exit cell, re-deriving each predecessor from the recurrence that
// produced it. When no path has finite cost the trace is left invalid.
func (h *HMM) BuildViterbiTrace(vs *ViterbiScores, vt *ViterbiAlignTrace) {
	*vt = ViterbiAlignTrace{MinScore: inf}

	score, minRow, minCol := vs.MinScore()
	vt.MinScore = score
	if score == inf {
		return
	}

	// exit either from a match state or from the final insert state
	var s byte = 'M'
	j := minCol
	if minCol > h.K {
		s = 'I'
		j = h.K
	}
	i := minRow
	vt.AlnEnd = j
	vt.AlnTo = minRow

	trace := []byte{'E'}
walk:
	for i >= 1 && j >= 0 {
		trace = append(trace, s)
		switch s {
		case 'M':
			if j > 1 {
				s = whichMin([]float64{
					vs.DPM[i][0] + h.EntryCost[j],
					vs.DPM[i-1][j-1] + h.TmatCost[j-1][stM][stM],
					vs.DPI[i-1][j-1] + h.TmatCost[j-1][stI][stM],
					vs.DPD[i-1][j-1] + h.TmatCost[j-1][stD][stM],
				}, "BMID")
			} else {
				// column 0 is the Begin proxy: every column-0 cell the
				// recurrence draws on for M1 stands for the Begin state
				s = 'B'
			}
			i--
			j--
		case 'I':
			if j > 0 {
				s = whichMin([]float64{
					vs.DPM[i-1][j] + h.TmatCost[j][stM][stI],
					vs.DPI[i-1][j] + h.TmatCost[j][stI][stI],
				}, "MI")
			} else {
				s = whichMin([]float64{
					vs.DPM[i][0] + h.TmatCost[0][stM][stI],
					vs.DPI[i-1][j] + h.TmatCost[j][stI][stI],
				}, "BI")
			}
			i--
		case 'D':
			s = whichMin([]float64{
				vs.DPM[i][j-1] + h.TmatCost[j-1][stM][stD],
				vs.DPD[i][j-1] + h.TmatCost[j-1][stD][stD],
			}, "MD")
			j--
		default: // 'B'
			break walk
		}
	}

	vt.AlnStart = j + 1
	vt.AlnFrom = i + 1
	if trace[len(trace)-1] != 'B' {
		trace = append(trace, 'B')
	}
	for a, b := 0, len(trace)-1; a < b; a, b = a+1, b-1 {
		trace[a], trace[b] = trace[b], trace[a]
	}
	vt.AlnTrace = string(trace)
}
