package hmm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/palc/HmmUFOtu/seq"
)

// Output symbols for unaligned flanking padding and intra-alignment
// gaps. Both sit outside the DNA alphabet.
const (
	PadSym byte = '.'
	GapSym byte = '-'
)

// PaddingMode places an insert string inside a fixed-width slot.
type PaddingMode int

const (
	PadLeft      PaddingMode = iota // insert left, padding right
	PadRight                        // padding left, insert right
	PadMiddle                       // insert centred
	PadJustified                    // insert halves at both ends
)

// GetPaddingSeq lays the insert out in a slot of exactly n characters,
// filling the rest with padCh. Oversized inserts are truncated according
// to the mode.
func GetPaddingSeq(n int, insert string, padCh byte, mode PaddingMode) string {
	if n <= 0 {
		return ""
	}
	pad := string([]byte{padCh})
	if insert == "" {
		return strings.Repeat(pad, n)
	}
	l := len(insert)
	switch mode {
	case PadLeft:
		if l >= n {
			return insert[:n]
		}
		return insert + strings.Repeat(pad, n-l)
	case PadRight:
		if l >= n {
			return insert[l-n:]
		}
		return strings.Repeat(pad, n-l) + insert
	case PadMiddle:
		if l >= n {
			off := (l - n) / 2
			return insert[off : off+n]
		}
		left := (n - l) / 2
		return strings.Repeat(pad, left) +
			insert +
			strings.Repeat(pad, n-l-left)
	case PadJustified:
		if l >= n {
			head := n / 2
			return insert[:head] + insert[l-(n-head):]
		}
		head := l / 2
		return insert[:head] +
			strings.Repeat(pad, n-l) +
			insert[head:]
	}
	return strings.Repeat(pad, n)
}

// An HmmAlignment is one query aligned into the fixed consensus width:
// an L-character string plus its coordinate span in query, profile and
// consensus space, and the alignment cost. Alignments of different
// queries against the same profile stack column by column.
type HmmAlignment struct {
	K, L int

	SeqStart, SeqEnd int
	HmmStart, HmmEnd int
	CSStart, CSEnd   int

	Cost  float64
	Align string
}

// AlignmentTSVHeader heads tab-separated alignment listings.
const AlignmentTSVHeader = "seq_start\tseq_end\thmm_start\thmm_end\tCS_start\tCS_end\tcost\talignment"

// BuildGlobalAlign spells the traced alignment into the consensus
// frame. Matched residues appear uppercase in their own column, deleted
// columns get gap symbols, and inserted residues survive only when an
// unclaimed consensus stretch between two match columns can hold them;
// the flanks are padded with the unaligned query ends.
func (h *HMM) BuildGlobalAlign(sq *seq.PrimarySeq, vs *ViterbiScores, vt *ViterbiAlignTrace) HmmAlignment {
	if sq.Length() != vs.L {
		panic(fmt.Sprintf("query length %d does not match DP buffer length %d",
			sq.Length(), vs.L))
	}

	seqN := sq.Seq()[:vt.AlnFrom-1]
	seqC := sq.Seq()[vt.AlnTo:]
	csStart := h.profile2CSIdx[vt.AlnStart]
	csEnd := h.profile2CSIdx[vt.AlnEnd]

	var out strings.Builder
	var insert []byte
	j, k := 0, 0
	for idx := 0; idx < len(vt.AlnTrace); idx++ {
		switch vt.AlnTrace[idx] {
		case 'B':
			out.WriteString(GetPaddingSeq(csStart-1, seqN, PadSym, PadRight))
			j = vt.AlnFrom
			k = vt.AlnStart
		case 'M':
			if gap := h.profile2CSIdx[k] - h.profile2CSIdx[k-1]; k > 1 && idx > 1 && gap > 1 {
				out.WriteString(GetPaddingSeq(gap-1, string(insert), GapSym, PadJustified))
			}
			insert = insert[:0]
			out.WriteByte(toUpper(sq.CharAt(j - 1)))
			j++
			k++
		case 'I':
			insert = append(insert, lower(sq.CharAt(j-1)))
			j++
		case 'D':
			// no insert can precede a deletion in a valid trace
			if gap := h.profile2CSIdx[k] - h.profile2CSIdx[k-1]; k > 1 && gap > 1 {
				out.WriteString(strings.Repeat(string([]byte{GapSym}), gap-1))
			}
			out.WriteByte(GapSym)
			k++
		case 'E':
			out.WriteString(GetPaddingSeq(h.L-csEnd, seqC, PadSym, PadLeft))
		}
	}

	return HmmAlignment{
		K:        h.K,
		L:        h.L,
		SeqStart: vt.AlnFrom,
		SeqEnd:   vt.AlnTo,
		HmmStart: vt.AlnStart,
		HmmEnd:   vt.AlnEnd,
		CSStart:  csStart,
		CSEnd:    csEnd,
		Cost:     vt.MinScore,
		Align:    out.String(),
	}
}

// Compatible reports whether two alignments stack against the same
// profile frame.
func (a *HmmAlignment) Compatible(other HmmAlignment) bool {
	return a.K == other.K && a.L == other.L &&
		len(a.Align) == a.L && len(other.Align) == other.L
}

// Merge folds another compatible alignment into this one: coordinate
// spans widen, costs add, and padding yields to aligned characters.
// Incompatible alignments are ignored.
func (a *HmmAlignment) Merge(other HmmAlignment) {
	if !a.Compatible(other) {
		return
	}
	a.SeqStart = min(a.SeqStart, other.SeqStart)
	a.SeqEnd = max(a.SeqEnd, other.SeqEnd)
	a.HmmStart = min(a.HmmStart, other.HmmStart)
	a.HmmEnd = max(a.HmmEnd, other.HmmEnd)
	a.CSStart = min(a.CSStart, other.CSStart)
	a.CSEnd = max(a.CSEnd, other.CSEnd)
	a.Cost += other.Cost

	merged := []byte(a.Align)
	for i := 0; i < a.L; i++ {
		if merged[i] == PadSym && other.Align[i] != PadSym {
			merged[i] = other.Align[i]
		}
	}
	a.Align = string(merged)
}

// TSV renders the alignment as one tab-separated record matching
// AlignmentTSVHeader.
func (a HmmAlignment) TSV() string {
	return fmt.Sprintf("%d\t%d\t%d\t%d\t%d\t%d\t%g\t%s",
		a.SeqStart, a.SeqEnd, a.HmmStart, a.HmmEnd, a.CSStart, a.CSEnd,
		a.Cost, a.Align)
}

// ParseAlignmentTSV reads one record written by TSV.
func ParseAlignmentTSV(line string) (HmmAlignment, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != 8 {
		return HmmAlignment{}, fmt.Errorf("alignment record has %d fields, want 8", len(fields))
	}
	var a HmmAlignment
	var err error
	ints := []*int{&a.SeqStart, &a.SeqEnd, &a.HmmStart, &a.HmmEnd, &a.CSStart, &a.CSEnd}
	for n, dst := range ints {
		if *dst, err = strconv.Atoi(fields[n]); err != nil {
			return HmmAlignment{}, fmt.Errorf("bad alignment coordinate %q", fields[n])
		}
	}
	if a.Cost, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return HmmAlignment{}, fmt.Errorf("bad alignment cost %q", fields[6])
	}
	a.Align = fields[7]
	a.L = len(a.Align)
	return a, nil
}

func toUpper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 'A'
	}
	return ch
}
