package seq

import (
	"fmt"
	"strings"
)

// An AlignedSeq is one row of a multiple sequence alignment, with a
// relative weight used when counting residues.
type AlignedSeq struct {
	Name     string
	Residues []byte
	Weight   float64
}

// An MSA is a rectangular multiple sequence alignment over consensus
// columns. All rows have the same length; residue counting is weighted.
type MSA struct {
	name    string
	abc     *DegenAlphabet
	entries []AlignedSeq
	length  int
}

func NewMSA(name string, abc *DegenAlphabet) *MSA {
	return &MSA{name: name, abc: abc}
}

func (m *MSA) Name() string {
	return m.name
}

func (m *MSA) Abc() *DegenAlphabet {
	return m.abc
}

// Add appends a new row to the alignment. Every row after the first must
// match the established alignment length.
func (m *MSA) Add(name, residues string) error {
	if len(residues) == 0 {
		return nil
	}
	if m.length == 0 {
		m.length = len(residues)
	} else if len(residues) != m.length {
		return fmt.Errorf("aligned sequence %q has length %d; alignment is %d wide",
			name, len(residues), m.length)
	}
	m.entries = append(m.entries, AlignedSeq{
		Name:     name,
		Residues: []byte(residues),
		Weight:   1,
	})
	return nil
}

func (m *MSA) NumSeq() int {
	return len(m.entries)
}

// CSLen returns the number of consensus columns.
func (m *MSA) CSLen() int {
	return m.length
}

// MSALen returns the total number of aligned residue cells.
func (m *MSA) MSALen() int {
	return len(m.entries) * m.length
}

// EncodeAt returns the encoded base of row i at column j (both 0-based),
// or -1 for gaps and degenerate symbols.
func (m *MSA) EncodeAt(i, j int) int8 {
	return m.abc.Encode(m.entries[i].Residues[j])
}

// CharAt returns the raw aligned character of row i at column j.
func (m *MSA) CharAt(i, j int) byte {
	return m.entries[i].Residues[j]
}

func (m *MSA) SeqWeight(i int) float64 {
	return m.entries[i].Weight
}

func (m *MSA) SetSeqWeight(i int, w float64) {
	m.entries[i].Weight = w
}

// SeqStart returns the 0-based column of the first residue symbol of row
// i, or -1 for an all-gap row.
func (m *MSA) SeqStart(i int) int {
	for j, ch := range m.entries[i].Residues {
		if m.abc.IsSymbol(ch) {
			return j
		}
	}
	return -1
}

// SeqEnd returns the 0-based column of the last residue symbol of row i,
// or -1 for an all-gap row.
func (m *MSA) SeqEnd(i int) int {
	rs := m.entries[i].Residues
	for j := len(rs) - 1; j >= 0; j-- {
		if m.abc.IsSymbol(rs[j]) {
			return j
		}
	}
	return -1
}

// SymWFrac returns the weighted fraction of rows whose residue at column
// j (0-based) is a symbol rather than a gap.
func (m *MSA) SymWFrac(j int) float64 {
	var sym, total float64
	for _, e := range m.entries {
		total += e.Weight
		if m.abc.IsSymbol(e.Residues[j]) {
			sym += e.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return sym / total
}

// WIdentityAt returns the weighted fraction of the most common concrete
// base at column j (0-based), relative to the total row weight.
func (m *MSA) WIdentityAt(j int) float64 {
	var counts [4]float64
	var total float64
	for _, e := range m.entries {
		total += e.Weight
		if b := m.abc.Encode(e.Residues[j]); b >= 0 {
			counts[b] += e.Weight
		}
	}
	if total == 0 {
		return 0
	}
	best := counts[0]
	for _, c := range counts[1:] {
		if c > best {
			best = c
		}
	}
	return best / total
}

// CSBaseAt returns the weighted majority base of column j (0-based),
// uppercased, or '-' when the column holds no concrete base.
func (m *MSA) CSBaseAt(j int) byte {
	var counts [4]float64
	for _, e := range m.entries {
		if b := m.abc.Encode(e.Residues[j]); b >= 0 {
			counts[b] += e.Weight
		}
	}
	best, bestCount := -1, 0.0
	for b, c := range counts {
		if c > bestCount {
			best, bestCount = b, c
		}
	}
	if best < 0 {
		return '-'
	}
	return m.abc.Decode(int8(best))
}

// SetPositionBasedWeights assigns Henikoff position-based weights to all
// rows: each column distributes one unit of weight evenly over its
// distinct residues, and each residue's share is split among the rows
// carrying it. Weights are normalised to average 1.
func (m *MSA) SetPositionBasedWeights() {
	n := len(m.entries)
	if n == 0 || m.length == 0 {
		return
	}
	weights := make([]float64, n)
	for j := 0; j < m.length; j++ {
		var counts [4]float64
		distinct := 0
		for i := 0; i < n; i++ {
			if b := m.EncodeAt(i, j); b >= 0 {
				if counts[b] == 0 {
					distinct++
				}
				counts[b]++
			}
		}
		if distinct == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			if b := m.EncodeAt(i, j); b >= 0 {
				weights[i] += 1 / (float64(distinct) * counts[b])
			}
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return
	}
	for i := range weights {
		m.entries[i].Weight = weights[i] * float64(n) / total
	}
}

func (m *MSA) String() string {
	rows := make([]string, len(m.entries))
	for i, e := range m.entries {
		rows[i] = fmt.Sprintf(">%s\n%s", e.Name, e.Residues)
	}
	return strings.Join(rows, "\n")
}
