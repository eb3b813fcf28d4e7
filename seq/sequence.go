package seq

import (
	"fmt"
)

// A PrimarySeq is an unaligned nucleotide sequence of concrete bases.
// Degenerate symbols are rejected at construction; alignment scoring
// needs every residue to encode to one of the four bases.
type PrimarySeq struct {
	name string
	sq   string
	abc  *DegenAlphabet
}

// NewPrimarySeq validates sq against the alphabet and wraps it.
func NewPrimarySeq(name, sq string, abc *DegenAlphabet) (*PrimarySeq, error) {
	for i := 0; i < len(sq); i++ {
		if abc.Encode(sq[i]) < 0 {
			return nil, fmt.Errorf(
				"sequence %q has a non-encodable residue %q at position %d",
				name, sq[i], i+1)
		}
	}
	return &PrimarySeq{name: name, sq: sq, abc: abc}, nil
}

func (s *PrimarySeq) Name() string {
	return s.name
}

func (s *PrimarySeq) Seq() string {
	return s.sq
}

func (s *PrimarySeq) Length() int {
	return len(s.sq)
}

// CharAt returns the residue at 0-based position i.
func (s *PrimarySeq) CharAt(i int) byte {
	return s.sq[i]
}

// EncodeAt returns the encoded base at 0-based position i.
func (s *PrimarySeq) EncodeAt(i int) int8 {
	return s.abc.Encode(s.sq[i])
}
