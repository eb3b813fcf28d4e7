package util

import (
	"os"

	"github.com/palc/HmmUFOtu/hmm"
	"github.com/palc/HmmUFOtu/io/fasta"
	"github.com/palc/HmmUFOtu/seq"
)

// ProfileRead loads a profile HMM from an HMMER3/f text file.
func ProfileRead(path string) *hmm.HMM {
	f := OpenFile(path)
	defer f.Close()
	h, err := hmm.Parse(f)
	Assert(err, "Could not read profile '%s'", path)
	return h
}

// MSARead loads an aligned FASTA file as a weighted alignment.
func MSARead(path, name string) *seq.MSA {
	f := OpenFile(path)
	defer f.Close()
	entries, err := fasta.NewReader(f).ReadAll()
	Assert(err, "Could not read alignment '%s'", path)

	msa := seq.NewMSA(name, seq.DNA())
	for _, entry := range entries {
		Assert(msa.Add(entry.Header, entry.Sequence),
			"Could not add '%s' from '%s'", entry.Header, path)
	}
	return msa
}

// FastaRead loads the records of a FASTA file.
func FastaRead(path string) []fasta.Entry {
	f := OpenFile(path)
	defer f.Close()
	entries, err := fasta.NewReader(f).ReadAll()
	Assert(err, "Could not read sequences '%s'", path)
	return entries
}

func OpenFile(path string) *os.File {
	f, err := os.Open(path)
	Assert(err, "Could not open file '%s'", path)
	return f
}

func CreateFile(path string) *os.File {
	f, err := os.Create(path)
	Assert(err, "Could not create file '%s'", path)
	return f
}
