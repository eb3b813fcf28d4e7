package fasta

import (
	"strings"
	"testing"
)

func TestReadAll(t *testing.T) {
	in := `>one desc
ACGT
ACGT

>two
acgtacgt
>empty
`
	entries, err := NewReader(strings.NewReader(in)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("read %d entries, want 3", len(entries))
	}
	if entries[0].Header != "one desc" {
		t.Errorf("header = %q", entries[0].Header)
	}
	if entries[0].Sequence != "ACGTACGT" {
		t.Errorf("sequence = %q", entries[0].Sequence)
	}
	if entries[1].Sequence != "acgtacgt" {
		t.Errorf("sequence = %q", entries[1].Sequence)
	}
	if entries[2].Sequence != "" {
		t.Errorf("empty entry sequence = %q", entries[2].Sequence)
	}
}

func TestReadRejectsHeaderlessData(t *testing.T) {
	_, err := NewReader(strings.NewReader("ACGT\n")).ReadAll()
	if err == nil {
		t.Fatal("headerless input accepted, want error")
	}
}

func TestStringCols(t *testing.T) {
	e := Entry{Header: "x", Sequence: "ACGTACGTAC"}
	got := e.StringCols(4)
	want := ">x\nACGT\nACGT\nAC"
	if got != want {
		t.Errorf("StringCols = %q, want %q", got, want)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	var out strings.Builder
	w := NewWriter(&out)
	entries := []Entry{
		{Header: "a", Sequence: "ACGT"},
		{Header: "b", Sequence: strings.Repeat("ACGT", 40)},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	back, err := NewReader(strings.NewReader(out.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(back), len(entries))
	}
	for i := range entries {
		if back[i] != entries[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, back[i], entries[i])
		}
	}
}
