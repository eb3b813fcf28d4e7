// Command palc builds profile HMMs from reference alignments and aligns
// query reads against them in the shared consensus frame.
package main

func main() {
	Execute()
}
