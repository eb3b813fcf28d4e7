package hmm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// hmmTag heads the profile body: the emission alphabet on the first
// line and the transition order on the second.
const hmmTag = "HMM\t\tA\tC\tG\tT\n\t\tm->m\tm->i\tm->d\ti->m\ti->i\td->m\td->d"

// perPosTags are the optional per-position annotation columns, in the
// order they appear after the MAP column.
var perPosTags = []string{"CONS", "RF", "MM", "CS"}

// Write serialises the profile in HMMER3/f text format, the inverse of
// Parse up to formatted precision.
func Write(w io.Writer, h *HMM) error {
	buf := bufio.NewWriter(w)

	version := h.Version
	if version == "" {
		version = "[3.1 | profile-hmm]"
	}
	fmt.Fprintf(buf, "HMMER3/f\t%s\n", version)
	fmt.Fprintf(buf, "NAME\t%s\n", h.Name)
	fmt.Fprintf(buf, "LENG\t%d\n", h.K)
	fmt.Fprintf(buf, "ALPH\t%s\n", h.abc.Alias())

	for _, name := range h.optTagNames {
		fmt.Fprintf(buf, "%s  %s\n", name, h.optTags[name])
	}

	fmt.Fprintln(buf, hmmTag)
	for k := 0; k <= h.K; k++ {
		if k == 0 {
			buf.WriteString("\tCOMPO")
		} else {
			buf.WriteString("\t" + strconv.Itoa(k))
		}
		for b := 0; b < 4; b++ {
			buf.WriteString("\t" + formatCost(h.MatEmitCost[k][b]))
		}
		if k > 0 {
			if h.OptTag("MAP") != "" {
				buf.WriteString("\t" + h.LocOptTag("MAP", k))
			}
			for _, name := range perPosTags {
				if h.OptTag(name) != "" {
					buf.WriteString("\t" + h.LocOptTag(name, k))
				}
			}
		}
		buf.WriteByte('\n')

		buf.WriteByte('\t')
		for b := 0; b < 4; b++ {
			buf.WriteString("\t" + formatCost(h.InsEmitCost[k][b]))
		}
		buf.WriteByte('\n')

		buf.WriteString("\t\t" + formatCost(h.TmatCost[k][stM][stM]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stM][stI]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stM][stD]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stI][stM]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stI][stI]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stD][stM]))
		buf.WriteString("\t" + formatCost(h.TmatCost[k][stD][stD]))
		buf.WriteByte('\n')
	}
	fmt.Fprintln(buf, "//")
	return buf.Flush()
}
