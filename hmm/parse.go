package hmm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/palc/HmmUFOtu/seq"
)

// Parse reads one profile in HMMER3/f text format. The returned HMM is
// fully indexed, in local sequence mode and wing-retracted, ready for
// alignment. A profile that ends without its "//" terminator is
// malformed; no partial HMM is ever returned.
func Parse(r io.Reader) (*HMM, error) {
	br := bufio.NewReader(r)
	h := &HMM{
		Name:       "unnamed",
		abc:        seq.DNA(),
		bg:         NewBackground(0),
		optTags:    make(map[string]string),
		locOptTags: make(map[string][]string),
	}

	k := 0
	sized := false
	for {
		line, err := readLine(br)
		if err == io.EOF {
			return nil, fmt.Errorf("profile ended without the // terminator")
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "//" {
			return finishParse(h, k)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			if err := h.parseHeaderLine(br, line, &sized); err != nil {
				return nil, err
			}
			continue
		}

		// main body
		if !sized {
			return nil, fmt.Errorf("profile body before the LENG header")
		}
		if k > h.K {
			return nil, fmt.Errorf("profile has more than LENG=%d positions", h.K)
		}
		if err := h.parseNodeLines(br, line, k); err != nil {
			return nil, err
		}
		k++
	}
}

func finishParse(h *HMM, k int) (*HMM, error) {
	if k != h.K+1 {
		return nil, fmt.Errorf("profile has %d positions, header says %d", k-1, h.K)
	}
	if h.L == 0 {
		h.L = h.profile2CSIdx[h.K]
	}
	if err := h.validateIndex(); err != nil {
		return nil, err
	}
	h.extendIndex()
	h.resetProbByCost()
	h.adjustProfileLocalMode()
	h.SetSequenceMode(ModeLocal)
	h.WingRetract()
	return h, nil
}

func (h *HMM) parseHeaderLine(br *bufio.Reader, line string, sized *bool) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	tag := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, tag))

	switch {
	case strings.HasPrefix(tag, "HMMER3"):
		if len(tag) < 8 || tag[7] < 'f' {
			return fmt.Errorf("obsolete profile version %q, must be HMMER3/f or higher", tag)
		}
		h.Version = rest
	case tag == "NAME":
		if len(fields) < 2 {
			return fmt.Errorf("NAME header has no value")
		}
		h.Name = fields[1]
	case tag == "LENG":
		if len(fields) < 2 {
			return fmt.Errorf("LENG header has no value")
		}
		k, err := strconv.Atoi(fields[1])
		if err != nil || k <= 0 || k > kMaxProfile {
			return fmt.Errorf("invalid LENG value %q", fields[1])
		}
		h.SetProfileSize(k)
		h.enableProfileLocalMode()
		h.setSpEmissionFreq(h.bg.EmitPr())
		*sized = true
	case tag == "ALPH":
		if len(fields) < 2 || fields[1] != "DNA" {
			return fmt.Errorf("alphabet %q not allowed in profile input, must be DNA",
				strings.Join(fields[1:], " "))
		}
		h.abc = seq.DNA()
	case tag == "MAXL":
		if len(fields) < 2 {
			return fmt.Errorf("MAXL header has no value")
		}
		l, err := strconv.Atoi(fields[1])
		if err != nil || l < 0 || l > kMaxProfile {
			return fmt.Errorf("invalid MAXL value %q", fields[1])
		}
		h.L = l
		h.SetOptTag("MAXL", fields[1])
	case tag == "STATS":
		if len(fields) < 3 {
			return fmt.Errorf("truncated STATS header %q", line)
		}
		name := tag + " " + fields[1] + " " + fields[2]
		h.SetOptTag(name, strings.Join(fields[3:], " "))
	case tag == "HMM":
		// the transition-order header follows on the next line
		if _, err := readLine(br); err != nil {
			return fmt.Errorf("truncated HMM tag header: %v", err)
		}
	default:
		h.SetOptTag(tag, rest)
		switch tag {
		case "NSEQ":
			if n, err := strconv.Atoi(rest); err == nil {
				h.NSeq = n
			}
		case "EFFN":
			if f, err := strconv.ParseFloat(rest, 64); err == nil {
				h.EffN = f
			}
		}
	}
	return nil
}

// parseNodeLines consumes the three-line block of position k: match
// emissions (with per-position annotations), insert emissions, and the
// seven main-state transitions.
func (h *HMM) parseNodeLines(br *bufio.Reader, line string, k int) error {
	fields := strings.Fields(line)
	tag := fields[0]

	_, tagIsInt := atoi(tag)
	switch {
	case tag == "COMPO" || tagIsInt:
		if tag == "COMPO" {
			if k != 0 {
				return fmt.Errorf("COMPO line at position %d", k)
			}
		} else if n, _ := atoi(tag); n != k {
			return fmt.Errorf("out-of-order position line %q, want %d", tag, k)
		}
		costs, err := parseCosts(fields[1:], 4)
		if err != nil {
			return fmt.Errorf("bad match emissions at position %d: %v", k, err)
		}
		copy(h.MatEmitCost[k][:], costs)

		if tag == "COMPO" {
			var freq [4]float64
			for b := 0; b < 4; b++ {
				freq[b] = probOf(costs[b])
			}
			h.setSpEmissionFreq(freq)
			h.bg.SetFreq(freq)
		} else {
			if err := h.parseNodeAnnotations(fields[5:], k); err != nil {
				return err
			}
		}
	case k == 0:
		// begin-state block without a COMPO line: this line already
		// holds the B-state insert emissions
		costs, err := parseCosts(fields, 4)
		if err != nil {
			return fmt.Errorf("bad begin-state insert emissions: %v", err)
		}
		copy(h.InsEmitCost[0][:], costs)
		return h.parseTransitionLine(br, 0)
	default:
		return fmt.Errorf("unexpected profile body line %q", strings.TrimSpace(line))
	}

	insLine, err := readLine(br)
	if err != nil {
		return fmt.Errorf("truncated profile at position %d: missing insert emissions", k)
	}
	costs, err := parseCosts(strings.Fields(insLine), 4)
	if err != nil {
		return fmt.Errorf("bad insert emissions at position %d: %v", k, err)
	}
	copy(h.InsEmitCost[k][:], costs)

	return h.parseTransitionLine(br, k)
}

func (h *HMM) parseNodeAnnotations(fields []string, k int) error {
	if h.OptTag("MAP") != "yes" {
		return fmt.Errorf("profile input must have the MAP flag set to yes")
	}
	if len(fields) == 0 {
		return fmt.Errorf("missing MAP annotation at position %d", k)
	}
	cs, ok := atoi(fields[0])
	if !ok || cs <= 0 || cs >= kMaxProfile {
		return fmt.Errorf("invalid MAP annotation %q at position %d", fields[0], k)
	}
	h.ensureCSIndex(cs)
	h.cs2ProfileIdx[cs] = k
	h.profile2CSIdx[k] = cs
	h.SetLocOptTag("MAP", fields[0], k)

	fi := 1
	for _, name := range []string{"CONS", "RF", "MM", "CS"} {
		if h.OptTag(name) == "" {
			continue
		}
		if fi >= len(fields) {
			return fmt.Errorf("missing %s annotation at position %d", name, k)
		}
		h.SetLocOptTag(name, fields[fi], k)
		fi++
	}
	return nil
}

func (h *HMM) parseTransitionLine(br *bufio.Reader, k int) error {
	line, err := readLine(br)
	if err != nil {
		return fmt.Errorf("truncated profile at position %d: missing transitions", k)
	}
	costs, err := parseCosts(strings.Fields(line), 7)
	if err != nil {
		return fmt.Errorf("bad transitions at position %d: %v", k, err)
	}
	h.TmatCost[k][stM][stM] = costs[0]
	h.TmatCost[k][stM][stI] = costs[1]
	h.TmatCost[k][stM][stD] = costs[2]
	h.TmatCost[k][stI][stM] = costs[3]
	h.TmatCost[k][stI][stI] = costs[4]
	h.TmatCost[k][stD][stM] = costs[5]
	h.TmatCost[k][stD][stD] = costs[6]
	return nil
}

func parseCosts(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, have %d", n, len(fields))
	}
	costs := make([]float64, n)
	for i := 0; i < n; i++ {
		c, err := parseCost(fields[i])
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %v", fields[i], err)
		}
		costs[i] = c
	}
	return costs, nil
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err == io.EOF && len(line) > 0 {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
