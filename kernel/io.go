package kernel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/phil-mansfield/table"
)

// ReadSectionFile reads the kernel section labeled by keyword from the named
// file. See ReadSection.
func ReadSectionFile(fname, keyword string) (*Table, error) {
	f, err := os.Open(fname)
	if err != nil { return nil, err }
	defer f.Close()

	tab, err := ReadSection(f, keyword)
	if err != nil {
		return nil, fmt.Errorf("Could not read %s: %s", fname, err.Error())
	}
	return tab, nil
}

// ReadSection reads a kernel table from a text stream. Blank lines and lines
// starting with '#' are skipped until a line whose first word is keyword.
// The following line holds "name value" pairs overriding the grid bounds.
// It is followed by Nt self-kernel lines and Nd*Nt cross-kernel lines, each
// of the form "distance time amplitude", ordered distance-major.
func ReadSection(r io.Reader, keyword string) (*Table, error) {
	lines := &lineReader{ sc: bufio.NewScanner(r) }

	found := false
	for {
		words, ok := lines.next()
		if !ok { break }
		if words[0] == keyword {
			found = true
			break
		}
	}
	if err := lines.sc.Err(); err != nil { return nil, err }
	if !found {
		return nil, fmt.Errorf("Could not find kernel section '%s'.", keyword)
	}

	words, ok := lines.next()
	if !ok {
		return nil, fmt.Errorf(
			"Kernel section '%s' has no parameter line.", keyword,
		)
	}
	g, err := parseParams(words)
	if err != nil { return nil, err }
	if err = g.CheckInit(); err != nil { return nil, err }

	nt, nd := g.Nt(), g.Nd()
	self := make([]float64, nt)
	cross := make([][]float64, nd)
	for d := range cross { cross[d] = make([]float64, nt) }

	for t := 0; t < nt; t++ {
		_, rt, amp, err := lines.triple()
		if err != nil { return nil, err }
		if err = checkTime(&g, t, rt, lines.n); err != nil { return nil, err }
		self[t] = amp
	}

	for d := 0; d < nd; d++ {
		for t := 0; t < nt; t++ {
			rd, rt, amp, err := lines.triple()
			if err != nil { return nil, err }
			if err = checkTime(&g, t, rt, lines.n); err != nil {
				return nil, err
			}
			if err = checkDistance(&g, d, rd, lines.n); err != nil {
				return nil, err
			}
			cross[d][t] = amp
		}
	}

	return NewTable(g, self, cross)
}

// ReadColumnsFile reads a kernel from a plain column file with the
// columns "distance time amplitude". The first Nt rows are the self-kernel
// and the remaining Nd*Nt rows the cross-kernel. The grid is supplied by the
// caller rather than the file.
func ReadColumnsFile(fname string, g Grid) (*Table, error) {
	if err := g.CheckInit(); err != nil { return nil, err }
	cols, err := table.ReadTable(fname, []int{0, 1, 2}, nil)
	if err != nil { return nil, err }
	ds, ts, amps := cols[0], cols[1], cols[2]

	nt, nd := g.Nt(), g.Nd()
	if len(amps) != nt*(nd+1) {
		return nil, fmt.Errorf(
			"%s has %d rows, but a grid with Nt = %d and Nd = %d needs %d.",
			fname, len(amps), nt, nd, nt*(nd+1),
		)
	}

	self := make([]float64, nt)
	for t := 0; t < nt; t++ {
		if err := checkTime(&g, t, ts[t], t+1); err != nil { return nil, err }
		self[t] = amps[t]
	}

	cross := make([][]float64, nd)
	for d := range cross {
		cross[d] = make([]float64, nt)
		for t := 0; t < nt; t++ {
			i := nt*(d+1) + t
			if err := checkTime(&g, t, ts[i], i+1); err != nil {
				return nil, err
			}
			if err := checkDistance(&g, d, ds[i], i+1); err != nil {
				return nil, err
			}
			cross[d][t] = amps[i]
		}
	}

	return NewTable(g, self, cross)
}

// WriteSection writes t in the format read by ReadSection.
func WriteSection(w io.Writer, keyword string, t *Table) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", keyword)
	fmt.Fprintf(
		bw, "dStart %.10g dStep %.10g dStop %.10g " +
			"tStart %.10g tStep %.10g tStop %.10g Niter %d\n",
		t.DStart, t.DStep, t.DStop, t.TStart, t.TStep, t.TStop, t.Niter,
	)
	for i, k := range t.Self {
		fmt.Fprintf(bw, "%.10g %.10g %.17g\n", 0.0, t.Time(i), k)
	}
	for d := 0; d < t.Nd; d++ {
		for i := 0; i < t.Nt; i++ {
			fmt.Fprintf(
				bw, "%.10g %.10g %.17g\n",
				t.Distance(d), t.Time(i), t.Cross[d*t.Nt+i],
			)
		}
	}
	return bw.Flush()
}

func parseParams(words []string) (Grid, error) {
	g := DefaultGrid()
	if len(words) % 2 != 0 {
		return g, fmt.Errorf(
			"Kernel parameter line '%s' is not a list of name/value pairs.",
			strings.Join(words, " "),
		)
	}

	for i := 0; i < len(words); i += 2 {
		name, val := words[i], words[i+1]
		if name == "Niter" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return g, fmt.Errorf("Niter value '%s' is not an integer.", val)
			}
			g.Niter = n
			continue
		}

		x, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return g, fmt.Errorf("%s value '%s' is not a number.", name, val)
		}

		switch name {
		case "dStart": g.DStart = x
		case "dStep": g.DStep = x
		case "dStop": g.DStop = x
		case "tStart": g.TStart = x
		case "tStep": g.TStep = x
		case "tStop": g.TStop = x
		default:
			return g, fmt.Errorf("Invalid keyword '%s' in kernel file.", name)
		}
	}
	return g, nil
}

func checkTime(g *Grid, t int, rt float64, line int) error {
	if math.Abs(rt - g.Time(t)) > 1e-6*g.TStep {
		return fmt.Errorf(
			"Line %d has time %g, but time sample %d should be at %g.",
			line, rt, t, g.Time(t),
		)
	}
	return nil
}

func checkDistance(g *Grid, d int, rd float64, line int) error {
	if math.Abs(rd - g.Distance(d)) > 1e-6*g.DStep {
		return fmt.Errorf(
			"Line %d has distance %g, but distance bin %d should be at %g.",
			line, rd, d, g.Distance(d),
		)
	}
	return nil
}

// lineReader returns the words of successive non-empty, non-comment lines.
type lineReader struct {
	sc *bufio.Scanner
	n int
}

func (lr *lineReader) next() ([]string, bool) {
	for lr.sc.Scan() {
		lr.n++
		line := strings.TrimSpace(lr.sc.Text())
		if len(line) == 0 || line[0] == '#' { continue }
		return strings.Fields(line), true
	}
	return nil, false
}

func (lr *lineReader) triple() (d, t, amp float64, err error) {
	words, ok := lr.next()
	if !ok {
		if err = lr.sc.Err(); err != nil { return 0, 0, 0, err }
		return 0, 0, 0, fmt.Errorf("Kernel file ended after line %d.", lr.n)
	} else if len(words) < 3 {
		return 0, 0, 0, fmt.Errorf(
			"Line %d has %d columns instead of 3.", lr.n, len(words),
		)
	}

	var xs [3]float64
	for i := range xs {
		xs[i], err = strconv.ParseFloat(words[i], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf(
				"Could not parse '%s' on line %d.", words[i], lr.n,
			)
		}
	}
	return xs[0], xs[1], xs[2], nil
}
