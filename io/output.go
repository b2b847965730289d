package io

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/phil-mansfield/glepair/kernel"
)

// RunWriter writes per-step summaries of a run as whitespace separated
// columns: step, time, kinetic temperature and operator rebuilds.
type RunWriter struct {
	f *os.File
	w *bufio.Writer
}

// CreateRunWriter creates the named file and writes its header.
func CreateRunWriter(fname string) (*RunWriter, error) {
	f, err := os.Create(fname)
	if err != nil { return nil, err }
	rw := &RunWriter{ f: f, w: bufio.NewWriter(f) }
	_, err = fmt.Fprintln(rw.w, "# step time temperature rebuilds")
	if err != nil {
		f.Close()
		return nil, err
	}
	return rw, nil
}

// Write appends a single row.
func (rw *RunWriter) Write(step int, t, temp float64, rebuilds int) error {
	_, err := fmt.Fprintf(rw.w, "%8d %12.6g %14.8g %8d\n", step, t, temp, rebuilds)
	return err
}

// Close flushes and closes the underlying file.
func (rw *RunWriter) Close() error {
	if err := rw.w.Flush(); err != nil {
		rw.f.Close()
		return err
	}
	return rw.f.Close()
}

// ExampleKernel returns a small kernel table: an exponentially decaying
// self-kernel and cross-kernels which fall off with distance.
func ExampleKernel() *kernel.Table {
	g := kernel.Grid{
		DStart: 0, DStep: 0.25, DStop: 2.5,
		TStart: 0, TStep: 0.05, TStop: 1,
		Niter: 500,
	}
	nt, nd := g.Nt(), g.Nd()

	self := make([]float64, nt)
	for t := range self { self[t] = 20 * expDecay(g.Time(t), 0.1) }

	cross := make([][]float64, nd)
	for d := range cross {
		cross[d] = make([]float64, nt)
		amp := 4 * expDecay(g.Distance(d), 0.5)
		for t := range cross[d] {
			cross[d][t] = amp * expDecay(g.Time(t), 0.1)
		}
	}

	tab, err := kernel.NewTable(g, self, cross)
	if err != nil { panic(err.Error()) }
	return tab
}

func expDecay(x, scale float64) float64 { return math.Exp(-x / scale) }
