package glepair

import (
	"fmt"
	"time"
)

// Stats summarizes the work an Engine has done.
type Stats struct {
	Steps, Rebuilds int
	// Pairs is the number of neighbor pairs in the current operator.
	Pairs int
	Solves, LanczosIterations, Warnings int

	// Wall clock time spent in each part of a step.
	Build, Noise, Dissipative, Integrate time.Duration
}

// MeanIterations returns the average number of Lanczos iterations used by a
// square root action.
func (st *Stats) MeanIterations() float64 {
	if st.Solves == 0 { return 0 }
	return float64(st.LanczosIterations) / float64(st.Solves)
}

func (st *Stats) String() string {
	return fmt.Sprintf(
		"Step %d: %d rebuilds, %d pairs, %.2f Lanczos iterations/solve, " +
			"%d warnings. Build: %s, Noise: %s, Dissipative: %s, Integrate: %s",
		st.Steps, st.Rebuilds, st.Pairs, st.MeanIterations(), st.Warnings,
		st.Build, st.Noise, st.Dissipative, st.Integrate,
	)
}
