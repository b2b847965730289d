package kernel

import (
	"fmt"
)

// TooCloseError is returned when two particles are closer than the lower
// cutoff of the kernel table. The table cannot describe such a pair, so the
// simulation must stop.
type TooCloseError struct {
	I, J int
	R, DStart float64
}

func (err *TooCloseError) Error() string {
	if err.I < 0 {
		return fmt.Sprintf(
			"Particles closer than lower cutoff: r = %g < dStart = %g.",
			err.R, err.DStart,
		)
	}
	return fmt.Sprintf(
		"Particles %d and %d closer than lower cutoff: r = %g < dStart = %g.",
		err.I, err.J, err.R, err.DStart,
	)
}

// TagError is returned when a distance tag falls outside the table. This
// means the operator and the table it was built from disagree.
type TagError struct {
	Tag, Nd int
}

func (err *TagError) Error() string {
	return fmt.Sprintf(
		"Distance tag %d outside of tabulated range [0, %d).", err.Tag, err.Nd,
	)
}
