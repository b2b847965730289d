package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() Grid {
	return Grid{
		DStart: 1, DStep: 0.5, DStop: 2,
		TStart: 0, TStep: 0.1, TStop: 0.3,
		Niter: 10,
	}
}

func testTable(t *testing.T) *Table {
	g := testGrid()
	self := []float64{1, 0.5, 0.2, 0.05}
	cross := [][]float64{
		{0.4, 0.3, 0.1, 0},
		{0.2, 0.1, -0.05, 0.01},
		{0.1, 0, 0, 0},
	}
	tab, err := NewTable(g, self, cross)
	require.NoError(t, err)
	return tab
}

func TestGridSizes(t *testing.T) {
	tests := []struct {
		g Grid
		nt, nd int
	}{
		{testGrid(), 4, 3},
		{Grid{0, 0.25, 1, 0, 0.05, 5, 500}, 101, 5},
		{Grid{0, 1, 1, 0, 1, 0.2, 0}, 1, 2},
	}

	for i, test := range tests {
		assert.Equal(t, test.nt, test.g.Nt(), "%d", i)
		assert.Equal(t, test.nd, test.g.Nd(), "%d", i)
	}
}

func TestGridCheckInit(t *testing.T) {
	bad := []Grid{
		{DStart: 1, DStep: 0, DStop: 2, TStep: 1, TStop: 1},
		{DStart: 1, DStep: 1, DStop: 2, TStep: -1, TStop: 1},
		{DStart: 2, DStep: 1, DStop: 2, TStep: 1, TStop: 1},
		{DStart: 0, DStep: 1, DStop: 2, TStart: 1, TStep: 1, TStop: 1},
		{DStart: -1, DStep: 1, DStop: 2, TStep: 1, TStop: 1},
		{DStart: 0, DStep: 1, DStop: math.Inf(1), TStep: 1, TStop: 1},
	}
	for i := range bad {
		assert.Error(t, bad[i].CheckInit(), "%d", i)
	}

	g := testGrid()
	assert.NoError(t, g.CheckInit())
}

func TestNewTableErrors(t *testing.T) {
	g := testGrid()
	self := []float64{1, 0.5, 0.2, 0.05}
	cross := [][]float64{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}}

	_, err := NewTable(g, self[:3], cross)
	assert.Error(t, err)
	_, err = NewTable(g, self, cross[:2])
	assert.Error(t, err)
	_, err = NewTable(g, self, [][]float64{{1}, {1, 1, 1, 1}, {1, 1, 1, 1}})
	assert.Error(t, err)
	_, err = NewTable(g, []float64{1, math.NaN(), 0, 0}, cross)
	assert.Error(t, err)
}

func TestSpectrum(t *testing.T) {
	tab := testTable(t)

	ft, err := tab.Spectrum(SelfTag)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.45, 1.25, 0.35, 0.35}, ft, 1e-12)

	// Independent check against a full complex FFT of the mirrored series.
	for d := 0; d < tab.Nd; d++ {
		k, err := tab.Kernel(d)
		require.NoError(t, err)
		ft, err := tab.Spectrum(d)
		require.NoError(t, err)

		n := tab.RingLen()
		buf := make([]float64, n)
		for i := range k {
			buf[i] = k[i]
			if i > 0 && i < len(k)-1 { buf[n-i] = k[i] }
		}
		ref := fft.FFTReal(buf)
		for f := range ft {
			assert.InDelta(t, real(ref[f]), ft[f], 1e-12)
			assert.InDelta(t, 0, imag(ref[f]), 1e-12)
		}
	}

	_, err = tab.Spectrum(tab.Nd)
	var tagErr *TagError
	assert.True(t, errors.As(err, &tagErr))
	_, err = tab.Kernel(-2)
	assert.True(t, errors.As(err, &tagErr))
}

func TestSingleSample(t *testing.T) {
	g := Grid{DStart: 0, DStep: 1, DStop: 1, TStart: 0, TStep: 1, TStop: 0.1}
	tab, err := NewTable(g, []float64{3}, [][]float64{{0}, {0.5}})
	require.NoError(t, err)

	assert.Equal(t, 1, tab.Nt)
	assert.Equal(t, 1, tab.RingLen())
	assert.Equal(t, []float64{3}, tab.SelfFT)
	assert.Equal(t, []float64{0, 0.5}, tab.CrossFT)
}

func TestDiscretize(t *testing.T) {
	tab := testTable(t)
	dt, err := tab.Discretize(0.5)
	require.NoError(t, err)

	for i := range tab.Self {
		assert.InDelta(t, 0.5*tab.Self[i], dt.Self[i], 1e-15)
		assert.InDelta(t, 0.5*tab.SelfFT[i], dt.SelfFT[i], 1e-12)
	}
	for i := range tab.Cross {
		assert.InDelta(t, 0.5*tab.CrossFT[i], dt.CrossFT[i], 1e-12)
	}

	// The original table is untouched.
	assert.Equal(t, 1.0, tab.Self[0])

	_, err = tab.Discretize(0)
	assert.Error(t, err)
}

func TestBin(t *testing.T) {
	tab := testTable(t)

	tests := []struct {
		r float64
		bin int
		ok, tooClose bool
	}{
		{1.0, 0, true, false},
		{1.49, 0, true, false},
		{1.5, 1, true, false},
		{1.99, 1, true, false},
		{2.0, -1, false, false},
		{7.0, -1, false, false},
		{0.999, -1, false, true},
		{0, -1, false, true},
	}

	for i, test := range tests {
		bin, ok, err := tab.Bin(test.r)
		if test.tooClose {
			var tc *TooCloseError
			assert.True(t, errors.As(err, &tc), "%d", i)
			continue
		}
		assert.NoError(t, err, "%d", i)
		assert.Equal(t, test.ok, ok, "%d", i)
		if ok { assert.Equal(t, test.bin, bin, "%d", i) }
	}
}

func TestMinSpectrum(t *testing.T) {
	tab := testTable(t)
	min, tag, f := tab.MinSpectrum()

	for d := SelfTag; d < tab.Nd; d++ {
		ft, _ := tab.Spectrum(d)
		for _, x := range ft { assert.True(t, x >= min) }
	}
	ft, _ := tab.Spectrum(tag)
	assert.Equal(t, min, ft[f])
}

func TestSectionRoundTrip(t *testing.T) {
	tab := testTable(t)

	buf := &bytes.Buffer{}
	buf.WriteString("# leading comment\n\nOTHER\n")
	require.NoError(t, WriteSection(buf, "CG", tab))

	out, err := ReadSection(buf, "CG")
	require.NoError(t, err)
	assert.Equal(t, tab.Nt, out.Nt)
	assert.Equal(t, tab.Nd, out.Nd)
	assert.Equal(t, tab.Niter, out.Niter)
	assert.InDeltaSlice(t, tab.Self, out.Self, 1e-15)
	assert.InDeltaSlice(t, tab.Cross, out.Cross, 1e-15)
	assert.InDeltaSlice(t, tab.CrossFT, out.CrossFT, 1e-12)
}

func TestReadSectionDefaults(t *testing.T) {
	// No time parameters: the default time axis has 101 samples.
	lines := []string{"KERN", "dStart 0 dStep 1 dStop 1"}
	for i := 0; i < 101; i++ {
		lines = append(lines, "0 " + ftoa(0.05*float64(i)) + " 1")
	}
	for d := 0; d < 2; d++ {
		for i := 0; i < 101; i++ {
			lines = append(lines, ftoa(float64(d)) + " " +
				ftoa(0.05*float64(i)) + " 0")
		}
	}

	tab, err := ReadSection(strings.NewReader(strings.Join(lines, "\n")), "KERN")
	require.NoError(t, err)
	assert.Equal(t, 101, tab.Nt)
	assert.Equal(t, 2, tab.Nd)
	assert.Equal(t, 500, tab.Niter)
	assert.InDelta(t, 200.0, tab.SelfFT[0], 1e-9)
}

func TestReadSectionErrors(t *testing.T) {
	tests := []struct {
		name, text string
	}{
		{"missing section", "OTHER\ndStart 0\n"},
		{"no parameters", "K\n"},
		{"invalid keyword",
			"K\ndStart 0 dStep 1 dStop 1 tStop 0.1 tStep 1 rCut 3\n"},
		{"odd parameters", "K\ndStart 0 dStep\n"},
		{"bad number", "K\ndStart zero dStep 1 dStop 1\n"},
		{"truncated",
			"K\ndStart 0 dStep 1 dStop 1 tStep 1 tStop 0.1\n0 0 1\n0 0 1\n"},
		{"bad time",
			"K\ndStart 0 dStep 1 dStop 1 tStep 1 tStop 0.1\n" +
				"0 0.5 1\n0 0 1\n1 0 1\n"},
		{"bad distance",
			"K\ndStart 0 dStep 1 dStop 1 tStep 1 tStop 0.1\n" +
				"0 0 1\n0 0 1\n2 0 1\n"},
		{"short line",
			"K\ndStart 0 dStep 1 dStop 1 tStep 1 tStop 0.1\n0 0\n"},
		{"bad grid",
			"K\ndStart 1 dStep 1 dStop 0 tStep 1 tStop 0.1\n"},
	}

	for _, test := range tests {
		_, err := ReadSection(strings.NewReader(test.text), "K")
		assert.Error(t, err, test.name)
	}

	ok := "K\ndStart 0 dStep 1 dStop 1 tStep 1 tStop 0.1\n0 0 1\n0 0 1\n1 0 1\n"
	_, err := ReadSection(strings.NewReader(ok), "K")
	assert.NoError(t, err)
}

func TestMemoryUsage(t *testing.T) {
	tab := testTable(t)
	assert.Equal(t, 8*(4+4+12+12), tab.MemoryUsage())
}

func ftoa(x float64) string { return fmt.Sprintf("%.10g", x) }
