package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"runtime/pprof"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/phil-mansfield/glepair"
	"github.com/phil-mansfield/glepair/geom"
	"github.com/phil-mansfield/glepair/io"
	"github.com/phil-mansfield/glepair/kernel"
	"github.com/phil-mansfield/glepair/neighbor"

	plt "github.com/phil-mansfield/pyplot"
)

// FileGroup holds every file a mode writes to besides stdout: the log, the
// CPU profile and, for runs, the temperature table.
type FileGroup struct {
	log, prof *os.File
	run *io.RunWriter
}

// Close flushes and closes the files inside FileGroup, stops profiling and
// sends logging back to stderr. It returns the first error encountered and
// may be called more than once.
func (fg *FileGroup) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil { first = err }
	}

	if fg.run != nil {
		keep(fg.run.Close())
		fg.run = nil
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		keep(fg.prof.Close())
		fg.prof = nil
	}

	if fg.log != nil {
		log.SetOutput(os.Stderr)
		keep(fg.log.Close())
		fg.log = nil
	}

	return first
}

// Run returns the run's output table, or nil if none was opened.
func (fg *FileGroup) Run() *io.RunWriter { return fg.run }

func main() {
	var runStr, diagnoseStr, exampleConfig string
	vars := map[string]*string {
		"Run": &runStr,
		"Diagnose": &diagnoseStr,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&runStr, "Run", "",
		"Configuration file with [GLE] and [System] sections. Runs an " +
			"ideal gas coupled to the GLE bath.",
	)
	flag.StringVar(
		&diagnoseStr, "Diagnose", "",
		"Configuration file with a [GLE] section. Prints a summary of the " +
			"kernel table and its spectra.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example file of the specified type to stdout. Accepted " +
			"arguments are 'Run' and 'Kernel'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil { log.Fatal(err.Error()) }

	switch modeName {
	case "Run":
		wrap, err := io.ReadRunConfig(runStr, false)
		if err != nil { log.Fatal(err.Error()) }
		runMain(&wrap.GLE, &wrap.System)
	case "Diagnose":
		wrap, err := io.ReadRunConfig(diagnoseStr, true)
		if err != nil { log.Fatal(err.Error()) }
		diagnoseMain(&wrap.GLE, &wrap.System)
	case "ExampleConfig":
		switch exampleConfig {
		case "Run":
			fmt.Println(io.ExampleRunFile)
		case "Kernel":
			err := kernel.WriteSection(os.Stdout, "GLE", io.ExampleKernel())
			if err != nil { log.Fatal(err.Error()) }
		default:
			log.Fatalf(
				"Unrecognized ExampleConfig argument '%s'.", exampleConfig,
			)
		}
	default:
		log.Fatalf("Unrecognized mode '%s'.", modeName)
	}
}

// getModeName returns the name of the mode flag that was set, or an error
// if the user set anything other than exactly one.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" { setNames = append(setNames, name) }
	}
	sort.Strings(setNames)

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but glepair only accepts " +
				"one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

// runMain simulates an ideal gas in contact with the GLE bath and writes its
// kinetic temperature to the output file.
func runMain(gle *io.GLEConfig, sys *io.SystemConfig) {
	fg, err := openFiles(sys, true)
	if err != nil { log.Fatal(err.Error()) }

	tab, err := gle.ReadKernel()
	if err != nil { log.Fatal(err.Error()) }

	cfg := gle.Engine()
	s, err := idealGas(sys, cfg.Boltzmann*cfg.Temperature, uint64(cfg.Seed))
	if err != nil { log.Fatal(err.Error()) }

	finder, err := neighbor.NewFinder(&s.Box, tab.DStop)
	if err != nil { log.Fatal(err.Error()) }
	e, err := glepair.New(cfg, tab, finder, s)
	if err != nil { log.Fatal(err.Error()) }

	ts, temps := []float64{}, []float64{}
	for step := 1; step <= sys.Steps; step++ {
		if err := e.InitialIntegrate(s); err != nil { log.Fatal(err.Error()) }
		// Ideal gas: no conservative forces.
		for i := range s.F { s.F[i] = [3]float64{} }
		if err := e.FinalIntegrate(s); err != nil { log.Fatal(err.Error()) }

		if step % sys.OutputEvery == 0 {
			t := float64(step) * sys.TimeStep
			temp := s.KineticTemperature(cfg.Boltzmann)
			ts, temps = append(ts, t), append(temps, temp)

			err = fg.run.Write(step, t, temp, e.Stats().Rebuilds)
			if err != nil { log.Fatal(err.Error()) }
		}
	}

	e.LogStats()
	if len(temps) > 1 {
		mean, std := stat.MeanStdDev(temps[len(temps)/2:], nil)
		log.Printf(
			"Kinetic temperature over the second half: %.4g +/- %.2g " +
				"(target %.4g)", mean, std, cfg.Temperature,
		)
	}

	if sys.ValidPlotFile() {
		plotTemperature(ts, temps, cfg.Temperature, sys.PlotFile)
		plt.Execute()
	}

	if err := fg.Close(); err != nil { log.Fatal(err.Error()) }
}

// idealGas places particles uniformly at random in a cubic box and draws
// their velocities from the Maxwell distribution at temperature kT.
func idealGas(sys *io.SystemConfig, kT float64, seed uint64) (
	*glepair.State, error,
) {
	box, err := geom.NewBox(sys.BoxWidth)
	if err != nil { return nil, err }

	n := sys.Particles
	s := &glepair.State{
		X: make([][3]float64, n), V: make([][3]float64, n),
		F: make([][3]float64, n), Image: make([][3]int, n),
		Type: make([]int, n), Mass: []float64{sys.Mass},
		Box: *box, Dt: sys.TimeStep,
	}

	src := rand.NewSource(seed + 1)
	pos := distuv.Uniform{ Min: 0, Max: sys.BoxWidth, Src: src }
	vel := distuv.Normal{ Mu: 0, Sigma: math.Sqrt(kT / sys.Mass), Src: src }
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			s.X[i][k] = pos.Rand()
			s.V[i][k] = vel.Rand()
		}
	}

	return s, nil
}

// diagnoseMain prints the shape, memory cost and spectral extremes of a
// kernel table. A negative spectral value means the correlation operator
// can lose positive definiteness.
func diagnoseMain(gle *io.GLEConfig, sys *io.SystemConfig) {
	fg, err := openFiles(sys, false)
	if err != nil { log.Fatal(err.Error()) }

	tab, err := gle.ReadKernel()
	if err != nil { log.Fatal(err.Error()) }

	fmt.Printf("# Nt = %d, Nd = %d, ring length = %d\n",
		tab.Nt, tab.Nd, tab.RingLen())
	fmt.Printf("# distance: [%g, %g) step %g; time: [%g, %g] step %g\n",
		tab.DStart, tab.DStop, tab.DStep, tab.TStart, tab.TStop, tab.TStep)
	fmt.Printf("# table memory: %d bytes\n", tab.MemoryUsage())

	min, tag, f := tab.MinSpectrum()
	if tag == kernel.SelfTag {
		fmt.Printf("# minimum spectrum: %.5g (self, f = %d)\n", min, f)
	} else {
		fmt.Printf("# minimum spectrum: %.5g (bin %d, f = %d)\n", min, tag, f)
	}
	if min < 0 {
		fmt.Println("# warning: negative spectral values will be clamped.")
	}

	// Worst case ratio of the summed cross-coupling to the self-term at
	// each frequency, assuming one neighbor per bin.
	fmt.Println("# f self-spectrum cross-sum ratio")
	for f := 0; f < tab.Nt; f++ {
		sum := 0.0
		for d := 0; d < tab.Nd; d++ {
			ft, _ := tab.Spectrum(d)
			sum += math.Abs(ft[f])
		}
		ratio := math.Inf(1)
		if tab.SelfFT[f] != 0 { ratio = sum / math.Abs(tab.SelfFT[f]) }
		fmt.Printf("%4d %12.5g %12.5g %8.3g\n", f, tab.SelfFT[f], sum, ratio)
	}

	if sys.ValidPlotFile() {
		plotKernel(tab, sys.PlotFile)
		plt.Execute()
	}

	if err := fg.Close(); err != nil { log.Fatal(err.Error()) }
}

// openFiles creates the log and profile files requested by the
// configuration and, if run is set, the run's output table. On error, every
// file opened so far is closed.
func openFiles(sys *io.SystemConfig, run bool) (*FileGroup, error) {
	var err error
	fg := new(FileGroup)

	if sys.ValidLogFile() {
		fg.log, err = os.Create(sys.LogFile)
		if err != nil { return nil, err }
		log.SetOutput(fg.log)
	}

	if sys.ValidProfileFile() {
		fg.prof, err = os.Create(sys.ProfileFile)
		if err == nil { err = pprof.StartCPUProfile(fg.prof) }
		if err != nil {
			if fg.prof != nil { fg.prof.Close() }
			fg.prof = nil
			fg.Close()
			return nil, err
		}
	}

	if run {
		fg.run, err = io.CreateRunWriter(sys.Output)
		if err != nil {
			fg.Close()
			return nil, err
		}
	}

	return fg, nil
}

func plotTemperature(ts, temps []float64, target float64, fname string) {
	plt.Figure()
	plt.Plot(ts, temps, "k", plt.LW(2))
	plt.Plot(
		[]float64{ts[0], ts[len(ts)-1]}, []float64{target, target},
		plt.C("r"), plt.LW(2),
	)
	plt.Title("Kinetic temperature")
	plt.XLabel(`$t$`, plt.FontSize(16))
	plt.YLabel(`$T_{\rm kin}$`, plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
}

func plotKernel(tab *kernel.Table, fname string) {
	colors := []string{"r", "b", "g", "m", "c", "y"}

	ts := make([]float64, tab.Nt)
	fs := make([]float64, tab.Nt)
	for i := range ts {
		ts[i] = tab.Time(i)
		fs[i] = float64(i)
	}

	plt.Figure()
	plt.Plot(ts, tab.Self, "k", plt.LW(3))
	for d := 0; d < tab.Nd; d++ {
		k, _ := tab.Kernel(d)
		plt.Plot(ts, k, plt.LW(2), plt.C(colors[d % len(colors)]))
	}
	plt.Title(fmt.Sprintf("Kernels, Nd = %d", tab.Nd))
	plt.XLabel(`$t$`, plt.FontSize(16))
	plt.YLabel(`$K(t)$`, plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)

	plt.Figure()
	plt.Plot(fs, tab.SelfFT, "k", plt.LW(3))
	for d := 0; d < tab.Nd; d++ {
		ft, _ := tab.Spectrum(d)
		plt.Plot(fs, ft, plt.LW(2), plt.C(colors[d % len(colors)]))
	}
	plt.Title("Kernel spectra")
	plt.XLabel(`$f$`, plt.FontSize(16))
	plt.YLabel(`$\tilde{K}(f)$`, plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(spectrumName(fname))
}

// spectrumName inserts "_spectrum" before the file extension.
func spectrumName(fname string) string {
	i := strings.LastIndex(fname, ".")
	if i <= 0 { return fname + "_spectrum" }
	return fname[:i] + "_spectrum" + fname[i:]
}
