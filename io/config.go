/*package io handles the configuration files and text output of the glepair
command line tool.
*/
package io

import (
	"fmt"
	"math"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/glepair"
	"github.com/phil-mansfield/glepair/kernel"
)

const (
	ExampleRunFile = `[GLE]

#######################
# Required Parameters #
#######################

# File containing the tabulated memory kernels.
KernelFile = path/to/kernel.txt

# Temperature of the bath, in the same units as Boltzmann * Temperature is an
# energy.
Temperature = 1.0

# Seed for the white noise generator. Must be positive.
Seed = 12345

#######################
# Optional Parameters #
#######################

# Boltzmann's constant in simulation units. Default is 1.
# Boltzmann = 1

# KernelFormat is either Section or Columns. Section files contain a header
# line starting with Keyword followed by a parameter line, which is the
# format written by -ExampleConfig Kernel. Columns files contain only the
# "distance time amplitude" rows, and the grid must be given below.
# KernelFormat = Section
# Keyword = GLE

# Kernel grid for the Columns format. The time axis defaults to
# TStart = 0, TStep = 0.05, TStop = 5.
# DStart = 0
# DStep = 0.25
# DStop = 2.5
# TStart = 0
# TStep = 0.05
# TStop = 5

# Lanczos solver settings. Defaults are 50 and 1e-5.
# MaxLanczos = 50
# LanczosTol = 1e-5

# When to rebuild the correlation operator: Always or Displacement. With
# Displacement, the operator is rebuilt once any particle moves more than
# a quarter of a distance bin. Default is Always.
# Rebuild = Always

# Number of steps between logged summaries. 0 turns logging off.
# LogEvery = 1000

[System]

#######################
# Required Parameters #
#######################

# Number of particles placed uniformly at random in a cubic box. TimeStep
# should match the kernel's TStep, since the history rings advance once per
# step.
Particles = 500
BoxWidth = 10
Mass = 1
TimeStep = 0.05
Steps = 10000

# Column file with step, time, kinetic temperature and rebuild count.
Output = path/to/output.txt

#######################
# Optional Parameters #
#######################

# Steps between output rows. Default is 10.
# OutputEvery = 10

# Image of the kinetic temperature over time.
# PlotFile = temperature.png

# Output files which are useful for profiling and debugging. Generally, there
# isn't a reason to use these unless something goes wrong.
# ProfileFile = prof.out
# LogFile = log.out`
)

type GLEConfig struct {
	// Required
	KernelFile string
	Temperature float64
	Seed int64

	// Optional
	Boltzmann float64
	KernelFormat, Keyword string
	DStart, DStep, DStop float64
	TStart, TStep, TStop float64
	MaxLanczos int
	LanczosTol float64
	Rebuild string
	LogEvery int
}

func (con *GLEConfig) ValidKernelFile() bool {
	return con.KernelFile != ""
}
func (con *GLEConfig) ValidTemperature() bool {
	return con.Temperature >= 0 && !math.IsInf(con.Temperature, 0)
}
func (con *GLEConfig) ValidSeed() bool {
	return con.Seed > 0
}
func (con *GLEConfig) ValidBoltzmann() bool {
	return con.Boltzmann > 0
}
func (con *GLEConfig) ValidKernelFormat() bool {
	return con.KernelFormat == "Section" || con.KernelFormat == "Columns"
}
func (con *GLEConfig) ValidKeyword() bool {
	return con.Keyword != ""
}
func (con *GLEConfig) ValidMaxLanczos() bool {
	return con.MaxLanczos > 0
}
func (con *GLEConfig) ValidLanczosTol() bool {
	return con.LanczosTol > 0
}
func (con *GLEConfig) ValidRebuild() bool {
	_, ok := rebuildPolicies[con.Rebuild]
	return ok
}
func (con *GLEConfig) ValidLogEvery() bool {
	return con.LogEvery >= 0
}

var rebuildPolicies = map[string]glepair.RebuildPolicy{
	"Always": glepair.RebuildAlways,
	"Displacement": glepair.RebuildDisplacement,
}

// CheckInit returns an error describing the first invalid parameter.
func (con *GLEConfig) CheckInit() error {
	switch {
	case !con.ValidKernelFile():
		return fmt.Errorf("Invalid/non-existent 'KernelFile' value.")
	case !con.ValidTemperature():
		return fmt.Errorf("'Temperature' must be non-negative, but is %g.",
			con.Temperature)
	case !con.ValidSeed():
		return fmt.Errorf("'Seed' must be positive, but is %d.", con.Seed)
	case !con.ValidBoltzmann():
		return fmt.Errorf("'Boltzmann' must be positive, but is %g.",
			con.Boltzmann)
	case !con.ValidKernelFormat():
		return fmt.Errorf("Unrecognized 'KernelFormat' value '%s'.",
			con.KernelFormat)
	case !con.ValidKeyword():
		return fmt.Errorf("Invalid/non-existent 'Keyword' value.")
	case !con.ValidMaxLanczos():
		return fmt.Errorf("'MaxLanczos' must be positive, but is %d.",
			con.MaxLanczos)
	case !con.ValidLanczosTol():
		return fmt.Errorf("'LanczosTol' must be positive, but is %g.",
			con.LanczosTol)
	case !con.ValidRebuild():
		return fmt.Errorf("Unrecognized 'Rebuild' value '%s'.", con.Rebuild)
	case !con.ValidLogEvery():
		return fmt.Errorf("'LogEvery' must be non-negative, but is %d.",
			con.LogEvery)
	}

	if con.KernelFormat == "Columns" {
		g := con.Grid()
		if err := g.CheckInit(); err != nil { return err }
	}
	return nil
}

// Grid returns the kernel grid given for the Columns format.
func (con *GLEConfig) Grid() kernel.Grid {
	g := kernel.DefaultGrid()
	g.DStart, g.DStep, g.DStop = con.DStart, con.DStep, con.DStop
	g.TStart, g.TStep, g.TStop = con.TStart, con.TStep, con.TStop
	return g
}

// ReadKernel reads the kernel table named by the configuration.
func (con *GLEConfig) ReadKernel() (*kernel.Table, error) {
	if con.KernelFormat == "Columns" {
		return kernel.ReadColumnsFile(con.KernelFile, con.Grid())
	}
	return kernel.ReadSectionFile(con.KernelFile, con.Keyword)
}

// Engine returns the engine parameters described by the configuration.
func (con *GLEConfig) Engine() glepair.Config {
	return glepair.Config{
		Temperature: con.Temperature, Boltzmann: con.Boltzmann,
		Seed: con.Seed,
		MaxLanczos: con.MaxLanczos, LanczosTol: con.LanczosTol,
		Rebuild: rebuildPolicies[con.Rebuild],
		LogEvery: con.LogEvery,
	}
}

type SystemConfig struct {
	// Required
	Particles int
	BoxWidth, Mass, TimeStep float64
	Steps int
	Output string

	// Optional
	OutputEvery int
	PlotFile, LogFile, ProfileFile string
}

func (con *SystemConfig) ValidParticles() bool {
	return con.Particles > 0
}
func (con *SystemConfig) ValidBoxWidth() bool {
	return con.BoxWidth > 0 && !math.IsInf(con.BoxWidth, 0)
}
func (con *SystemConfig) ValidMass() bool {
	return con.Mass > 0
}
func (con *SystemConfig) ValidTimeStep() bool {
	return con.TimeStep > 0
}
func (con *SystemConfig) ValidSteps() bool {
	return con.Steps > 0
}
func (con *SystemConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *SystemConfig) ValidOutputEvery() bool {
	return con.OutputEvery > 0
}
func (con *SystemConfig) ValidPlotFile() bool {
	return con.PlotFile != ""
}
func (con *SystemConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SystemConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// CheckInit returns an error describing the first invalid parameter.
func (con *SystemConfig) CheckInit() error {
	switch {
	case !con.ValidParticles():
		return fmt.Errorf("Invalid/non-existent 'Particles' value.")
	case !con.ValidBoxWidth():
		return fmt.Errorf("Invalid/non-existent 'BoxWidth' value.")
	case !con.ValidMass():
		return fmt.Errorf("Invalid/non-existent 'Mass' value.")
	case !con.ValidTimeStep():
		return fmt.Errorf("Invalid/non-existent 'TimeStep' value.")
	case !con.ValidSteps():
		return fmt.Errorf("Invalid/non-existent 'Steps' value.")
	case !con.ValidOutput():
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	case !con.ValidOutputEvery():
		return fmt.Errorf("'OutputEvery' must be positive, but is %d.",
			con.OutputEvery)
	}
	return nil
}

type RunWrapper struct {
	GLE GLEConfig
	System SystemConfig
}

func DefaultRunWrapper() *RunWrapper {
	gle := GLEConfig{
		Boltzmann: 1, KernelFormat: "Section", Keyword: "GLE",
		MaxLanczos: 50, LanczosTol: 1e-5, Rebuild: "Always",
		LogEvery: 1000,
	}
	def := kernel.DefaultGrid()
	gle.TStart, gle.TStep, gle.TStop = def.TStart, def.TStep, def.TStop

	sys := SystemConfig{ OutputEvery: 10 }
	return &RunWrapper{ gle, sys }
}

// ReadRunConfig reads and validates a configuration file. If gleOnly is
// true, the [System] section is not checked.
func ReadRunConfig(fname string, gleOnly bool) (*RunWrapper, error) {
	wrap := DefaultRunWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil { return nil, err }

	if err := wrap.GLE.CheckInit(); err != nil { return nil, err }
	if gleOnly { return wrap, nil }
	if err := wrap.System.CheckInit(); err != nil { return nil, err }
	return wrap, nil
}
