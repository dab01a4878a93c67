/*
Copyright © 2023 the chemsolve authors.
This file is part of chemsolve.

chemsolve is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

chemsolve is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with chemsolve.  If not, see <http://www.gnu.org/licenses/>.
*/

package chemsolveutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/matrix"
	"github.com/spatialmodel/chemsolve/mechconfig"
	"github.com/spatialmodel/chemsolve/rosenbrock"
	"github.com/spatialmodel/chemsolve/science/chem/chapman"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// BoxConfig holds the configuration of a box model run.
type BoxConfig struct {
	// Mechanism is "chapman" or the path to a TOML mechanism file.
	Mechanism string

	// Method is the name of the Rosenbrock method.
	Method string

	// Layout is the name of the matrix layout.
	Layout string

	Cells    int
	Steps    int
	TimeStep float64 // [s]

	Conditions chemsolve.Conditions

	// Concentrations [mol/m³] and RateParameters override the initial
	// values of species and custom rate parameters in every cell.
	Concentrations map[string]float64
	RateParameters map[string]float64

	AbsoluteTolerance, RelativeTolerance float64
	ClampNegative                        bool

	Specialized bool
	Workers     int

	// MaxSteps is the largest number of internal steps per sub-step.
	// Zero keeps the default of the method.
	MaxSteps int

	// MaxRetries is the number of times a failed external step is retried
	// with twice as many sub-steps as the previous attempt.
	MaxRetries int

	Log logrus.FieldLogger
}

// BoxConfigFromViper reads a box model configuration from cfg.
func BoxConfigFromViper(cfg *viper.Viper) (*BoxConfig, error) {
	c := &BoxConfig{
		Mechanism: os.ExpandEnv(cfg.GetString("Mechanism")),
		Method:    cfg.GetString("Method"),
		Layout:    cfg.GetString("Layout"),
		Cells:     cfg.GetInt("Cells"),
		Steps:     cfg.GetInt("Steps"),
		TimeStep:  cfg.GetFloat64("TimeStep"),
		Conditions: chemsolve.Conditions{
			Temperature: cfg.GetFloat64("Temperature"),
			Pressure:    cfg.GetFloat64("Pressure"),
		},
		AbsoluteTolerance: cfg.GetFloat64("AbsoluteTolerance"),
		RelativeTolerance: cfg.GetFloat64("RelativeTolerance"),
		ClampNegative:     cfg.GetBool("ClampNegative"),
		Specialized:       cfg.GetBool("Specialized"),
		Workers:           cfg.GetInt("Workers"),
		MaxSteps:          cfg.GetInt("MaxSteps"),
		MaxRetries:        cfg.GetInt("MaxRetries"),
		Log:               Log,
	}
	var err error
	if c.Concentrations, err = getStringMapFloat64("Concentrations", cfg); err != nil {
		return nil, err
	}
	if c.RateParameters, err = getStringMapFloat64("RateParameters", cfg); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *BoxConfig) check() error {
	switch {
	case c.Cells < 1:
		return fmt.Errorf("chemsolve: Cells=%d but should be >0", c.Cells)
	case c.Steps < 0:
		return fmt.Errorf("chemsolve: Steps=%d but should be >=0", c.Steps)
	case !(c.TimeStep > 0):
		return fmt.Errorf("chemsolve: TimeStep=%g but should be >0", c.TimeStep)
	case !(c.Conditions.Temperature > 0):
		return fmt.Errorf("chemsolve: Temperature=%g but should be >0", c.Conditions.Temperature)
	case !(c.Conditions.Pressure > 0):
		return fmt.Errorf("chemsolve: Pressure=%g but should be >0", c.Conditions.Pressure)
	case c.MaxSteps < 0:
		return fmt.Errorf("chemsolve: MaxSteps=%d but should be >=0", c.MaxSteps)
	case c.MaxRetries < 0:
		return fmt.Errorf("chemsolve: MaxRetries=%d but should be >=0", c.MaxRetries)
	}
	return nil
}

// getStringMapFloat64 returns a map of numbers from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument or environment variable.
func getStringMapFloat64(varName string, cfg *viper.Viper) (map[string]float64, error) {
	i := cfg.Get(varName)
	if i == nil {
		return map[string]float64{}, nil
	}
	m, err := cast.ToStringMapE(i)
	if err != nil {
		return nil, fmt.Errorf("chemsolve: invalid value for %s: %v", varName, err)
	}
	o := make(map[string]float64, len(m))
	for k, v := range m {
		if o[k], err = cast.ToFloat64E(v); err != nil {
			return nil, fmt.Errorf("chemsolve: invalid value for %s.%s: %v", varName, k, err)
		}
	}
	return o, nil
}

// LoadMechanism returns the built-in Chapman mechanism if name is
// "chapman" and otherwise reads the mechanism in the TOML file at name.
func LoadMechanism(name string) (chemsolve.Mechanism, error) {
	if strings.EqualFold(name, "chapman") {
		return chapman.Mechanism{}, nil
	}
	m, err := mechconfig.ReadAndParse(name)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Parameters returns the solver parameters for mechanism m.
func (c *BoxConfig) Parameters(m chemsolve.Mechanism) (rosenbrock.Parameters, error) {
	p, err := rosenbrock.ParametersByName(c.Method, c.Cells)
	if err != nil {
		return p, err
	}
	p.AbsoluteTolerance = c.AbsoluteTolerance
	p.RelativeTolerance = c.RelativeTolerance
	p.ClampNegativeConcentrations = c.ClampNegative
	if c.MaxSteps > 0 {
		p.MaxNumberOfSteps = c.MaxSteps
	}
	if mc, ok := m.(*mechconfig.Mechanism); ok {
		p.AbsoluteTolerances = mc.AbsoluteTolerances()
	}
	return p, p.Validate()
}

func (c *BoxConfig) options() []rosenbrock.Option {
	opts := []rosenbrock.Option{rosenbrock.WithLogger(c.Log)}
	if c.Specialized {
		opts = append(opts, rosenbrock.WithSpecializedKernel())
	}
	if c.Workers != 1 {
		opts = append(opts, rosenbrock.WithParallelEvaluation(c.Workers))
	}
	return opts
}

// BoxResult holds the output of a box model run.
type BoxResult struct {
	// Times are the output times [s], starting with the initial time.
	Times []float64

	// Species are the species names.
	Species []string

	// Constant are the names of the species held constant.
	Constant []string

	// Values holds the concentration [mol/m³] of every species in every
	// cell at every output time, indexed [time][cell][species].
	Values [][][]float64

	// Stats is the total work done by the solver.
	Stats rosenbrock.Stats

	// Retries is the number of external steps that were repeated.
	Retries int
}

// RunBox runs the box model described by c.
func RunBox(c *BoxConfig) (*BoxResult, error) {
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	switch strings.ToLower(c.Layout) {
	case "", "standard":
		return runBox[matrix.Standard](c)
	case "vector1":
		return runBox[matrix.Vector1](c)
	case "vector2":
		return runBox[matrix.Vector2](c)
	case "vector3":
		return runBox[matrix.Vector3](c)
	case "vector4":
		return runBox[matrix.Vector4](c)
	case "vector8":
		return runBox[matrix.Vector8](c)
	default:
		return nil, fmt.Errorf("chemsolve: invalid layout %q", c.Layout)
	}
}

func runBox[L matrix.Layout](c *BoxConfig) (*BoxResult, error) {
	m, err := LoadMechanism(c.Mechanism)
	if err != nil {
		return nil, err
	}
	sys, err := m.System()
	if err != nil {
		return nil, err
	}
	procs, err := m.Processes()
	if err != nil {
		return nil, err
	}
	params, err := c.Parameters(m)
	if err != nil {
		return nil, err
	}
	solver, err := rosenbrock.NewSolver[L](sys, procs, params, c.options()...)
	if err != nil {
		return nil, err
	}
	state, err := solver.GetState()
	if err != nil {
		return nil, err
	}
	if err := initialize(c, m, state); err != nil {
		return nil, err
	}
	if err := solver.UpdateState(state); err != nil {
		return nil, err
	}

	r := &BoxResult{Species: sys.Names()}
	for _, sp := range sys.Species() {
		if sp.Constant {
			r.Constant = append(r.Constant, sp.Name)
		}
	}
	if err := record(r, 0, state); err != nil {
		return nil, err
	}
	snapshot := state.Variables.Clone()
	for step := 0; step < c.Steps; step++ {
		if err := snapshot.CopyFrom(state.Variables); err != nil {
			return nil, err
		}
		attempt := 0
		op := func() error {
			if err := state.Variables.CopyFrom(snapshot); err != nil {
				return backoff.Permanent(err)
			}
			n := 1 << uint(attempt)
			attempt++
			for i := 0; i < n; i++ {
				res, err := solver.Solve(c.TimeStep/float64(n), state)
				r.Stats.Add(res.Stats)
				if errors.Is(err, rosenbrock.ErrSingularMatrix) || errors.Is(err, chemsolve.ErrInvalidState) {
					return backoff.Permanent(err)
				} else if err != nil {
					return err
				}
			}
			return nil
		}
		b := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(c.MaxRetries))
		err := backoff.RetryNotify(op, b, func(err error, _ time.Duration) {
			r.Retries++
			c.Log.WithFields(logrus.Fields{"step": step, "substeps": 1 << uint(attempt)}).
				Warnf("chemsolve: retrying step: %v", err)
		})
		if err != nil {
			return r, fmt.Errorf("chemsolve: step %d: %w", step, err)
		}
		t := float64(step+1) * c.TimeStep
		if err := record(r, t, state); err != nil {
			return r, err
		}
		c.Log.WithFields(logrus.Fields{
			"step":     step,
			"time":     t,
			"accepted": r.Stats.Accepted,
			"rejected": r.Stats.Rejected,
		}).Info("chemsolve: completed step")
	}
	return r, nil
}

// initialize sets the conditions, concentrations, and custom rate
// parameters of every cell in state. The Chapman mechanism starts from
// typical stratospheric values.
func initialize[L matrix.Layout](c *BoxConfig, m chemsolve.Mechanism, state *chemsolve.State[L]) error {
	state.SetConditions(c.Conditions)
	conc := make(map[string]float64)
	rates := make(map[string]float64)
	if ch, ok := m.(chapman.Mechanism); ok {
		conc = ch.InitialConcentrations(c.Conditions.IdealGasAirDensity())
		rates = ch.PhotolysisRates()
	}
	for k, v := range c.Concentrations {
		conc[k] = v
	}
	for k, v := range c.RateParameters {
		rates[k] = v
	}
	for cell := 0; cell < state.Cells(); cell++ {
		for name, v := range conc {
			if err := state.SetConcentration(cell, name, v); err != nil {
				return err
			}
		}
		for label, v := range rates {
			if err := state.SetCustomRateParameter(cell, label, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// record appends the concentrations in state at time t to r, in system
// species order.
func record[L matrix.Layout](r *BoxResult, t float64, state *chemsolve.State[L]) error {
	v := make([][]float64, state.Cells())
	for cell := range v {
		v[cell] = make([]float64, len(r.Species))
		for i, name := range r.Species {
			x, err := state.Concentration(cell, name)
			if err != nil {
				return err
			}
			v[cell][i] = x
		}
	}
	r.Times = append(r.Times, t)
	r.Values = append(r.Values, v)
	return nil
}

// WriteCSV writes the concentrations in r to w, with one row per output
// time and grid cell and one column per species.
func (r *BoxResult) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time", "cell"}, r.Species...)); err != nil {
		return err
	}
	row := make([]string, len(r.Species)+2)
	for i, t := range r.Times {
		for cell, v := range r.Values[i] {
			row[0] = strconv.FormatFloat(t, 'g', -1, 64)
			row[1] = strconv.Itoa(cell)
			for j, x := range v {
				row[j+2] = strconv.FormatFloat(x, 'g', 8, 64)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Plot saves a plot of the concentrations of the variable species in the
// given grid cell to a PNG file. Concentrations are plotted on a
// logarithmic scale, so values that are not positive are left out.
func (r *BoxResult) Plot(filename string, cell int) error {
	if len(r.Values) == 0 || cell < 0 || cell >= len(r.Values[0]) {
		return fmt.Errorf("chemsolve: no results to plot for cell %d", cell)
	}
	skip := make(map[string]bool, len(r.Constant))
	for _, c := range r.Constant {
		skip[c] = true
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cell %d", cell)
	p.X.Label.Text = "Time (h)"
	p.Y.Label.Text = "Concentration (mol/m³)"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	names := append([]string(nil), r.Species...)
	sort.Strings(names)
	index := make(map[string]int, len(r.Species))
	for i, n := range r.Species {
		index[n] = i
	}
	lines := 0
	for _, name := range names {
		if skip[name] {
			continue
		}
		var xy plotter.XYs
		for i, t := range r.Times {
			if v := r.Values[i][cell][index[name]]; v > 0 {
				xy = append(xy, plotter.XY{X: t / 3600, Y: v})
			}
		}
		if len(xy) == 0 {
			continue
		}
		l, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(lines)
		l.Dashes = plotutil.Dashes(lines / len(plotutil.SoftColors))
		p.Add(l)
		p.Legend.Add(name, l)
		lines++
	}
	if lines == 0 {
		return fmt.Errorf("chemsolve: no positive concentrations to plot in cell %d", cell)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
