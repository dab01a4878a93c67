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
	"bytes"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/rosenbrock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func chemsolveConditions() chemsolve.Conditions {
	return chemsolve.Conditions{Temperature: 227, Pressure: 1000}
}

func decayConfig() *BoxConfig {
	return &BoxConfig{
		Mechanism:         "testdata/decay.toml",
		Method:            "ROS3",
		Layout:            "standard",
		Cells:             2,
		Steps:             4,
		TimeStep:          0.5,
		Conditions:        chemsolveConditions(),
		Concentrations:    map[string]float64{"A": 1},
		AbsoluteTolerance: 1e-12,
		RelativeTolerance: 1e-6,
		MaxRetries:        4,
		Log:               quiet(),
	}
}

func TestRunBoxDecay(t *testing.T) {
	r, err := RunBox(decayConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, r.Species)
	require.Len(t, r.Times, 5)
	require.Len(t, r.Values, 5)
	assert.Empty(t, r.Constant)
	assert.Equal(t, 0, r.Retries)
	for i, tm := range r.Times {
		assert.InDelta(t, 0.5*float64(i), tm, 1e-12)
		for cell := 0; cell < 2; cell++ {
			a, b := r.Values[i][cell][0], r.Values[i][cell][1]
			assert.InDelta(t, math.Exp(-tm), a, 1e-4, "time %g cell %d", tm, cell)
			assert.InDelta(t, 1, a+b, 1e-10, "time %g cell %d", tm, cell)
		}
	}
	assert.Greater(t, r.Stats.Accepted, 0)
}

func TestRunBoxLayouts(t *testing.T) {
	want, err := RunBox(decayConfig())
	require.NoError(t, err)
	for _, layout := range []string{"vector1", "vector2", "Vector3", "vector4", "vector8"} {
		c := decayConfig()
		c.Layout = layout
		c.Cells = 5
		c.Specialized = true
		have, err := RunBox(c)
		require.NoError(t, err, layout)
		for i := range want.Values {
			for cell := 0; cell < 5; cell++ {
				assert.InDeltaSlice(t, want.Values[i][0], have.Values[i][cell], 1e-12, layout)
			}
		}
	}
}

func TestRunBoxRetry(t *testing.T) {
	c := decayConfig()
	c.Steps = 1
	c.TimeStep = 1
	c.MaxSteps = 5
	c.MaxRetries = 10
	r, err := RunBox(c)
	require.NoError(t, err)
	assert.Greater(t, r.Retries, 0)
	assert.InDelta(t, math.Exp(-1), r.Values[1][0][0], 1e-4)

	c.MaxRetries = 0
	_, err = RunBox(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rosenbrock.ErrMaxSteps), "have %v", err)
	var se *rosenbrock.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, rosenbrock.ConvergenceExceededMaxSteps, se.Status)
}

func TestRunBoxChapman(t *testing.T) {
	c := &BoxConfig{
		Mechanism:         "chapman",
		Method:            "RODAS3",
		Cells:             1,
		Steps:             3,
		TimeStep:          60,
		Conditions:        chemsolveConditions(),
		AbsoluteTolerance: 1e-15,
		RelativeTolerance: 1e-4,
		MaxSteps:          100000,
		Workers:           2,
		Log:               quiet(),
	}
	r, err := RunBox(c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"M", "Ar", "CO2", "H2O", "N2", "O2"}, r.Constant)
	idx := make(map[string]int)
	for i, s := range r.Species {
		idx[s] = i
	}
	first, last := r.Values[0][0], r.Values[len(r.Values)-1][0]
	for _, s := range r.Constant {
		assert.Equal(t, first[idx[s]], last[idx[s]], s)
	}
	assert.Equal(t, 0.0, first[idx["O1D"]])
	assert.Greater(t, last[idx["O1D"]], 0.0)
	assert.Greater(t, last[idx["O3"]], 0.0)

	dir := t.TempDir()
	require.NoError(t, r.Plot(filepath.Join(dir, "chapman.png"), 0))
	fi, err := os.Stat(filepath.Join(dir, "chapman.png"))
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))
	assert.Error(t, r.Plot(filepath.Join(dir, "bad.png"), 1))
}

func TestWriteCSV(t *testing.T) {
	r := &BoxResult{
		Times:   []float64{0, 60},
		Species: []string{"A", "B"},
		Values: [][][]float64{
			{{1, 0}, {2, 0}},
			{{0.5, 0.5}, {1, 1}},
		},
	}
	var b bytes.Buffer
	require.NoError(t, r.WriteCSV(&b))
	recs, err := csv.NewReader(&b).ReadAll()
	require.NoError(t, err)
	want := [][]string{
		{"time", "cell", "A", "B"},
		{"0", "0", "1", "0"},
		{"0", "1", "2", "0"},
		{"60", "0", "0.5", "0.5"},
		{"60", "1", "1", "1"},
	}
	assert.Equal(t, want, recs)
}

func TestBadConfig(t *testing.T) {
	for name, f := range map[string]func(*BoxConfig){
		"cells":       func(c *BoxConfig) { c.Cells = 0 },
		"steps":       func(c *BoxConfig) { c.Steps = -1 },
		"time step":   func(c *BoxConfig) { c.TimeStep = 0 },
		"temperature": func(c *BoxConfig) { c.Conditions.Temperature = math.NaN() },
		"pressure":    func(c *BoxConfig) { c.Conditions.Pressure = -1 },
		"retries":     func(c *BoxConfig) { c.MaxRetries = -1 },
		"layout":      func(c *BoxConfig) { c.Layout = "vector5" },
		"method":      func(c *BoxConfig) { c.Method = "ROS9" },
		"mechanism":   func(c *BoxConfig) { c.Mechanism = "testdata/missing.toml" },
		"species":     func(c *BoxConfig) { c.Concentrations = map[string]float64{"C": 1} },
		"parameter":   func(c *BoxConfig) { c.RateParameters = map[string]float64{"PHOTO.X": 1} },
	} {
		c := decayConfig()
		f(c)
		_, err := RunBox(c)
		assert.Error(t, err, name)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	plotFile := filepath.Join(dir, "out.png")

	var b bytes.Buffer
	Root.SetOut(&b)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Contains(t, b.String(), "chemsolve v")

	b.Reset()
	Root.SetArgs([]string{"params", "--Method=ROS2", "--Mechanism=testdata/decay.toml"})
	require.NoError(t, Root.Execute())
	assert.Contains(t, b.String(), "ROS2")
	assert.Contains(t, b.String(), "A_1")

	Root.SetArgs([]string{"run", "--LogLevel=error", "--Mechanism=chapman", "--Steps=2",
		"--TimeStep=60", "--Method=ROS3", "--MaxSteps=100000", "--Layout=vector2", "--Cells=3", "--Workers=0",
		`--Concentrations={"O3":2.5e-6}`, "--OutputFile=" + out, "--PlotFile=" + plotFile})
	require.NoError(t, Root.Execute())
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1+3*3)
	assert.Equal(t, "time", recs[0][0])
	col := -1
	for i, h := range recs[0] {
		if h == "O3" {
			col = i
		}
	}
	require.NotEqual(t, -1, col)
	o3, err := strconv.ParseFloat(recs[1][col], 64)
	require.NoError(t, err)
	assert.InDelta(t, 2.5e-6, o3, 1e-14)
	_, err = os.Stat(plotFile)
	assert.NoError(t, err)

	Root.SetArgs([]string{"run", "--LogLevel=loud"})
	assert.Error(t, Root.Execute())
}

func TestGetStringMapFloat64(t *testing.T) {
	Cfg.Set("RateParameters", `{"PHOTO.O2_1":1.5e-10}`)
	defer Cfg.Set("RateParameters", "{}")
	m, err := getStringMapFloat64("RateParameters", Cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"PHOTO.O2_1": 1.5e-10}, m)

	Cfg.Set("RateParameters", map[string]interface{}{"PHOTO.O3_1": "2e-4"})
	m, err = getStringMapFloat64("RateParameters", Cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"PHOTO.O3_1": 2e-4}, m)

	Cfg.Set("RateParameters", map[string]interface{}{"PHOTO.O3_1": "high"})
	_, err = getStringMapFloat64("RateParameters", Cfg)
	assert.Error(t, err)
}
