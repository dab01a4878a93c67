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

package rosenbrock

import (
	"fmt"
	"math"
)

// Parameters configure a Rosenbrock solver: the method coefficients and
// the step-size controller.
type Parameters struct {
	// Name identifies the method.
	Name string

	// Stages is the number of stages of the method.
	Stages int

	// A holds the stage combination coefficients for the evaluation
	// point of each stage, Stages·(Stages-1)/2 values stored by stage.
	A []float64

	// C holds the stage combination coefficients for the right-hand side
	// of each stage, stored like A.
	C []float64

	// M holds the coefficients of the new solution.
	M []float64

	// E holds the coefficients of the error estimate.
	E []float64

	// Alpha and Gamma are the time and diagonal coefficients of each
	// stage. Gamma[0] sets the diagonal of the linear systems.
	Alpha, Gamma []float64

	// NewFunctionEvaluation[s] is true when stage s evaluates the forcing
	// at a new point instead of reusing that of the previous stage.
	NewFunctionEvaluation []bool

	// EstimatorOfLocalOrder is the order of the error estimate.
	EstimatorOfLocalOrder float64

	// Cells is the number of grid cells solved together.
	Cells int

	// HMin and HMax bound the internal step size [s]. A zero HMax means
	// the requested time step. A step rejection that would make the step
	// size smaller than a non-zero HMin is a failure.
	HMin, HMax float64

	// HStart is the initial step size [s]. Zero means 1e-5 s.
	HStart float64

	// MaxNumberOfSteps is the largest number of internal steps per call
	// to Solve.
	MaxNumberOfSteps int

	// MaxConsecutiveRejections is the largest number of rejected steps in
	// a row before Solve fails.
	MaxConsecutiveRejections int

	// RoundOff is the machine precision.
	RoundOff float64

	// FacMin and FacMax bound the step size change after a step; FacRej
	// is the change applied after two rejections in a row, and FacSafe is
	// the safety factor.
	FacMin, FacMax, FacRej, FacSafe float64

	// AbsoluteTolerance [mol/m³] and RelativeTolerance are the error
	// tolerances. AbsoluteTolerances overrides AbsoluteTolerance for
	// individual species.
	AbsoluteTolerance  float64
	AbsoluteTolerances map[string]float64
	RelativeTolerance  float64

	// ClampNegativeConcentrations sets negative concentrations to zero at
	// every stage evaluation point and in every accepted state.
	ClampNegativeConcentrations bool

	// ReorderState orders the species in the state to limit fill-in of
	// the Jacobian factors. Otherwise system order is kept.
	ReorderState bool
}

func defaults(p Parameters, cells int) Parameters {
	p.Cells = cells
	p.MaxNumberOfSteps = 1000
	p.MaxConsecutiveRejections = 20
	p.RoundOff = math.Nextafter(1, 2) - 1
	p.FacMin = 0.2
	p.FacMax = 6
	p.FacRej = 0.1
	p.FacSafe = 0.9
	p.AbsoluteTolerance = 1e-3
	p.RelativeTolerance = 1e-4
	p.ReorderState = true
	return p
}

// TwoStageParameters returns the parameters of the two-stage, order 2
// L-stable method ROS2.
func TwoStageParameters(cells int) Parameters {
	g := 1 + 1/math.Sqrt2
	return defaults(Parameters{
		Name:                  "ROS2",
		Stages:                2,
		A:                     []float64{1 / g},
		C:                     []float64{-2 / g},
		NewFunctionEvaluation: []bool{true, true},
		M:                     []float64{3 / (2 * g), 1 / (2 * g)},
		E:                     []float64{1 / (2 * g), 1 / (2 * g)},
		EstimatorOfLocalOrder: 2,
		Alpha:                 []float64{0, 1},
		Gamma:                 []float64{g, -g},
	}, cells)
}

// ThreeStageParameters returns the parameters of the three-stage, order 3
// L-stable method ROS3 of Sandu et al. (1997).
func ThreeStageParameters(cells int) Parameters {
	return defaults(Parameters{
		Name:   "ROS3",
		Stages: 3,
		A:      []float64{1, 1, 0},
		C: []float64{
			-0.10156171083877702091975600115545e+01,
			0.40759956452537699824805835358067e+01,
			0.92076794298330791242156818474003e+01,
		},
		NewFunctionEvaluation: []bool{true, true, false},
		M: []float64{
			0.1e+01,
			0.61697947043828245592553615689730e+01,
			-0.42772256543218573326238373806514,
		},
		E: []float64{
			0.5,
			-0.29079558716805469821718236208017e+01,
			0.22354069897811569627360909276199,
		},
		EstimatorOfLocalOrder: 3,
		Alpha: []float64{
			0,
			0.43586652150845899941601945119356,
			0.43586652150845899941601945119356,
		},
		Gamma: []float64{
			0.43586652150845899941601945119356,
			0.24291996454816804366592249683314,
			0.21851380027664058511513169485832e+01,
		},
	}, cells)
}

// FourStageParameters returns the parameters of the four-stage, order 4
// L-stable method ROS4 of Hairer and Wanner (1996).
func FourStageParameters(cells int) Parameters {
	return defaults(Parameters{
		Name:   "ROS4",
		Stages: 4,
		A: []float64{
			0.2000000000000000e+01,
			0.1867943637803922e+01,
			0.2344449711399156,
			0.1867943637803922e+01,
			0.2344449711399156,
			0,
		},
		C: []float64{
			-0.7137615036412310e+01,
			0.2580708087951457e+01,
			0.6515950076447975,
			-0.2137148994382534e+01,
			-0.3214669691237626,
			-0.6949742501781779,
		},
		NewFunctionEvaluation: []bool{true, true, true, false},
		M: []float64{
			0.2255570073418735e+01,
			0.2870493262186792,
			0.4353179431840180,
			0.1093502252409163e+01,
		},
		E: []float64{
			-0.2815431932141155,
			-0.7276199124938920e-01,
			-0.1082196201495311,
			-0.1093502252409163e+01,
		},
		EstimatorOfLocalOrder: 4,
		Alpha:                 []float64{0, 0.1145640000000000e+01, 0.6552168638155900, 0.6552168638155900},
		Gamma: []float64{
			0.5728200000000000,
			-0.1769193891319233e+01,
			0.7592633437920482,
			-0.1049021087100450,
		},
	}, cells)
}

// FourStageDifferentialAlgebraicParameters returns the parameters of the
// four-stage, order 3 stiffly accurate method RODAS3 of Sandu et al.
// (1997).
func FourStageDifferentialAlgebraicParameters(cells int) Parameters {
	return defaults(Parameters{
		Name:                  "RODAS3",
		Stages:                4,
		A:                     []float64{0, 2, 0, 2, 0, 1},
		C:                     []float64{4, 1, -1, 1, -1, -8.0 / 3.0},
		NewFunctionEvaluation: []bool{true, false, true, true},
		M:                     []float64{2, 0, 1, 1},
		E:                     []float64{0, 0, 0, 1},
		EstimatorOfLocalOrder: 3,
		Alpha:                 []float64{0, 0, 1, 1},
		Gamma:                 []float64{0.5, 1.5, 0, 0},
	}, cells)
}

// ParametersByName returns the parameters of the named method: one of
// "ROS2", "ROS3", "ROS4", or "RODAS3".
func ParametersByName(name string, cells int) (Parameters, error) {
	switch name {
	case "ROS2":
		return TwoStageParameters(cells), nil
	case "ROS3":
		return ThreeStageParameters(cells), nil
	case "ROS4":
		return FourStageParameters(cells), nil
	case "RODAS3":
		return FourStageDifferentialAlgebraicParameters(cells), nil
	}
	return Parameters{}, fmt.Errorf("rosenbrock: unknown method %q", name)
}

// Validate checks that p is internally consistent.
func (p Parameters) Validate() error {
	s := p.Stages
	nComb := s * (s - 1) / 2
	switch {
	case s < 1:
		return fmt.Errorf("rosenbrock: %d stages", s)
	case len(p.A) != nComb || len(p.C) != nComb:
		return fmt.Errorf("rosenbrock: %d stages need %d combination coefficients; have %d and %d", s, nComb, len(p.A), len(p.C))
	case len(p.M) != s || len(p.E) != s || len(p.Alpha) != s || len(p.Gamma) != s || len(p.NewFunctionEvaluation) != s:
		return fmt.Errorf("rosenbrock: per-stage coefficients must have %d values", s)
	case !p.NewFunctionEvaluation[0]:
		return fmt.Errorf("rosenbrock: the first stage must evaluate the forcing")
	case p.Gamma[0] == 0:
		return fmt.Errorf("rosenbrock: Gamma[0] must not be zero")
	case p.EstimatorOfLocalOrder <= 0:
		return fmt.Errorf("rosenbrock: invalid local order %g", p.EstimatorOfLocalOrder)
	case p.Cells < 0:
		return fmt.Errorf("rosenbrock: %d cells", p.Cells)
	case p.HMin < 0 || p.HMax < 0 || p.HStart < 0:
		return fmt.Errorf("rosenbrock: step size limits must not be negative")
	case p.MaxNumberOfSteps < 1 || p.MaxConsecutiveRejections < 1:
		return fmt.Errorf("rosenbrock: step and rejection limits must be positive")
	case p.FacMin <= 0 || p.FacMax < 1 || p.FacRej <= 0 || p.FacSafe <= 0:
		return fmt.Errorf("rosenbrock: invalid step size factors")
	case p.AbsoluteTolerance <= 0 || p.RelativeTolerance < 0:
		return fmt.Errorf("rosenbrock: invalid tolerances")
	}
	for name, v := range p.AbsoluteTolerances {
		if v <= 0 {
			return fmt.Errorf("rosenbrock: invalid absolute tolerance %g for %s", v, name)
		}
	}
	return nil
}
