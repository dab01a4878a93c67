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

// Package rosenbrock integrates stiff chemical kinetics with multistage
// Rosenbrock (W-)methods and adaptive step-size control.
//
// Each internal step evaluates the forcing and Jacobian at the start of the
// step, factors alpha·I - J once, and solves one linear system per stage.
// An embedded lower-order solution gives the error estimate that accepts or
// rejects the step and chooses the next step size.
package rosenbrock

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/accel/kernel"
	"github.com/spatialmodel/chemsolve/accel/parallel"
	"github.com/spatialmodel/chemsolve/kinetics"
	"github.com/spatialmodel/chemsolve/linear"
	"github.com/spatialmodel/chemsolve/matrix"
	"gonum.org/v1/gonum/floats"
)

// Evaluator accumulates forcing and Jacobian terms.
// *kinetics.ProcessSet and *parallel.ProcessSet are Evaluators.
type Evaluator[L matrix.Layout] interface {
	AddForcingTerms(rateConstants, state, forcing *matrix.Dense[L]) error
	AddJacobianTerms(rateConstants, state *matrix.Dense[L], jacobian *matrix.Sparse[L]) error
}

// Option configures a Solver.
type Option func(*options)

type options struct {
	log         logrus.FieldLogger
	specialized bool
	parallel    bool
	workers     int
}

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithSpecializedKernel builds alpha·I - J with a routine specialized to
// the Jacobian sparsity pattern.
func WithSpecializedKernel() Option {
	return func(o *options) { o.specialized = true }
}

// WithParallelEvaluation evaluates forcing and Jacobian terms on workers
// goroutines. If workers is not positive, runtime.GOMAXPROCS(0) is used.
func WithParallelEvaluation(workers int) Option {
	return func(o *options) {
		o.parallel = true
		o.workers = workers
	}
}

// Solver integrates a fixed system and list of processes over a fixed
// number of grid cells. All setup happens in NewSolver; a Solver may be
// used by one goroutine at a time.
type Solver[L matrix.Layout] struct {
	Log logrus.FieldLogger

	params      Parameters
	system      *chemsolve.System
	processes   []chemsolve.Process
	stateParams chemsolve.StateParameters
	perm        []int

	ps                 *kinetics.ProcessSet[L]
	eval               Evaluator[L]
	jacPattern         *matrix.Pattern
	linear             *linear.Solver[L]
	alphaMinusJacobian kernel.AlphaMinusJacobianFunc[L]

	absTol   []float64 // by state column
	errorCol []int     // state columns included in the error norm

	// Work space.
	jacobian, lhs *matrix.Sparse[L]
	f0, forcing   *matrix.Dense[L] // forcing at the step start and at the last stage point
	yTmp          *matrix.Dense[L]
	yNew, yErr    *matrix.Dense[L]
	stages        []*matrix.Dense[L]
}

// NewSolver checks the processes against the system, orders the species to
// limit fill-in, and builds the sparsity structures, factorization index
// lists, and working memory for params.Cells grid cells.
func NewSolver[L matrix.Layout](system *chemsolve.System, processes []chemsolve.Process, params Parameters, opts ...Option) (*Solver[L], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := options{log: logrus.StandardLogger()}
	for _, f := range opts {
		f(&o)
	}
	names := system.Names()
	systemOrder := make(map[string]int, len(names))
	for i, n := range names {
		systemOrder[n] = i
	}
	ps, err := kinetics.NewProcessSet[L](system, processes, systemOrder)
	if err != nil {
		return nil, fmt.Errorf("rosenbrock: %w", err)
	}
	perm := make([]int, len(names))
	for i := range perm {
		perm[i] = i
	}
	if params.ReorderState {
		p, err := ps.JacobianPattern()
		if err != nil {
			return nil, fmt.Errorf("rosenbrock: %w", err)
		}
		perm = linear.DiagonalMarkowitzReorder(p)
		variables := make(map[string]int, len(names))
		for i, orig := range perm {
			variables[names[orig]] = i
		}
		if ps, err = kinetics.NewProcessSet[L](system, processes, variables); err != nil {
			return nil, fmt.Errorf("rosenbrock: %w", err)
		}
	}
	jp, err := ps.JacobianPattern()
	if err != nil {
		return nil, fmt.Errorf("rosenbrock: %w", err)
	}
	if err := ps.SetJacobianFlatIDs(jp); err != nil {
		return nil, fmt.Errorf("rosenbrock: %w", err)
	}
	ls, err := linear.NewSolver[L](jp, params.Cells)
	if err != nil {
		return nil, fmt.Errorf("rosenbrock: %w", err)
	}

	s := &Solver[L]{
		Log:        o.log,
		params:     params,
		system:     system,
		processes:  append([]chemsolve.Process(nil), processes...),
		perm:       perm,
		ps:         ps,
		eval:       ps,
		jacPattern: jp,
		linear:     ls,
		stateParams: chemsolve.StateParameters{
			Variables:        make([]string, len(names)),
			CustomParameters: chemsolve.CustomParameterLabels(processes),
			Processes:        len(processes),
			Cells:            params.Cells,
		},
		absTol: make([]float64, len(names)),
	}
	for i, orig := range perm {
		name := names[orig]
		s.stateParams.Variables[i] = name
		s.absTol[i] = params.AbsoluteTolerance
		if v, ok := params.AbsoluteTolerances[name]; ok {
			s.absTol[i] = v
		}
		if !system.IsConstant(name) {
			s.errorCol = append(s.errorCol, i)
		}
	}
	for name := range params.AbsoluteTolerances {
		if _, ok := system.Index(name); !ok {
			return nil, fmt.Errorf("rosenbrock: absolute tolerance: %w: %s", chemsolve.ErrUnknownSpecies, name)
		}
	}

	if o.specialized {
		s.alphaMinusJacobian, err = kernel.AlphaMinusJacobian[L](jp, params.Cells)
	} else {
		s.alphaMinusJacobian, err = kernel.Generic[L](jp)
	}
	if err != nil {
		return nil, fmt.Errorf("rosenbrock: %w", err)
	}
	if o.parallel {
		pp, err := parallel.New[L](ps, jp, params.Cells, o.workers)
		if err != nil {
			return nil, fmt.Errorf("rosenbrock: %w", err)
		}
		pp.Log = o.log
		s.eval = pp
	}

	n := len(names)
	s.jacobian = matrix.NewSparse[L](jp, params.Cells, 0)
	s.lhs = matrix.NewSparse[L](jp, params.Cells, 0)
	s.f0 = matrix.NewDense[L](params.Cells, n, 0)
	s.forcing = matrix.NewDense[L](params.Cells, n, 0)
	s.yTmp = matrix.NewDense[L](params.Cells, n, 0)
	s.yNew = matrix.NewDense[L](params.Cells, n, 0)
	s.yErr = matrix.NewDense[L](params.Cells, n, 0)
	s.stages = make([]*matrix.Dense[L], params.Stages)
	for i := range s.stages {
		s.stages[i] = matrix.NewDense[L](params.Cells, n, 0)
	}
	s.Log.WithFields(logrus.Fields{
		"method":    params.Name,
		"species":   n,
		"processes": len(processes),
		"cells":     params.Cells,
		"nonzeros":  jp.NonZeros(),
		"lower":     ls.Factors().Lower.Pattern().NonZeros(),
		"upper":     ls.Factors().Upper.Pattern().NonZeros(),
	}).Debug("rosenbrock: solver ready")
	return s, nil
}

// Parameters returns the solver parameters.
func (s *Solver[L]) Parameters() Parameters { return s.params }

// StateParameters returns the shape of the states the solver works on.
func (s *Solver[L]) StateParameters() chemsolve.StateParameters { return s.stateParams }

// Permutation returns the species ordering: state column i holds the
// species at index Permutation()[i] of the system.
func (s *Solver[L]) Permutation() []int { return append([]int(nil), s.perm...) }

// JacobianPattern returns the sparsity pattern of the Jacobian in state
// column order.
func (s *Solver[L]) JacobianPattern() *matrix.Pattern { return s.jacPattern }

// ProcessSet returns the process set in state column order.
func (s *Solver[L]) ProcessSet() *kinetics.ProcessSet[L] { return s.ps }

// GetState returns a new zeroed state for the solver.
func (s *Solver[L]) GetState() (*chemsolve.State[L], error) {
	return chemsolve.NewState[L](s.stateParams)
}

// UpdateState computes the rate constants of state from its conditions and
// custom rate parameters. If the system tracks air density, it is first
// computed from temperature and pressure.
func (s *Solver[L]) UpdateState(state *chemsolve.State[L]) error {
	if err := state.Check(s.stateParams); err != nil {
		return err
	}
	if s.system.TracksAirDensity() {
		for i := range state.Conditions {
			state.Conditions[i].AirDensity = state.Conditions[i].IdealGasAirDensity()
		}
	}
	return s.ps.CalculateRateConstants(state.Conditions, state.CustomRateParameters, state.RateConstants)
}

// CalculateForcing overwrites forcing with the time derivative of the
// concentrations in state, given its rate constants.
func (s *Solver[L]) CalculateForcing(rateConstants, state, forcing *matrix.Dense[L]) error {
	forcing.Zero()
	return s.eval.AddForcingTerms(rateConstants, state, forcing)
}

// calculateJacobian overwrites s.jacobian with the Jacobian at y.
func (s *Solver[L]) calculateJacobian(rateConstants, y *matrix.Dense[L]) error {
	s.jacobian.Zero()
	return s.eval.AddJacobianTerms(rateConstants, y, s.jacobian)
}

// linearFactor builds alpha·I - J for step size h and factors it.
func (s *Solver[L]) linearFactor(h float64) error {
	if err := s.lhs.CopyFrom(s.jacobian); err != nil {
		return err
	}
	s.alphaMinusJacobian(s.lhs, 1/(h*s.params.Gamma[0]))
	return s.linear.Factor(s.lhs)
}

// Solve advances the concentrations in state by timeStep seconds, taking as
// many internal steps as the error control requires. The rate constants of
// state must be current (see UpdateState).
//
// On success the returned error is nil and the status is Converged. On
// failure state holds the last accepted concentrations and the error is a
// *StepError wrapping one of the package's failure sentinels. Rejected
// steps are retried internally and only show in the statistics.
func (s *Solver[L]) Solve(timeStep float64, state *chemsolve.State[L]) (Result, error) {
	var r Result
	if err := state.Check(s.stateParams); err != nil {
		return r, err
	}
	if timeStep < 0 || math.IsNaN(timeStep) {
		return r, fmt.Errorf("rosenbrock: invalid time step %g", timeStep)
	}
	p := s.params
	y := state.Variables
	k := state.RateConstants

	hMax := p.HMax
	if hMax == 0 {
		hMax = timeStep
	}
	h := math.Min(math.Max(p.HMin, p.HStart), hMax)
	if h <= 10*p.RoundOff {
		h = 1e-5
	}
	var t float64
	rejectLastH, rejectMoreH := false, false
	consecutive := 0

	fail := func(status Status, err error) (Result, error) {
		r.Status = status
		r.FinalTime = t
		r.NextStepSize = h
		se := &StepError{Status: status, Time: t, H: h, Err: err}
		var sing *linear.SingularError
		if errors.As(err, &sing) {
			se.Species = s.stateParams.Variables[sing.Row]
		}
		s.Log.WithFields(logrus.Fields{
			"status": status,
			"time":   t,
			"h":      h,
			"steps":  r.Stats.NumberOfSteps,
		}).Warn(se.Error())
		return r, se
	}

	for t-timeStep+p.RoundOff <= 0 {
		if r.Stats.NumberOfSteps > p.MaxNumberOfSteps {
			return fail(ConvergenceExceededMaxSteps, ErrMaxSteps)
		}
		if h < p.RoundOff || t+0.1*h == t {
			return fail(StepSizeTooSmall, ErrStepSizeTooSmall)
		}
		last := false
		if remaining := timeStep - t; h >= remaining {
			h, last = remaining, true
		}

		if err := s.CalculateForcing(k, y, s.f0); err != nil {
			return r, err
		}
		r.Stats.FunctionCalls++
		if err := s.calculateJacobian(k, y); err != nil {
			return r, err
		}
		r.Stats.JacobianUpdates++

		for stepDone := false; !stepDone; {
			if err := s.linearFactor(h); err != nil {
				if errors.Is(err, linear.ErrSingularMatrix) {
					return fail(SingularMatrix, err)
				}
				return r, err
			}
			r.Stats.Decompositions++

			if err := s.computeStages(h, y, k, &r.Stats); err != nil {
				return r, err
			}

			// New solution and error estimate.
			if err := s.yNew.CopyFrom(y); err != nil {
				return r, err
			}
			s.yErr.Zero()
			for st, kst := range s.stages {
				floats.AddScaled(s.yNew.Data(), p.M[st], kst.Data())
				floats.AddScaled(s.yErr.Data(), p.E[st], kst.Data())
			}
			errNorm := s.normalizedError(y, s.yNew, s.yErr)
			if math.IsNaN(errNorm) {
				return fail(NaNDetected, ErrNaN)
			}

			fac := math.Min(p.FacMax, math.Max(p.FacMin, p.FacSafe/math.Pow(errNorm, 1/p.EstimatorOfLocalOrder)))
			hNew := h * fac
			r.Stats.NumberOfSteps++

			if accepted(errNorm) {
				r.Stats.Accepted++
				if p.ClampNegativeConcentrations {
					clampNegative(s.yNew.Data())
				}
				if err := y.CopyFrom(s.yNew); err != nil {
					return r, err
				}
				if last {
					t = timeStep
				} else {
					t += h
				}
				r.StepSize = h
				hNew = math.Max(p.HMin, math.Min(hNew, hMax))
				if rejectLastH {
					hNew = math.Min(hNew, h)
				}
				rejectLastH, rejectMoreH = false, false
				consecutive = 0
				h = hNew
				stepDone = true
				continue
			}

			// Rejected: retry the step with a smaller step size.
			if rejectMoreH {
				hNew = h * p.FacRej
			}
			rejectMoreH = rejectLastH
			rejectLastH = true
			r.Stats.Rejected++
			consecutive++
			s.Log.WithFields(logrus.Fields{
				"time":  t,
				"h":     h,
				"hNew":  hNew,
				"error": errNorm,
			}).Debug("rosenbrock: step rejected")
			h = hNew
			last = false
			if consecutive >= p.MaxConsecutiveRejections {
				return fail(TooManyRejections, ErrTooManyRejections)
			}
			if p.HMin > 0 && h < p.HMin {
				return fail(StepSizeTooSmall, ErrStepSizeTooSmall)
			}
			if h < p.RoundOff || t+0.1*h == t {
				return fail(StepSizeTooSmall, ErrStepSizeTooSmall)
			}
		}
	}
	r.Status = Converged
	r.FinalTime = t
	r.NextStepSize = h
	return r, nil
}

// computeStages solves the linear system of every stage for step size h
// from state y, with s.f0 holding the forcing at y.
func (s *Solver[L]) computeStages(h float64, y, k *matrix.Dense[L], stats *Stats) error {
	p := s.params
	f := s.f0
	for st := 0; st < p.Stages; st++ {
		comb := st * (st - 1) / 2
		kst := s.stages[st]
		if st == 0 {
			if err := kst.CopyFrom(f); err != nil {
				return err
			}
		} else {
			if p.NewFunctionEvaluation[st] {
				if err := s.yTmp.CopyFrom(y); err != nil {
					return err
				}
				for j := 0; j < st; j++ {
					floats.AddScaled(s.yTmp.Data(), p.A[comb+j], s.stages[j].Data())
				}
				if p.ClampNegativeConcentrations {
					clampNegative(s.yTmp.Data())
				}
				if err := s.CalculateForcing(k, s.yTmp, s.forcing); err != nil {
					return err
				}
				f = s.forcing
				stats.FunctionCalls++
			}
			if err := kst.CopyFrom(f); err != nil {
				return err
			}
			for j := 0; j < st; j++ {
				floats.AddScaled(kst.Data(), p.C[comb+j]/h, s.stages[j].Data())
			}
		}
		if err := s.linear.Solve(kst, kst); err != nil {
			return err
		}
		stats.Solves++
	}
	return nil
}

// normalizedError returns the root mean square of the error estimate yErr
// scaled by atol + rtol·max(|y|, |yNew|), over every non-constant species
// in every cell. The result is at least 1e-10.
func (s *Solver[L]) normalizedError(y, yNew, yErr *matrix.Dense[L]) float64 {
	rtol := s.params.RelativeTolerance
	var sum float64
	n := 0
	for c := 0; c < y.Rows(); c++ {
		for _, j := range s.errorCol {
			i := y.Index(c, j)
			ymax := math.Max(math.Abs(y.Data()[i]), math.Abs(yNew.Data()[i]))
			e := yErr.Data()[i] / (s.absTol[j] + rtol*ymax)
			sum += e * e
			n++
		}
	}
	if n == 0 {
		return 1e-10
	}
	return math.Max(math.Sqrt(sum/float64(n)), 1e-10)
}

// accepted reports whether a step with the given normalized error norm
// meets the tolerances.
func accepted(errNorm float64) bool { return errNorm <= 1 }

func clampNegative(d []float64) {
	for i, v := range d {
		if v < 0 {
			d[i] = 0
		}
	}
}
