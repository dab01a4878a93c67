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
	"errors"
	"fmt"

	"github.com/spatialmodel/chemsolve/linear"
)

// Status is the outcome of a call to Solve.
type Status int

// Solver outcomes.
const (
	NotYetCalled Status = iota
	Converged
	ConvergenceExceededMaxSteps
	StepSizeTooSmall
	TooManyRejections
	SingularMatrix
	NaNDetected
)

func (s Status) String() string {
	switch s {
	case NotYetCalled:
		return "NotYetCalled"
	case Converged:
		return "Converged"
	case ConvergenceExceededMaxSteps:
		return "ConvergenceExceededMaxSteps"
	case StepSizeTooSmall:
		return "StepSizeTooSmall"
	case TooManyRejections:
		return "TooManyRejections"
	case SingularMatrix:
		return "SingularMatrix"
	case NaNDetected:
		return "NaNDetected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Failure sentinels. A *StepError from Solve wraps one of them.
var (
	ErrMaxSteps          = errors.New("rosenbrock: exceeded the maximum number of steps")
	ErrStepSizeTooSmall  = errors.New("rosenbrock: step size too small")
	ErrTooManyRejections = errors.New("rosenbrock: too many consecutive step rejections")
	ErrNaN               = errors.New("rosenbrock: NaN in error estimate")
	ErrSingularMatrix    = linear.ErrSingularMatrix
)

// Stats counts the work done by a solver.
type Stats struct {
	FunctionCalls   int // forcing evaluations
	JacobianUpdates int
	NumberOfSteps   int // attempted steps
	Accepted        int
	Rejected        int
	Decompositions  int
	Solves          int
}

// Add adds the counts in o to s.
func (s *Stats) Add(o Stats) {
	s.FunctionCalls += o.FunctionCalls
	s.JacobianUpdates += o.JacobianUpdates
	s.NumberOfSteps += o.NumberOfSteps
	s.Accepted += o.Accepted
	s.Rejected += o.Rejected
	s.Decompositions += o.Decompositions
	s.Solves += o.Solves
}

// Result is the outcome of a call to Solve.
type Result struct {
	Status Status
	Stats  Stats

	// FinalTime is the time reached, from the start of the call [s].
	FinalTime float64

	// StepSize is the size of the last accepted step [s].
	StepSize float64

	// NextStepSize is the step size the controller would try next [s].
	NextStepSize float64
}

// StepError is returned by Solve when integration fails.
type StepError struct {
	Status Status
	Time   float64 // time reached
	H      float64 // step size at failure

	// Species is set for a singular matrix to the species whose
	// pivot was zero.
	Species string

	Err error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("rosenbrock: %v at t = %g s with h = %g s", e.Status, e.Time, e.H)
	if e.Species != "" {
		msg += " (species " + e.Species + ")"
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the cause of the failure.
func (e *StepError) Unwrap() error { return e.Err }
