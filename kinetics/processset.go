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

// Package kinetics evaluates the rates of chemical processes: rate
// constants from conditions, the forcing (time derivative of every species
// concentration) and its Jacobian.
package kinetics

import (
	"fmt"
	"sort"

	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/matrix"
)

// process is one reaction by state column.
type process struct {
	// reactants holds every reactant column, repeated by stoichiometry.
	reactants []int
	// variable[i] is false when reactants[i] is a constant species.
	variable []bool
	products []int
	yields   []float64
	// custom is the first custom rate parameter column of the process.
	custom int
}

// ProcessSet evaluates a fixed list of processes against a fixed mapping of
// species to state columns. Constant species take part in rates but
// receive no forcing and no Jacobian terms.
// A ProcessSet is safe for concurrent use once SetJacobianFlatIDs has been
// called.
type ProcessSet[L matrix.Layout] struct {
	rates     []chemsolve.RateConstant
	processes []process
	nVars     int
	nCustom   int

	// jacobianFlatIDs holds the flat sparse element ids written by
	// AddJacobianTerms, in the order they are written.
	jacobianFlatIDs []int
}

// NewProcessSet returns a process set for processes, where variables maps
// every species name of sys to its state column.
func NewProcessSet[L matrix.Layout](sys *chemsolve.System, processes []chemsolve.Process, variables map[string]int) (*ProcessSet[L], error) {
	if err := chemsolve.ValidateProcesses(sys, processes); err != nil {
		return nil, fmt.Errorf("kinetics: %w", err)
	}
	ps := &ProcessSet[L]{
		rates:     make([]chemsolve.RateConstant, len(processes)),
		processes: make([]process, len(processes)),
		nVars:     len(variables),
	}
	col := func(name string) (int, error) {
		j, ok := variables[name]
		if !ok || j < 0 || j >= len(variables) {
			return 0, fmt.Errorf("kinetics: %w: %s has no state column", chemsolve.ErrUnknownSpecies, name)
		}
		return j, nil
	}
	for i, p := range processes {
		ps.rates[i] = p.RateConstant
		pr := &ps.processes[i]
		pr.custom = ps.nCustom
		ps.nCustom += p.RateConstant.CustomParameterCount()
		for _, r := range p.ReactantNames() {
			j, err := col(r)
			if err != nil {
				return nil, err
			}
			pr.reactants = append(pr.reactants, j)
			pr.variable = append(pr.variable, !sys.IsConstant(r))
		}
		for _, y := range p.Products {
			if sys.IsConstant(y.Species) {
				continue
			}
			j, err := col(y.Species)
			if err != nil {
				return nil, err
			}
			pr.products = append(pr.products, j)
			pr.yields = append(pr.yields, y.Coefficient)
		}
	}
	return ps, nil
}

// Len returns the number of processes.
func (ps *ProcessSet[L]) Len() int { return len(ps.processes) }

// Variables returns the number of state columns.
func (ps *ProcessSet[L]) Variables() int { return ps.nVars }

// CustomParameters returns the number of custom rate parameters consumed.
func (ps *ProcessSet[L]) CustomParameters() int { return ps.nCustom }

// Element is a (row, column) position in the Jacobian: the rate of change
// of species Dependent depends on the concentration of species
// Independent.
type Element struct {
	Dependent, Independent int
}

// NonzeroJacobianElements returns the Jacobian positions the processes
// contribute to, sorted by row and then column.
func (ps *ProcessSet[L]) NonzeroJacobianElements() []Element {
	set := make(map[Element]struct{})
	ps.eachJacobianTerm(func(e Element) { set[e] = struct{}{} })
	o := make([]Element, 0, len(set))
	for e := range set {
		o = append(o, e)
	}
	sort.Slice(o, func(i, j int) bool {
		if o[i].Dependent != o[j].Dependent {
			return o[i].Dependent < o[j].Dependent
		}
		return o[i].Independent < o[j].Independent
	})
	return o
}

// eachJacobianTerm calls f for every Jacobian term in the order
// AddJacobianTerms accumulates them.
func (ps *ProcessSet[L]) eachJacobianTerm(f func(Element)) {
	for _, p := range ps.processes {
		for i, ind := range p.reactants {
			if !p.variable[i] {
				continue
			}
			for k, dep := range p.reactants {
				if p.variable[k] {
					f(Element{Dependent: dep, Independent: ind})
				}
			}
			for _, dep := range p.products {
				f(Element{Dependent: dep, Independent: ind})
			}
		}
	}
}

// JacobianPattern returns the sparsity pattern of the Jacobian of ps, with
// every diagonal element included.
func (ps *ProcessSet[L]) JacobianPattern() (*matrix.Pattern, error) {
	b := matrix.NewPatternBuilder(ps.nVars).WithDiagonal()
	for _, e := range ps.NonzeroJacobianElements() {
		b.WithElement(e.Dependent, e.Independent)
	}
	return b.Build()
}

// SetJacobianFlatIDs records where in Jacobians with pattern p each term
// is accumulated. It must be called before AddJacobianTerms.
func (ps *ProcessSet[L]) SetJacobianFlatIDs(p *matrix.Pattern) error {
	ids := make([]int, 0)
	var err error
	ps.eachJacobianTerm(func(e Element) {
		id, ok := p.Index(e.Dependent, e.Independent)
		if !ok && err == nil {
			err = fmt.Errorf("kinetics: %w: Jacobian element (%d, %d)", matrix.ErrZeroElement, e.Dependent, e.Independent)
		}
		ids = append(ids, id)
	})
	if err != nil {
		return err
	}
	ps.jacobianFlatIDs = ids
	return nil
}

// JacobianFlatIDs returns the flat element ids set by SetJacobianFlatIDs.
func (ps *ProcessSet[L]) JacobianFlatIDs() []int { return ps.jacobianFlatIDs }

// CalculateRateConstants evaluates the rate-constant law of every process
// in every grid cell and stores the result in rateConstants.
func (ps *ProcessSet[L]) CalculateRateConstants(conditions []chemsolve.Conditions, custom, rateConstants *matrix.Dense[L]) error {
	cells := len(conditions)
	if custom.Rows() != cells || custom.Cols() != ps.nCustom {
		return fmt.Errorf("kinetics: %w: have %d×%d custom rate parameters, want %d×%d",
			chemsolve.ErrInvalidState, custom.Rows(), custom.Cols(), cells, ps.nCustom)
	}
	if rateConstants.Rows() != cells || rateConstants.Cols() != len(ps.processes) {
		return fmt.Errorf("kinetics: %w: have %d×%d rate constants, want %d×%d",
			chemsolve.ErrInvalidState, rateConstants.Rows(), rateConstants.Cols(), cells, len(ps.processes))
	}
	params := make([]float64, ps.nCustom)
	for c, cond := range conditions {
		for j := range params {
			params[j] = custom.At(c, j)
		}
		for i, r := range ps.rates {
			p := ps.processes[i]
			rateConstants.Set(c, i, r.Calculate(cond, params[p.custom:p.custom+r.CustomParameterCount()]))
		}
	}
	return nil
}

func (ps *ProcessSet[L]) check(rateConstants, state *matrix.Dense[L]) error {
	if state.Cols() != ps.nVars || rateConstants.Cols() != len(ps.processes) || rateConstants.Rows() != state.Rows() {
		return fmt.Errorf("kinetics: %w: have %d×%d state and %d×%d rate constants for %d variables and %d processes",
			chemsolve.ErrInvalidState, state.Rows(), state.Cols(), rateConstants.Rows(), rateConstants.Cols(),
			ps.nVars, len(ps.processes))
	}
	return nil
}

// AddForcingTerms adds the rate of change of every species due to every
// process to forcing. For each process,
//
//	rate = k·Π reactant concentrations
//
// is subtracted from the forcing of each reactant and yield·rate is added
// to the forcing of each product.
func (ps *ProcessSet[L]) AddForcingTerms(rateConstants, state, forcing *matrix.Dense[L]) error {
	if err := ps.check(rateConstants, state); err != nil {
		return err
	}
	if !forcing.SameShape(state) {
		return fmt.Errorf("kinetics: forcing: %w", chemsolve.ErrInvalidState)
	}
	g := state.GroupSize()
	buf := make([]float64, g)
	kd, yd, fd := rateConstants.Data(), state.Data(), forcing.Data()
	for grp := 0; grp < state.Groups(); grp++ {
		nl := state.Lanes(grp)
		rate := buf[:nl]
		ko, yo, fo := rateConstants.Offset(grp, 0), state.Offset(grp, 0), forcing.Offset(grp, 0)
		for i, p := range ps.processes {
			copy(rate, kd[ko+i*g:])
			for _, r := range p.reactants {
				y := yd[yo+r*g:]
				for l := range rate {
					rate[l] *= y[l]
				}
			}
			for k, r := range p.reactants {
				if !p.variable[k] {
					continue
				}
				f := fd[fo+r*g:]
				for l := range rate {
					f[l] -= rate[l]
				}
			}
			for k, r := range p.products {
				f := fd[fo+r*g:]
				yield := p.yields[k]
				for l := range rate {
					f[l] += yield * rate[l]
				}
			}
		}
	}
	return nil
}

// AddJacobianTerms adds the partial derivatives of the forcing with
// respect to each non-constant reactant concentration to jacobian:
//
//	d = k·Π other reactant concentrations
//
// is subtracted from each (reactant, perturbed reactant) element and
// yield·d is added to each (product, perturbed reactant) element.
// jacobian must have the pattern passed to SetJacobianFlatIDs.
func (ps *ProcessSet[L]) AddJacobianTerms(rateConstants, state *matrix.Dense[L], jacobian *matrix.Sparse[L]) error {
	if err := ps.check(rateConstants, state); err != nil {
		return err
	}
	if jacobian.Cells() != state.Rows() || jacobian.Pattern().Size() != ps.nVars {
		return fmt.Errorf("kinetics: jacobian: %w", chemsolve.ErrInvalidState)
	}
	if ps.jacobianFlatIDs == nil && len(ps.processes) > 0 {
		return fmt.Errorf("kinetics: Jacobian flat ids are not set")
	}
	g := state.GroupSize()
	buf := make([]float64, g)
	kd, yd, jd := rateConstants.Data(), state.Data(), jacobian.Data()
	for grp := 0; grp < state.Groups(); grp++ {
		nl := state.Lanes(grp)
		d := buf[:nl]
		ko, yo, jo := rateConstants.Offset(grp, 0), state.Offset(grp, 0), jacobian.Offset(grp, 0)
		ids := ps.jacobianFlatIDs
		for i, p := range ps.processes {
			for ind := range p.reactants {
				if !p.variable[ind] {
					continue
				}
				copy(d, kd[ko+i*g:])
				for k, r := range p.reactants {
					if k == ind {
						continue
					}
					y := yd[yo+r*g:]
					for l := range d {
						d[l] *= y[l]
					}
				}
				for k := range p.reactants {
					if !p.variable[k] {
						continue
					}
					j := jd[jo+ids[0]*g:]
					for l := range d {
						j[l] -= d[l]
					}
					ids = ids[1:]
				}
				for k := range p.products {
					j := jd[jo+ids[0]*g:]
					yield := p.yields[k]
					for l := range d {
						j[l] += yield * d[l]
					}
					ids = ids[1:]
				}
			}
		}
	}
	return nil
}

// AddForcingTermsCell is AddForcingTerms for a single grid cell with plain
// slices: k holds the rate constants, y the concentrations, and f the
// forcing of the cell.
func (ps *ProcessSet[L]) AddForcingTermsCell(k, y, f []float64) {
	for i, p := range ps.processes {
		rate := k[i]
		for _, r := range p.reactants {
			rate *= y[r]
		}
		for j, r := range p.reactants {
			if p.variable[j] {
				f[r] -= rate
			}
		}
		for j, r := range p.products {
			f[r] += p.yields[j] * rate
		}
	}
}

// AddJacobianTermsCell is AddJacobianTerms for a single grid cell with
// plain slices: jac holds the non-zero Jacobian elements of the cell by
// flat id.
func (ps *ProcessSet[L]) AddJacobianTermsCell(k, y, jac []float64) {
	ids := ps.jacobianFlatIDs
	for i, p := range ps.processes {
		for ind := range p.reactants {
			if !p.variable[ind] {
				continue
			}
			d := k[i]
			for j, r := range p.reactants {
				if j != ind {
					d *= y[r]
				}
			}
			for j := range p.reactants {
				if p.variable[j] {
					jac[ids[0]] -= d
					ids = ids[1:]
				}
			}
			for j := range p.products {
				jac[ids[0]] += p.yields[j] * d
				ids = ids[1:]
			}
		}
	}
}
