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

// Package parallel evaluates forcing and Jacobian terms for many grid cells
// at once on a pool of goroutines. Each call copies its inputs into a
// cell-major working domain, runs the single-cell kernels of a
// kinetics.ProcessSet on every cell independently, and copies the results
// back, adding them to the caller's buffers.
package parallel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/kinetics"
	"github.com/spatialmodel/chemsolve/matrix"
)

// ProcessSet offloads the per-cell work of a kinetics.ProcessSet. Its
// working domain is allocated once; calls must not overlap.
type ProcessSet[L matrix.Layout] struct {
	Log logrus.FieldLogger

	ps      *kinetics.ProcessSet[L]
	jac     *matrix.Pattern
	cells   int
	workers int

	// Working domain, one contiguous block per cell.
	k, y, f, j []float64
}

// New returns a parallel process set for cells grid cells. The Jacobian
// flat ids of ps must have been set for pattern jac. If workers is not
// positive, runtime.GOMAXPROCS(0) workers are used.
func New[L matrix.Layout](ps *kinetics.ProcessSet[L], jac *matrix.Pattern, cells, workers int) (*ProcessSet[L], error) {
	if ps.JacobianFlatIDs() == nil && ps.Len() > 0 {
		return nil, fmt.Errorf("parallel: process set has no Jacobian flat ids")
	}
	if jac.Size() != ps.Variables() {
		return nil, fmt.Errorf("parallel: %w: %d×%d Jacobian for %d variables",
			matrix.ErrDimensionMismatch, jac.Size(), jac.Size(), ps.Variables())
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ProcessSet[L]{
		Log:     logrus.StandardLogger(),
		ps:      ps,
		jac:     jac,
		cells:   cells,
		workers: workers,
		k:       make([]float64, cells*ps.Len()),
		y:       make([]float64, cells*ps.Variables()),
		f:       make([]float64, cells*ps.Variables()),
		j:       make([]float64, cells*jac.NonZeros()),
	}, nil
}

// Workers returns the number of goroutines used.
func (p *ProcessSet[L]) Workers() int { return p.workers }

// run calls f for every cell, with cells divided among the workers, and
// waits for every call to return.
func (p *ProcessSet[L]) run(f func(cell int)) {
	var wg sync.WaitGroup
	wg.Add(p.workers)
	for pp := 0; pp < p.workers; pp++ {
		go func(pp int) {
			for c := pp; c < p.cells; c += p.workers {
				f(c)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

func (p *ProcessSet[L]) copyIn(rateConstants, state *matrix.Dense[L]) error {
	if rateConstants.Rows() != p.cells || state.Rows() != p.cells ||
		rateConstants.Cols() != p.ps.Len() || state.Cols() != p.ps.Variables() {
		return fmt.Errorf("parallel: %w: have %d×%d state and %d×%d rate constants for %d cells",
			chemsolve.ErrInvalidState, state.Rows(), state.Cols(), rateConstants.Rows(), rateConstants.Cols(), p.cells)
	}
	nk, ny := p.ps.Len(), p.ps.Variables()
	for c := 0; c < p.cells; c++ {
		for i := 0; i < nk; i++ {
			p.k[c*nk+i] = rateConstants.At(c, i)
		}
		for i := 0; i < ny; i++ {
			p.y[c*ny+i] = state.At(c, i)
		}
	}
	return nil
}

// AddForcingTerms adds the forcing of every process in every cell to
// forcing, like kinetics.ProcessSet.AddForcingTerms.
func (p *ProcessSet[L]) AddForcingTerms(rateConstants, state, forcing *matrix.Dense[L]) error {
	if err := p.copyIn(rateConstants, state); err != nil {
		return err
	}
	if !forcing.SameShape(state) {
		return fmt.Errorf("parallel: forcing: %w", chemsolve.ErrInvalidState)
	}
	clear(p.f)
	nk, ny := p.ps.Len(), p.ps.Variables()
	p.run(func(c int) {
		p.ps.AddForcingTermsCell(p.k[c*nk:(c+1)*nk], p.y[c*ny:(c+1)*ny], p.f[c*ny:(c+1)*ny])
	})
	for c := 0; c < p.cells; c++ {
		for i := 0; i < ny; i++ {
			forcing.Add(c, i, p.f[c*ny+i])
		}
	}
	return nil
}

// AddJacobianTerms adds the Jacobian terms of every process in every cell
// to jacobian, like kinetics.ProcessSet.AddJacobianTerms.
func (p *ProcessSet[L]) AddJacobianTerms(rateConstants, state *matrix.Dense[L], jacobian *matrix.Sparse[L]) error {
	if err := p.copyIn(rateConstants, state); err != nil {
		return err
	}
	if jacobian.Cells() != p.cells || jacobian.Pattern().NonZeros() != p.jac.NonZeros() {
		return fmt.Errorf("parallel: jacobian: %w", chemsolve.ErrInvalidState)
	}
	clear(p.j)
	nk, ny, nj := p.ps.Len(), p.ps.Variables(), p.jac.NonZeros()
	p.run(func(c int) {
		p.ps.AddJacobianTermsCell(p.k[c*nk:(c+1)*nk], p.y[c*ny:(c+1)*ny], p.j[c*nj:(c+1)*nj])
	})
	d := jacobian.Data()
	for c := 0; c < p.cells; c++ {
		for id := 0; id < nj; id++ {
			d[jacobian.VectorIndex(c, id)] += p.j[c*nj+id]
		}
	}
	p.Log.WithFields(logrus.Fields{"cells": p.cells, "workers": p.workers}).Trace("parallel: Jacobian terms added")
	return nil
}
