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

package linear

import (
	"fmt"

	"github.com/spatialmodel/chemsolve/matrix"
)

// triTerm is an off-diagonal factor element and the column it multiplies.
type triTerm struct{ id, col int }

type triRow struct {
	diag  int
	terms []triTerm
}

// Solver solves A·x = b for a fixed sparsity pattern of A. Factor and Solve
// are separate so that one factorization can serve several right-hand
// sides.
type Solver[L matrix.Layout] struct {
	lu    *LU[L]
	lower []triRow // in forward order
	upper []triRow // row i of U at index i
}

// NewSolver returns a solver for matrices with pattern a in grid cells
// cells. a must already be in the desired elimination order.
func NewSolver[L matrix.Layout](a *matrix.Pattern, cells int) (*Solver[L], error) {
	sym, err := NewSymbolic(a)
	if err != nil {
		return nil, err
	}
	return NewSolverFromSymbolic[L](sym, cells), nil
}

// NewSolverFromSymbolic returns a solver sharing an existing symbolic
// factorization.
func NewSolverFromSymbolic[L matrix.Layout](sym *Symbolic, cells int) *Solver[L] {
	s := &Solver[L]{lu: NewLU[L](sym, cells)}
	n := sym.Size()
	s.lower = make([]triRow, n)
	s.upper = make([]triRow, n)
	for i := 0; i < n; i++ {
		cols, first := sym.Lower.Row(i)
		for k, j := range cols {
			if j == i {
				s.lower[i].diag = first + k
				continue
			}
			s.lower[i].terms = append(s.lower[i].terms, triTerm{id: first + k, col: j})
		}
		cols, first = sym.Upper.Row(i)
		for k, j := range cols {
			if j == i {
				s.upper[i].diag = first + k
				continue
			}
			s.upper[i].terms = append(s.upper[i].terms, triTerm{id: first + k, col: j})
		}
	}
	return s
}

// Factors returns the LU factors computed by the last call to Factor.
func (s *Solver[L]) Factors() *LU[L] { return s.lu }

// SetPivotTolerance sets the magnitude at or below which a pivot is
// treated as zero.
func (s *Solver[L]) SetPivotTolerance(tol float64) { s.lu.PivotTolerance = tol }

// Factor decomposes a. The pattern of a must be the one the solver was
// built for.
func (s *Solver[L]) Factor(a *matrix.Sparse[L]) error {
	return s.lu.Decompose(a)
}

// Solve solves A·x = b for every grid cell with the factors of the last
// call to Factor, by forward substitution with L followed by back
// substitution with U. b and x may be the same matrix.
func (s *Solver[L]) Solve(b, x *matrix.Dense[L]) error {
	n := len(s.lower)
	cells := s.lu.Lower.Cells()
	if b.Rows() != cells || b.Cols() != n || !x.SameShape(b) {
		return fmt.Errorf("linear: solve: %w: have %d×%d right-hand side, want %d×%d",
			matrix.ErrDimensionMismatch, b.Rows(), b.Cols(), cells, n)
	}
	if x != b {
		if err := x.CopyFrom(b); err != nil {
			return err
		}
	}
	g := x.GroupSize()
	xd, ld, ud := x.Data(), s.lu.Lower.Data(), s.lu.Upper.Data()
	for grp := 0; grp < x.Groups(); grp++ {
		nl := x.Lanes(grp)
		xo, lo, uo := x.Offset(grp, 0), s.lu.Lower.Offset(grp, 0), s.lu.Upper.Offset(grp, 0)
		for i, r := range s.lower {
			xi := xd[xo+i*g : xo+i*g+nl]
			for _, t := range r.terms {
				lt, xj := lo+t.id*g, xo+t.col*g
				for l := range xi {
					xi[l] -= ld[lt+l] * xd[xj+l]
				}
			}
			diag := ld[lo+r.diag*g:]
			for l := range xi {
				xi[l] /= diag[l]
			}
		}
		for i := n - 1; i >= 0; i-- {
			r := s.upper[i]
			xi := xd[xo+i*g : xo+i*g+nl]
			for _, t := range r.terms {
				ut, xj := uo+t.id*g, xo+t.col*g
				for l := range xi {
					xi[l] -= ud[ut+l] * xd[xj+l]
				}
			}
			diag := ud[uo+r.diag*g:]
			for l := range xi {
				xi[l] /= diag[l]
			}
		}
	}
	return nil
}
