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
	"errors"
	"fmt"
	"math"

	"github.com/spatialmodel/chemsolve/matrix"
)

// DefaultPivotTolerance is the magnitude at or below which a pivot is
// treated as zero.
const DefaultPivotTolerance = 1e-30

// ErrSingularMatrix is returned when factorization meets a zero pivot.
var ErrSingularMatrix = errors.New("linear: singular matrix")

// SingularError reports the grid cell and row of a zero pivot.
type SingularError struct {
	Cell, Row int
	Pivot     float64
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("linear: singular matrix: pivot %g in row %d of cell %d", e.Pivot, e.Row, e.Cell)
}

// Unwrap returns ErrSingularMatrix.
func (e *SingularError) Unwrap() error { return ErrSingularMatrix }

// term is a product L[i][j]·U[j][k] by flat element ids.
type term struct{ l, u int }

// update computes one element of L or U.
type update struct {
	dst   int // flat id in L or U
	a     int // flat id in A, or -1 if A is zero there
	terms []term
}

type luRow struct {
	upper        []update
	lDiag, uDiag int
	lower        []update // L[k][i] for k > i
}

// Symbolic holds the result of symbolic LU factorization of a sparsity
// pattern: the exact patterns of the factors and the index lists that
// drive numeric factorization. It is immutable and may be shared between
// factorizations of any number of grid cells.
type Symbolic struct {
	A, Lower, Upper *matrix.Pattern
	rows            []luRow
}

// NewSymbolic performs symbolic Gaussian elimination on a in its current
// order. The lower factor is unit lower triangular with its diagonal
// stored; the upper factor includes the diagonal.
func NewSymbolic(a *matrix.Pattern) (*Symbolic, error) {
	n := a.Size()
	fill := a.Bool()
	for i := range fill {
		fill[i][i] = true
	}
	for k := 0; k < n; k++ {
		for i := k + 1; i < n; i++ {
			if !fill[i][k] {
				continue
			}
			for j := k + 1; j < n; j++ {
				if fill[k][j] {
					fill[i][j] = true
				}
			}
		}
	}
	lb := matrix.NewPatternBuilder(n)
	ub := matrix.NewPatternBuilder(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !fill[i][j] {
				continue
			}
			if j <= i {
				lb.WithElement(i, j)
			}
			if j >= i {
				ub.WithElement(i, j)
			}
		}
	}
	lower, err := lb.Build()
	if err != nil {
		return nil, fmt.Errorf("linear: building lower factor pattern: %w", err)
	}
	upper, err := ub.Build()
	if err != nil {
		return nil, fmt.Errorf("linear: building upper factor pattern: %w", err)
	}
	s := &Symbolic{A: a, Lower: lower, Upper: upper, rows: make([]luRow, n)}
	aID := func(i, j int) int {
		if k, ok := a.Index(i, j); ok {
			return k
		}
		return -1
	}
	for i := 0; i < n; i++ {
		r := &s.rows[i]
		lcols, lfirst := lower.Row(i)
		ucols, ufirst := upper.Row(i)
		for ku, k := range ucols {
			up := update{dst: ufirst + ku, a: aID(i, k)}
			for kl, j := range lcols {
				if j >= i {
					break
				}
				if uid, ok := upper.Index(j, k); ok {
					up.terms = append(up.terms, term{l: lfirst + kl, u: uid})
				}
			}
			r.upper = append(r.upper, up)
		}
		r.lDiag, _ = lower.Index(i, i)
		r.uDiag, _ = upper.Index(i, i)
		for k := i + 1; k < n; k++ {
			lid, ok := lower.Index(k, i)
			if !ok {
				continue
			}
			up := update{dst: lid, a: aID(k, i)}
			kcols, kfirst := lower.Row(k)
			for kl, j := range kcols {
				if j >= i {
					break
				}
				if uid, ok := upper.Index(j, i); ok {
					up.terms = append(up.terms, term{l: kfirst + kl, u: uid})
				}
			}
			r.lower = append(r.lower, up)
		}
	}
	return s, nil
}

// Size returns the order of the factored matrix.
func (s *Symbolic) Size() int { return s.A.Size() }

// LU holds the numeric LU factors of a sparse matrix for every grid cell.
type LU[L matrix.Layout] struct {
	*Symbolic
	Lower, Upper *matrix.Sparse[L]

	// PivotTolerance is the magnitude at or below which a pivot is
	// treated as zero.
	PivotTolerance float64
}

// NewLU allocates factors for cells grid cells.
func NewLU[L matrix.Layout](s *Symbolic, cells int) *LU[L] {
	return &LU[L]{
		Symbolic:       s,
		Lower:          matrix.NewSparse[L](s.Lower, cells, 0),
		Upper:          matrix.NewSparse[L](s.Upper, cells, 0),
		PivotTolerance: DefaultPivotTolerance,
	}
}

// Decompose computes the Doolittle factorization a = L·U for every grid
// cell, row by row:
//
//	U[i][k] = A[i][k] - Σ_{j<i} L[i][j]·U[j][k]
//	L[k][i] = (A[k][i] - Σ_{j<i} L[k][j]·U[j][i]) / U[i][i]
//
// a must have the pattern f was built from. A pivot whose magnitude is at
// or below PivotTolerance stops the factorization with a *SingularError.
func (f *LU[L]) Decompose(a *matrix.Sparse[L]) error {
	if a.Cells() != f.Lower.Cells() || a.Pattern().NonZeros() != f.A.NonZeros() {
		return fmt.Errorf("linear: decompose: %w", matrix.ErrDimensionMismatch)
	}
	g := a.GroupSize()
	ad, ld, ud := a.Data(), f.Lower.Data(), f.Upper.Data()
	for grp := 0; grp < a.Groups(); grp++ {
		nl := a.Lanes(grp)
		ao, lo, uo := a.Offset(grp, 0), f.Lower.Offset(grp, 0), f.Upper.Offset(grp, 0)
		for i := range f.rows {
			r := &f.rows[i]
			for _, up := range r.upper {
				dst := ud[uo+up.dst*g : uo+up.dst*g+nl]
				initialize(dst, ad, ao, up.a, g)
				for _, t := range up.terms {
					lt, ut := lo+t.l*g, uo+t.u*g
					for l := range dst {
						dst[l] -= ld[lt+l] * ud[ut+l]
					}
				}
			}
			lii := lo + r.lDiag*g
			uii := ud[uo+r.uDiag*g : uo+r.uDiag*g+nl]
			for l, p := range uii {
				ld[lii+l] = 1
				if math.Abs(p) <= f.PivotTolerance {
					return &SingularError{Cell: grp*g + l, Row: i, Pivot: p}
				}
			}
			for _, up := range r.lower {
				dst := ld[lo+up.dst*g : lo+up.dst*g+nl]
				initialize(dst, ad, ao, up.a, g)
				for _, t := range up.terms {
					lt, ut := lo+t.l*g, uo+t.u*g
					for l := range dst {
						dst[l] -= ld[lt+l] * ud[ut+l]
					}
				}
				for l := range dst {
					dst[l] /= uii[l]
				}
			}
		}
	}
	return nil
}

// initialize copies element id of a block starting at offset in a into dst,
// or zeroes dst if id is negative.
func initialize(dst, a []float64, offset, id, g int) {
	if id < 0 {
		clear(dst)
		return
	}
	copy(dst, a[offset+id*g:])
}
