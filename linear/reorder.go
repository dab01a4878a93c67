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

// Package linear solves the sparse linear systems that arise in implicit
// integration of chemical kinetics. The sparsity pattern is analyzed once: a
// fill-minimizing ordering is chosen, the exact pattern of the LU factors
// is found by symbolic elimination, and index lists are built so that
// numeric factorization and substitution never test for sparsity.
package linear

import (
	"github.com/spatialmodel/chemsolve/matrix"
)

// DiagonalMarkowitzReorder returns an elimination order for the square
// pattern p that limits fill-in. Pivots are taken from the diagonal only.
// At each step the remaining index whose Markowitz cost
//
//	(non-zeros in its row - 1) · (non-zeros in its column - 1)
//
// over the not yet eliminated submatrix is smallest is chosen, with ties
// going to the lowest original index. The fill caused by each pivot is added
// to the working pattern before the next pivot is chosen.
//
// The result perm satisfies reordered[i] = original[perm[i]]: the variable
// with original index perm[i] has index i after reordering.
func DiagonalMarkowitzReorder(p *matrix.Pattern) []int {
	n := p.Size()
	nz := p.Bool()
	for i := range nz {
		nz[i][i] = true
	}
	done := make([]bool, n)
	perm := make([]int, 0, n)
	for step := 0; step < n; step++ {
		best, bestCost := -1, 0
		for r := 0; r < n; r++ {
			if done[r] {
				continue
			}
			var nRow, nCol int
			for j := 0; j < n; j++ {
				if done[j] {
					continue
				}
				if nz[r][j] {
					nRow++
				}
				if nz[j][r] {
					nCol++
				}
			}
			cost := (nRow - 1) * (nCol - 1)
			if best < 0 || cost < bestCost {
				best, bestCost = r, cost
			}
		}
		done[best] = true
		perm = append(perm, best)
		// Symbolic elimination of the pivot.
		for i := 0; i < n; i++ {
			if done[i] || !nz[i][best] {
				continue
			}
			for j := 0; j < n; j++ {
				if !done[j] && nz[best][j] {
					nz[i][j] = true
				}
			}
		}
	}
	return perm
}

// InversePermutation returns the inverse of perm, so that the variable with
// original index o has index inv[o] after reordering.
func InversePermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, o := range perm {
		inv[o] = i
	}
	return inv
}
