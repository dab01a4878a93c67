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

// Package matrix holds the dense and sparse containers used by the solver
// stack. Both containers are parameterized by a memory layout strategy: the
// logical (cell, element) indexing is the same for every layout, but the
// physical placement of values differs.
//
// A layout with group size G stores G grid cells interleaved in one block:
// the value for (cell, element) lives at
//
//	(cell/G)·G·width + element·G + cell%G
//
// where width is the number of elements per cell (columns for a dense matrix,
// non-zero elements for a sparse matrix). Algorithms that loop over the lanes of
// a block therefore touch contiguous memory with a uniform stride, and the same
// instruction sequence serves every cell in the block.
package matrix

// Layout is a memory layout strategy. Implementations are zero-size types
// used as type parameters, so the group size is fixed at compile time.
type Layout interface {
	// GroupSize returns the number of grid cells stored together in one block.
	GroupSize() int
}

// Standard is the ungrouped, row-major layout: all the values for one grid
// cell are contiguous.
type Standard struct{}

// GroupSize returns 1.
func (Standard) GroupSize() int { return 1 }

// Vector1 is a grouped-vector layout with one cell per group.
type Vector1 struct{}

// GroupSize returns 1.
func (Vector1) GroupSize() int { return 1 }

// Vector2 is a grouped-vector layout with two cells per group.
type Vector2 struct{}

// GroupSize returns 2.
func (Vector2) GroupSize() int { return 2 }

// Vector3 is a grouped-vector layout with three cells per group.
type Vector3 struct{}

// GroupSize returns 3.
func (Vector3) GroupSize() int { return 3 }

// Vector4 is a grouped-vector layout with four cells per group.
type Vector4 struct{}

// GroupSize returns 4.
func (Vector4) GroupSize() int { return 4 }

// Vector8 is a grouped-vector layout with eight cells per group.
type Vector8 struct{}

// GroupSize returns 8.
func (Vector8) GroupSize() int { return 8 }

// groupSize returns the group size of layout L.
func groupSize[L Layout]() int {
	var l L
	g := l.GroupSize()
	if g < 1 {
		panic("matrix: layout group size must be at least 1")
	}
	return g
}

// numGroups returns the number of blocks needed to hold cells cells.
func numGroups(cells, g int) int {
	return (cells + g - 1) / g
}

// lanes returns the number of valid cells in block group.
func lanes(cells, g, group int) int {
	if n := cells - group*g; n < g {
		return n
	}
	return g
}
