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

package matrix

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Pattern is the immutable set of non-zero (row, column) positions of a
// square sparse matrix. Non-zero elements are numbered in row-major order;
// that number is the element's flat id, shared by every grid cell.
// A Pattern is safe for concurrent use.
type Pattern struct {
	n        int
	rowStart []int // rowStart[i] is the flat id of the first element in row i
	cols     []int // column of each flat id
}

// PatternBuilder collects non-zero positions for a Pattern.
type PatternBuilder struct {
	n        int
	diagonal bool
	elems    map[[2]int]struct{}
}

// NewPatternBuilder returns a builder for an n×n pattern.
func NewPatternBuilder(n int) *PatternBuilder {
	return &PatternBuilder{n: n, elems: make(map[[2]int]struct{})}
}

// WithElement marks (row, col) as non-zero.
func (b *PatternBuilder) WithElement(row, col int) *PatternBuilder {
	b.elems[[2]int{row, col}] = struct{}{}
	return b
}

// WithDiagonal marks every diagonal position as non-zero.
func (b *PatternBuilder) WithDiagonal() *PatternBuilder {
	b.diagonal = true
	return b
}

// Build returns the pattern, or an error if an element is outside the matrix.
func (b *PatternBuilder) Build() (*Pattern, error) {
	if b.n < 0 {
		return nil, ErrBadShape
	}
	if b.diagonal {
		for i := 0; i < b.n; i++ {
			b.elems[[2]int{i, i}] = struct{}{}
		}
	}
	rows := make([][]int, b.n)
	for e := range b.elems {
		if e[0] < 0 || e[0] >= b.n || e[1] < 0 || e[1] >= b.n {
			return nil, fmt.Errorf("%w: element (%d, %d) in %d×%d pattern", ErrOutOfRange, e[0], e[1], b.n, b.n)
		}
		rows[e[0]] = append(rows[e[0]], e[1])
	}
	p := &Pattern{n: b.n, rowStart: make([]int, b.n+1), cols: make([]int, 0, len(b.elems))}
	for i, r := range rows {
		sort.Ints(r)
		p.rowStart[i] = len(p.cols)
		p.cols = append(p.cols, r...)
	}
	p.rowStart[b.n] = len(p.cols)
	return p, nil
}

// PatternFromBool returns the pattern of the true elements of a square
// boolean matrix.
func PatternFromBool(nz [][]bool) (*Pattern, error) {
	b := NewPatternBuilder(len(nz))
	for i, row := range nz {
		if len(row) != len(nz) {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrBadShape, i, len(row))
		}
		for j, v := range row {
			if v {
				b.WithElement(i, j)
			}
		}
	}
	return b.Build()
}

// Size returns the number of rows (and columns).
func (p *Pattern) Size() int { return p.n }

// NonZeros returns the number of non-zero elements.
func (p *Pattern) NonZeros() int { return len(p.cols) }

// Row returns the columns of the non-zero elements in row i, in ascending
// order, along with the flat id of the first of them. The returned slice
// must not be modified.
func (p *Pattern) Row(i int) (cols []int, first int) {
	return p.cols[p.rowStart[i]:p.rowStart[i+1]], p.rowStart[i]
}

// Index returns the flat id of element (row, col), or false if the element
// is not part of the pattern.
func (p *Pattern) Index(row, col int) (int, bool) {
	if row < 0 || row >= p.n || col < 0 || col >= p.n {
		return 0, false
	}
	cols, first := p.Row(row)
	k := sort.SearchInts(cols, col)
	if k < len(cols) && cols[k] == col {
		return first + k, true
	}
	return 0, false
}

// IsZero reports whether (row, col) is outside the pattern.
func (p *Pattern) IsZero(row, col int) bool {
	_, ok := p.Index(row, col)
	return !ok
}

// Diagonal returns the flat ids of the diagonal elements, or an error if
// any diagonal element is missing.
func (p *Pattern) Diagonal() ([]int, error) {
	d := make([]int, p.n)
	for i := range d {
		k, ok := p.Index(i, i)
		if !ok {
			return nil, fmt.Errorf("%w: diagonal element %d", ErrZeroElement, i)
		}
		d[i] = k
	}
	return d, nil
}

// Bool returns the pattern as a dense boolean matrix.
func (p *Pattern) Bool() [][]bool {
	o := make([][]bool, p.n)
	for i := range o {
		o[i] = make([]bool, p.n)
		cols, _ := p.Row(i)
		for _, j := range cols {
			o[i][j] = true
		}
	}
	return o
}

// Permute returns the pattern of the matrix with rows and columns
// reordered so that element (i, j) of the result is element
// (perm[i], perm[j]) of p.
func (p *Pattern) Permute(perm []int) (*Pattern, error) {
	if len(perm) != p.n {
		return nil, fmt.Errorf("%w: permutation of length %d for %d×%d pattern", ErrDimensionMismatch, len(perm), p.n, p.n)
	}
	inv := make([]int, p.n)
	for i := range inv {
		inv[i] = -1
	}
	for i, o := range perm {
		if o < 0 || o >= p.n || inv[o] >= 0 {
			return nil, fmt.Errorf("matrix: %v is not a permutation", perm)
		}
		inv[o] = i
	}
	b := NewPatternBuilder(p.n)
	for i := 0; i < p.n; i++ {
		cols, _ := p.Row(i)
		for _, j := range cols {
			b.WithElement(inv[i], inv[j])
		}
	}
	return b.Build()
}

// Sparse holds the values of a sparse matrix for each of a number of grid
// cells. Every cell shares the same Pattern.
type Sparse[L Layout] struct {
	p     *Pattern
	cells int
	g     int
	data  []float64
}

// NewSparse returns a sparse matrix with pattern p for cells grid cells, with
// every non-zero element set to initial.
func NewSparse[L Layout](p *Pattern, cells int, initial float64) *Sparse[L] {
	if cells < 0 {
		panic(ErrBadShape)
	}
	g := groupSize[L]()
	m := &Sparse[L]{
		p:     p,
		cells: cells,
		g:     g,
		data:  make([]float64, numGroups(cells, g)*g*p.NonZeros()),
	}
	if initial != 0 {
		m.Fill(initial)
	}
	return m
}

// Pattern returns the sparsity pattern.
func (m *Sparse[L]) Pattern() *Pattern { return m.p }

// Cells returns the number of grid cells.
func (m *Sparse[L]) Cells() int { return m.cells }

// GroupSize returns the number of cells stored together in one block.
func (m *Sparse[L]) GroupSize() int { return m.g }

// Groups returns the number of blocks.
func (m *Sparse[L]) Groups() int { return numGroups(m.cells, m.g) }

// Lanes returns the number of valid cells in block group.
func (m *Sparse[L]) Lanes(group int) int { return lanes(m.cells, m.g, group) }

// Offset returns the index in Data of the first lane of flat element id in
// block group.
func (m *Sparse[L]) Offset(group, id int) int {
	return (group*m.p.NonZeros() + id) * m.g
}

// VectorIndex returns the index in Data of flat element id for cell.
func (m *Sparse[L]) VectorIndex(cell, id int) int {
	return (cell/m.g*m.p.NonZeros()+id)*m.g + cell%m.g
}

func (m *Sparse[L]) index(cell, row, col int) (int, error) {
	if cell < 0 || cell >= m.cells {
		return 0, fmt.Errorf("%w: cell %d of %d", ErrOutOfRange, cell, m.cells)
	}
	if row < 0 || row >= m.p.n || col < 0 || col >= m.p.n {
		return 0, fmt.Errorf("%w: (%d, %d) in %d×%d matrix", ErrOutOfRange, row, col, m.p.n, m.p.n)
	}
	id, ok := m.p.Index(row, col)
	if !ok {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrZeroElement, row, col)
	}
	return m.VectorIndex(cell, id), nil
}

// At returns the value of element (row, col) for cell. Elements outside
// the pattern are zero.
func (m *Sparse[L]) At(cell, row, col int) float64 {
	i, err := m.index(cell, row, col)
	if err != nil {
		if cell >= 0 && cell < m.cells && row >= 0 && row < m.p.n && col >= 0 && col < m.p.n {
			return 0
		}
		panic(err)
	}
	return m.data[i]
}

// Set sets the value of element (row, col) for cell. It returns an error if
// the element is not part of the pattern.
func (m *Sparse[L]) Set(cell, row, col int, v float64) error {
	i, err := m.index(cell, row, col)
	if err != nil {
		return err
	}
	m.data[i] = v
	return nil
}

// Data returns the underlying storage.
func (m *Sparse[L]) Data() []float64 { return m.data }

// Fill sets every non-zero element of every cell to v.
func (m *Sparse[L]) Fill(v float64) {
	for c := 0; c < m.cells; c++ {
		for id := 0; id < m.p.NonZeros(); id++ {
			m.data[m.VectorIndex(c, id)] = v
		}
	}
}

// Zero sets every element to zero.
func (m *Sparse[L]) Zero() { clear(m.data) }

// CopyFrom copies the values of o into m. Both must share the same pattern
// and number of cells.
func (m *Sparse[L]) CopyFrom(o *Sparse[L]) error {
	if m.p != o.p || m.cells != o.cells {
		return fmt.Errorf("%w: sparse matrices do not share a pattern", ErrDimensionMismatch)
	}
	copy(m.data, o.data)
	return nil
}

// Clone returns a copy of m sharing its pattern.
func (m *Sparse[L]) Clone() *Sparse[L] {
	o := &Sparse[L]{p: m.p, cells: m.cells, g: m.g, data: make([]float64, len(m.data))}
	copy(o.data, m.data)
	return o
}

// ToMat returns the matrix for cell as a gonum dense matrix.
func (m *Sparse[L]) ToMat(cell int) *mat.Dense {
	if m.p.n == 0 {
		return &mat.Dense{}
	}
	o := mat.NewDense(m.p.n, m.p.n, nil)
	for i := 0; i < m.p.n; i++ {
		cols, first := m.p.Row(i)
		for k, j := range cols {
			o.Set(i, j, m.data[m.VectorIndex(cell, first+k)])
		}
	}
	return o
}
