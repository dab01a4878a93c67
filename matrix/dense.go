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

	"gonum.org/v1/gonum/mat"
)

// Dense is a logical rows×cols matrix, where each row is a grid cell and each
// column is a per-cell element (a species, a process, a parameter...).
// The physical placement of values is set by the layout L.
type Dense[L Layout] struct {
	rows, cols int
	g          int
	data       []float64
}

// NewDense returns a rows×cols matrix with every element set to initial.
// rows may be zero; cols may be zero.
func NewDense[L Layout](rows, cols int, initial float64) *Dense[L] {
	if rows < 0 || cols < 0 {
		panic(ErrBadShape)
	}
	g := groupSize[L]()
	m := &Dense[L]{
		rows: rows,
		cols: cols,
		g:    g,
		data: make([]float64, numGroups(rows, g)*g*cols),
	}
	if initial != 0 {
		m.Fill(initial)
	}
	return m
}

// NewDenseFrom returns a matrix holding the values in v, where v[row][col]
// is the value of the given element. All rows of v must be the same length.
func NewDenseFrom[L Layout](v [][]float64) (*Dense[L], error) {
	var cols int
	if len(v) > 0 {
		cols = len(v[0])
	}
	m := NewDense[L](len(v), cols, 0)
	for i, row := range v {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns; want %d", ErrDimensionMismatch, i, len(row), cols)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// Rows returns the number of rows (grid cells).
func (m *Dense[L]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense[L]) Cols() int { return m.cols }

// GroupSize returns the number of rows stored together in one block.
func (m *Dense[L]) GroupSize() int { return m.g }

// Groups returns the number of blocks.
func (m *Dense[L]) Groups() int { return numGroups(m.rows, m.g) }

// Lanes returns the number of valid rows in block group.
func (m *Dense[L]) Lanes(group int) int { return lanes(m.rows, m.g, group) }

// Offset returns the index in Data of the first lane of column col in
// block group. Lane l of that column is at Offset(group, col)+l.
func (m *Dense[L]) Offset(group, col int) int {
	return (group*m.cols+col)*m.g
}

// Index returns the index in Data of element (row, col).
func (m *Dense[L]) Index(row, col int) int {
	return (row/m.g*m.cols+col)*m.g + row%m.g
}

// At returns the value of element (row, col).
func (m *Dense[L]) At(row, col int) float64 {
	m.check(row, col)
	return m.data[m.Index(row, col)]
}

// Set sets the value of element (row, col).
func (m *Dense[L]) Set(row, col int, v float64) {
	m.check(row, col)
	m.data[m.Index(row, col)] = v
}

// Add adds v to element (row, col).
func (m *Dense[L]) Add(row, col int, v float64) {
	m.check(row, col)
	m.data[m.Index(row, col)] += v
}

func (m *Dense[L]) check(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Errorf("%w: (%d, %d) in %d×%d matrix", ErrOutOfRange, row, col, m.rows, m.cols))
	}
}

// Row returns a copy of the values in row.
func (m *Dense[L]) Row(row int) []float64 {
	o := make([]float64, m.cols)
	for j := range o {
		o[j] = m.At(row, j)
	}
	return o
}

// SetRow sets the values in row. len(v) must equal Cols.
func (m *Dense[L]) SetRow(row int, v []float64) {
	if len(v) != m.cols {
		panic(fmt.Errorf("%w: %d values for %d columns", ErrDimensionMismatch, len(v), m.cols))
	}
	for j, x := range v {
		m.Set(row, j, x)
	}
}

// Data returns the underlying storage. Padding lanes of a partially filled
// final block are included and are always zero unless written directly.
func (m *Dense[L]) Data() []float64 { return m.data }

// Fill sets every valid element to v.
func (m *Dense[L]) Fill(v float64) {
	if m.rows%m.g == 0 {
		for i := range m.data {
			m.data[i] = v
		}
		return
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			m.data[m.Index(i, j)] = v
		}
	}
}

// Zero sets every element to zero.
func (m *Dense[L]) Zero() { clear(m.data) }

// SameShape reports whether m and o have the same number of rows and columns.
func (m *Dense[L]) SameShape(o *Dense[L]) bool {
	return m.rows == o.rows && m.cols == o.cols
}

// CopyFrom copies the values of o into m. The shapes must match.
func (m *Dense[L]) CopyFrom(o *Dense[L]) error {
	if !m.SameShape(o) {
		return fmt.Errorf("%w: %d×%d vs %d×%d", ErrDimensionMismatch, m.rows, m.cols, o.rows, o.cols)
	}
	copy(m.data, o.data)
	return nil
}

// Clone returns a copy of m.
func (m *Dense[L]) Clone() *Dense[L] {
	o := &Dense[L]{rows: m.rows, cols: m.cols, g: m.g, data: make([]float64, len(m.data))}
	copy(o.data, m.data)
	return o
}

// ToMat returns a gonum copy of m with the logical rows and columns.
func (m *Dense[L]) ToMat() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	o := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			o.Set(i, j, m.At(i, j))
		}
	}
	return o
}
