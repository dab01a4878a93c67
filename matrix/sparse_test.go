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
	"errors"
	"testing"
)

func testPattern(t *testing.T) *Pattern {
	p, err := NewPatternBuilder(4).
		WithElement(0, 2).
		WithElement(2, 1).
		WithElement(3, 0).
		WithDiagonal().
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPattern(t *testing.T) {
	p := testPattern(t)
	if p.Size() != 4 || p.NonZeros() != 7 {
		t.Fatalf("have size %d nnz %d, want 4 and 7", p.Size(), p.NonZeros())
	}
	want := [][2]int{{0, 0}, {0, 2}, {1, 1}, {2, 1}, {2, 2}, {3, 0}, {3, 3}}
	for id, e := range want {
		k, ok := p.Index(e[0], e[1])
		if !ok || k != id {
			t.Errorf("(%d, %d): have %d %v, want %d", e[0], e[1], k, ok, id)
		}
	}
	if !p.IsZero(1, 0) || p.IsZero(3, 0) {
		t.Errorf("IsZero is wrong")
	}
	d, err := p.Diagonal()
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range []int{0, 2, 4, 6} {
		if d[i] != k {
			t.Errorf("diagonal %d: have %d, want %d", i, d[i], k)
		}
	}
}

func TestPatternErrors(t *testing.T) {
	_, err := NewPatternBuilder(2).WithElement(2, 0).Build()
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("have %v, want %v", err, ErrOutOfRange)
	}
	p, err := NewPatternBuilder(2).WithElement(0, 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Diagonal(); !errors.Is(err, ErrZeroElement) {
		t.Errorf("have %v, want %v", err, ErrZeroElement)
	}
}

func TestPatternPermute(t *testing.T) {
	p := testPattern(t)
	perm := []int{3, 1, 0, 2}
	q, err := p.Permute(perm)
	if err != nil {
		t.Fatal(err)
	}
	if q.NonZeros() != p.NonZeros() {
		t.Fatalf("have %d non-zeros, want %d", q.NonZeros(), p.NonZeros())
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if q.IsZero(i, j) != p.IsZero(perm[i], perm[j]) {
				t.Errorf("(%d, %d) does not match (%d, %d)", i, j, perm[i], perm[j])
			}
		}
	}
	if _, err := p.Permute([]int{0, 0, 1, 2}); err == nil {
		t.Errorf("expected error for repeated index")
	}
	b, err := PatternFromBool(q.Bool())
	if err != nil {
		t.Fatal(err)
	}
	if b.NonZeros() != q.NonZeros() {
		t.Errorf("bool round trip lost elements")
	}
}

func testSparseLayout[L Layout](t *testing.T, cells int) {
	p := testPattern(t)
	m := NewSparse[L](p, cells, 0)
	for c := 0; c < cells; c++ {
		for i := 0; i < 4; i++ {
			cols, _ := p.Row(i)
			for _, j := range cols {
				if err := m.Set(c, i, j, float64(c*100+i*10+j)); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	for c := 0; c < cells; c++ {
		d := m.ToMat(c)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				want := 0.
				if !p.IsZero(i, j) {
					want = float64(c*100 + i*10 + j)
				}
				if have := m.At(c, i, j); have != want {
					t.Errorf("cell %d (%d, %d): have %g, want %g", c, i, j, have, want)
				}
				if have := d.At(i, j); have != want {
					t.Errorf("gonum cell %d (%d, %d): have %g, want %g", c, i, j, have, want)
				}
			}
		}
	}
	for g := 0; g < m.Groups(); g++ {
		for id := 0; id < p.NonZeros(); id++ {
			for l := 0; l < m.Lanes(g); l++ {
				c := g*m.GroupSize() + l
				if m.Offset(g, id)+l != m.VectorIndex(c, id) {
					t.Errorf("group %d lane %d id %d: offset does not match vector index", g, l, id)
				}
			}
		}
	}
	if err := m.Set(0, 1, 0, 1); !errors.Is(err, ErrZeroElement) {
		t.Errorf("have %v, want %v", err, ErrZeroElement)
	}
}

func TestSparseLayouts(t *testing.T) {
	for _, cells := range []int{1, 2, 3, 5, 8} {
		testSparseLayout[Standard](t, cells)
		testSparseLayout[Vector1](t, cells)
		testSparseLayout[Vector2](t, cells)
		testSparseLayout[Vector3](t, cells)
		testSparseLayout[Vector4](t, cells)
	}
}

func TestSparseCopy(t *testing.T) {
	p := testPattern(t)
	a := NewSparse[Vector2](p, 3, 1)
	b := NewSparse[Vector2](p, 3, 0)
	if err := b.CopyFrom(a); err != nil {
		t.Fatal(err)
	}
	if b.At(2, 3, 0) != 1 {
		t.Errorf("have %g, want 1", b.At(2, 3, 0))
	}
	c := a.Clone()
	c.Zero()
	if a.At(0, 0, 0) != 1 || c.At(0, 0, 0) != 0 {
		t.Errorf("clone shares storage")
	}
	other := NewSparse[Vector2](testPattern(t), 3, 0)
	if err := other.CopyFrom(a); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("have %v, want %v", err, ErrDimensionMismatch)
	}
}
