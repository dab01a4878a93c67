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

package kernel

import (
	"math/rand"
	"testing"

	"github.com/spatialmodel/chemsolve/matrix"
	"gonum.org/v1/gonum/floats"
)

func testPattern(t *testing.T) *matrix.Pattern {
	p, err := matrix.NewPatternBuilder(5).
		WithDiagonal().
		WithElement(0, 3).
		WithElement(4, 1).
		WithElement(2, 0).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func testEquivalence[L matrix.Layout](t *testing.T, cells int) {
	p := testPattern(t)
	r := rand.New(rand.NewSource(1))
	a := matrix.NewSparse[L](p, cells, 0)
	for c := 0; c < cells; c++ {
		for i := 0; i < 5; i++ {
			cols, _ := p.Row(i)
			for _, j := range cols {
				a.Set(c, i, j, r.Float64())
			}
		}
	}
	orig := a.Clone()
	b := a.Clone()
	generic, err := Generic[L](p)
	if err != nil {
		t.Fatal(err)
	}
	special, err := AlphaMinusJacobian[L](p, cells)
	if err != nil {
		t.Fatal(err)
	}
	generic(a, 12.5)
	special(b, 12.5)
	if !floats.Equal(a.Data(), b.Data()) {
		t.Errorf("specialized routine differs from generic: have %v, want %v", b.Data(), a.Data())
	}
	for c := 0; c < cells; c++ {
		for i := 0; i < 5; i++ {
			for j := 0; j < 5; j++ {
				want := -orig.At(c, i, j)
				if i == j {
					want += 12.5
				}
				if have := a.At(c, i, j); have != want {
					t.Errorf("cell %d (%d, %d): have %g, want %g", c, i, j, have, want)
				}
			}
		}
	}
}

func TestEquivalence(t *testing.T) {
	for _, cells := range []int{1, 3, 4, 7} {
		testEquivalence[matrix.Standard](t, cells)
		testEquivalence[matrix.Vector1](t, cells)
		testEquivalence[matrix.Vector2](t, cells)
		testEquivalence[matrix.Vector3](t, cells)
		testEquivalence[matrix.Vector4](t, cells)
	}
}

func TestCache(t *testing.T) {
	p := testPattern(t)
	f1, err := AlphaMinusJacobian[matrix.Vector2](p, 11)
	if err != nil {
		t.Fatal(err)
	}
	n := Cached()
	// An equal pattern built separately hits the cache.
	if _, err := AlphaMinusJacobian[matrix.Vector2](testPattern(t), 11); err != nil {
		t.Fatal(err)
	}
	if Cached() != n {
		t.Errorf("have %d cached routines, want %d", Cached(), n)
	}
	// Layouts with the same group size get routines of their own type.
	f2, err := AlphaMinusJacobian[matrix.Standard](p, 11)
	if err != nil {
		t.Fatal(err)
	}
	f3, err := AlphaMinusJacobian[matrix.Vector1](p, 11)
	if err != nil {
		t.Fatal(err)
	}
	f1(matrix.NewSparse[matrix.Vector2](p, 11, 1), 1)
	f2(matrix.NewSparse[matrix.Standard](p, 11, 1), 1)
	f3(matrix.NewSparse[matrix.Vector1](p, 11, 1), 1)
}

func TestShapeMismatch(t *testing.T) {
	p := testPattern(t)
	f, err := AlphaMinusJacobian[matrix.Standard](p, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	f(matrix.NewSparse[matrix.Standard](p, 4, 0), 1)
}

func TestMissingDiagonal(t *testing.T) {
	p, err := matrix.NewPatternBuilder(2).WithElement(0, 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AlphaMinusJacobian[matrix.Standard](p, 1); err == nil {
		t.Errorf("expected error for missing diagonal")
	}
}
