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
	"math/rand"
	"testing"

	"github.com/spatialmodel/chemsolve/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// randomSystem returns a random diagonally dominant n×n matrix for each of
// cells grid cells, with a reaction-like sparsity pattern.
func randomSystem(seed int64, n, cells int) (*matrix.Pattern, [][][]float64) {
	r := rand.New(rand.NewSource(seed))
	b := matrix.NewPatternBuilder(n).WithDiagonal()
	nz := make([][]bool, n)
	for i := range nz {
		nz[i] = make([]bool, n)
		nz[i][i] = true
		for j := range nz[i] {
			if i != j && r.Float64() < 0.25 {
				nz[i][j] = true
				b.WithElement(i, j)
			}
		}
	}
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	vals := make([][][]float64, cells)
	for c := range vals {
		vals[c] = make([][]float64, n)
		for i := range vals[c] {
			vals[c][i] = make([]float64, n)
			for j := range vals[c][i] {
				switch {
				case i == j:
					vals[c][i][j] = float64(n) + 10*r.Float64()
				case nz[i][j]:
					vals[c][i][j] = r.Float64()*2 - 1
				}
			}
		}
	}
	return p, vals
}

// reorderedMatrix applies perm to p and fills a sparse matrix with the
// permuted values.
func reorderedMatrix[L matrix.Layout](t *testing.T, p *matrix.Pattern, perm []int, vals [][][]float64) *matrix.Sparse[L] {
	q, err := p.Permute(perm)
	if err != nil {
		t.Fatal(err)
	}
	a := matrix.NewSparse[L](q, len(vals), 0)
	for c := range vals {
		for i := 0; i < q.Size(); i++ {
			cols, _ := q.Row(i)
			for _, j := range cols {
				if err := a.Set(c, i, j, vals[c][perm[i]][perm[j]]); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return a
}

func TestReorderBijection(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		p, _ := randomSystem(seed, 12, 1)
		perm := DiagonalMarkowitzReorder(p)
		if len(perm) != 12 {
			t.Fatalf("seed %d: have %d indices, want 12", seed, len(perm))
		}
		seen := make([]bool, 12)
		for _, o := range perm {
			if o < 0 || o >= 12 || seen[o] {
				t.Fatalf("seed %d: %v is not a permutation", seed, perm)
			}
			seen[o] = true
		}
		inv := InversePermutation(perm)
		for i, o := range perm {
			if inv[o] != i {
				t.Errorf("seed %d: inverse is wrong at %d", seed, i)
			}
		}
	}
}

func TestReorderArrow(t *testing.T) {
	// A dense first row and column: eliminating index 0 first fills
	// everything, so it must be ordered last.
	b := matrix.NewPatternBuilder(5).WithDiagonal()
	for i := 1; i < 5; i++ {
		b.WithElement(0, i).WithElement(i, 0)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	perm := DiagonalMarkowitzReorder(p)
	want := []int{1, 2, 3, 4, 0}
	for i := range want {
		if perm[i] != want[i] {
			t.Fatalf("have %v, want %v", perm, want)
		}
	}
	q, err := p.Permute(perm)
	if err != nil {
		t.Fatal(err)
	}
	sym, err := NewSymbolic(q)
	if err != nil {
		t.Fatal(err)
	}
	if fill := sym.Lower.NonZeros() + sym.Upper.NonZeros() - 5 - q.NonZeros(); fill != 0 {
		t.Errorf("have %d fill-in elements, want 0", fill)
	}
	unordered, err := NewSymbolic(p)
	if err != nil {
		t.Fatal(err)
	}
	if unordered.Lower.NonZeros()+unordered.Upper.NonZeros() != 30 {
		t.Errorf("unordered arrow matrix should fill completely")
	}
}

func testFactor[L matrix.Layout](t *testing.T, seed int64) {
	const n, cells = 10, 5
	p, vals := randomSystem(seed, n, cells)
	perm := DiagonalMarkowitzReorder(p)
	a := reorderedMatrix[L](t, p, perm, vals)
	s, err := NewSolver[L](a.Pattern(), cells)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Factor(a); err != nil {
		t.Fatal(err)
	}
	for c := 0; c < cells; c++ {
		var lu mat.Dense
		lu.Mul(s.Factors().Lower.ToMat(c), s.Factors().Upper.ToMat(c))
		want := a.ToMat(c)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if !scalar.EqualWithinAbsOrRel(lu.At(i, j), want.At(i, j), 1e-12, 1e-10) {
					t.Errorf("seed %d cell %d (%d, %d): have %g, want %g", seed, c, i, j, lu.At(i, j), want.At(i, j))
				}
			}
		}
	}
}

func TestFactorRoundTrip(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		testFactor[matrix.Standard](t, seed)
		testFactor[matrix.Vector1](t, seed)
		testFactor[matrix.Vector2](t, seed)
		testFactor[matrix.Vector3](t, seed)
		testFactor[matrix.Vector4](t, seed)
	}
}

// solveRandom solves a random system with layout L and returns the solution
// in logical (cell, variable) order.
func solveRandom[L matrix.Layout](t *testing.T, seed int64, n, cells int) [][]float64 {
	p, vals := randomSystem(seed, n, cells)
	perm := DiagonalMarkowitzReorder(p)
	a := reorderedMatrix[L](t, p, perm, vals)
	s, err := NewSolver[L](a.Pattern(), cells)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Factor(a); err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(seed + 100))
	b := matrix.NewDense[L](cells, n, 0)
	for c := 0; c < cells; c++ {
		for i := 0; i < n; i++ {
			b.Set(c, i, r.Float64()*10-5)
		}
	}
	x := matrix.NewDense[L](cells, n, 0)
	if err := s.Solve(b, x); err != nil {
		t.Fatal(err)
	}
	out := make([][]float64, cells)
	for c := 0; c < cells; c++ {
		xv := mat.NewVecDense(n, x.Row(c))
		var ax mat.VecDense
		ax.MulVec(a.ToMat(c), xv)
		for i := 0; i < n; i++ {
			if !scalar.EqualWithinAbsOrRel(ax.AtVec(i), b.At(c, i), 1e-10, 1e-8) {
				t.Errorf("seed %d cell %d row %d: have %g, want %g", seed, c, i, ax.AtVec(i), b.At(c, i))
			}
		}
		out[c] = x.Row(c)
	}
	return out
}

func TestSolve(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		solveRandom[matrix.Standard](t, seed, 15, 3)
	}
}

func TestSolveInPlace(t *testing.T) {
	p, vals := randomSystem(3, 6, 2)
	perm := DiagonalMarkowitzReorder(p)
	a := reorderedMatrix[matrix.Vector2](t, p, perm, vals)
	s, err := NewSolver[matrix.Vector2](a.Pattern(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Factor(a); err != nil {
		t.Fatal(err)
	}
	b := matrix.NewDense[matrix.Vector2](2, 6, 1)
	x := matrix.NewDense[matrix.Vector2](2, 6, 0)
	if err := s.Solve(b, x); err != nil {
		t.Fatal(err)
	}
	if err := s.Solve(b, b); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(b.Data(), x.Data()) {
		t.Errorf("in-place solve differs: have %v, want %v", b.Data(), x.Data())
	}
	bad := matrix.NewDense[matrix.Vector2](3, 6, 0)
	if err := s.Solve(bad, bad); !errors.Is(err, matrix.ErrDimensionMismatch) {
		t.Errorf("have %v, want %v", err, matrix.ErrDimensionMismatch)
	}
}

func TestLayoutEquivalence(t *testing.T) {
	const n, cells = 12, 7
	want := solveRandom[matrix.Standard](t, 42, n, cells)
	check := func(name string, have [][]float64) {
		for c := range want {
			for i := range want[c] {
				if !scalar.EqualWithinAbsOrRel(have[c][i], want[c][i], 1e-14, 1e-12) {
					t.Errorf("%s cell %d var %d: have %g, want %g", name, c, i, have[c][i], want[c][i])
				}
			}
		}
	}
	check("Vector1", solveRandom[matrix.Vector1](t, 42, n, cells))
	check("Vector2", solveRandom[matrix.Vector2](t, 42, n, cells))
	check("Vector3", solveRandom[matrix.Vector3](t, 42, n, cells))
	check("Vector4", solveRandom[matrix.Vector4](t, 42, n, cells))
}

func TestSingular(t *testing.T) {
	p, err := matrix.NewPatternBuilder(2).WithDiagonal().WithElement(0, 1).WithElement(1, 0).Build()
	if err != nil {
		t.Fatal(err)
	}
	a := matrix.NewSparse[matrix.Vector2](p, 3, 0)
	for c := 0; c < 3; c++ {
		a.Set(c, 0, 0, 2)
		a.Set(c, 1, 1, 2)
		a.Set(c, 0, 1, 1)
		a.Set(c, 1, 0, 1)
	}
	// Cell 2 has a singular second pivot: 2 - (1/2)·4 = 0.
	a.Set(2, 0, 1, 4)
	s, err := NewSolver[matrix.Vector2](p, 3)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Factor(a)
	if !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("have %v, want %v", err, ErrSingularMatrix)
	}
	var se *SingularError
	if !errors.As(err, &se) {
		t.Fatalf("have %T, want *SingularError", err)
	}
	if se.Cell != 2 || se.Row != 1 {
		t.Errorf("have cell %d row %d, want cell 2 row 1", se.Cell, se.Row)
	}
}
