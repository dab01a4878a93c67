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

// Package kernel builds routines specialized to a fixed Jacobian sparsity
// pattern. A specialized routine is built the first time a pattern is seen
// and is reused for every later request with the same pattern.
package kernel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/spatialmodel/chemsolve/internal/hash"
	"github.com/spatialmodel/chemsolve/matrix"
	"gonum.org/v1/gonum/floats"
)

// AlphaMinusJacobianFunc overwrites jac with alpha·I - jac.
type AlphaMinusJacobianFunc[L matrix.Layout] func(jac *matrix.Sparse[L], alpha float64)

// MaxCached is the number of specialized routines kept.
const MaxCached = 64

var (
	mu    sync.Mutex
	cache = lru.New(MaxCached)
)

type key struct {
	Layout    string
	GroupSize int
	Cells     int
	NonZeros  int
	Diagonal  []int
}

// Generic returns an AlphaMinusJacobianFunc that walks the blocks of the
// matrix at every call. It works for any number of grid cells.
func Generic[L matrix.Layout](p *matrix.Pattern) (AlphaMinusJacobianFunc[L], error) {
	diag, err := p.Diagonal()
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	return func(jac *matrix.Sparse[L], alpha float64) {
		d := jac.Data()
		floats.Scale(-1, d)
		for grp := 0; grp < jac.Groups(); grp++ {
			nl := jac.Lanes(grp)
			for _, id := range diag {
				o := jac.Offset(grp, id)
				for l := 0; l < nl; l++ {
					d[o+l] += alpha
				}
			}
		}
	}, nil
}

// AlphaMinusJacobian returns an AlphaMinusJacobianFunc specialized to
// matrices with pattern p and cells grid cells: the position of every
// diagonal element is computed once, so a call does no index arithmetic.
// The result is numerically identical to that of Generic. Calling the
// routine with a matrix of another shape panics.
func AlphaMinusJacobian[L matrix.Layout](p *matrix.Pattern, cells int) (AlphaMinusJacobianFunc[L], error) {
	diag, err := p.Diagonal()
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	var l L
	k := hash.Hash(key{
		Layout:    fmt.Sprintf("%T", l),
		GroupSize: l.GroupSize(),
		Cells:     cells,
		NonZeros:  p.NonZeros(),
		Diagonal:  diag,
	})
	mu.Lock()
	defer mu.Unlock()
	if f, ok := cache.Get(k); ok {
		return f.(AlphaMinusJacobianFunc[L]), nil
	}
	f := specialize[L](diag, p.NonZeros(), cells)
	cache.Add(k, f)
	return f, nil
}

func specialize[L matrix.Layout](diag []int, nnz, cells int) AlphaMinusJacobianFunc[L] {
	var l L
	g := l.GroupSize()
	idx := make([]int, 0, len(diag)*cells)
	for c := 0; c < cells; c++ {
		for _, id := range diag {
			idx = append(idx, (c/g*nnz+id)*g+c%g)
		}
	}
	sort.Ints(idx)
	size := (cells + g - 1) / g * g * nnz
	return func(jac *matrix.Sparse[L], alpha float64) {
		d := jac.Data()
		if len(d) != size {
			panic(fmt.Errorf("kernel: %w: matrix has %d values; routine built for %d",
				matrix.ErrDimensionMismatch, len(d), size))
		}
		floats.Scale(-1, d)
		for _, i := range idx {
			d[i] += alpha
		}
	}
}

// Cached returns the number of specialized routines in the cache.
func Cached() int {
	mu.Lock()
	defer mu.Unlock()
	return cache.Len()
}
