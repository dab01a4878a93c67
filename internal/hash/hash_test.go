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

package hash

import "testing"

type key struct {
	Layout   string
	Cells    int
	Diagonal []int
}

type opaque struct {
	n int
}

func TestHash(t *testing.T) {
	a := Hash(key{Layout: "matrix.Vector4", Cells: 10, Diagonal: []int{0, 2, 5}})
	b := Hash(key{Layout: "matrix.Vector4", Cells: 10, Diagonal: []int{0, 2, 5}})
	c := Hash(key{Layout: "matrix.Vector4", Cells: 10, Diagonal: []int{0, 2, 6}})
	if a != b {
		t.Errorf("equal keys hash differently: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("different keys hash the same: %s", a)
	}
	if len(a) != 32 {
		t.Errorf("have key length %d, want 32", len(a))
	}
}

func TestHashFallback(t *testing.T) {
	// gob refuses types without exported fields.
	a, b := Hash(opaque{n: 1}), Hash(opaque{n: 2})
	if a == b {
		t.Errorf("spew fallback does not distinguish values: %s", a)
	}
	if a != Hash(opaque{n: 1}) {
		t.Errorf("spew fallback is not stable")
	}
}
