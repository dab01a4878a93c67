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

import "errors"

var (
	// ErrBadShape is returned when a requested shape is invalid.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrDimensionMismatch is returned when two containers that must share a
	// shape or sparsity pattern do not.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrZeroElement is returned when a sparse element is requested that is
	// not part of the sparsity pattern.
	ErrZeroElement = errors.New("matrix: element is not in the sparsity pattern")

	// ErrOutOfRange is returned when a row or column index is outside the matrix.
	ErrOutOfRange = errors.New("matrix: index out of range")
)
