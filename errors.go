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

package chemsolve

import "errors"

var (
	// ErrInvalidState is returned when a State does not match the system
	// and processes it is used with.
	ErrInvalidState = errors.New("chemsolve: invalid state")

	// ErrUnknownSpecies is returned when a species name is not part of a
	// system.
	ErrUnknownSpecies = errors.New("chemsolve: unknown species")

	// ErrDuplicateSpecies is returned when a system is given two species
	// with the same name.
	ErrDuplicateSpecies = errors.New("chemsolve: duplicate species")

	// ErrUnknownParameter is returned when a custom rate parameter label
	// is not used by any process.
	ErrUnknownParameter = errors.New("chemsolve: unknown custom rate parameter")

	// ErrInvalidProcess is returned when a process is malformed.
	ErrInvalidProcess = errors.New("chemsolve: invalid process")
)
