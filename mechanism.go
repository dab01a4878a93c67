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

// Mechanism is an interface for chemical mechanisms.
type Mechanism interface {
	// System returns the species of the mechanism.
	System() (*System, error)

	// Processes returns the reactions of the mechanism, in the
	// order their rate constants are stored.
	Processes() ([]Process, error)

	// Species returns the names of the species that are used by this
	// chemical mechanism.
	Species() []string

	// Units returns the units of the given variable, or an
	// error if the variable name is invalid.
	Units(variable string) (string, error)

	// Len returns the number of species in the chemical mechanism.
	Len() int
}
