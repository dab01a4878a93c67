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

import (
	"fmt"
	"strings"
)

// System is an immutable set of chemical species together with the
// conditions the solver keeps track of. It holds no per-cell data.
type System struct {
	species []Species
	index   map[string]int

	trackAirDensity bool
}

// SystemOption configures a System.
type SystemOption func(*System)

// TrackAirDensity makes solvers compute the air density of each grid cell
// from its temperature and pressure, assuming an ideal gas, whenever rate
// constants are updated.
func TrackAirDensity() SystemOption {
	return func(s *System) { s.trackAirDensity = true }
}

// NewSystem returns a system of the given species. Species names must be
// non-empty and unique.
func NewSystem(species []Species, opts ...SystemOption) (*System, error) {
	s := &System{
		species: make([]Species, len(species)),
		index:   make(map[string]int, len(species)),
	}
	copy(s.species, species)
	for i, sp := range species {
		if strings.TrimSpace(sp.Name) == "" {
			return nil, fmt.Errorf("chemsolve: species %d has no name", i)
		}
		if _, ok := s.index[sp.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSpecies, sp.Name)
		}
		s.index[sp.Name] = i
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Len returns the number of species.
func (s *System) Len() int { return len(s.species) }

// Species returns a copy of the species in the system.
func (s *System) Species() []Species {
	o := make([]Species, len(s.species))
	copy(o, s.species)
	return o
}

// Lookup returns the named species.
func (s *System) Lookup(name string) (Species, error) {
	i, ok := s.index[name]
	if !ok {
		return Species{}, fmt.Errorf("%w: %s", ErrUnknownSpecies, name)
	}
	return s.species[i], nil
}

// Index returns the position of the named species in the system.
func (s *System) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Names returns the names of all species, in system order.
func (s *System) Names() []string {
	o := make([]string, len(s.species))
	for i, sp := range s.species {
		o[i] = sp.Name
	}
	return o
}

// IsConstant reports whether the named species has a constant
// concentration.
func (s *System) IsConstant(name string) bool {
	i, ok := s.index[name]
	return ok && s.species[i].Constant
}

// TracksAirDensity reports whether air density is computed from
// temperature and pressure.
func (s *System) TracksAirDensity() bool { return s.trackAirDensity }

// Units returns the units of the given variable, which may be a species
// name or one of "Temperature", "Pressure", or "AirDensity".
func (s *System) Units(variable string) (string, error) {
	switch variable {
	case "Temperature":
		return TemperatureUnits.String(), nil
	case "Pressure":
		return PressureUnits.String(), nil
	case "AirDensity":
		return ConcentrationUnits.String(), nil
	}
	if _, ok := s.index[variable]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSpecies, variable)
	}
	return ConcentrationUnits.String(), nil
}
