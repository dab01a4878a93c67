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

// Package chemsolve integrates stiff systems of chemical kinetics equations
// over many independent grid cells at once.
//
// A chemical system is described by a System of Species and a list of
// Processes, each with a RateConstant law. Sub-packages build the numerical
// solver stack on this data model: matrix holds the dense and sparse
// containers and their memory layouts, linear the sparse LU factorization,
// kinetics the forcing and Jacobian assembly, and rosenbrock the adaptive
// time integrator.
package chemsolve

import (
	"fmt"

	"github.com/ctessum/unit"
)

// AmountDim is the dimension representing an amount of substance.
var AmountDim = unit.NewDimension("mole")

// Units of the quantities handled by the solver.
var (
	ConcentrationUnits = unit.Dimensions{AmountDim: 1, unit.LengthDim: -3}
	MolarMassUnits     = unit.Dimensions{unit.MassDim: 1, AmountDim: -1}
	TemperatureUnits   = unit.Dimensions{unit.TemperatureDim: 1}
	PressureUnits      = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -2}
	TimeUnits          = unit.Dimensions{unit.TimeDim: 1}
)

// Species is a chemical species.
type Species struct {
	// Name identifies the species within a System.
	Name string

	// MolarMass is the molar mass [kg/mol]. Zero means unknown.
	MolarMass float64

	// Constant species take part in reactions but their concentrations
	// are never changed by the solver. Third bodies such as M are
	// usually constant.
	Constant bool

	// Properties holds any other numeric properties of the species.
	Properties map[string]float64
}

// MolarMassUnit returns the molar mass of s with its units.
func (s Species) MolarMassUnit() *unit.Unit {
	return unit.New(s.MolarMass, MolarMassUnits)
}

// Property returns the named property of s.
func (s Species) Property(name string) (float64, error) {
	v, ok := s.Properties[name]
	if !ok {
		return 0, fmt.Errorf("chemsolve: species %s has no property %q", s.Name, name)
	}
	return v, nil
}

// MassConcentration converts a molar concentration [mol/m³] of s to a
// mass concentration [kg/m³].
func (s Species) MassConcentration(c *unit.Unit) (*unit.Unit, error) {
	if err := c.Check(ConcentrationUnits); err != nil {
		return nil, fmt.Errorf("chemsolve: species %s: %w", s.Name, err)
	}
	if s.MolarMass <= 0 {
		return nil, fmt.Errorf("chemsolve: species %s has no molar mass", s.Name)
	}
	return unit.Mul(c, s.MolarMassUnit()), nil
}
