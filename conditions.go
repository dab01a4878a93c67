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

// GasConstant is the universal gas constant [J/(K·mol)].
const GasConstant = 8.31446261815324

// Avogadro is the Avogadro constant [1/mol].
const Avogadro = 6.02214076e23

// Conditions are the environmental conditions in one grid cell.
type Conditions struct {
	Temperature float64 // [K]
	Pressure    float64 // [Pa]
	AirDensity  float64 // [mol/m³]
}

// IdealGasAirDensity returns the air density [mol/m³] of an ideal gas at
// the temperature and pressure of c.
func (c Conditions) IdealGasAirDensity() float64 {
	return c.Pressure / (GasConstant * c.Temperature)
}
