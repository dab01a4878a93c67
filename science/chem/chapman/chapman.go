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

// Package chapman contains the Chapman mechanism of stratospheric ozone
// formation and loss, with photolysis of O2 and O3.
package chapman

import (
	"fmt"

	"github.com/spatialmodel/chemsolve"
)

// Mechanism fulfils the github.com/spatialmodel/chemsolve.Mechanism
// interface.
type Mechanism struct{}

// Molar masses [kg/mol]
const (
	mwAr  = 0.039948
	mwCO2 = 0.0440095
	mwH2O = 0.01801528
	mwN2  = 0.0280134
	mwO   = 0.0159994
	mwO2  = 0.0319988
	mwO3  = 0.0479982
)

// Rate constants in the literature are per molecule and cm³; the solver
// works in mol and m³.
const molecCM3 = 1e-6 * chemsolve.Avogadro

// Photolysis rate labels. Each is a custom rate parameter [1/s] of the
// state.
const (
	PhotoO2  = "PHOTO.O2_1"
	PhotoO3a = "PHOTO.O3_1"
	PhotoO3b = "PHOTO.O3_2"
)

var species = []chemsolve.Species{
	{Name: "M", Constant: true},
	{Name: "Ar", MolarMass: mwAr, Constant: true},
	{Name: "CO2", MolarMass: mwCO2, Constant: true},
	{Name: "H2O", MolarMass: mwH2O, Constant: true},
	{Name: "N2", MolarMass: mwN2, Constant: true},
	{Name: "O1D", MolarMass: mwO},
	{Name: "O", MolarMass: mwO},
	{Name: "O2", MolarMass: mwO2, Constant: true},
	{Name: "O3", MolarMass: mwO3},
}

// Len returns the number of chemical species in this mechanism (9).
func (m Mechanism) Len() int {
	return len(species)
}

// Species returns the names of the species in this mechanism.
func (m Mechanism) Species() []string {
	o := make([]string, len(species))
	for i, s := range species {
		o[i] = s.Name
	}
	return o
}

// System returns the species of the mechanism. Air density is computed
// from temperature and pressure.
func (m Mechanism) System() (*chemsolve.System, error) {
	s, err := chemsolve.NewSystem(species, chemsolve.TrackAirDensity())
	if err != nil {
		return nil, fmt.Errorf("chapman: %w", err)
	}
	return s, nil
}

// Units returns the units of the given variable, or an
// error if the variable name is invalid.
func (m Mechanism) Units(variable string) (string, error) {
	s, err := m.System()
	if err != nil {
		return "", err
	}
	u, err := s.Units(variable)
	if err != nil {
		return "", fmt.Errorf("chapman: invalid variable name %s; valid names are %v", variable, m.Species())
	}
	return u, nil
}

func twoBody(a, c float64) chemsolve.RateConstant {
	return chemsolve.NewArrhenius(chemsolve.ArrheniusParameters{A: a * molecCM3, C: c})
}

func photolysis(label string) chemsolve.RateConstant {
	return chemsolve.NewUserDefined(chemsolve.UserDefinedParameters{Label: label})
}

// Processes returns the seven reactions of the mechanism: three
// photolysis reactions followed by four thermal reactions.
func (m Mechanism) Processes() ([]chemsolve.Process, error) {
	y := func(s string, c float64) chemsolve.Yield { return chemsolve.Yield{Species: s, Coefficient: c} }
	r := func(s ...string) []chemsolve.Reactant {
		o := make([]chemsolve.Reactant, len(s))
		for i, n := range s {
			o[i] = chemsolve.Reactant{Species: n}
		}
		return o
	}
	return []chemsolve.Process{
		{
			Name:         "O2_1",
			Reactants:    r("O2"),
			Products:     []chemsolve.Yield{y("O", 2)},
			RateConstant: photolysis(PhotoO2),
		},
		{
			Name:         "O3_1",
			Reactants:    r("O3"),
			Products:     []chemsolve.Yield{y("O1D", 1), y("O2", 1)},
			RateConstant: photolysis(PhotoO3a),
		},
		{
			Name:         "O3_2",
			Reactants:    r("O3"),
			Products:     []chemsolve.Yield{y("O", 1), y("O2", 1)},
			RateConstant: photolysis(PhotoO3b),
		},
		{
			Name:         "N2_O1D_1",
			Reactants:    r("N2", "O1D"),
			Products:     []chemsolve.Yield{y("O", 1), y("N2", 1)},
			RateConstant: twoBody(2.15e-11, 110),
		},
		{
			Name:         "O1D_O2_1",
			Reactants:    r("O1D", "O2"),
			Products:     []chemsolve.Yield{y("O", 1), y("O2", 1)},
			RateConstant: twoBody(3.3e-11, 55),
		},
		{
			Name:         "O_O3_1",
			Reactants:    r("O", "O3"),
			Products:     []chemsolve.Yield{y("O2", 2)},
			RateConstant: twoBody(8e-12, -2060),
		},
		{
			Name:      "M_O_O2_1",
			Reactants: r("M", "O", "O2"),
			Products:  []chemsolve.Yield{y("O3", 1), y("M", 1)},
			RateConstant: chemsolve.NewArrhenius(chemsolve.ArrheniusParameters{
				A: 6e-34 * molecCM3 * molecCM3,
				B: -2.4,
			}),
		},
	}, nil
}

// mixingRatios are typical stratospheric volume mixing ratios.
var mixingRatios = map[string]float64{
	"M":   1,
	"Ar":  9.34e-3,
	"CO2": 4.1e-4,
	"H2O": 5e-6,
	"N2":  0.7808,
	"O1D": 0,
	"O":   1e-13,
	"O2":  0.2095,
	"O3":  5e-6,
}

// InitialConcentrations returns typical stratospheric concentrations
// [mol/m³] of every species for the given air density [mol/m³].
func (m Mechanism) InitialConcentrations(airDensity float64) map[string]float64 {
	o := make(map[string]float64, len(mixingRatios))
	for k, v := range mixingRatios {
		o[k] = v * airDensity
	}
	return o
}

// PhotolysisRates returns typical midday stratospheric photolysis rates
// [1/s] by label.
func (m Mechanism) PhotolysisRates() map[string]float64 {
	return map[string]float64{
		PhotoO2:  1.0e-10,
		PhotoO3a: 1.0e-4,
		PhotoO3b: 4.0e-4,
	}
}
