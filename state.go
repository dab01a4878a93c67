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

	"github.com/spatialmodel/chemsolve/matrix"
)

// StateParameters describe the shape of a State.
type StateParameters struct {
	// Variables are the species names in state column order.
	Variables []string

	// CustomParameters are the custom rate parameter labels in column
	// order.
	CustomParameters []string

	// Processes is the number of processes.
	Processes int

	// Cells is the number of grid cells.
	Cells int
}

// State holds the per-cell data of one solver for all of its grid cells.
// It is owned by one goroutine at a time.
type State[L matrix.Layout] struct {
	// Conditions in each grid cell.
	Conditions []Conditions

	// Variables holds species concentrations [mol/m³], one row per grid
	// cell and one column per species.
	Variables *matrix.Dense[L]

	// CustomRateParameters holds one row per grid cell and one column
	// per custom rate parameter.
	CustomRateParameters *matrix.Dense[L]

	// RateConstants holds one row per grid cell and one column per
	// process. It is computed from the conditions and the custom rate
	// parameters.
	RateConstants *matrix.Dense[L]

	// VariableMap gives the column of each species in Variables.
	VariableMap map[string]int

	// CustomRateParameterMap gives the columns of each label in
	// CustomRateParameters.
	CustomRateParameterMap map[string][]int

	variableNames []string
	customLabels  []string
}

// NewState returns a zeroed state with the given shape.
func NewState[L matrix.Layout](p StateParameters) (*State[L], error) {
	if p.Cells < 0 || p.Processes < 0 {
		return nil, fmt.Errorf("%w: %d cells and %d processes", ErrInvalidState, p.Cells, p.Processes)
	}
	s := &State[L]{
		Conditions:             make([]Conditions, p.Cells),
		Variables:              matrix.NewDense[L](p.Cells, len(p.Variables), 0),
		CustomRateParameters:   matrix.NewDense[L](p.Cells, len(p.CustomParameters), 0),
		RateConstants:          matrix.NewDense[L](p.Cells, p.Processes, 0),
		VariableMap:            make(map[string]int, len(p.Variables)),
		CustomRateParameterMap: make(map[string][]int, len(p.CustomParameters)),
		variableNames:          append([]string(nil), p.Variables...),
		customLabels:           append([]string(nil), p.CustomParameters...),
	}
	for i, v := range p.Variables {
		if _, ok := s.VariableMap[v]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSpecies, v)
		}
		s.VariableMap[v] = i
	}
	for i, l := range p.CustomParameters {
		s.CustomRateParameterMap[l] = append(s.CustomRateParameterMap[l], i)
	}
	return s, nil
}

// Cells returns the number of grid cells.
func (s *State[L]) Cells() int { return len(s.Conditions) }

// VariableNames returns the species names in column order.
func (s *State[L]) VariableNames() []string {
	return append([]string(nil), s.variableNames...)
}

// SetConcentration sets the concentration of the named species in cell.
func (s *State[L]) SetConcentration(cell int, species string, v float64) error {
	j, err := s.column(cell, species)
	if err != nil {
		return err
	}
	s.Variables.Set(cell, j, v)
	return nil
}

// Concentration returns the concentration of the named species in cell.
func (s *State[L]) Concentration(cell int, species string) (float64, error) {
	j, err := s.column(cell, species)
	if err != nil {
		return 0, err
	}
	return s.Variables.At(cell, j), nil
}

// SetConcentrations sets concentrations by species name, with one value per
// grid cell for each species. A single value is used for every cell.
func (s *State[L]) SetConcentrations(c map[string][]float64) error {
	for name, v := range c {
		if len(v) != 1 && len(v) != s.Cells() {
			return fmt.Errorf("%w: %d values for %s in %d cells", ErrInvalidState, len(v), name, s.Cells())
		}
		for cell := 0; cell < s.Cells(); cell++ {
			x := v[0]
			if len(v) > 1 {
				x = v[cell]
			}
			if err := s.SetConcentration(cell, name, x); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *State[L]) column(cell int, species string) (int, error) {
	j, ok := s.VariableMap[species]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSpecies, species)
	}
	if cell < 0 || cell >= s.Cells() {
		return 0, fmt.Errorf("%w: cell %d of %d", ErrInvalidState, cell, s.Cells())
	}
	return j, nil
}

// SetCustomRateParameter sets the custom rate parameter with the given
// label in cell.
func (s *State[L]) SetCustomRateParameter(cell int, label string, v float64) error {
	cols, ok := s.CustomRateParameterMap[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, label)
	}
	if cell < 0 || cell >= s.Cells() {
		return fmt.Errorf("%w: cell %d of %d", ErrInvalidState, cell, s.Cells())
	}
	for _, j := range cols {
		s.CustomRateParameters.Set(cell, j, v)
	}
	return nil
}

// SetConditions sets the same conditions in every grid cell.
func (s *State[L]) SetConditions(c Conditions) {
	for i := range s.Conditions {
		s.Conditions[i] = c
	}
}

// Check returns ErrInvalidState if s does not have the shape, variable
// order, and custom rate parameter order given by p.
func (s *State[L]) Check(p StateParameters) error {
	switch {
	case s.Variables.Rows() != p.Cells || s.Variables.Cols() != len(p.Variables):
		return fmt.Errorf("%w: have %d×%d variables, want %d×%d", ErrInvalidState,
			s.Variables.Rows(), s.Variables.Cols(), p.Cells, len(p.Variables))
	case s.RateConstants.Rows() != p.Cells || s.RateConstants.Cols() != p.Processes:
		return fmt.Errorf("%w: have %d×%d rate constants, want %d×%d", ErrInvalidState,
			s.RateConstants.Rows(), s.RateConstants.Cols(), p.Cells, p.Processes)
	case s.CustomRateParameters.Rows() != p.Cells || s.CustomRateParameters.Cols() != len(p.CustomParameters):
		return fmt.Errorf("%w: have %d×%d custom rate parameters, want %d×%d", ErrInvalidState,
			s.CustomRateParameters.Rows(), s.CustomRateParameters.Cols(), p.Cells, len(p.CustomParameters))
	case len(s.Conditions) != p.Cells:
		return fmt.Errorf("%w: have conditions for %d cells, want %d", ErrInvalidState, len(s.Conditions), p.Cells)
	}
	for i, v := range p.Variables {
		if s.variableNames[i] != v {
			return fmt.Errorf("%w: have variable order %v, want %v", ErrInvalidState, s.variableNames, p.Variables)
		}
	}
	for i, l := range p.CustomParameters {
		if s.customLabels[i] != l {
			return fmt.Errorf("%w: have custom rate parameter order %v, want %v", ErrInvalidState, s.customLabels, p.CustomParameters)
		}
	}
	return nil
}
