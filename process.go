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
	"math"
)

// Reactant is a reactant species and its stoichiometric count.
type Reactant struct {
	Species string

	// Count is the stoichiometric count. Zero is taken as 1.
	Count int
}

// Yield is a product species and its yield.
type Yield struct {
	Species     string
	Coefficient float64
}

// Process is a chemical reaction.
type Process struct {
	Name         string
	Reactants    []Reactant
	Products     []Yield
	RateConstant RateConstant
}

// ReactantNames returns the names of the reactants of p, with each name
// repeated according to its stoichiometric count.
func (p Process) ReactantNames() []string {
	var o []string
	for _, r := range p.Reactants {
		n := r.Count
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			o = append(o, r.Species)
		}
	}
	return o
}

// Validate checks that every species p refers to is part of s.
func (p Process) Validate(s *System) error {
	for _, r := range p.Reactants {
		if _, ok := s.Index(r.Species); !ok {
			return fmt.Errorf("%w: reactant %s of process %s", ErrUnknownSpecies, r.Species, p.label())
		}
		if r.Count < 0 {
			return fmt.Errorf("%w: process %s: negative count for reactant %s", ErrInvalidProcess, p.label(), r.Species)
		}
	}
	for _, y := range p.Products {
		if _, ok := s.Index(y.Species); !ok {
			return fmt.Errorf("%w: product %s of process %s", ErrUnknownSpecies, y.Species, p.label())
		}
		if math.IsNaN(y.Coefficient) || math.IsInf(y.Coefficient, 0) {
			return fmt.Errorf("%w: process %s: invalid yield %g for %s", ErrInvalidProcess, p.label(), y.Coefficient, y.Species)
		}
	}
	if p.RateConstant.Kind() == UserDefined && p.RateConstant.user.Label == "" {
		return fmt.Errorf("%w: process %s: user-defined rate constant has no label", ErrInvalidProcess, p.label())
	}
	return nil
}

func (p Process) label() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%v -> %v", p.ReactantNames(), p.Products)
}

// ValidateProcesses validates every process against s.
func ValidateProcesses(s *System, processes []Process) error {
	for _, p := range processes {
		if err := p.Validate(s); err != nil {
			return err
		}
	}
	return nil
}

// CustomParameterLabels returns the labels of the custom rate parameters
// consumed by processes, in process order. A State holds one column per
// label.
func CustomParameterLabels(processes []Process) []string {
	var o []string
	for _, p := range processes {
		o = append(o, p.RateConstant.CustomParameterLabels()...)
	}
	return o
}
