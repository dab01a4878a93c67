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

package parallel

import (
	"errors"
	"testing"

	"github.com/spatialmodel/chemsolve"
	"github.com/spatialmodel/chemsolve/kinetics"
	"github.com/spatialmodel/chemsolve/matrix"
	"gonum.org/v1/gonum/floats"
)

func setup[L matrix.Layout](t *testing.T, cells int) (*kinetics.ProcessSet[L], *matrix.Pattern, *chemsolve.State[L]) {
	sys, err := chemsolve.NewSystem([]chemsolve.Species{
		{Name: "O"}, {Name: "O1D"}, {Name: "O3"}, {Name: "O2", Constant: true}, {Name: "M", Constant: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	arr := func(a, c float64) chemsolve.RateConstant {
		return chemsolve.NewArrhenius(chemsolve.ArrheniusParameters{A: a, C: c})
	}
	procs := []chemsolve.Process{
		{
			Reactants:    []chemsolve.Reactant{{Species: "O1D"}, {Species: "M"}},
			Products:     []chemsolve.Yield{{Species: "O", Coefficient: 1}},
			RateConstant: arr(2.15e-11, 110),
		},
		{
			Reactants:    []chemsolve.Reactant{{Species: "O"}, {Species: "O2"}, {Species: "M"}},
			Products:     []chemsolve.Yield{{Species: "O3", Coefficient: 1}},
			RateConstant: arr(6e-34, 0),
		},
		{
			Reactants:    []chemsolve.Reactant{{Species: "O"}, {Species: "O3"}},
			Products:     []chemsolve.Yield{{Species: "O2", Coefficient: 2}},
			RateConstant: arr(8e-12, -2060),
		},
		{
			Reactants:    []chemsolve.Reactant{{Species: "O3"}},
			Products:     []chemsolve.Yield{{Species: "O1D", Coefficient: 1}, {Species: "O2", Coefficient: 1}},
			RateConstant: arr(1e-3, 0),
		},
	}
	vars := map[string]int{"O": 0, "O1D": 1, "O3": 2, "O2": 3, "M": 4}
	ps, err := kinetics.NewProcessSet[L](sys, procs, vars)
	if err != nil {
		t.Fatal(err)
	}
	jac, err := ps.JacobianPattern()
	if err != nil {
		t.Fatal(err)
	}
	if err := ps.SetJacobianFlatIDs(jac); err != nil {
		t.Fatal(err)
	}
	s, err := chemsolve.NewState[L](chemsolve.StateParameters{
		Variables: []string{"O", "O1D", "O3", "O2", "M"},
		Processes: len(procs),
		Cells:     cells,
	})
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < cells; c++ {
		s.Conditions[c] = chemsolve.Conditions{Temperature: 220 + float64(c), Pressure: 1000}
		for j, v := range []float64{1e-8, 1e-12, 1e-6, 0.2, 1.0} {
			s.Variables.Set(c, j, v*float64(c+1))
		}
	}
	if err := ps.CalculateRateConstants(s.Conditions, s.CustomRateParameters, s.RateConstants); err != nil {
		t.Fatal(err)
	}
	return ps, jac, s
}

func testAgreement[L matrix.Layout](t *testing.T, cells, workers int) {
	ps, jac, s := setup[L](t, cells)
	pp, err := New[L](ps, jac, cells, workers)
	if err != nil {
		t.Fatal(err)
	}
	f1 := matrix.NewDense[L](cells, 5, 1)
	f2 := matrix.NewDense[L](cells, 5, 1)
	if err := ps.AddForcingTerms(s.RateConstants, s.Variables, f1); err != nil {
		t.Fatal(err)
	}
	if err := pp.AddForcingTerms(s.RateConstants, s.Variables, f2); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(f1.Data(), f2.Data(), 1e-15) {
		t.Errorf("forcing: have %v, want %v", f2.Data(), f1.Data())
	}
	j1 := matrix.NewSparse[L](jac, cells, 0.5)
	j2 := matrix.NewSparse[L](jac, cells, 0.5)
	if err := ps.AddJacobianTerms(s.RateConstants, s.Variables, j1); err != nil {
		t.Fatal(err)
	}
	if err := pp.AddJacobianTerms(s.RateConstants, s.Variables, j2); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(j1.Data(), j2.Data(), 1e-15) {
		t.Errorf("jacobian: have %v, want %v", j2.Data(), j1.Data())
	}
}

func TestAgreement(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		testAgreement[matrix.Standard](t, 10, workers)
		testAgreement[matrix.Vector4](t, 10, workers)
		testAgreement[matrix.Vector3](t, 1, workers)
	}
}

func TestInvalidState(t *testing.T) {
	ps, jac, s := setup[matrix.Standard](t, 4)
	pp, err := New[matrix.Standard](ps, jac, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	f := matrix.NewDense[matrix.Standard](4, 5, 0)
	if err := pp.AddForcingTerms(s.RateConstants, s.Variables, f); !errors.Is(err, chemsolve.ErrInvalidState) {
		t.Errorf("have %v, want %v", err, chemsolve.ErrInvalidState)
	}
}

// Processes without reactants contribute forcing but no Jacobian terms.
func TestEmissionOnly(t *testing.T) {
	sys, err := chemsolve.NewSystem([]chemsolve.Species{{Name: "A"}})
	if err != nil {
		t.Fatal(err)
	}
	procs := []chemsolve.Process{
		{
			Products:     []chemsolve.Yield{{Species: "A", Coefficient: 1}},
			RateConstant: chemsolve.NewUserDefined(chemsolve.UserDefinedParameters{Label: "EMIS.A"}),
		},
	}
	ps, err := kinetics.NewProcessSet[matrix.Standard](sys, procs, map[string]int{"A": 0})
	if err != nil {
		t.Fatal(err)
	}
	jac, err := ps.JacobianPattern()
	if err != nil {
		t.Fatal(err)
	}
	if err := ps.SetJacobianFlatIDs(jac); err != nil {
		t.Fatal(err)
	}
	pp, err := New[matrix.Standard](ps, jac, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	s, err := chemsolve.NewState[matrix.Standard](chemsolve.StateParameters{
		Variables:        []string{"A"},
		CustomParameters: chemsolve.CustomParameterLabels(procs),
		Processes:        len(procs),
		Cells:            2,
	})
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 2; c++ {
		if err := s.SetCustomRateParameter(c, "EMIS.A", float64(c+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ps.CalculateRateConstants(s.Conditions, s.CustomRateParameters, s.RateConstants); err != nil {
		t.Fatal(err)
	}
	f1 := matrix.NewDense[matrix.Standard](2, 1, 0)
	f2 := matrix.NewDense[matrix.Standard](2, 1, 0)
	if err := ps.AddForcingTerms(s.RateConstants, s.Variables, f1); err != nil {
		t.Fatal(err)
	}
	if err := pp.AddForcingTerms(s.RateConstants, s.Variables, f2); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(f1.Data(), f2.Data()) {
		t.Errorf("forcing: have %v, want %v", f2.Data(), f1.Data())
	}
	if want := []float64{1, 2}; !floats.Equal(f2.Data(), want) {
		t.Errorf("forcing: have %v, want %v", f2.Data(), want)
	}
	j := matrix.NewSparse[matrix.Standard](jac, 2, 0)
	if err := pp.AddJacobianTerms(s.RateConstants, s.Variables, j); err != nil {
		t.Fatal(err)
	}
	for _, v := range j.Data() {
		if v != 0 {
			t.Errorf("jacobian: have %v, want zeros", j.Data())
			break
		}
	}
}
