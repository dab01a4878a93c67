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

package mechconfig

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spatialmodel/chemsolve"
	"github.com/spf13/cast"
)

// Keys every reaction may have.
var commonKeys = []string{"type", "name"}

type reactionParser struct {
	t      map[string]interface{}
	id     string
	system *chemsolve.System
}

func (p *reactionParser) errorf(s Status, key string, format string, args ...interface{}) error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &ParseError{Status: s, Reaction: p.id, Key: key, Err: err}
}

func (p *reactionParser) parse() ([]chemsolve.Process, error) {
	v, ok := p.t["type"]
	if !ok {
		return nil, p.errorf(RequiredKeyNotFound, "type", "")
	}
	typ, err := cast.ToStringE(v)
	if err != nil {
		return nil, p.errorf(InvalidType, "type", "%v", err)
	}
	name, err := p.str("name")
	if err != nil {
		return nil, err
	}
	if name != "" {
		p.id = name
	}

	switch strings.ToUpper(typ) {
	case "ARRHENIUS":
		return p.arrhenius()
	case "TROE":
		return p.troe(chemsolve.NewTroe)
	case "TERNARY_CHEMICAL_ACTIVATION":
		return p.troe(chemsolve.NewTernaryChemicalActivation)
	case "TUNNELING":
		return p.tunneling()
	case "BRANCHED":
		return p.branched()
	case "PHOTOLYSIS":
		return p.userDefined("PHOTO.", name, false)
	case "USER_DEFINED":
		return p.userDefined("USER.", name, false)
	case "EMISSION":
		return p.userDefined("EMIS.", name, true)
	case "FIRST_ORDER_LOSS":
		return p.userDefined("LOSS.", name, true)
	}
	return nil, p.errorf(InvalidParameter, "type", "unknown reaction type %q", typ)
}

// str returns the optional string value of key.
func (p *reactionParser) str(key string) (string, error) {
	v, ok := p.t[key]
	if !ok {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", p.errorf(InvalidType, key, "%v", err)
	}
	return s, nil
}

// float sets *f to the value of key if it is present, and reports whether
// it was.
func (p *reactionParser) float(key string, f *float64) (bool, error) {
	v, ok := p.t[key]
	if !ok {
		return false, nil
	}
	x, err := cast.ToFloat64E(v)
	if err != nil {
		return false, p.errorf(InvalidType, key, "%v", err)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return false, p.errorf(InvalidParameter, key, "%g", x)
	}
	*f = x
	return true, nil
}

func (p *reactionParser) floats(keys []string, fs ...*float64) error {
	for i, k := range keys {
		if _, err := p.float(k, fs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *reactionParser) requireFloat(key string, f *float64) error {
	ok, err := p.float(key, f)
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf(RequiredKeyNotFound, key, "")
	}
	return nil
}

// speciesTable returns the species table at key, sorted by name.
func (p *reactionParser) speciesTable(key string) ([]string, map[string]map[string]interface{}, error) {
	v, ok := p.t[key]
	if !ok {
		return nil, nil, p.errorf(RequiredKeyNotFound, key, "")
	}
	raw, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, nil, p.errorf(InvalidType, key, "%v", err)
	}
	names := make([]string, 0, len(raw))
	o := make(map[string]map[string]interface{}, len(raw))
	for name, opts := range raw {
		if _, ok := p.system.Index(name); !ok {
			return nil, nil, p.errorf(UnknownSpecies, key, "%s", name)
		}
		if o[name], err = cast.ToStringMapE(opts); err != nil {
			return nil, nil, p.errorf(InvalidType, key, "%s: %v", name, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, o, nil
}

func (p *reactionParser) reactants(key string) ([]chemsolve.Reactant, error) {
	names, opts, err := p.speciesTable(key)
	if err != nil {
		return nil, err
	}
	o := make([]chemsolve.Reactant, len(names))
	for i, name := range names {
		if err := checkKeys(opts[name], p.id, "qty"); err != nil {
			return nil, err
		}
		o[i] = chemsolve.Reactant{Species: name, Count: 1}
		if v, ok := opts[name]["qty"]; ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				return nil, p.errorf(InvalidType, "qty", "%s: %v", name, err)
			}
			if n < 1 {
				return nil, p.errorf(InvalidParameter, "qty", "%s: %d", name, n)
			}
			o[i].Count = n
		}
	}
	return o, nil
}

func (p *reactionParser) products(key string) ([]chemsolve.Yield, error) {
	names, opts, err := p.speciesTable(key)
	if err != nil {
		return nil, err
	}
	o := make([]chemsolve.Yield, len(names))
	for i, name := range names {
		if err := checkKeys(opts[name], p.id, "yield"); err != nil {
			return nil, err
		}
		o[i] = chemsolve.Yield{Species: name, Coefficient: 1}
		if v, ok := opts[name]["yield"]; ok {
			y, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, p.errorf(InvalidType, "yield", "%s: %v", name, err)
			}
			if math.IsNaN(y) || math.IsInf(y, 0) {
				return nil, p.errorf(InvalidParameter, "yield", "%s: %g", name, y)
			}
			o[i].Coefficient = y
		}
	}
	return o, nil
}

// process reads the reactants and products of a reaction with rate
// constant k.
func (p *reactionParser) process(k chemsolve.RateConstant) ([]chemsolve.Process, error) {
	r, err := p.reactants("reactants")
	if err != nil {
		return nil, err
	}
	y, err := p.products("products")
	if err != nil {
		return nil, err
	}
	return []chemsolve.Process{{Name: p.id, Reactants: r, Products: y, RateConstant: k}}, nil
}

func (p *reactionParser) arrhenius() ([]chemsolve.Process, error) {
	keys := []string{"A", "B", "C", "D", "E"}
	if err := checkKeys(p.t, p.id, append(append(keys, "Ea", "reactants", "products"), commonKeys...)...); err != nil {
		return nil, err
	}
	a := chemsolve.DefaultArrheniusParameters()
	if err := p.floats(keys, &a.A, &a.B, &a.C, &a.D, &a.E); err != nil {
		return nil, err
	}
	var ea float64
	hasEa, err := p.float("Ea", &ea)
	if err != nil {
		return nil, err
	}
	if hasEa {
		if _, ok := p.t["C"]; ok {
			return nil, p.errorf(MutuallyExclusiveOption, "Ea", "C and Ea are both set")
		}
		a.C = -ea / BoltzmannConstant
	}
	if a.D <= 0 {
		return nil, p.errorf(InvalidParameter, "D", "%g", a.D)
	}
	return p.process(chemsolve.NewArrhenius(a))
}

func (p *reactionParser) troe(newRate func(chemsolve.TroeParameters) chemsolve.RateConstant) ([]chemsolve.Process, error) {
	keys := []string{"k0_A", "k0_B", "k0_C", "kinf_A", "kinf_B", "kinf_C", "Fc", "N"}
	if err := checkKeys(p.t, p.id, append(append(keys, "reactants", "products"), commonKeys...)...); err != nil {
		return nil, err
	}
	t := chemsolve.DefaultTroeParameters()
	if err := p.floats(keys, &t.K0A, &t.K0B, &t.K0C, &t.KinfA, &t.KinfB, &t.KinfC, &t.Fc, &t.N); err != nil {
		return nil, err
	}
	if t.Fc <= 0 {
		return nil, p.errorf(InvalidParameter, "Fc", "%g", t.Fc)
	}
	if t.N <= 0 {
		return nil, p.errorf(InvalidParameter, "N", "%g", t.N)
	}
	return p.process(newRate(t))
}

func (p *reactionParser) tunneling() ([]chemsolve.Process, error) {
	keys := []string{"A", "B", "C"}
	if err := checkKeys(p.t, p.id, append(append(keys, "reactants", "products"), commonKeys...)...); err != nil {
		return nil, err
	}
	t := chemsolve.TunnelingParameters{A: 1}
	if err := p.floats(keys, &t.A, &t.B, &t.C); err != nil {
		return nil, err
	}
	return p.process(chemsolve.NewTunneling(t))
}

// branched returns the alkoxy and nitrate channels of the reaction as two
// processes sharing reactants.
func (p *reactionParser) branched() ([]chemsolve.Process, error) {
	if err := checkKeys(p.t, p.id, append([]string{"X", "Y", "a0", "n",
		"reactants", "alkoxy_products", "nitrate_products"}, commonKeys...)...); err != nil {
		return nil, err
	}
	var b chemsolve.BranchedParameters
	if err := p.requireFloat("X", &b.X); err != nil {
		return nil, err
	}
	if err := p.requireFloat("Y", &b.Y); err != nil {
		return nil, err
	}
	if err := p.requireFloat("a0", &b.A0); err != nil {
		return nil, err
	}
	v, ok := p.t["n"]
	if !ok {
		return nil, p.errorf(RequiredKeyNotFound, "n", "")
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil, p.errorf(InvalidType, "n", "%v", err)
	}
	b.N = n
	r, err := p.reactants("reactants")
	if err != nil {
		return nil, err
	}
	var o []chemsolve.Process
	for _, c := range []struct {
		branch chemsolve.Branch
		key    string
		suffix string
	}{
		{chemsolve.Alkoxy, "alkoxy_products", "alkoxy"},
		{chemsolve.Nitrate, "nitrate_products", "nitrate"},
	} {
		y, err := p.products(c.key)
		if err != nil {
			return nil, err
		}
		b.Branch = c.branch
		k, err := chemsolve.NewBranched(b)
		if err != nil {
			return nil, p.errorf(InvalidParameter, "", "%v", err)
		}
		o = append(o, chemsolve.Process{
			Name:         p.id + "." + c.suffix,
			Reactants:    r,
			Products:     y,
			RateConstant: k,
		})
	}
	return o, nil
}

// userDefined reads a reaction whose rate constant is the custom rate
// parameter prefix+name. Single-species reactions (emissions and
// first-order losses) name their species with the species key instead of
// reactants and products.
func (p *reactionParser) userDefined(prefix, name string, single bool) ([]chemsolve.Process, error) {
	keys := append([]string{"scaling_factor"}, commonKeys...)
	if single {
		keys = append(keys, "species")
	} else {
		keys = append(keys, "reactants", "products")
	}
	if err := checkKeys(p.t, p.id, keys...); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, p.errorf(RequiredKeyNotFound, "name", "")
	}
	u := chemsolve.UserDefinedParameters{Label: prefix + name, Scaling: 1}
	if _, err := p.float("scaling_factor", &u.Scaling); err != nil {
		return nil, err
	}
	k := chemsolve.NewUserDefined(u)
	if !single {
		return p.process(k)
	}
	v, ok := p.t["species"]
	if !ok {
		return nil, p.errorf(RequiredKeyNotFound, "species", "")
	}
	sp, err := cast.ToStringE(v)
	if err != nil {
		return nil, p.errorf(InvalidType, "species", "%v", err)
	}
	if _, ok := p.system.Index(sp); !ok {
		return nil, p.errorf(UnknownSpecies, "species", "%s", sp)
	}
	proc := chemsolve.Process{Name: p.id, RateConstant: k}
	if prefix == "EMIS." {
		proc.Products = []chemsolve.Yield{{Species: sp, Coefficient: 1}}
	} else {
		proc.Reactants = []chemsolve.Reactant{{Species: sp, Count: 1}}
	}
	return []chemsolve.Process{proc}, nil
}
