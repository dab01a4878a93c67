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

// Package mechconfig reads chemical mechanisms from TOML files.
//
// A mechanism file lists species and reactions:
//
//	name = "Chapman"
//	track_air_density = true
//
//	[[species]]
//	name = "M"
//	constant = true
//
//	[[species]]
//	name = "O3"
//	molecular_weight = 0.048 # kg mol-1
//	absolute_tolerance = 1e-12
//
//	[[reactions]]
//	type = "ARRHENIUS"
//	name = "R2"
//	A = 6.0e-34
//	B = -2.4
//	reactants = { O = {}, O2 = {}, M = {} }
//	products = { O3 = {}, M = {} }
//
// Reactants may set a stoichiometric count with qty and products a yield
// with yield. Keys beginning with "__" are comments and are ignored.
// Reactants and products are read in name order.
package mechconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/chemsolve"
	"github.com/spf13/cast"
)

// Status is the category of a parse failure.
type Status int

// Parse outcomes.
const (
	Success Status = iota
	InvalidFilePath
	RequiredKeyNotFound
	UnknownKey
	InvalidType
	UnknownSpecies
	DuplicateSpecies
	InvalidParameter
	MutuallyExclusiveOption
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case InvalidFilePath:
		return "InvalidFilePath"
	case RequiredKeyNotFound:
		return "RequiredKeyNotFound"
	case UnknownKey:
		return "UnknownKey"
	case InvalidType:
		return "InvalidType"
	case UnknownSpecies:
		return "UnknownSpecies"
	case DuplicateSpecies:
		return "DuplicateSpecies"
	case InvalidParameter:
		return "InvalidParameter"
	case MutuallyExclusiveOption:
		return "MutuallyExclusiveOption"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseError describes why a mechanism could not be read.
type ParseError struct {
	Status Status

	// Reaction is the name or position of the reaction being read, if any.
	Reaction string

	// Key is the offending key, if any.
	Key string

	Err error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("mechconfig: ")
	b.WriteString(e.Status.String())
	if e.Reaction != "" {
		fmt.Fprintf(&b, ": reaction %s", e.Reaction)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// StatusOf returns the status of err: Success if err is nil, the status
// of a *ParseError in its chain, or -1 otherwise.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return -1
}

// BoltzmannConstant [J/K] converts an activation energy Ea [J] into the
// Arrhenius parameter C = -Ea/k_B.
const BoltzmannConstant = 1.380649e-23

// Mechanism is a chemical mechanism read from a file. It fulfils the
// chemsolve.Mechanism interface.
type Mechanism struct {
	Name string

	system     *chemsolve.System
	processes  []chemsolve.Process
	tolerances map[string]float64
}

// System returns the species of the mechanism.
func (m *Mechanism) System() (*chemsolve.System, error) { return m.system, nil }

// Processes returns the reactions of the mechanism.
func (m *Mechanism) Processes() ([]chemsolve.Process, error) {
	return append([]chemsolve.Process(nil), m.processes...), nil
}

// Species returns the names of the species in the mechanism.
func (m *Mechanism) Species() []string { return m.system.Names() }

// Units returns the units of the given variable.
func (m *Mechanism) Units(variable string) (string, error) { return m.system.Units(variable) }

// Len returns the number of species in the mechanism.
func (m *Mechanism) Len() int { return m.system.Len() }

// AbsoluteTolerances returns the absolute tolerances set for individual
// species.
func (m *Mechanism) AbsoluteTolerances() map[string]float64 {
	o := make(map[string]float64, len(m.tolerances))
	for k, v := range m.tolerances {
		o[k] = v
	}
	return o
}

// ReadAndParse reads the mechanism in the file at path.
func ReadAndParse(path string) (*Mechanism, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Status: InvalidFilePath, Err: err}
	}
	if fi.IsDir() {
		return nil, &ParseError{Status: InvalidFilePath, Err: fmt.Errorf("%s is a directory", path)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Status: InvalidFilePath, Err: err}
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a mechanism from r.
func Parse(r io.Reader) (*Mechanism, error) {
	var doc map[string]interface{}
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Status: InvalidType, Err: err}
	}
	if err := checkKeys(doc, "", "name", "track_air_density", "species", "reactions"); err != nil {
		return nil, err
	}
	m := &Mechanism{tolerances: make(map[string]float64)}
	var err error
	if v, ok := doc["name"]; ok {
		if m.Name, err = cast.ToStringE(v); err != nil {
			return nil, &ParseError{Status: InvalidType, Key: "name", Err: err}
		}
	}
	var opts []chemsolve.SystemOption
	if v, ok := doc["track_air_density"]; ok {
		track, err := cast.ToBoolE(v)
		if err != nil {
			return nil, &ParseError{Status: InvalidType, Key: "track_air_density", Err: err}
		}
		if track {
			opts = append(opts, chemsolve.TrackAirDensity())
		}
	}

	rawSpecies, err := tables(doc, "", "species", true)
	if err != nil {
		return nil, err
	}
	species := make([]chemsolve.Species, 0, len(rawSpecies))
	seen := make(map[string]bool)
	for _, t := range rawSpecies {
		s, tol, err := parseSpecies(t)
		if err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, &ParseError{Status: DuplicateSpecies, Key: s.Name}
		}
		seen[s.Name] = true
		species = append(species, s)
		if tol != 0 {
			m.tolerances[s.Name] = tol
		}
	}
	if m.system, err = chemsolve.NewSystem(species, opts...); err != nil {
		return nil, &ParseError{Status: InvalidParameter, Err: err}
	}

	rawReactions, err := tables(doc, "", "reactions", true)
	if err != nil {
		return nil, err
	}
	for i, t := range rawReactions {
		p := &reactionParser{t: t, id: fmt.Sprintf("#%d", i), system: m.system}
		procs, err := p.parse()
		if err != nil {
			return nil, err
		}
		m.processes = append(m.processes, procs...)
	}
	return m, nil
}

// checkKeys returns an UnknownKey error for any key of t that is not in
// allowed and is not a comment.
func checkKeys(t map[string]interface{}, reaction string, allowed ...string) error {
	for k := range t {
		if strings.HasPrefix(k, "__") {
			continue
		}
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return &ParseError{Status: UnknownKey, Reaction: reaction, Key: k}
		}
	}
	return nil
}

// tables returns the array of tables t[key].
func tables(t map[string]interface{}, reaction, key string, required bool) ([]map[string]interface{}, error) {
	v, ok := t[key]
	if !ok {
		if required {
			return nil, &ParseError{Status: RequiredKeyNotFound, Reaction: reaction, Key: key}
		}
		return nil, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, &ParseError{Status: InvalidType, Reaction: reaction, Key: key, Err: err}
	}
	o := make([]map[string]interface{}, len(items))
	for i, item := range items {
		if o[i], err = cast.ToStringMapE(item); err != nil {
			return nil, &ParseError{Status: InvalidType, Reaction: reaction, Key: key, Err: err}
		}
	}
	return o, nil
}

func parseSpecies(t map[string]interface{}) (chemsolve.Species, float64, error) {
	var s chemsolve.Species
	v, ok := t["name"]
	if !ok {
		return s, 0, &ParseError{Status: RequiredKeyNotFound, Key: "name"}
	}
	name, err := cast.ToStringE(v)
	if err != nil || name == "" {
		return s, 0, &ParseError{Status: InvalidType, Key: "name", Err: err}
	}
	s.Name = name
	if err := checkKeys(t, "", "name", "constant", "molecular_weight", "absolute_tolerance", "properties"); err != nil {
		return s, 0, err
	}
	if v, ok := t["constant"]; ok {
		if s.Constant, err = cast.ToBoolE(v); err != nil {
			return s, 0, &ParseError{Status: InvalidType, Key: "constant", Err: err}
		}
	}
	if v, ok := t["molecular_weight"]; ok {
		if s.MolarMass, err = cast.ToFloat64E(v); err != nil {
			return s, 0, &ParseError{Status: InvalidType, Key: "molecular_weight", Err: err}
		}
		if s.MolarMass <= 0 {
			return s, 0, &ParseError{Status: InvalidParameter, Key: "molecular_weight",
				Err: fmt.Errorf("species %s: %g", name, s.MolarMass)}
		}
	}
	var tol float64
	if v, ok := t["absolute_tolerance"]; ok {
		if tol, err = cast.ToFloat64E(v); err != nil {
			return s, 0, &ParseError{Status: InvalidType, Key: "absolute_tolerance", Err: err}
		}
		if tol <= 0 {
			return s, 0, &ParseError{Status: InvalidParameter, Key: "absolute_tolerance",
				Err: fmt.Errorf("species %s: %g", name, tol)}
		}
	}
	if v, ok := t["properties"]; ok {
		props, err := cast.ToStringMapE(v)
		if err != nil {
			return s, 0, &ParseError{Status: InvalidType, Key: "properties", Err: err}
		}
		s.Properties = make(map[string]float64, len(props))
		for k, pv := range props {
			if s.Properties[k], err = cast.ToFloat64E(pv); err != nil {
				return s, 0, &ParseError{Status: InvalidType, Key: k, Err: err}
			}
		}
	}
	return s, tol, nil
}
