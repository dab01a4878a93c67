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

// RateConstantKind identifies a rate-constant law.
type RateConstantKind int

// Supported rate-constant laws.
const (
	Arrhenius RateConstantKind = iota
	Troe
	TernaryChemicalActivation
	Tunneling
	Branched
	UserDefined
)

func (k RateConstantKind) String() string {
	switch k {
	case Arrhenius:
		return "ARRHENIUS"
	case Troe:
		return "TROE"
	case TernaryChemicalActivation:
		return "TERNARY_CHEMICAL_ACTIVATION"
	case Tunneling:
		return "TUNNELING"
	case Branched:
		return "BRANCHED"
	case UserDefined:
		return "USER_DEFINED"
	default:
		return fmt.Sprintf("RateConstantKind(%d)", int(k))
	}
}

// ArrheniusParameters parameterize
//
//	k = A·exp(C/T)·(T/D)^B·(1 + E·P)
type ArrheniusParameters struct {
	A, B, C, D, E float64
}

// DefaultArrheniusParameters returns A = 1 and D = 300 K, with every other
// parameter zero.
func DefaultArrheniusParameters() ArrheniusParameters {
	return ArrheniusParameters{A: 1, D: 300}
}

// TroeParameters parameterize the Troe fall-off law and the ternary
// chemical activation law. The low- and high-pressure limits are
//
//	k0   = K0A·exp(K0C/T)·(T/300)^K0B
//	kinf = KinfA·exp(KinfC/T)·(T/300)^KinfB
type TroeParameters struct {
	K0A, K0B, K0C       float64
	KinfA, KinfB, KinfC float64
	Fc, N               float64
}

// DefaultTroeParameters returns unit pre-exponential factors, Fc = 0.6,
// and N = 1.
func DefaultTroeParameters() TroeParameters {
	return TroeParameters{K0A: 1, KinfA: 1, Fc: 0.6, N: 1}
}

// TunnelingParameters parameterize
//
//	k = A·exp(-B/T + C/T³)
type TunnelingParameters struct {
	A, B, C float64
}

// Branch selects a product channel of a branched reaction.
type Branch int

// Branches of an RO2 + NO reaction.
const (
	Alkoxy Branch = iota
	Nitrate
)

// BranchedParameters parameterize the RO2 + NO branching law of
// Wennberg et al. (2018). X and Y give the Arrhenius part X·exp(-Y/T),
// A0 the nitrate yield at 293 K and one atmosphere, and N the number of
// heavy atoms in the RO2 radical.
type BranchedParameters struct {
	Branch Branch
	X, Y   float64
	A0     float64
	N      int
}

// UserDefinedParameters parameterize a rate constant supplied by the caller
// for each grid cell, such as a photolysis rate:
//
//	k = Scaling·p
//
// where p is the custom rate parameter named Label.
type UserDefinedParameters struct {
	Label   string
	Scaling float64
}

// RateConstant is a rate-constant law: one of a closed set of kinds, each
// with its own immutable parameters. The zero value is not usable; build
// one with a constructor.
type RateConstant struct {
	kind RateConstantKind

	arrhenius ArrheniusParameters
	troe      TroeParameters
	tunneling TunnelingParameters
	branched  branched
	user      UserDefinedParameters
}

type branched struct {
	BranchedParameters
	k0, z float64
}

// NewArrhenius returns an Arrhenius rate constant. A zero D is taken as
// 300 K.
func NewArrhenius(p ArrheniusParameters) RateConstant {
	if p.D == 0 {
		p.D = 300
	}
	return RateConstant{kind: Arrhenius, arrhenius: p}
}

// NewTroe returns a Troe fall-off rate constant. Zero Fc and N are taken
// as 0.6 and 1.
func NewTroe(p TroeParameters) RateConstant {
	return RateConstant{kind: Troe, troe: troeDefaults(p)}
}

// NewTernaryChemicalActivation returns a ternary chemical activation rate
// constant. Zero Fc and N are taken as 0.6 and 1.
func NewTernaryChemicalActivation(p TroeParameters) RateConstant {
	return RateConstant{kind: TernaryChemicalActivation, troe: troeDefaults(p)}
}

func troeDefaults(p TroeParameters) TroeParameters {
	if p.Fc == 0 {
		p.Fc = 0.6
	}
	if p.N == 0 {
		p.N = 1
	}
	return p
}

// NewTunneling returns a tunneling rate constant.
func NewTunneling(p TunnelingParameters) RateConstant {
	return RateConstant{kind: Tunneling, tunneling: p}
}

// NewBranched returns a branched rate constant. A0 must be in (0, 1].
func NewBranched(p BranchedParameters) (RateConstant, error) {
	if p.A0 <= 0 || p.A0 > 1 {
		return RateConstant{}, fmt.Errorf("chemsolve: branched rate constant: a0 = %g is not in (0, 1]", p.A0)
	}
	if p.Branch != Alkoxy && p.Branch != Nitrate {
		return RateConstant{}, fmt.Errorf("chemsolve: branched rate constant: invalid branch %d", p.Branch)
	}
	b := branched{BranchedParameters: p}
	// The reference constant is in molecule cm⁻³ s⁻¹ units.
	b.k0 = 2.0e-22 * Avogadro * 1.0e-6 * math.Exp(float64(p.N))
	const airRef = 2.45e19 / 1.0e-6 / Avogadro
	b.z = b.nitrateFactor(293, airRef) * (1 - p.A0) / p.A0
	return RateConstant{kind: Branched, branched: b}, nil
}

func (b branched) nitrateFactor(t, m float64) float64 {
	a := b.k0 * m
	c := 0.43 * math.Pow(t/298, -8)
	return a / (1 + a/c) * math.Pow(0.41, 1/(1+math.Pow(math.Log10(a/c), 2)))
}

// NewUserDefined returns a rate constant that takes its value from the
// custom rate parameter named p.Label. A zero Scaling is taken as 1.
func NewUserDefined(p UserDefinedParameters) RateConstant {
	if p.Scaling == 0 {
		p.Scaling = 1
	}
	return RateConstant{kind: UserDefined, user: p}
}

// Kind returns the law of r.
func (r RateConstant) Kind() RateConstantKind { return r.kind }

// CustomParameterLabels returns the labels of the custom rate parameters
// r consumes, in order.
func (r RateConstant) CustomParameterLabels() []string {
	if r.kind == UserDefined {
		return []string{r.user.Label}
	}
	return nil
}

// CustomParameterCount returns the number of custom rate parameters r
// consumes.
func (r RateConstant) CustomParameterCount() int {
	return len(r.CustomParameterLabels())
}

// Parameters returns the parameters of r: one of ArrheniusParameters,
// TroeParameters, TunnelingParameters, BranchedParameters, or
// UserDefinedParameters.
func (r RateConstant) Parameters() interface{} {
	switch r.kind {
	case Arrhenius:
		return r.arrhenius
	case Troe, TernaryChemicalActivation:
		return r.troe
	case Tunneling:
		return r.tunneling
	case Branched:
		return r.branched.BranchedParameters
	case UserDefined:
		return r.user
	}
	return nil
}

// Calculate returns the rate constant under conditions c. custom holds the
// custom rate parameters consumed by r, as given by CustomParameterCount.
// Units are those of mol, m³, and s.
func (r RateConstant) Calculate(c Conditions, custom []float64) float64 {
	t := c.Temperature
	switch r.kind {
	case Arrhenius:
		p := r.arrhenius
		k := p.A * math.Exp(p.C/t)
		if p.B != 0 {
			k *= math.Pow(t/p.D, p.B)
		}
		return k * (1 + p.E*c.Pressure)
	case Troe:
		k0, kinf := r.troeLimits(t)
		m := c.AirDensity
		return k0 * m / (1 + k0*m/kinf) * r.troeBroadening(k0*m/kinf)
	case TernaryChemicalActivation:
		k0, kinf := r.troeLimits(t)
		m := c.AirDensity
		return k0 / (1 + k0*m/kinf) * r.troeBroadening(k0*m/kinf)
	case Tunneling:
		p := r.tunneling
		return p.A * math.Exp(-p.B/t+p.C/(t*t*t))
	case Branched:
		b := r.branched
		pre := b.X * math.Exp(-b.Y/t)
		a := b.nitrateFactor(t, c.AirDensity)
		if b.Branch == Alkoxy {
			return pre * b.z / (b.z + a)
		}
		return pre * a / (a + b.z)
	case UserDefined:
		return r.user.Scaling * custom[0]
	}
	panic(fmt.Sprintf("chemsolve: invalid rate constant kind %v", r.kind))
}

func (r RateConstant) troeLimits(t float64) (k0, kinf float64) {
	p := r.troe
	k0 = p.K0A * math.Exp(p.K0C/t) * math.Pow(t/300, p.K0B)
	kinf = p.KinfA * math.Exp(p.KinfC/t) * math.Pow(t/300, p.KinfB)
	return k0, kinf
}

func (r RateConstant) troeBroadening(ratio float64) float64 {
	p := r.troe
	l := math.Log10(ratio)
	return math.Pow(p.Fc, 1/(1+l*l/p.N))
}

func (r RateConstant) String() string {
	return fmt.Sprintf("%v%+v", r.kind, r.Parameters())
}
