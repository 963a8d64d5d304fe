package volume

import (
	"fmt"
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
)

// PhaseKind enumerates the supported phase functions
type PhaseKind int

const (
	PhaseIsotropic PhaseKind = iota
	PhaseHenyeyGreenstein
)

// PhaseFunction is a closed set of phase functions dispatched on Kind.
// The zero value is isotropic.
type PhaseFunction struct {
	Kind PhaseKind
	G    float64 // asymmetry, Henyey-Greenstein only
}

// Isotropic returns the uniform phase function
func Isotropic() PhaseFunction {
	return PhaseFunction{Kind: PhaseIsotropic}
}

// HenyeyGreenstein returns a Henyey-Greenstein phase function with asymmetry g in (-1, 1)
func HenyeyGreenstein(g float64) (PhaseFunction, error) {
	if !(g > -1 && g < 1) {
		return PhaseFunction{}, fmt.Errorf("henyey-greenstein asymmetry %v outside (-1, 1)", g)
	}
	return PhaseFunction{Kind: PhaseHenyeyGreenstein, G: g}, nil
}

// Eval returns the phase function value for outgoing direction wo and incoming
// direction wi, both pointing away from the scattering point.
func (p PhaseFunction) Eval(wo, wi core.Vec3) core.Vec3 {
	var v float64
	switch p.Kind {
	case PhaseHenyeyGreenstein:
		// wo and wi both point away, so forward scattering has wo = -wi
		cosTheta := wo.Dot(wi)
		denom := 1 + p.G*p.G + 2*p.G*cosTheta
		v = (1 - p.G*p.G) / (4 * math.Pi * denom * math.Sqrt(denom))
	default:
		v = 1.0 / (4 * math.Pi)
	}
	return core.NewVec3(v, v, v)
}

// String implements fmt.Stringer
func (p PhaseFunction) String() string {
	switch p.Kind {
	case PhaseHenyeyGreenstein:
		return fmt.Sprintf("hg(%g)", p.G)
	default:
		return "isotropic"
	}
}
