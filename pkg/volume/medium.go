package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
)

// ErrInvalidMedium is returned for media that cannot be sampled
var ErrInvalidMedium = errors.New("invalid medium")

// HomogeneousMedium is a participating medium with constant coefficients.
// Coefficients are per RGB channel. Free-flight distances are sampled with the
// channel-averaged extinction, the same scalar used by the plane weights.
type HomogeneousMedium struct {
	sigmaA  core.Vec3
	sigmaS  core.Vec3
	sigmaT  core.Vec3
	density float64 // channel-averaged extinction
}

// NewHomogeneousMedium creates a medium from absorption and scattering coefficients
func NewHomogeneousMedium(sigmaA, sigmaS core.Vec3) (*HomogeneousMedium, error) {
	for _, c := range []float64{sigmaA.X, sigmaA.Y, sigmaA.Z, sigmaS.X, sigmaS.Y, sigmaS.Z} {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("coefficients sigma_a=%v sigma_s=%v: %w", sigmaA, sigmaS, ErrInvalidMedium)
		}
	}

	sigmaT := sigmaA.Add(sigmaS)
	density := sigmaT.Average()
	if density <= 0 {
		return nil, fmt.Errorf("zero extinction: %w", ErrInvalidMedium)
	}

	return &HomogeneousMedium{
		sigmaA:  sigmaA,
		sigmaS:  sigmaS,
		sigmaT:  sigmaT,
		density: density,
	}, nil
}

// NewGreyMedium creates a medium whose coefficients are equal on every channel
func NewGreyMedium(sigmaA, sigmaS float64) (*HomogeneousMedium, error) {
	return NewHomogeneousMedium(core.NewVec3(sigmaA, sigmaA, sigmaA), core.NewVec3(sigmaS, sigmaS, sigmaS))
}

// SigmaA returns the absorption coefficient
func (m *HomogeneousMedium) SigmaA() core.Vec3 { return m.sigmaA }

// SigmaS returns the scattering coefficient
func (m *HomogeneousMedium) SigmaS() core.Vec3 { return m.sigmaS }

// SigmaT returns the extinction coefficient
func (m *HomogeneousMedium) SigmaT() core.Vec3 { return m.sigmaT }

// Density returns the scalar extinction driving free-flight sampling
func (m *HomogeneousMedium) Density() float64 { return m.density }

// SampleDistance draws a free-flight distance with pdf density*exp(-density*t)
func (m *HomogeneousMedium) SampleDistance(u float64) float64 {
	return -math.Log(1.0-u) / m.density
}

// Transmittance returns the per-channel attenuation over a distance
func (m *HomogeneousMedium) Transmittance(distance float64) core.Vec3 {
	return m.sigmaT.Multiply(-distance).Exp()
}

// ScalarTransmittance returns exp(-density*distance)
func (m *HomogeneousMedium) ScalarTransmittance(distance float64) float64 {
	return math.Exp(-m.density * distance)
}

// Scaled returns a copy with both coefficients multiplied by a factor
func (m *HomogeneousMedium) Scaled(factor float64) (*HomogeneousMedium, error) {
	return NewHomogeneousMedium(m.sigmaA.Multiply(factor), m.sigmaS.Multiply(factor))
}
