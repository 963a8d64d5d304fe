package core

import (
	"math"
	"math/rand"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSeededSampler creates an independent sampler from a seed
func NewSeededSampler(seed int64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewSource(seed)))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// SampleCosineHemisphereLocal returns a cosine-weighted direction around +Z
func SampleCosineHemisphereLocal(sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	r := math.Sqrt(sample.Y)
	return NewVec3(r*math.Cos(a), r*math.Sin(a), math.Sqrt(1.0-sample.Y))
}

// SampleCosineHemisphere generates a cosine-weighted random direction in hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	return NewFrame(normal).ToWorld(SampleCosineHemisphereLocal(sample))
}

// Frame is an orthonormal basis whose Z axis is a given normal
type Frame struct {
	Tangent   Vec3
	Bitangent Vec3
	Normal    Vec3
}

// NewFrame builds an orthonormal basis around a unit normal
func NewFrame(normal Vec3) Frame {
	// Find a vector perpendicular to normal
	var nt Vec3
	if math.Abs(normal.X) > 0.1 {
		nt = NewVec3(0, 1, 0)
	} else {
		nt = NewVec3(1, 0, 0)
	}

	tangent := nt.Cross(normal).Normalize()
	bitangent := normal.Cross(tangent)
	return Frame{Tangent: tangent, Bitangent: bitangent, Normal: normal}
}

// ToWorld transforms a local direction into world space
func (f Frame) ToWorld(local Vec3) Vec3 {
	return f.Tangent.Multiply(local.X).
		Add(f.Bitangent.Multiply(local.Y)).
		Add(f.Normal.Multiply(local.Z))
}

// ToLocal transforms a world direction into the frame
func (f Frame) ToLocal(world Vec3) Vec3 {
	return NewVec3(world.Dot(f.Tangent), world.Dot(f.Bitangent), world.Dot(f.Normal))
}
