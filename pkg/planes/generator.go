package planes

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// maxDirectionRetries bounds resampling of grazing emission directions
const maxDirectionRetries = 1 << 16

// chordEpsilon treats direction components below it as axis-parallel
const chordEpsilon = 1e-12

// New builds a plane of the given variant from an emitter, a flight direction d,
// a light sample, an angle sample and a sampled flight distance.
func New(variant Variant, light *lights.RectangularLight, d core.Vec3, sample core.Vec2,
	sampleAlpha, tSampled float64, emitterID int, medium *volume.HomogeneousMedium) PhotonPlane {
	plane := PhotonPlane{
		D1:          d,
		Length1:     tSampled,
		Sample:      sample,
		Variant:     variant,
		EmitterID:   emitterID,
		SampleAlpha: sampleAlpha,
	}

	switch variant {
	case VariantUV:
		plane.Origin = light.Origin.Add(d.Multiply(tSampled))
		plane.D0, plane.Length0 = light.U, light.ULen
		plane.D1, plane.Length1 = light.V, light.VLen
		// The extinction cancels the free-flight pdf of the sampled distance
		plane.Weight = light.Emission.Multiply(math.Pi / medium.Density())
	case VariantVT:
		plane.Origin = light.PointAt(core.NewVec2(sample.X, 0))
		plane.D0, plane.Length0 = light.V, light.VLen
		plane.Weight = light.Emission.Multiply(math.Pi * light.ULen)
	case VariantUT:
		plane.Origin = light.PointAt(core.NewVec2(0, sample.Y))
		plane.D0, plane.Length0 = light.U, light.ULen
		plane.Weight = light.Emission.Multiply(math.Pi * light.VLen)
	case VariantUAlphaT:
		p1, p2 := Chord(light, sample, sampleAlpha)
		segment := p2.Sub(p1)
		length := segment.Length()
		plane.Origin = light.FromLocal(p1)
		plane.Length0 = length
		if length > 0 {
			plane.D0 = light.FromLocal(p2).Subtract(plane.Origin).Multiply(1 / length)
			plane.Weight = light.Emission.Multiply(math.Pi * light.Area() / length)
		}
	default:
		panic(fmt.Sprintf("planes: unknown variant %d", variant))
	}

	return plane
}

// Chord returns the forward and backward endpoints, in the emitter's local frame,
// of the line through the light point at angle pi*alpha clipped to the rectangle.
func Chord(light *lights.RectangularLight, sample core.Vec2, alpha float64) (vec.Vec2, vec.Vec2) {
	bounds := light.Bounds2D()
	origin := light.LocalPoint(sample)
	angle := math.Pi * alpha
	dir := vec.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
	return clipChord(bounds, origin, dir), clipChord(bounds, origin, dir.Mul(-1))
}

// ChordLength returns the length of the chord through a light point at angle pi*alpha
func ChordLength(light *lights.RectangularLight, sample core.Vec2, alpha float64) float64 {
	p1, p2 := Chord(light, sample, alpha)
	return p2.Sub(p1).Length()
}

// clipChord walks from origin along dir to the boundary of bounds
func clipChord(bounds rect.Rect, origin, dir vec.Vec2) vec.Vec2 {
	exit := func(lo, hi, o, d float64) float64 {
		if math.Abs(d) < chordEpsilon {
			return math.Inf(1)
		}
		return math.Max((lo-o)/d, (hi-o)/d)
	}
	tx := exit(bounds.LLx, bounds.URx, origin.X, dir.X)
	ty := exit(bounds.LLy, bounds.URy, origin.Y, dir.Y)
	return origin.Add(dir.Mul(math.Min(tx, ty)))
}

// Generator draws photon planes from a set of emitters in a medium
type Generator struct {
	Lights []*lights.RectangularLight
	Medium *volume.HomogeneousMedium
}

// NewGenerator creates a plane generator
func NewGenerator(emitters []*lights.RectangularLight, medium *volume.HomogeneousMedium) *Generator {
	return &Generator{Lights: emitters, Medium: medium}
}

// SampleDirection draws a cosine-weighted emission direction around the emitter normal.
// Directions grazing the emitter are redrawn; it panics if none is found.
func (g *Generator) SampleDirection(light *lights.RectangularLight, sampler core.Sampler) core.Vec3 {
	for i := 0; i < maxDirectionRetries; i++ {
		local := core.SampleCosineHemisphereLocal(sampler.Get2D())
		if local.Z != 0 {
			return core.NewFrame(light.Normal).ToWorld(local)
		}
	}
	panic(fmt.Sprintf("planes: no non-grazing direction after %d draws", maxDirectionRetries))
}

// Generate draws one plane of the given variant from emitter emitterID
func (g *Generator) Generate(variant Variant, emitterID int, sampler core.Sampler) PhotonPlane {
	light := g.Lights[emitterID]
	d := g.SampleDirection(light, sampler)
	tSampled := g.Medium.SampleDistance(sampler.Get1D())
	sample := sampler.Get2D()
	sampleAlpha := sampler.Get1D()
	return New(variant, light, d, sample, sampleAlpha, tSampled, emitterID, g.Medium)
}

// PickEmitter maps a uniform number to an emitter index
func (g *Generator) PickEmitter(u float64) int {
	return min(int(u*float64(len(g.Lights))), len(g.Lights)-1)
}
