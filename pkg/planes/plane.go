package planes

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
)

// parallelEpsilon is the determinant below which a ray is treated as parallel to a plane
const parallelEpsilon = 1e-5

// Variant identifies how a photon plane was generated
type Variant int

const (
	VariantUV      Variant = iota // the emitter itself, translated along the flight direction
	VariantVT                     // emitter V edge swept along the flight direction
	VariantUT                     // emitter U edge swept along the flight direction
	VariantUAlphaT                // emitter chord at angle alpha swept along the flight direction
)

// String implements fmt.Stringer
func (v Variant) String() string {
	switch v {
	case VariantUV:
		return "uv"
	case VariantVT:
		return "vt"
	case VariantUT:
		return "ut"
	case VariantUAlphaT:
		return "ualpha"
	default:
		return "unknown"
	}
}

// PhotonPlane is a sampled quadrilateral spanned by D0*Length0 and D1*Length1 from Origin.
// Weight already carries the inverse pdf of its generation technique, so the
// contribution seen along a direction is Weight / Jacobian(direction).
// Planes are immutable once generated.
type PhotonPlane struct {
	Origin      core.Vec3
	D0          core.Vec3
	D1          core.Vec3
	Length0     float64
	Length1     float64
	Sample      core.Vec2 // light sample used to build the plane
	Variant     Variant
	Weight      core.Vec3
	EmitterID   int
	SampleAlpha float64
}

// Intersection is a ray/plane hit. T0 and T1 are in edge-length units.
type Intersection struct {
	TCam   float64
	T0     float64
	T1     float64
	InvDet float64
}

// BoundingBox returns the AABB of the four corners
func (p *PhotonPlane) BoundingBox() core.AABB {
	e0 := p.D0.Multiply(p.Length0)
	e1 := p.D1.Multiply(p.Length1)
	return core.NewAABBFromPoints(p.Origin, p.Origin.Add(e0), p.Origin.Add(e1), p.Origin.Add(e0).Add(e1))
}

// Centroid returns the quad midpoint, used to order planes in the BVH
func (p *PhotonPlane) Centroid() core.Vec3 {
	return p.Origin.
		Add(p.D0.Multiply(p.Length0 * 0.5)).
		Add(p.D1.Multiply(p.Length1 * 0.5))
}

// Intersect tests a ray against the quad, accepting hits with tMin < tCam < tMax
func (p *PhotonPlane) Intersect(ray core.Ray, tMin, tMax float64) (Intersection, bool) {
	e0 := p.D0.Multiply(p.Length0)
	e1 := p.D1.Multiply(p.Length1)

	pv := ray.Direction.Cross(e1)
	det := e0.Dot(pv)
	if math.Abs(det) < parallelEpsilon {
		return Intersection{}, false
	}

	invDet := 1.0 / det
	offset := ray.Origin.Subtract(p.Origin)
	t0 := offset.Dot(pv) * invDet
	if t0 < 0 || t0 > 1 {
		return Intersection{}, false
	}

	q := offset.Cross(e0)
	t1 := ray.Direction.Dot(q) * invDet
	if t1 < 0 || t1 > 1 {
		return Intersection{}, false
	}

	tCam := e1.Dot(q) * invDet
	if tCam <= tMin || tCam >= tMax {
		return Intersection{}, false
	}

	return Intersection{
		TCam:   tCam,
		T0:     t0 * p.Length0,
		T1:     t1 * p.Length1,
		InvDet: invDet,
	}, true
}

// LightPosition maps a hit back to the emitter point the plane was built from
func (p *PhotonPlane) LightPosition(light *lights.RectangularLight, its Intersection) core.Vec3 {
	if p.Variant == VariantUV {
		return light.Origin.Add(light.U.Multiply(its.T0)).Add(light.V.Multiply(its.T1))
	}
	return p.Origin.Add(p.D0.Multiply(its.T0))
}

// Jacobian returns |(D1 × D0) · dir|
func (p *PhotonPlane) Jacobian(dir core.Vec3) float64 {
	return math.Abs(p.D1.Cross(p.D0).Dot(dir))
}

// Contribution returns Weight / Jacobian(dir)
func (p *PhotonPlane) Contribution(dir core.Vec3) core.Vec3 {
	return p.Weight.Multiply(1.0 / p.Jacobian(dir))
}
