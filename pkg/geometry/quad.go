package geometry

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
)

// Quad represents a parallelogram defined by a corner and two edge vectors
type Quad struct {
	Corner core.Vec3 // One corner of the quad
	U      core.Vec3 // First edge vector
	V      core.Vec3 // Second edge vector
	Normal core.Vec3 // Normal vector (computed from U × V)
	D      float64   // Plane equation constant: ax + by + cz = d
	W      core.Vec3 // Cached cross product for barycentric coordinates
}

// NewQuad creates a new quad from a corner point and two edge vectors
func NewQuad(corner, u, v core.Vec3) *Quad {
	cross := u.Cross(v)
	normal := cross.Normalize()

	return &Quad{
		Corner: corner,
		U:      u,
		V:      v,
		Normal: normal,
		D:      normal.Dot(corner),
		// w = n / (n · (u × v))
		W: normal.Multiply(1.0 / normal.Dot(cross)),
	}
}

// NewQuadFromVertices creates a quad from four vertices v0..v3 in order
func NewQuadFromVertices(v0, v1, v2, v3 core.Vec3) *Quad {
	return NewQuad(v0, v1.Subtract(v0), v3.Subtract(v0))
}

// Hit tests if a ray intersects with the quad
func (q *Quad) Hit(ray core.Ray, tMin, tMax float64) (HitRecord, bool) {
	denominator := ray.Direction.Dot(q.Normal)

	// Ray parallel to the quad
	if math.Abs(denominator) < 1e-8 {
		return HitRecord{}, false
	}

	t := (q.D - ray.Origin.Dot(q.Normal)) / denominator
	if t < tMin || t > tMax {
		return HitRecord{}, false
	}

	hitPoint := ray.At(t)
	hitVector := hitPoint.Subtract(q.Corner)

	alpha := q.W.Dot(hitVector.Cross(q.V))
	beta := q.W.Dot(q.U.Cross(hitVector))
	if alpha < 0 || alpha > 1 || beta < 0 || beta > 1 {
		return HitRecord{}, false
	}

	hit := HitRecord{T: t, Point: hitPoint}
	hit.SetFaceNormal(ray, q.Normal)
	return hit, true
}

// BoundingBox returns the axis-aligned bounding box of the four corners
func (q *Quad) BoundingBox() core.AABB {
	return core.NewAABBFromPoints(
		q.Corner,
		q.Corner.Add(q.U),
		q.Corner.Add(q.V),
		q.Corner.Add(q.U).Add(q.V),
	)
}
