package geometry

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
)

// shadowEpsilon shortens visibility rays at both ends
const shadowEpsilon = 1e-4

// Accel answers nearest-hit and visibility queries over scene shapes
type Accel struct {
	bvh *core.BVH[Shape]
}

// NewAccel builds a BVH over the shapes
func NewAccel(shapes []Shape) *Accel {
	return &Accel{bvh: core.NewBVH(shapes)}
}

// Hit returns the closest intersection in [tMin, tMax]
func (a *Accel) Hit(ray core.Ray, tMin, tMax float64) (HitRecord, bool) {
	var closest HitRecord
	found := false
	a.bvh.Traverse(ray, tMin, tMax, func(shape Shape, bound float64) float64 {
		if hit, ok := shape.Hit(ray, tMin, bound); ok {
			closest = hit
			found = true
			return hit.T
		}
		return bound
	})
	return closest, found
}

// Trace returns the distance to the nearest surface, or +Inf when the ray escapes
func (a *Accel) Trace(ray core.Ray, tMin float64) float64 {
	if hit, ok := a.Hit(ray, tMin, math.Inf(1)); ok {
		return hit.T
	}
	return math.Inf(1)
}

// Visible reports whether the open segment between p1 and p2 is unobstructed
func (a *Accel) Visible(p1, p2 core.Vec3) bool {
	offset := p2.Subtract(p1)
	distance := offset.Length()
	if distance <= 2*shadowEpsilon {
		return true
	}

	ray := core.NewRay(p1, offset.Multiply(1/distance))
	occluded := false
	a.bvh.Traverse(ray, shadowEpsilon, distance-shadowEpsilon, func(shape Shape, bound float64) float64 {
		if occluded {
			return bound
		}
		if _, ok := shape.Hit(ray, shadowEpsilon, bound); ok {
			occluded = true
			// Collapse the interval so traversal stops descending
			return shadowEpsilon
		}
		return bound
	})
	return !occluded
}
