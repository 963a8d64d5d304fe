package planes

import (
	"github.com/df07/go-photon-planes/pkg/core"
)

// Accel indexes a batch of planes for ray gathering
type Accel struct {
	planes []PhotonPlane
	bvh    *core.BVH[*PhotonPlane]
}

// NewAccel builds a BVH over the planes. The slice is owned by the Accel afterwards.
func NewAccel(planes []PhotonPlane) *Accel {
	refs := make([]*PhotonPlane, len(planes))
	for i := range planes {
		refs[i] = &planes[i]
	}
	return &Accel{planes: planes, bvh: core.NewBVH(refs)}
}

// Len returns the number of indexed planes
func (a *Accel) Len() int {
	return len(a.planes)
}

// Gather calls fn for every plane the ray hits with tMin < tCam < tMax.
// Planes are visited in no particular order.
func (a *Accel) Gather(ray core.Ray, tMin, tMax float64, fn func(its Intersection, plane *PhotonPlane)) {
	a.bvh.Traverse(ray, tMin, tMax, func(plane *PhotonPlane, bound float64) float64 {
		if its, ok := plane.Intersect(ray, tMin, tMax); ok {
			fn(its, plane)
		}
		return bound
	})
}
