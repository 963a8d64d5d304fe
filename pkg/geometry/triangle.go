package geometry

import (
	"github.com/df07/go-photon-planes/pkg/core"
)

// Triangle represents a single triangle defined by three vertices
type Triangle struct {
	V0, V1, V2 core.Vec3 // The three vertices
	normal     core.Vec3 // Cached normal vector
	bbox       core.AABB // Cached bounding box
}

// NewTriangle creates a new triangle from three vertices
func NewTriangle(v0, v1, v2 core.Vec3) *Triangle {
	return &Triangle{
		V0:     v0,
		V1:     v1,
		V2:     v2,
		normal: v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize(),
		bbox:   core.NewAABBFromPoints(v0, v1, v2),
	}
}

// Hit tests if a ray intersects with the triangle using the Möller-Trumbore algorithm
func (t *Triangle) Hit(ray core.Ray, tMin, tMax float64) (HitRecord, bool) {
	const epsilon = 1e-8

	edge1 := t.V1.Subtract(t.V0)
	edge2 := t.V2.Subtract(t.V0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)

	// Ray lies in the plane of the triangle
	if a > -epsilon && a < epsilon {
		return HitRecord{}, false
	}

	f := 1.0 / a
	s := ray.Origin.Subtract(t.V0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return HitRecord{}, false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return HitRecord{}, false
	}

	tParam := f * edge2.Dot(q)
	if tParam < tMin || tParam > tMax {
		return HitRecord{}, false
	}

	hit := HitRecord{T: tParam, Point: ray.At(tParam)}
	hit.SetFaceNormal(ray, t.normal)
	return hit, true
}

// BoundingBox returns the axis-aligned bounding box for this triangle
func (t *Triangle) BoundingBox() core.AABB {
	return t.bbox
}

// NewTriangleMesh splits an indexed mesh into triangles
func NewTriangleMesh(vertices []core.Vec3, indices []int) []Shape {
	shapes := make([]Shape, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		shapes = append(shapes, NewTriangle(vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]))
	}
	return shapes
}
