package lights

import (
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-photon-planes/pkg/core"
)

// ErrNonRectangularEmitter is returned when emitter geometry is not a rectangle
var ErrNonRectangularEmitter = errors.New("emitter is not a rectangle")

// rectangleTolerance bounds the relative error allowed in the rectangle checks
const rectangleTolerance = 1e-4

// RectangularLight is a planar rectangular emitter with a Lambertian profile.
// It is immutable after construction and shared read-only by all workers.
type RectangularLight struct {
	Origin   core.Vec3 // corner v0
	Normal   core.Vec3 // U × V, emitting side
	U        core.Vec3 // unit direction v0→v1
	V        core.Vec3 // unit direction v0→v3
	ULen     float64
	VLen     float64
	Emission core.Vec3 // radiance Le
}

// NewRectangularLight builds a light from four vertices v0..v3 in order around the
// rectangle. The emitting normal is (v1-v0) × (v3-v0).
func NewRectangularLight(vertices []core.Vec3, emission core.Vec3) (*RectangularLight, error) {
	if len(vertices) != 4 {
		return nil, fmt.Errorf("got %d vertices: %w", len(vertices), ErrNonRectangularEmitter)
	}

	edgeU := vertices[1].Subtract(vertices[0])
	edgeV := vertices[3].Subtract(vertices[0])
	uLen := edgeU.Length()
	vLen := edgeV.Length()
	if uLen == 0 || vLen == 0 {
		return nil, fmt.Errorf("degenerate edge lengths %v x %v: %w", uLen, vLen, ErrNonRectangularEmitter)
	}

	u := edgeU.Multiply(1 / uLen)
	v := edgeV.Multiply(1 / vLen)
	if math.Abs(u.Dot(v)) > rectangleTolerance {
		return nil, fmt.Errorf("edges are not orthogonal (cos=%v): %w", u.Dot(v), ErrNonRectangularEmitter)
	}

	// Fourth corner must close the parallelogram
	expected := vertices[1].Add(edgeV)
	if expected.Subtract(vertices[2]).Length() > rectangleTolerance*math.Max(uLen, vLen) {
		return nil, fmt.Errorf("vertex 2 %v does not close the rectangle (expected %v): %w",
			vertices[2], expected, ErrNonRectangularEmitter)
	}

	return &RectangularLight{
		Origin:   vertices[0],
		Normal:   u.Cross(v).Normalize(),
		U:        u,
		V:        v,
		ULen:     uLen,
		VLen:     vLen,
		Emission: emission,
	}, nil
}

// Area returns the surface area of the emitter
func (l *RectangularLight) Area() float64 {
	return l.ULen * l.VLen
}

// Bounds2D returns the emitter rectangle in its local (U, V) frame
func (l *RectangularLight) Bounds2D() rect.Rect {
	return rect.Rect{LLx: 0, LLy: 0, URx: l.ULen, URy: l.VLen}
}

// ToLocal projects a world point onto the emitter's (U, V) frame
func (l *RectangularLight) ToLocal(p core.Vec3) vec.Vec2 {
	d := p.Subtract(l.Origin)
	return vec.Vec2{X: d.Dot(l.U), Y: d.Dot(l.V)}
}

// FromLocal maps a point of the (U, V) frame back to world space
func (l *RectangularLight) FromLocal(p vec.Vec2) core.Vec3 {
	return l.Origin.Add(l.U.Multiply(p.X)).Add(l.V.Multiply(p.Y))
}

// LocalPoint maps a sample in [0,1]² to the emitter's (U, V) frame
func (l *RectangularLight) LocalPoint(sample core.Vec2) vec.Vec2 {
	return vec.Vec2{X: sample.X * l.ULen, Y: sample.Y * l.VLen}
}

// PointAt maps a sample in [0,1]² to a point on the emitter
func (l *RectangularLight) PointAt(sample core.Vec2) core.Vec3 {
	return l.FromLocal(l.LocalPoint(sample))
}

// SampleWrap recovers the [0,1]² sample that maps to a world point on the emitter,
// clamped to the unit square.
func (l *RectangularLight) SampleWrap(p core.Vec3) core.Vec2 {
	local := l.ToLocal(p)
	return core.NewVec2(
		math.Max(0, math.Min(1, local.X/l.ULen)),
		math.Max(0, math.Min(1, local.Y/l.VLen)),
	)
}

// Vertices returns the four corners v0..v3
func (l *RectangularLight) Vertices() [4]core.Vec3 {
	u := l.U.Multiply(l.ULen)
	v := l.V.Multiply(l.VLen)
	return [4]core.Vec3{l.Origin, l.Origin.Add(u), l.Origin.Add(u).Add(v), l.Origin.Add(v)}
}
