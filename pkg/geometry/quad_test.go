package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-photon-planes/pkg/core"
)

func TestQuad_Hit_BasicIntersection(t *testing.T) {
	// Create a 1x1 quad in the XZ plane at y=0
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 0, 1))

	ray := core.NewRay(core.NewVec3(0.5, 1, 0.5), core.NewVec3(0, -1, 0))
	hit, isHit := quad.Hit(ray, 0.001, 1000.0)
	if !isHit {
		t.Fatal("Expected hit, but got miss")
	}

	if math.Abs(hit.T-1.0) > 1e-9 {
		t.Errorf("Expected t=1, got t=%f", hit.T)
	}
	if hit.Point.Subtract(core.NewVec3(0.5, 0, 0.5)).Length() > 1e-9 {
		t.Errorf("Expected hit point (0.5,0,0.5), got %v", hit.Point)
	}
	// U × V points down, so a downward ray hits the back face
	if hit.FrontFace {
		t.Error("Expected back-face hit")
	}
	if hit.Normal.Dot(ray.Direction) >= 0 {
		t.Error("Expected normal to face the ray")
	}
}

func TestQuad_Hit_OutsideBounds(t *testing.T) {
	quad := NewQuadFromVertices(
		core.NewVec3(0, 0, 0),
		core.NewVec3(1, 0, 0),
		core.NewVec3(1, 0, 1),
		core.NewVec3(0, 0, 1),
	)

	tests := []struct {
		name      string
		rayOrigin core.Vec3
		rayDir    core.Vec3
	}{
		{"outside X bounds (negative)", core.NewVec3(-0.5, 1, 0.5), core.NewVec3(0, -1, 0)},
		{"outside X bounds (positive)", core.NewVec3(1.5, 1, 0.5), core.NewVec3(0, -1, 0)},
		{"outside Z bounds", core.NewVec3(0.5, 1, 1.5), core.NewVec3(0, -1, 0)},
		{"parallel", core.NewVec3(0.5, 1, 0.5), core.NewVec3(1, 0, 0)},
		{"pointing away", core.NewVec3(0.5, 1, 0.5), core.NewVec3(0, 1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, isHit := quad.Hit(core.NewRay(tt.rayOrigin, tt.rayDir), 0.001, 1000.0); isHit {
				t.Error("Expected miss, but got hit")
			}
		})
	}
}

func TestTriangle_Hit(t *testing.T) {
	shapes := NewTriangleMesh([]core.Vec3{
		core.NewVec3(0, 0, 0),
		core.NewVec3(1, 0, 0),
		core.NewVec3(1, 1, 0),
		core.NewVec3(0, 1, 0),
	}, []int{0, 1, 2, 0, 2, 3})
	if len(shapes) != 2 {
		t.Fatalf("Expected 2 triangles, got %d", len(shapes))
	}

	accel := NewAccel(shapes)
	for _, p := range []core.Vec3{core.NewVec3(0.8, 0.2, 0), core.NewVec3(0.2, 0.8, 0)} {
		ray := core.NewRay(p.Add(core.NewVec3(0, 0, 2)), core.NewVec3(0, 0, -1))
		hit, ok := accel.Hit(ray, 1e-4, math.Inf(1))
		if !ok || math.Abs(hit.T-2) > 1e-9 {
			t.Errorf("Expected hit at t=2 through %v, got %v (%v)", p, hit.T, ok)
		}
	}
}

func TestAccel_TraceAndVisible(t *testing.T) {
	floor := NewQuad(core.NewVec3(-5, 0, -5), core.NewVec3(10, 0, 0), core.NewVec3(0, 0, 10))
	wall := NewQuad(core.NewVec3(-1, 0, 2), core.NewVec3(2, 0, 0), core.NewVec3(0, 2, 0))
	accel := NewAccel([]Shape{floor, wall})

	if d := accel.Trace(core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0)), 1e-4); math.Abs(d-1) > 1e-9 {
		t.Errorf("Expected floor at distance 1, got %f", d)
	}
	if d := accel.Trace(core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, 0, 1)), 1e-4); math.Abs(d-2) > 1e-9 {
		t.Errorf("Expected wall at distance 2, got %f", d)
	}
	if d := accel.Trace(core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, 1, 0)), 1e-4); !math.IsInf(d, 1) {
		t.Errorf("Expected escape, got %f", d)
	}

	tests := []struct {
		name     string
		p1, p2   core.Vec3
		expected bool
	}{
		{"same side", core.NewVec3(0, 1, 0), core.NewVec3(0.5, 1.5, 1), true},
		{"through wall", core.NewVec3(0, 1, 0), core.NewVec3(0, 1, 4), false},
		{"endpoint on floor", core.NewVec3(0, 1, 0), core.NewVec3(0, 0, 0), true},
		{"coincident", core.NewVec3(0, 1, 0), core.NewVec3(0, 1, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accel.Visible(tt.p1, tt.p2); got != tt.expected {
				t.Errorf("Expected visible=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCamera_GetRay(t *testing.T) {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, -1),
		Up:     core.NewVec3(0, 1, 0),
		Width:  200,
		Height: 100,
		VFov:   90,
	})

	center := camera.GetRay(100, 50)
	if center.Direction.Subtract(core.NewVec3(0, 0, -1)).Length() > 1e-12 {
		t.Errorf("Expected central ray along -Z, got %v", center.Direction)
	}

	// Top-left corner: tan(45°)=1 along the short (vertical) axis, aspect 2 horizontally
	corner := camera.GetRay(0, 0)
	expected := core.NewVec3(-2, 1, -1).Normalize()
	if corner.Direction.Subtract(expected).Length() > 1e-12 {
		t.Errorf("Expected corner ray %v, got %v", expected, corner.Direction)
	}

	if w, h := camera.Resolution(); w != 200 || h != 100 {
		t.Errorf("Expected 200x100, got %dx%d", w, h)
	}
}
