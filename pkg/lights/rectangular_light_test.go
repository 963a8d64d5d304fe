package lights

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-photon-planes/pkg/core"
)

func unitSquare() []core.Vec3 {
	return []core.Vec3{
		core.NewVec3(0, 2, 0),
		core.NewVec3(1, 2, 0),
		core.NewVec3(1, 2, 1),
		core.NewVec3(0, 2, 1),
	}
}

func TestNewRectangularLight_Frame(t *testing.T) {
	const tolerance = 1e-12

	light, err := NewRectangularLight(unitSquare(), core.NewVec3(1, 1, 1))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if light.Normal.Subtract(core.NewVec3(0, -1, 0)).Length() > tolerance {
		t.Errorf("Expected normal (0,-1,0), got %v", light.Normal)
	}
	if light.ULen != 1 || light.VLen != 1 || light.Area() != 1 {
		t.Errorf("Expected unit edges, got %f x %f", light.ULen, light.VLen)
	}
	if math.Abs(light.U.Cross(light.V).Dot(light.Normal)-1) > tolerance {
		t.Error("Expected U × V = N")
	}

	for i, v := range light.Vertices() {
		if v.Subtract(unitSquare()[i]).Length() > tolerance {
			t.Errorf("Vertex %d: expected %v, got %v", i, unitSquare()[i], v)
		}
	}
}

func TestRectangularLight_SampleWrapRoundTrip(t *testing.T) {
	light, err := NewRectangularLight([]core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(1, 3, 0),
		core.NewVec3(1, 3, 2),
		core.NewVec3(1, 0, 2),
	}, core.NewVec3(2, 2, 2))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	samples := []core.Vec2{{X: 0, Y: 0}, {X: 0.25, Y: 0.75}, {X: 1, Y: 0.5}}
	for _, s := range samples {
		back := light.SampleWrap(light.PointAt(s))
		if math.Abs(back.X-s.X) > 1e-12 || math.Abs(back.Y-s.Y) > 1e-12 {
			t.Errorf("Expected %v, got %v", s, back)
		}
	}

	// Points off the rectangle clamp to its border
	clamped := light.SampleWrap(core.NewVec3(1, -1, 5))
	if clamped.X != 0 || clamped.Y != 1 {
		t.Errorf("Expected clamped (0, 1), got %v", clamped)
	}

	bounds := light.Bounds2D()
	if bounds.URx != 3 || bounds.URy != 2 {
		t.Errorf("Expected 3x2 local bounds, got %v", bounds)
	}
}

func TestNewRectangularLight_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		vertices []core.Vec3
	}{
		{"triangle", unitSquare()[:3]},
		{"pentagon", append(unitSquare(), core.NewVec3(0, 0, 0))},
		{"skewed", []core.Vec3{
			core.NewVec3(0, 0, 0),
			core.NewVec3(1, 0, 0),
			core.NewVec3(1.5, 1, 0),
			core.NewVec3(0.5, 1, 0),
		}},
		{"not closed", []core.Vec3{
			core.NewVec3(0, 0, 0),
			core.NewVec3(1, 0, 0),
			core.NewVec3(2, 1, 0),
			core.NewVec3(0, 1, 0),
		}},
		{"degenerate", []core.Vec3{
			core.NewVec3(0, 0, 0),
			core.NewVec3(0, 0, 0),
			core.NewVec3(0, 1, 0),
			core.NewVec3(0, 1, 0),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRectangularLight(tt.vertices, core.NewVec3(1, 1, 1))
			if !errors.Is(err, ErrNonRectangularEmitter) {
				t.Errorf("Expected ErrNonRectangularEmitter, got %v", err)
			}
		})
	}
}

func TestRectangularLight_LocalPoint(t *testing.T) {
	light, err := NewRectangularLight([]core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(1, 3, 0),
		core.NewVec3(1, 3, 2),
		core.NewVec3(1, 0, 2),
	}, core.NewVec3(2, 2, 2))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		sample core.Vec2
		x, y   float64
	}{
		{core.NewVec2(0, 0), 0, 0},
		{core.NewVec2(0.25, 0.75), 0.75, 1.5},
		{core.NewVec2(1, 1), 3, 2},
	}
	for _, tt := range tests {
		local := light.LocalPoint(tt.sample)
		if math.Abs(local.X-tt.x) > 1e-12 || math.Abs(local.Y-tt.y) > 1e-12 {
			t.Errorf("Sample %v: expected local (%v, %v), got %v", tt.sample, tt.x, tt.y, local)
		}
		// The frame point and the world point agree
		back := light.ToLocal(light.PointAt(tt.sample))
		if math.Abs(back.X-local.X) > 1e-12 || math.Abs(back.Y-local.Y) > 1e-12 {
			t.Errorf("Sample %v: PointAt maps to local %v, expected %v", tt.sample, back, local)
		}
	}
}
