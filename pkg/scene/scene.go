package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/geometry"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// rayEpsilon offsets camera rays from their origin
const rayEpsilon = 1e-4

// Emitter is an emissive mesh. Only four-vertex rectangles can emit photon planes.
type Emitter struct {
	Vertices []core.Vec3
	Emission core.Vec3
}

// Scene contains all the elements needed for rendering
type Scene struct {
	Camera         *geometry.Camera
	Occluders      []geometry.Shape // Objects in the scene, emitter quads included
	Emitters       []Emitter
	Medium         *volume.HomogeneousMedium // Medium filling the scene, nil for vacuum
	Phase          volume.PhaseFunction
	SamplingConfig SamplingConfig

	accel *geometry.Accel // Acceleration structure for ray-object intersection
}

// SamplingConfig contains rendering configuration
type SamplingConfig struct {
	SamplesPerPixel int // Number of rays per pixel
	NumThreads      int // Worker count, 0 for one per CPU
}

// AddQuadLight adds a rectangular emitter spanned by u and v from corner.
// The emitter radiates towards u × v.
func (s *Scene) AddQuadLight(corner, u, v, emission core.Vec3) {
	s.Emitters = append(s.Emitters, Emitter{
		Vertices: []core.Vec3{corner, corner.Add(u), corner.Add(u).Add(v), corner.Add(v)},
		Emission: emission,
	})
	s.Occluders = append(s.Occluders, geometry.NewQuad(corner, u, v))
	s.accel = nil
}

// AddQuad adds a non-emissive quad
func (s *Scene) AddQuad(corner, u, v core.Vec3) {
	s.Occluders = append(s.Occluders, geometry.NewQuad(corner, u, v))
	s.accel = nil
}

// NewGroundQuad creates a large horizontal quad centered at the given point
func NewGroundQuad(center core.Vec3, size float64) *geometry.Quad {
	corner := core.NewVec3(center.X-size/2, center.Y, center.Z-size/2)
	// u × v points up
	return geometry.NewQuad(corner, core.NewVec3(0, 0, size), core.NewVec3(size, 0, 0))
}

// Preprocess builds the acceleration structure over the occluders
func (s *Scene) Preprocess() error {
	if s.Camera == nil {
		return fmt.Errorf("scene has no camera")
	}
	s.accel = geometry.NewAccel(s.Occluders)
	return nil
}

func (s *Scene) ensureAccel() *geometry.Accel {
	if s.accel == nil {
		s.accel = geometry.NewAccel(s.Occluders)
	}
	return s.accel
}

// Trace returns the distance to the nearest surface along the ray,
// or false when the ray escapes the scene
func (s *Scene) Trace(ray core.Ray) (float64, bool) {
	d := s.ensureAccel().Trace(ray, rayEpsilon)
	if math.IsInf(d, 1) {
		return d, false
	}
	return d, true
}

// Visible reports whether two points see each other
func (s *Scene) Visible(p1, p2 core.Vec3) bool {
	return s.ensureAccel().Visible(p1, p2)
}

// RectangularLights converts every emitter to a rectangular light
func (s *Scene) RectangularLights() ([]*lights.RectangularLight, error) {
	result := make([]*lights.RectangularLight, 0, len(s.Emitters))
	for i, emitter := range s.Emitters {
		light, err := lights.NewRectangularLight(emitter.Vertices, emitter.Emission)
		if err != nil {
			return nil, fmt.Errorf("emitter %d: %w", i, err)
		}
		result = append(result, light)
	}
	return result, nil
}

// SetDensity replaces the medium by a purely scattering grey medium
func (s *Scene) SetDensity(density float64) error {
	medium, err := volume.NewGreyMedium(0, density)
	if err != nil {
		return err
	}
	s.Medium = medium
	return nil
}

// Resize scales the camera resolution, keeping at least one pixel per axis
func (s *Scene) Resize(scale float64) {
	if scale <= 0 || scale == 1 || s.Camera == nil {
		return
	}
	config := s.Camera.Config()
	config.Width = max(1, int(math.Round(float64(config.Width)*scale)))
	config.Height = max(1, int(math.Round(float64(config.Height)*scale)))
	s.Camera = geometry.NewCamera(config)
}

// GetPrimitiveCount returns the total number of occluder primitives in the scene
func (s *Scene) GetPrimitiveCount() int {
	return len(s.Occluders)
}
