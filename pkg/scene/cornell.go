package scene

import (
	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/geometry"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// NewCornellScene creates a Cornell box filled with fog and lit by a ceiling emitter
func NewCornellScene() *Scene {
	camera := geometry.NewCamera(geometry.CameraConfig{
		Center: core.NewVec3(278, 278, -800), // Position camera outside the box looking in
		LookAt: core.NewVec3(278, 278, 0),
		Up:     core.NewVec3(0, 1, 0),
		Width:  256,
		Height: 256,
		VFov:   40.0,
	})

	// Box units are large, so the density is scaled to keep the optical depth moderate
	medium, _ := volume.NewGreyMedium(0, defaultDensity/555.0)

	s := &Scene{
		Camera: camera,
		Medium: medium,
		Phase:  volume.Isotropic(),
		SamplingConfig: SamplingConfig{
			SamplesPerPixel: 4,
		},
	}

	boxSize := 555.0

	// Floor, ceiling, back, left and right walls
	s.AddQuad(core.NewVec3(0, 0, 0), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize))
	s.AddQuad(core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize))
	s.AddQuad(core.NewVec3(0, 0, boxSize), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, boxSize, 0))
	s.AddQuad(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0))
	s.AddQuad(core.NewVec3(boxSize, 0, 0), core.NewVec3(0, boxSize, 0), core.NewVec3(0, 0, boxSize))

	// Ceiling light slightly below the ceiling, facing down
	lightSize := 130.0
	lightOffset := (boxSize - lightSize) / 2.0
	s.AddQuadLight(
		core.NewVec3(lightOffset, boxSize-1, lightOffset),
		core.NewVec3(lightSize, 0, 0),
		core.NewVec3(0, 0, lightSize),
		core.NewVec3(15.0, 15.0, 15.0),
	)

	// Two boxes replace the spheres so they cast shadow volumes
	addBox(s, core.NewVec3(130, 0, 65), core.NewVec3(295, 165, 230))
	addBox(s, core.NewVec3(265, 0, 295), core.NewVec3(430, 330, 460))

	return s
}

// addBox adds the six faces of an axis-aligned box
func addBox(s *Scene, lo, hi core.Vec3) {
	dx := core.NewVec3(hi.X-lo.X, 0, 0)
	dy := core.NewVec3(0, hi.Y-lo.Y, 0)
	dz := core.NewVec3(0, 0, hi.Z-lo.Z)

	s.AddQuad(lo, dx, dy)
	s.AddQuad(lo.Add(dz), dx, dy)
	s.AddQuad(lo, dz, dy)
	s.AddQuad(lo.Add(dx), dz, dy)
	s.AddQuad(lo, dx, dz)
	s.AddQuad(lo.Add(dy), dx, dz)
}
