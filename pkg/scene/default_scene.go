package scene

import (
	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/geometry"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// defaultDensity is the scattering coefficient of the built-in scenes
const defaultDensity = 0.5

// NewDefaultScene creates a single downward-facing emitter above a ground quad,
// filled with a purely scattering medium
func NewDefaultScene() *Scene {
	camera := geometry.NewCamera(geometry.CameraConfig{
		Center: core.NewVec3(0.5, 1, -2),
		LookAt: core.NewVec3(0.5, 0.75, 2),
		Up:     core.NewVec3(0, 1, 0),
		Width:  256,
		Height: 192,
		VFov:   60,
	})

	medium, _ := volume.NewGreyMedium(0, defaultDensity)

	s := &Scene{
		Camera: camera,
		Medium: medium,
		Phase:  volume.Isotropic(),
		SamplingConfig: SamplingConfig{
			SamplesPerPixel: 4,
		},
	}

	// U × V = (1,0,0) × (0,0,1) points down
	s.AddQuadLight(
		core.NewVec3(0, 2, 0),
		core.NewVec3(1, 0, 0),
		core.NewVec3(0, 0, 1),
		core.NewVec3(10, 10, 10),
	)
	s.Occluders = append(s.Occluders, NewGroundQuad(core.NewVec3(0.5, 0, 0.5), 20))

	// A floating blocker casts a visible shadow through the medium
	s.AddQuad(core.NewVec3(0.25, 1.2, 0.25), core.NewVec3(0, 0, 0.4), core.NewVec3(0.4, 0, 0))

	return s
}
