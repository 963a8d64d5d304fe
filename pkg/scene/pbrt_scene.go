package scene

import (
	"fmt"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/geometry"
	"github.com/df07/go-photon-planes/pkg/loaders"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// NewPBRTScene creates a scene from a PBRT file
func NewPBRTScene(filepath string) (*Scene, error) {
	pbrtScene, err := loaders.LoadPBRT(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to load PBRT file: %w", err)
	}
	return FromPBRT(pbrtScene)
}

// FromPBRT converts a parsed PBRT scene
func FromPBRT(pbrtScene *loaders.PBRTScene) (*Scene, error) {
	scene := &Scene{
		Phase: volume.Isotropic(),
		SamplingConfig: SamplingConfig{
			SamplesPerPixel: 4,
		},
	}

	if err := convertCamera(pbrtScene, scene); err != nil {
		return nil, fmt.Errorf("failed to convert camera: %w", err)
	}
	if err := convertMedium(pbrtScene, scene); err != nil {
		return nil, fmt.Errorf("failed to convert medium: %w", err)
	}
	if pbrtScene.Sampler != nil {
		if spp, ok := pbrtScene.Sampler.GetIntParam("pixelsamples"); ok && spp > 0 {
			scene.SamplingConfig.SamplesPerPixel = spp
		}
	}

	for i := range pbrtScene.Shapes {
		if err := convertShape(&pbrtScene.Shapes[i], scene); err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
	}

	return scene, nil
}

// convertCamera converts PBRT camera to our camera system
func convertCamera(pbrtScene *loaders.PBRTScene, scene *Scene) error {
	cameraConfig := geometry.CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, 1),
		Up:     core.NewVec3(0, 1, 0),
		Width:  256,
		Height: 256,
		VFov:   90.0,
	}

	if pbrtScene.LookAt != nil {
		cameraConfig.Center = pbrtScene.LookAt.Eye
		cameraConfig.LookAt = pbrtScene.LookAt.At
		cameraConfig.Up = pbrtScene.LookAt.Up
	}

	if pbrtScene.Camera != nil {
		if pbrtScene.Camera.Subtype != "perspective" {
			return fmt.Errorf("unsupported camera type: %s", pbrtScene.Camera.Subtype)
		}
		if fov, ok := pbrtScene.Camera.GetFloatParam("fov"); ok {
			if fov <= 0 || fov >= 180 {
				return fmt.Errorf("invalid camera FOV %f: must be between 0 and 180 degrees", fov)
			}
			cameraConfig.VFov = fov
		}
	}

	if pbrtScene.Film != nil {
		if width, ok := pbrtScene.Film.GetIntParam("xresolution"); ok {
			if width <= 0 || width > 8192 {
				return fmt.Errorf("invalid image width %d: must be between 1 and 8192", width)
			}
			cameraConfig.Width = width
		}
		if height, ok := pbrtScene.Film.GetIntParam("yresolution"); ok {
			if height <= 0 || height > 8192 {
				return fmt.Errorf("invalid image height %d: must be between 1 and 8192", height)
			}
			cameraConfig.Height = height
		}
	}

	scene.Camera = geometry.NewCamera(cameraConfig)
	return nil
}

// convertMedium resolves the camera medium among the named media
func convertMedium(pbrtScene *loaders.PBRTScene, scene *Scene) error {
	name := pbrtScene.CameraMedium
	if name == "" {
		// A single declared medium fills the scene
		if len(pbrtScene.Media) != 1 {
			return nil
		}
		name = pbrtScene.Media[0].Subtype
	}

	for i := range pbrtScene.Media {
		stmt := &pbrtScene.Media[i]
		if stmt.Subtype != name {
			continue
		}
		if kind, ok := stmt.GetStringParam("type"); ok && kind != "homogeneous" {
			return fmt.Errorf("unsupported medium type: %s", kind)
		}

		sigmaA, ok := stmt.GetRGBParam("sigma_a")
		if !ok {
			sigmaA = core.NewVec3(1, 1, 1)
		}
		sigmaS, ok := stmt.GetRGBParam("sigma_s")
		if !ok {
			sigmaS = core.NewVec3(1, 1, 1)
		}
		scale := 1.0
		if s, ok := stmt.GetFloatParam("scale"); ok {
			scale = s
		}

		medium, err := volume.NewHomogeneousMedium(sigmaA.Multiply(scale), sigmaS.Multiply(scale))
		if err != nil {
			return fmt.Errorf("medium %q: %w", name, err)
		}
		scene.Medium = medium

		if g, ok := stmt.GetFloatParam("g"); ok && g != 0 {
			phase, err := volume.HenyeyGreenstein(g)
			if err != nil {
				return fmt.Errorf("medium %q: %w", name, err)
			}
			scene.Phase = phase
		}
		return nil
	}
	return fmt.Errorf("undefined medium %q", name)
}

// convertShape adds a PBRT shape as occluder geometry, and as an emitter when an
// area light is active
func convertShape(shape *loaders.PBRTShape, scene *Scene) error {
	if shape.Transformed {
		return fmt.Errorf("transformed shapes are not supported, bake transforms into vertices")
	}

	points, ok := shape.GetPoint3sParam("P")
	if !ok {
		return fmt.Errorf("%s missing or invalid vertices", shape.Subtype)
	}

	var ring []core.Vec3
	switch shape.Subtype {
	case "bilinearmesh":
		if len(points) != 4 {
			return fmt.Errorf("bilinearmesh with %d vertices: only single patches are supported", len(points))
		}
		// Patch order is p00 p10 p01 p11
		ring = []core.Vec3{points[0], points[1], points[3], points[2]}
		scene.Occluders = append(scene.Occluders, geometry.NewQuadFromVertices(ring[0], ring[1], ring[2], ring[3]))

	case "trianglemesh":
		indices, ok := shape.GetIntsParam("indices")
		if !ok && len(points) == 3 {
			indices = []int{0, 1, 2}
		} else if !ok || len(indices)%3 != 0 {
			return fmt.Errorf("trianglemesh missing or invalid indices")
		}
		for _, idx := range indices {
			if idx < 0 || idx >= len(points) {
				return fmt.Errorf("trianglemesh index %d out of range", idx)
			}
		}
		ring = points
		scene.Occluders = append(scene.Occluders, geometry.NewTriangleMesh(points, indices)...)

	default:
		return fmt.Errorf("unsupported shape type: %s", shape.Subtype)
	}

	if shape.AreaLight != nil {
		emission, ok := shape.AreaLight.GetRGBParam("L")
		if !ok {
			emission = core.NewVec3(1, 1, 1)
		}
		if scale, ok := shape.AreaLight.GetFloatParam("scale"); ok {
			emission = emission.Multiply(scale)
		}
		if shape.ReverseOrientation && len(ring) == 4 {
			ring = []core.Vec3{ring[0], ring[3], ring[2], ring[1]}
		}
		scene.Emitters = append(scene.Emitters, Emitter{Vertices: ring, Emission: emission})
	}

	scene.accel = nil
	return nil
}
