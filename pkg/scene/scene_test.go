package scene

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/loaders"
)

func TestDefaultScene(t *testing.T) {
	s := NewDefaultScene()
	if err := s.Preprocess(); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	lightList, err := s.RectangularLights()
	if err != nil {
		t.Fatalf("RectangularLights failed: %v", err)
	}
	if len(lightList) != 1 {
		t.Fatalf("Expected 1 light, got %d", len(lightList))
	}
	if lightList[0].Normal.Subtract(core.NewVec3(0, -1, 0)).Length() > 1e-12 {
		t.Errorf("Expected downward emitter, got normal %v", lightList[0].Normal)
	}

	d, ok := s.Trace(core.NewRay(core.NewVec3(3, 1, 3), core.NewVec3(0, -1, 0)))
	if !ok || d < 1-1e-9 || d > 1+1e-9 {
		t.Errorf("Expected ground at distance 1, got %v (%v)", d, ok)
	}
	if _, ok := s.Trace(core.NewRay(core.NewVec3(3, 1, 3), core.NewVec3(0, 1, 0))); ok {
		t.Error("Expected upward ray to escape")
	}

	tests := []struct {
		name     string
		p1, p2   core.Vec3
		expected bool
	}{
		{"under blocker", core.NewVec3(0.45, 2, 0.45), core.NewVec3(0.45, 0.5, 0.45), false},
		{"beside blocker", core.NewVec3(0.9, 2, 0.9), core.NewVec3(0.9, 0.5, 0.9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Visible(tt.p1, tt.p2); got != tt.expected {
				t.Errorf("Expected visible=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCornellScene(t *testing.T) {
	s := NewCornellScene()
	lightList, err := s.RectangularLights()
	if err != nil {
		t.Fatalf("RectangularLights failed: %v", err)
	}
	if len(lightList) != 1 || lightList[0].Normal.Y > -0.999 {
		t.Fatalf("Expected one downward ceiling light, got %+v", lightList)
	}
	// 5 walls, the light and two boxes of 6 faces
	if got := s.GetPrimitiveCount(); got != 18 {
		t.Errorf("Expected 18 occluders, got %d", got)
	}
	if s.Medium == nil || s.Medium.Density() <= 0 {
		t.Error("Expected a scattering medium")
	}
}

func TestScene_SetDensityAndResize(t *testing.T) {
	s := NewDefaultScene()
	if err := s.SetDensity(2); err != nil {
		t.Fatalf("SetDensity failed: %v", err)
	}
	if s.Medium.SigmaS() != core.NewVec3(2, 2, 2) || !s.Medium.SigmaA().IsZero() {
		t.Errorf("Unexpected medium sigma_s=%v sigma_a=%v", s.Medium.SigmaS(), s.Medium.SigmaA())
	}
	if err := s.SetDensity(-1); err == nil {
		t.Error("Expected error for negative density")
	}

	s.Resize(0.5)
	if w, h := s.Camera.Resolution(); w != 128 || h != 96 {
		t.Errorf("Expected 128x96 after resize, got %dx%d", w, h)
	}
	s.Resize(0.001)
	if w, h := s.Camera.Resolution(); w != 1 || h != 1 {
		t.Errorf("Expected 1x1 minimum, got %dx%d", w, h)
	}
}

func TestScene_NonRectangularEmitter(t *testing.T) {
	s := NewDefaultScene()
	s.Emitters = append(s.Emitters, Emitter{
		Vertices: []core.Vec3{core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0)},
		Emission: core.NewVec3(1, 1, 1),
	})
	if _, err := s.RectangularLights(); !errors.Is(err, lights.ErrNonRectangularEmitter) {
		t.Errorf("Expected ErrNonRectangularEmitter, got %v", err)
	}
}

const fogScene = `LookAt 0.5 1 -2  0.5 0.5 2  0 1 0
Camera "perspective" "float fov" 50
Film "rgb" "integer xresolution" 32 "integer yresolution" 24
Sampler "independent" "integer pixelsamples" 2
MakeNamedMedium "fog" "string type" "homogeneous"
    "rgb sigma_a" [0.1 0.2 0.3] "rgb sigma_s" [0.5 0.5 0.5] "float scale" 2 "float g" 0.4
MediumInterface "" "fog"
WorldBegin
AttributeBegin
    AreaLightSource "diffuse" "rgb L" [1 2 3] "float scale" 2
    Shape "bilinearmesh" "point3 P" [ 0 2 0  1 2 0  0 2 1  1 2 1 ]
AttributeEnd
AttributeBegin
    AreaLightSource "diffuse" "rgb L" [1 1 1]
    ReverseOrientation
    Shape "bilinearmesh" "point3 P" [ 0 0 0  1 0 0  0 0 1  1 0 1 ]
AttributeEnd
Shape "trianglemesh" "point3 P" [ -5 -1 -5  5 -1 -5  5 -1 5  -5 -1 5 ] "integer indices" [ 0 1 2  0 2 3 ]
WorldEnd
`

func TestFromPBRT(t *testing.T) {
	pbrtScene, err := loaders.ParsePBRT(strings.NewReader(fogScene))
	if err != nil {
		t.Fatalf("ParsePBRT failed: %v", err)
	}
	s, err := FromPBRT(pbrtScene)
	if err != nil {
		t.Fatalf("FromPBRT failed: %v", err)
	}

	if w, h := s.Camera.Resolution(); w != 32 || h != 24 {
		t.Errorf("Expected 32x24, got %dx%d", w, h)
	}
	if s.SamplingConfig.SamplesPerPixel != 2 {
		t.Errorf("Expected 2 spp, got %d", s.SamplingConfig.SamplesPerPixel)
	}
	if s.Medium.SigmaA().Subtract(core.NewVec3(0.2, 0.4, 0.6)).Length() > 1e-12 {
		t.Errorf("Expected scaled sigma_a, got %v", s.Medium.SigmaA())
	}
	if s.Phase.G != 0.4 {
		t.Errorf("Expected Henyey-Greenstein g=0.4, got %+v", s.Phase)
	}

	// Two emitter patches and two floor triangles
	if len(s.Occluders) != 4 {
		t.Errorf("Expected 4 occluders, got %d", len(s.Occluders))
	}

	lightList, err := s.RectangularLights()
	if err != nil {
		t.Fatalf("RectangularLights failed: %v", err)
	}
	if len(lightList) != 2 {
		t.Fatalf("Expected 2 lights, got %d", len(lightList))
	}
	if lightList[0].Emission != core.NewVec3(2, 4, 6) {
		t.Errorf("Expected scaled emission, got %v", lightList[0].Emission)
	}
	if lightList[0].Normal.Subtract(core.NewVec3(0, -1, 0)).Length() > 1e-12 {
		t.Errorf("Expected first emitter facing down, got %v", lightList[0].Normal)
	}
	if lightList[1].Normal.Subtract(core.NewVec3(0, 1, 0)).Length() > 1e-12 {
		t.Errorf("Expected reversed emitter facing up, got %v", lightList[1].Normal)
	}
}

func TestFromPBRT_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"undefined medium", "MediumInterface \"\" \"smoke\"\nWorldBegin\nWorldEnd"},
		{"unsupported medium", "MakeNamedMedium \"m\" \"string type\" \"grid\"\nWorldBegin\nWorldEnd"},
		{"transformed shape", "WorldBegin\nTranslate 0 1 0\nShape \"trianglemesh\" \"point3 P\" [0 0 0 1 0 0 0 0 1]\nWorldEnd"},
		{"unsupported shape", "WorldBegin\nShape \"sphere\" \"float radius\" 1\nWorldEnd"},
		{"bad index", "WorldBegin\nShape \"trianglemesh\" \"point3 P\" [0 0 0 1 0 0 0 0 1] \"integer indices\" [0 1 5]\nWorldEnd"},
		{"orthographic camera", "Camera \"orthographic\"\nWorldBegin\nWorldEnd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pbrtScene, err := loaders.ParsePBRT(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("ParsePBRT failed: %v", err)
			}
			if _, err := FromPBRT(pbrtScene); err == nil {
				t.Error("Expected conversion error")
			}
		})
	}
}

func TestListScenesAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fog-corridor.pbrt")
	content := "# Scene: Fog Corridor\n# Description: Two emitters in fog\n" + fogScene
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write scene: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plain_box.pbrt"), []byte(fogScene), 0o644); err != nil {
		t.Fatalf("Failed to write scene: %v", err)
	}

	scenes, err := ListScenes(dir)
	if err != nil {
		t.Fatalf("ListScenes failed: %v", err)
	}
	if len(scenes) != 4 {
		t.Fatalf("Expected 4 scenes, got %d", len(scenes))
	}
	if scenes[2].Name != "Fog Corridor" || scenes[2].Description != "Two emitters in fog" {
		t.Errorf("Unexpected metadata %+v", scenes[2])
	}
	if scenes[3].Name != "Plain Box" {
		t.Errorf("Expected title-cased fallback name, got %q", scenes[3].Name)
	}

	for _, info := range scenes {
		if _, err := Load(info.ID); err != nil {
			t.Errorf("Load(%q) failed: %v", info.ID, err)
		}
	}
	if _, err := Load("no-such-scene"); err == nil {
		t.Error("Expected error for unknown scene")
	}
}

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"cornell-empty", "Cornell Empty"},
		{"fog_gold", "Fog Gold"},
		{"UPPER-case", "Upper Case"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if result := titleCase(tc.input); result != tc.expected {
				t.Errorf("titleCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}
