package renderer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/df07/go-photon-planes/pkg/core"
)

// ImageBuffer is a linear HDR radiance image stored row-major from the top
type ImageBuffer struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// NewImageBuffer creates a black image
func NewImageBuffer(width, height int) *ImageBuffer {
	return &ImageBuffer{
		Width:  width,
		Height: height,
		Pixels: make([]core.Vec3, width*height),
	}
}

// At returns the radiance of a pixel
func (b *ImageBuffer) At(x, y int) core.Vec3 {
	return b.Pixels[y*b.Width+x]
}

// Set stores the radiance of a pixel
func (b *ImageBuffer) Set(x, y int, v core.Vec3) {
	b.Pixels[y*b.Width+x] = v
}

// AddBuffer accumulates another image of the same size
func (b *ImageBuffer) AddBuffer(other *ImageBuffer) error {
	if other.Width != b.Width || other.Height != b.Height {
		return fmt.Errorf("image size mismatch: %dx%d vs %dx%d", b.Width, b.Height, other.Width, other.Height)
	}
	for i, v := range other.Pixels {
		b.Pixels[i] = b.Pixels[i].Add(v)
	}
	return nil
}

// Scaled returns a copy with every pixel multiplied by factor
func (b *ImageBuffer) Scaled(factor float64) *ImageBuffer {
	result := NewImageBuffer(b.Width, b.Height)
	for i, v := range b.Pixels {
		result.Pixels[i] = v.Multiply(factor)
	}
	return result
}

// AverageLuminance returns the mean pixel luminance
func (b *ImageBuffer) AverageLuminance() float64 {
	if len(b.Pixels) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range b.Pixels {
		total += v.Luminance()
	}
	return total / float64(len(b.Pixels))
}

// ToRGBA converts the buffer to an 8-bit image
func (b *ImageBuffer) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			img.SetRGBA(x, y, vec3ToColor(b.At(x, y)))
		}
	}
	return img
}

// ToRGBA64 converts the buffer to a 16-bit image
func (b *ImageBuffer) ToRGBA64() *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := displayColor(b.At(x, y))
			img.SetRGBA64(x, y, color.RGBA64{
				R: uint16(65535 * c.X),
				G: uint16(65535 * c.Y),
				B: uint16(65535 * c.Z),
				A: 65535,
			})
		}
	}
	return img
}

// vec3ToColor converts a Vec3 color to RGBA with proper clamping and gamma correction
func vec3ToColor(colorVec core.Vec3) color.RGBA {
	c := displayColor(colorVec)
	return color.RGBA{
		R: uint8(255 * c.X),
		G: uint8(255 * c.Y),
		B: uint8(255 * c.Z),
		A: 255,
	}
}

// displayColor applies gamma 2.2 and clamps to [0, 1]. Non-finite values map to black.
func displayColor(colorVec core.Vec3) core.Vec3 {
	if !colorVec.IsFinite() {
		return core.Vec3{}
	}
	return colorVec.Clamp(0.0, 1.0).GammaCorrect(2.2).Clamp(0.0, 1.0)
}
