package geometry

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
)

// CameraConfig describes a pinhole camera
type CameraConfig struct {
	Center core.Vec3 // Camera position
	LookAt core.Vec3 // Point the camera looks at
	Up     core.Vec3 // Up direction
	Width  int       // Image width in pixels
	Height int       // Image height in pixels
	VFov   float64   // Field of view in degrees along the shorter image axis
}

// Camera generates primary rays through pixel positions
type Camera struct {
	config     CameraConfig
	origin     core.Vec3
	upperLeft  core.Vec3 // image plane point for pixel (0, 0)
	horizontal core.Vec3 // image plane span along +x pixels
	vertical   core.Vec3 // image plane span along +y pixels (downwards)
}

// NewCamera creates a pinhole camera from a config
func NewCamera(config CameraConfig) *Camera {
	w := config.Center.Subtract(config.LookAt).Normalize()
	u := config.Up.Cross(w).Normalize()
	v := w.Cross(u)

	aspect := float64(config.Width) / float64(config.Height)
	halfShort := math.Tan(config.VFov * math.Pi / 360.0)
	halfWidth, halfHeight := halfShort*aspect, halfShort
	if aspect < 1 {
		halfWidth, halfHeight = halfShort, halfShort/aspect
	}

	horizontal := u.Multiply(2 * halfWidth)
	vertical := v.Multiply(-2 * halfHeight)
	upperLeft := config.Center.
		Subtract(w).
		Subtract(horizontal.Multiply(0.5)).
		Subtract(vertical.Multiply(0.5))

	return &Camera{
		config:     config,
		origin:     config.Center,
		upperLeft:  upperLeft,
		horizontal: horizontal,
		vertical:   vertical,
	}
}

// Config returns the camera configuration
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Resolution returns the image width and height
func (c *Camera) Resolution() (int, int) {
	return c.config.Width, c.config.Height
}

// GetRay returns a unit-direction ray through continuous pixel coordinates,
// with (0,0) at the top-left corner of the image
func (c *Camera) GetRay(px, py float64) core.Ray {
	s := px / float64(c.config.Width)
	t := py / float64(c.config.Height)
	target := c.upperLeft.Add(c.horizontal.Multiply(s)).Add(c.vertical.Multiply(t))
	return core.NewRay(c.origin, target.Subtract(c.origin).Normalize())
}
