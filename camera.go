package splat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera describes a pinhole camera with a world-to-camera view matrix and
// the intrinsics of the target image.
//
// View follows the OpenCV convention: +x right, +y down, +z into the scene,
// so visible points have positive view-space depth. Both pipelines work
// directly from the intrinsics; Proj is kept for consumers that need the
// clip-space map for their own transforms.
type Camera struct {
	// View is the world-to-camera rigid transform.
	View mgl64.Mat4

	// Proj is the camera-to-clip projection matrix.
	Proj mgl64.Mat4

	// FX, FY are focal lengths in pixels; CX, CY the principal point.
	FX, FY float64
	CX, CY float64

	// Width, Height are the output image dimensions in pixels.
	Width, Height int
}

// NewCamera builds a camera for a w x h image from a horizontal field of
// view in radians. The focal length is shared between axes and the principal
// point sits at the image center. View defaults to the identity and Proj to
// a perspective map with near 0.01 and far 1000.
func NewCamera(w, h int, fovx float64) *Camera {
	focal := 0.5 * float64(w) / math.Tan(0.5*fovx)
	fovy := 2 * math.Atan(0.5*float64(h)/focal)
	return &Camera{
		View:   mgl64.Ident4(),
		Proj:   mgl64.Perspective(fovy, float64(w)/float64(h), 0.01, 1000),
		FX:     focal,
		FY:     focal,
		CX:     0.5 * float64(w),
		CY:     0.5 * float64(h),
		Width:  w,
		Height: h,
	}
}

// validate checks the camera against obviously unusable configurations.
func (c *Camera) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.FX <= 0 || c.FY <= 0 {
		return ErrDimensionMismatch
	}
	return nil
}

// tanFov returns the half-extent tangents used to clamp view-space rays
// before the projective Jacobian is linearized.
func (c *Camera) tanFov() (tanX, tanY float64) {
	tanX = 0.5 * float64(c.Width) / c.FX
	tanY = 0.5 * float64(c.Height) / c.FY
	return tanX, tanY
}
