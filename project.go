package splat

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/splat/raster"
)

// Projection holds the screen-space footprints of one batch under one
// camera. Culled primitives (behind the clip plane, degenerate, or fully
// off-screen) keep zero Radii and TilesHit and receive zero gradients.
//
// A Projection is valid for the Gaussians and Camera it was created from;
// Backward replays the projection with those inputs.
type Projection struct {
	// XYs are projected centers in pixel coordinates.
	XYs [][2]float64

	// Depths are camera-space depths.
	Depths []float64

	// Radii are footprint bounds in pixels, zero for culled primitives.
	Radii []int32

	// Conics are inverse 2D covariances as {a, b, c} for
	// [[a, b], [b, c]], including the low-pass blur.
	Conics [][3]float64

	// Compensations are antialiasing opacity factors in [0, 1] correcting
	// for the blur on sub-pixel footprints.
	Compensations []float64

	// TilesHit counts tiles overlapped by each footprint.
	TilesHit []int32

	// Cov3Ds are world-space covariance upper triangles.
	Cov3Ds [][6]float64

	gs        *Gaussians
	params    raster.ProjectParams
	raw       *raster.Projection
	poseGrads bool
}

// ProjectionGrad carries upstream gradients into Projection.Backward. Nil
// fields contribute nothing. Render.Backward produces the XYs, Conics, and
// Compensations parts; Depths come from losses that consume depth directly.
type ProjectionGrad struct {
	XYs           [][2]float64
	Depths        []float64
	Conics        [][3]float64
	Compensations []float64
}

// GaussianGrad holds gradients with respect to world-space primitive
// parameters. Quaternion gradients are with respect to the raw
// (unnormalized) quaternions. View is set only when the projection was
// created with WithPoseGradients.
type GaussianGrad struct {
	Means  [][3]float64
	Scales [][3]float64
	Quats  [][4]float64
	View   *mgl64.Mat4
}

// Project transforms a batch of 3D Gaussians into screen-space footprints
// under cam: camera transform and culling, covariance composition, EWA
// projection, conic inversion, and tile-overlap counting.
func Project(gs *Gaussians, cam *Camera, opts ...ProjectOption) (*Projection, error) {
	if err := gs.validate(); err != nil {
		return nil, err
	}
	if err := cam.validate(); err != nil {
		return nil, err
	}
	o := defaultProjectOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.blockWidth < 2 || o.blockWidth > 16 {
		return nil, ErrInvalidBlockWidth
	}
	if o.clipThresh <= 0 {
		o.clipThresh = defaultProjectOptions().clipThresh
	}

	params := projectParams(cam, o)
	raw := raster.ProjectGaussians(gs.Means, gs.Scales, gs.Quats, params)
	return &Projection{
		XYs:           raw.XYs,
		Depths:        raw.Depths,
		Radii:         raw.Radii,
		Conics:        raw.Conics,
		Compensations: raw.Compensations,
		TilesHit:      raw.TilesHit,
		Cov3Ds:        raw.Cov3Ds,
		gs:            gs,
		params:        params,
		raw:           raw,
		poseGrads:     o.poseGradients,
	}, nil
}

// Backward chains upstream footprint gradients back to the world-space
// parameters of the batch this projection was created from.
func (p *Projection) Backward(g ProjectionGrad) (*GaussianGrad, error) {
	n := p.gs.Len()
	if err := checkGradLen(len(g.XYs), n); err != nil {
		return nil, err
	}
	if err := checkGradLen(len(g.Depths), n); err != nil {
		return nil, err
	}
	if err := checkGradLen(len(g.Conics), n); err != nil {
		return nil, err
	}
	if err := checkGradLen(len(g.Compensations), n); err != nil {
		return nil, err
	}

	raw := raster.ProjectGaussiansBackward(p.gs.Means, p.gs.Scales, p.gs.Quats, p.params, p.raw, raster.ProjectionGrads{
		XYs:           g.XYs,
		Depths:        g.Depths,
		Conics:        g.Conics,
		Compensations: g.Compensations,
	}, p.poseGrads)
	return &GaussianGrad{
		Means:  raw.Means,
		Scales: raw.Scales,
		Quats:  raw.Quats,
		View:   raw.View,
	}, nil
}

func projectParams(cam *Camera, o projectOptions) raster.ProjectParams {
	return raster.ProjectParams{
		Camera: raster.CameraParams{
			View:   cam.View,
			FX:     cam.FX,
			FY:     cam.FY,
			CX:     cam.CX,
			CY:     cam.CY,
			Width:  cam.Width,
			Height: cam.Height,
		},
		GlobScale:  o.globalScale,
		BlockWidth: o.blockWidth,
		ClipThresh: o.clipThresh,
	}
}

// checkGradLen accepts nil gradient slices or exactly n entries.
func checkGradLen(got, n int) error {
	if got != 0 && got != n {
		return ErrDimensionMismatch
	}
	return nil
}
