// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/splat/internal/parallel"
)

// fovClamp widens the frustum clamp applied to view-space rays before the
// projective Jacobian is linearized. Footprints slightly outside the image
// still project sanely instead of exploding near the image plane.
const fovClamp = 1.3

// zGuard keeps the perspective division finite for depths at the clip
// threshold.
const zGuard = 1e-6

// CameraParams carries the world-to-camera transform and pinhole intrinsics
// of one render.
type CameraParams struct {
	View           mgl64.Mat4
	FX, FY, CX, CY float64
	Width, Height  int
}

// rot returns the rotation block of the view matrix as a row-major 3x3.
func (c *CameraParams) rot() mat3 {
	var w mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			w[i][j] = c.View.At(i, j)
		}
	}
	return w
}

// trans returns the translation column of the view matrix.
func (c *CameraParams) trans() vec3 {
	return vec3{c.View.At(0, 3), c.View.At(1, 3), c.View.At(2, 3)}
}

// ProjectParams bundles the camera with the projection options.
type ProjectParams struct {
	Camera     CameraParams
	GlobScale  float64
	BlockWidth int
	ClipThresh float64
	Workers    int
}

// Projection holds per-primitive screen-space footprints. Culled primitives
// keep zero Radii and TilesHit and are skipped by binning and backward.
type Projection struct {
	Grid          TileGrid
	XYs           [][2]float64
	Depths        []float64
	Radii         []int32
	Conics        [][3]float64
	Compensations []float64
	TilesHit      []int32
	Cov3Ds        [][6]float64
}

// ProjectGaussians computes screen-space footprints for a batch of 3D
// Gaussians: EWA projection of the world covariance, conic inversion, a
// three-sigma pixel radius, and the tile-overlap count used to size the
// binning buffers. Primitives behind the clip plane, with degenerate 2D
// covariance, or covering no tiles are culled in place.
func ProjectGaussians(means, scales [][3]float64, quats [][4]float64, p ProjectParams) *Projection {
	n := len(means)
	cam := &p.Camera
	out := &Projection{
		Grid:          NewTileGrid(cam.Width, cam.Height, p.BlockWidth),
		XYs:           make([][2]float64, n),
		Depths:        make([]float64, n),
		Radii:         make([]int32, n),
		Conics:        make([][3]float64, n),
		Compensations: make([]float64, n),
		TilesHit:      make([]int32, n),
		Cov3Ds:        make([][6]float64, n),
	}

	w := cam.rot()
	tr := cam.trans()
	limX := fovClamp * 0.5 * float64(cam.Width) / cam.FX
	limY := fovClamp * 0.5 * float64(cam.Height) / cam.FY

	parallel.ForEach(n, p.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			t := mulVec3(w, means[i])
			t[0] += tr[0]
			t[1] += tr[1]
			t[2] += tr[2]
			if t[2] < p.ClipThresh {
				continue
			}

			qn, _ := normalizeQuat(quats[i])
			r := quatToRot(qn)
			_, cov3 := scaleRotToCov3D(scales[i], p.GlobScale, r)
			out.Cov3Ds[i] = cov3

			tc, _, _ := clampRay(t, limX, limY)
			a, b, c, comp := projectCov3D(cov3, tc, cam.FX, cam.FY, w)
			conic, det, ok := conicFromCov2D(a, b, c)
			if !ok {
				continue
			}
			radius := radiusFromCov2D(a, b, c, det)

			rw := 1 / (t[2] + zGuard)
			cx := cam.FX*t[0]*rw + cam.CX
			cy := cam.FY*t[1]*rw + cam.CY

			hit := out.Grid.TilesHit(cx, cy, radius)
			if hit == 0 {
				continue
			}

			out.XYs[i] = [2]float64{cx, cy}
			out.Depths[i] = t[2]
			out.Radii[i] = radius
			out.Conics[i] = conic
			out.Compensations[i] = comp
			out.TilesHit[i] = hit
		}
	})

	logger().Debug("projected gaussians",
		"count", n,
		"tilesX", out.Grid.TilesX,
		"tilesY", out.Grid.TilesY,
	)
	return out
}

// clampRay limits the view-space ray direction to the widened frustum and
// reports which axes were clamped. The depth component is preserved.
func clampRay(t vec3, limX, limY float64) (tc vec3, clipX, clipY bool) {
	tc = t
	x := t[0] / t[2]
	y := t[1] / t[2]
	if cx := math.Min(limX, math.Max(-limX, x)); cx != x {
		tc[0] = cx * t[2]
		clipX = true
	}
	if cy := math.Min(limY, math.Max(-limY, y)); cy != y {
		tc[1] = cy * t[2]
		clipY = true
	}
	return tc, clipX, clipY
}
