// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/splat/internal/parallel"
)

// ProjectionGrads carries the upstream gradients flowing into the projection
// backward pass. Nil slices are treated as zero.
type ProjectionGrads struct {
	XYs           [][2]float64
	Depths        []float64
	Conics        [][3]float64
	Compensations []float64
}

// GaussianGrads holds gradients with respect to the world-space primitive
// parameters. View is only populated when pose gradients were requested; it
// is a first-order approximation that differentiates the camera transform of
// the means but not its appearance inside the covariance projection.
type GaussianGrads struct {
	Means  [][3]float64
	Scales [][3]float64
	Quats  [][4]float64
	View   *mgl64.Mat4
}

// ProjectGaussiansBackward replays the projection per primitive and chains
// the upstream footprint gradients back to means, scales, and quaternions.
// Culled primitives (zero radius) receive zero gradients.
func ProjectGaussiansBackward(means, scales [][3]float64, quats [][4]float64, p ProjectParams, proj *Projection, g ProjectionGrads, poseGrads bool) *GaussianGrads {
	n := len(means)
	out := &GaussianGrads{
		Means:  make([][3]float64, n),
		Scales: make([][3]float64, n),
		Quats:  make([][4]float64, n),
	}

	cam := &p.Camera
	w := cam.rot()
	tr := cam.trans()
	limX := fovClamp * 0.5 * float64(cam.Width) / cam.FX
	limY := fovClamp * 0.5 * float64(cam.Height) / cam.FY

	// Row-major 3x4 view gradient, reduced atomically across workers.
	var vView []float64
	if poseGrads {
		vView = make([]float64, 12)
	}

	parallel.ForEach(n, p.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if proj.Radii[i] == 0 {
				continue
			}

			t := mulVec3(w, means[i])
			t[0] += tr[0]
			t[1] += tr[1]
			t[2] += tr[2]
			tc, clipX, clipY := clampRay(t, limX, limY)

			var vConic [3]float64
			if g.Conics != nil {
				vConic = g.Conics[i]
			}
			va, vb, vc := cov2DToConicVJP(proj.Conics[i], vConic)

			if g.Compensations != nil && g.Compensations[i] != 0 {
				a, b, c, comp := projectCov3D(proj.Cov3Ds[i], tc, cam.FX, cam.FY, w)
				ca, cb, cc := compensationVJP(a, b, c, comp, g.Compensations[i])
				va += ca
				vb += cb
				vc += cc
			}

			vCov3, vT := projectCov3DVJP(proj.Cov3Ds[i], tc, cam.FX, cam.FY, w, va, vb, vc, clipX, clipY)

			// Screen position and depth gradients flow through the
			// unclamped view-space point.
			if g.XYs != nil {
				rw := 1 / (t[2] + zGuard)
				vx, vy := g.XYs[i][0], g.XYs[i][1]
				vT[0] += cam.FX * rw * vx
				vT[1] += cam.FY * rw * vy
				vT[2] -= (cam.FX*t[0]*vx + cam.FY*t[1]*vy) * rw * rw
			}
			if g.Depths != nil {
				vT[2] += g.Depths[i]
			}

			out.Means[i] = mulVec3T(w, vT)

			qn, norm := normalizeQuat(quats[i])
			r := quatToRot(qn)
			vScale, vR := scaleRotToCov3DVJP(scales[i], p.GlobScale, r, vCov3)
			out.Scales[i] = vScale
			out.Quats[i] = normalizeQuatVJP(qn, norm, quatToRotVJP(qn, vR))

			if poseGrads {
				for j := 0; j < 3; j++ {
					for l := 0; l < 3; l++ {
						atomicAddFloat64(&vView[j*4+l], vT[j]*means[i][l])
					}
					atomicAddFloat64(&vView[j*4+3], vT[j])
				}
			}
		}
	})

	if poseGrads {
		var m mgl64.Mat4
		for j := 0; j < 3; j++ {
			for l := 0; l < 4; l++ {
				m.Set(j, l, vView[j*4+l])
			}
		}
		out.View = &m
	}
	return out
}
