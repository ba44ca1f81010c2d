// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/splat/internal/parallel"
)

// PlanarRenderGrads holds gradients with respect to the planar rasterizer
// inputs. The 3x3 transform rows absorb the ray-splat branch; XYs only
// receive gradient from pixels where the screen-space low-pass branch won.
type PlanarRenderGrads struct {
	TransMats  [][9]float64
	XYs        [][2]float64
	XYsAbs     [][2]float64
	Colors     []float64
	Opacities  []float64
	Background []float64
}

// PlanarProjectionGrads carries the upstream gradients flowing into the
// planar projection backward pass. Nil slices are treated as zero.
type PlanarProjectionGrads struct {
	TransMats [][9]float64
	XYs       [][2]float64
	Depths    []float64
}

// RasterizePlanarBackward replays each pixel's compositing sequence in
// reverse, mirroring RasterizeBackward. The alpha gradient splits by the
// branch taken in the forward evaluation: the low-pass branch differentiates
// the pixel distance to the projected center, the ray-splat branch chains
// through the cross products back to the transform rows.
func RasterizePlanarBackward(proj *PlanarProjection, bins *Bins, colors, opacities []float64, p RenderParams, r *Render, vImage, vAlpha []float64) *PlanarRenderGrads {
	n := len(proj.XYs)
	grid := proj.Grid
	d := p.Channels
	out := &PlanarRenderGrads{
		TransMats:  make([][9]float64, n),
		XYs:        make([][2]float64, n),
		XYsAbs:     make([][2]float64, n),
		Colors:     make([]float64, n*d),
		Opacities:  make([]float64, n),
		Background: make([]float64, d),
	}

	parallel.ForEach(grid.TileCount(), p.Workers, func(lo, hi int) {
		behind := make([]float64, d)
		vBg := make([]float64, d)
		for tile := lo; tile < hi; tile++ {
			planarBackwardTile(out, proj, bins, colors, opacities, p.Background, r, vImage, vAlpha, tile, behind, vBg)
		}
		for k := 0; k < d; k++ {
			atomicAddFloat64(&out.Background[k], vBg[k])
		}
	})
	return out
}

func planarBackwardTile(out *PlanarRenderGrads, proj *PlanarProjection, bins *Bins, colors, opacities, background []float64, r *Render, vImage, vAlpha []float64, tile int, behind, vBg []float64) {
	x0, y0, x1, y1 := proj.Grid.TileBounds(tile)
	start := bins.Ranges[tile][0]
	width := proj.Grid.Width
	d := len(behind)

	for y := y0; y < y1; y++ {
		py := float64(y)
		for x := x0; x < x1; x++ {
			px := float64(x)
			pix := y*width + x

			vOut := vImage[pix*d : (pix+1)*d]
			vOutAlpha := 0.0
			if vAlpha != nil {
				vOutAlpha = vAlpha[pix]
			}
			bgDot := 0.0
			for k := 0; k < d; k++ {
				bgDot += background[k] * vOut[k]
				vBg[k] += r.FinalTs[pix] * vOut[k]
			}

			tFinal := r.FinalTs[pix]
			t := tFinal
			clear(behind)

			for cur := r.FinalIdx[pix]; cur >= start; cur-- {
				id := bins.IDs[cur]
				ev := planarEval(proj.TransMats[id], proj.XYs[id], opacities[id], px, py)
				if !ev.ok {
					continue
				}

				ra := 1 / (1 - ev.alpha)
				t *= ra
				fac := ev.alpha * t

				vAlphaAcc := 0.0
				c := colors[int(id)*d : int(id+1)*d]
				for k := 0; k < d; k++ {
					atomicAddFloat64(&out.Colors[int(id)*d+k], fac*vOut[k])
					vAlphaAcc += (c[k]*t - behind[k]*ra) * vOut[k]
					behind[k] += c[k] * fac
				}
				vAlphaAcc += tFinal * ra * vOutAlpha
				vAlphaAcc -= tFinal * ra * bgDot

				vSigma := -opacities[id] * ev.vis * vAlphaAcc
				vRho := 0.5 * vSigma

				if ev.twoD {
					dx := proj.XYs[id][0] - px
					dy := proj.XYs[id][1] - py
					gx := 2 * filterInvSq * dx * vRho
					gy := 2 * filterInvSq * dy * vRho
					atomicAddFloat64(&out.XYs[id][0], gx)
					atomicAddFloat64(&out.XYs[id][1], gy)
					atomicAddFloat64(&out.XYsAbs[id][0], math.Abs(gx))
					atomicAddFloat64(&out.XYsAbs[id][1], math.Abs(gy))
				} else {
					invSz := 1 / ev.s[2]
					vU := 2 * ev.u * vRho
					vV := 2 * ev.v * vRho
					vS := vec3{vU * invSz, vV * invSz, -(ev.u*vU + ev.v*vV) * invSz}
					vK := cross3(ev.l, vS)
					vL := cross3(vS, ev.k)
					for j := 0; j < 3; j++ {
						atomicAddFloat64(&out.TransMats[id][j], -vK[j])
						atomicAddFloat64(&out.TransMats[id][3+j], -vL[j])
						atomicAddFloat64(&out.TransMats[id][6+j], px*vK[j]+py*vL[j])
					}
				}

				atomicAddFloat64(&out.Opacities[id], ev.vis*vAlphaAcc)
			}
		}
	}
}

// ProjectPlanarBackward chains gradients on the transform rows, projected
// centers, and depths back to means, scales, and quaternions. The disk
// normal is treated as non-differentiable: no loss in this package renders
// it, so nothing flows through the orientation sign flip.
func ProjectPlanarBackward(means, scales [][3]float64, quats [][4]float64, p ProjectParams, proj *PlanarProjection, g PlanarProjectionGrads, poseGrads bool) *GaussianGrads {
	n := len(means)
	out := &GaussianGrads{
		Means:  make([][3]float64, n),
		Scales: make([][3]float64, n),
		Quats:  make([][4]float64, n),
	}

	cam := &p.Camera
	w := cam.rot()

	var vView []float64
	if poseGrads {
		vView = make([]float64, 12)
	}

	parallel.ForEach(n, p.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if proj.Radii[i] == 0 {
				continue
			}

			var vR1, vR2, vR3 vec3
			if g.TransMats != nil {
				tm := g.TransMats[i]
				vR1 = vec3{tm[0], tm[1], tm[2]}
				vR2 = vec3{tm[3], tm[4], tm[5]}
				vR3 = vec3{tm[6], tm[7], tm[8]}
			}

			// Fold the projected-center gradient into the transform rows:
			// cx = r1[2]/r3[2], cy = r2[2]/r3[2].
			if g.XYs != nil {
				rz := proj.TransMats[i][8]
				invRz := 1 / rz
				vx, vy := g.XYs[i][0], g.XYs[i][1]
				vR1[2] += vx * invRz
				vR2[2] += vy * invRz
				vR3[2] -= (proj.TransMats[i][2]*vx + proj.TransMats[i][5]*vy) * invRz * invRz
			}

			// Rows of the plane-to-camera map: v_m0 = fx·v_r1,
			// v_m1 = fy·v_r2, v_m2 = cx·v_r1 + cy·v_r2 + v_r3.
			var vM mat3
			for j := 0; j < 3; j++ {
				vM[0][j] = cam.FX * vR1[j]
				vM[1][j] = cam.FY * vR2[j]
				vM[2][j] = cam.CX*vR1[j] + cam.CY*vR2[j] + vR3[j]
			}
			if g.Depths != nil {
				vM[2][2] += g.Depths[i]
			}

			qn, norm := normalizeQuat(quats[i])
			r := quatToRot(qn)
			a1 := vec3{r[0][0], r[1][0], r[2][0]}
			a2 := vec3{r[0][1], r[1][1], r[2][1]}

			// v_A = Wᵀ·v_M, columns: scaled tangent axes and the mean.
			vA := mul3(transpose3(w), vM)
			vAx := vec3{vA[0][0], vA[1][0], vA[2][0]}
			vAy := vec3{vA[0][1], vA[1][1], vA[2][1]}
			out.Means[i] = vec3{vA[0][2], vA[1][2], vA[2][2]}

			s0 := scales[i][0] * p.GlobScale
			s1 := scales[i][1] * p.GlobScale
			out.Scales[i] = vec3{
				(a1[0]*vAx[0] + a1[1]*vAx[1] + a1[2]*vAx[2]) * p.GlobScale,
				(a2[0]*vAy[0] + a2[1]*vAy[1] + a2[2]*vAy[2]) * p.GlobScale,
				0,
			}

			var vR mat3
			for j := 0; j < 3; j++ {
				vR[j][0] = vAx[j] * s0
				vR[j][1] = vAy[j] * s1
			}
			out.Quats[i] = normalizeQuatVJP(qn, norm, quatToRotVJP(qn, vR))

			if poseGrads {
				// M = W·A + [0|0|t]: v_W[r][k] = Σ_c v_M[r][c]·A[k][c],
				// v_t[r] = v_M[r][2].
				ax := vec3{a1[0] * s0, a1[1] * s0, a1[2] * s0}
				ay := vec3{a2[0] * s1, a2[1] * s1, a2[2] * s1}
				for row := 0; row < 3; row++ {
					for k := 0; k < 3; k++ {
						gw := vM[row][0]*ax[k] + vM[row][1]*ay[k] + vM[row][2]*means[i][k]
						atomicAddFloat64(&vView[row*4+k], gw)
					}
					atomicAddFloat64(&vView[row*4+3], vM[row][2])
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
