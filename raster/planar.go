// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"

	"github.com/gogpu/splat/internal/parallel"
)

// filterInvSq is the inverse squared size of the screen-space low-pass
// filter applied to planar splats. Capping the plane-space falloff at
// filterInvSq times the squared pixel distance to the projected center keeps
// near-edge-on disks at least a filter footprint wide.
const filterInvSq = 2.0

// PlanarProjection holds per-primitive planar footprints. TransMats store
// the rows of the homogeneous map from plane coordinates (u, v, 1) to screen
// space; Normals the camera-space unit plane normals, oriented toward the
// camera. Culled primitives keep zero Radii and TilesHit.
type PlanarProjection struct {
	Grid      TileGrid
	XYs       [][2]float64
	Depths    []float64
	Radii     []int32
	TransMats [][9]float64
	Normals   [][3]float64
	TilesHit  []int32
}

// ProjectPlanar computes screen-space footprints for a batch of planar disk
// splats. Each disk spans the first two rotation axes scaled by the first
// two scale components; the third component is ignored. The pixel radius
// bounds the disk at three standard deviations of the linearized projective
// map, widened by the low-pass filter.
func ProjectPlanar(means, scales [][3]float64, quats [][4]float64, p ProjectParams) *PlanarProjection {
	n := len(means)
	cam := &p.Camera
	out := &PlanarProjection{
		Grid:      NewTileGrid(cam.Width, cam.Height, p.BlockWidth),
		XYs:       make([][2]float64, n),
		Depths:    make([]float64, n),
		Radii:     make([]int32, n),
		TransMats: make([][9]float64, n),
		Normals:   make([][3]float64, n),
		TilesHit:  make([]int32, n),
	}

	w := cam.rot()
	tr := cam.trans()

	parallel.ForEach(n, p.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			center := mulVec3(w, means[i])
			center[0] += tr[0]
			center[1] += tr[1]
			center[2] += tr[2]
			if center[2] < p.ClipThresh {
				continue
			}

			qn, _ := normalizeQuat(quats[i])
			r := quatToRot(qn)
			// Camera-space tangent axes of the disk.
			a1 := vec3{r[0][0], r[1][0], r[2][0]}
			a2 := vec3{r[0][1], r[1][1], r[2][1]}
			var ax, ay vec3
			for j := 0; j < 3; j++ {
				ax[j] = (w[j][0]*a1[0] + w[j][1]*a1[1] + w[j][2]*a1[2]) * scales[i][0] * p.GlobScale
				ay[j] = (w[j][0]*a2[0] + w[j][1]*a2[1] + w[j][2]*a2[2]) * scales[i][1] * p.GlobScale
			}

			tm := planarTransMat(ax, ay, center, cam)
			rz := tm[8]
			if math.Abs(rz) < zGuard {
				continue
			}
			cx := tm[2] / rz
			cy := tm[5] / rz

			radius, ok := planarRadius(tm)
			if !ok {
				continue
			}

			hit := out.Grid.TilesHit(cx, cy, radius)
			if hit == 0 {
				continue
			}

			nrm := cross3(ax, ay)
			nl := math.Sqrt(nrm[0]*nrm[0] + nrm[1]*nrm[1] + nrm[2]*nrm[2])
			if nl > 0 {
				inv := 1 / nl
				if nrm[0]*center[0]+nrm[1]*center[1]+nrm[2]*center[2] > 0 {
					inv = -inv
				}
				nrm[0] *= inv
				nrm[1] *= inv
				nrm[2] *= inv
			}

			out.XYs[i] = [2]float64{cx, cy}
			out.Depths[i] = center[2]
			out.Radii[i] = radius
			out.TransMats[i] = tm
			out.Normals[i] = nrm
			out.TilesHit[i] = hit
		}
	})

	logger().Debug("projected planar splats",
		"count", n,
		"tilesX", out.Grid.TilesX,
		"tilesY", out.Grid.TilesY,
	)
	return out
}

// planarTransMat builds the row-major homogeneous map from plane coordinates
// to screen space: row 0 yields x·z̃, row 1 yields y·z̃, row 2 yields z̃.
func planarTransMat(ax, ay, center vec3, cam *CameraParams) [9]float64 {
	var tm [9]float64
	m := [3]vec3{ // rows of the plane-to-camera map
		{ax[0], ay[0], center[0]},
		{ax[1], ay[1], center[1]},
		{ax[2], ay[2], center[2]},
	}
	for j := 0; j < 3; j++ {
		tm[j] = cam.FX*m[0][j] + cam.CX*m[2][j]
		tm[3+j] = cam.FY*m[1][j] + cam.CY*m[2][j]
		tm[6+j] = m[2][j]
	}
	return tm
}

// planarRadius bounds the footprint by linearizing the projective map at the
// disk center and taking three standard deviations of the resulting 2D
// covariance, widened by the low-pass filter variance.
func planarRadius(tm [9]float64) (int32, bool) {
	rz := tm[8]
	inv := 1 / rz
	inv2 := inv * inv
	j00 := (tm[0]*rz - tm[2]*tm[6]) * inv2
	j01 := (tm[1]*rz - tm[2]*tm[7]) * inv2
	j10 := (tm[3]*rz - tm[5]*tm[6]) * inv2
	j11 := (tm[4]*rz - tm[5]*tm[7]) * inv2

	a := j00*j00 + j01*j01 + 1/filterInvSq
	b := j00*j10 + j01*j11
	c := j10*j10 + j11*j11 + 1/filterInvSq
	det := a*c - b*b
	if det <= 0 {
		return 0, false
	}
	return radiusFromCov2D(a, b, c, det), true
}

// RasterizePlanar composites the sorted planar splats front-to-back. The
// per-pixel weight comes from a ray-plane intersection in plane coordinates,
// capped by the screen-space low-pass falloff. Compositing thresholds and
// order match the volumetric rasterizer.
func RasterizePlanar(proj *PlanarProjection, bins *Bins, colors, opacities []float64, p RenderParams) *Render {
	grid := proj.Grid
	npix := grid.Width * grid.Height
	out := &Render{
		Image:    make([]float64, npix*p.Channels),
		FinalTs:  make([]float64, npix),
		FinalIdx: make([]int32, npix),
	}

	parallel.ForEach(grid.TileCount(), p.Workers, func(lo, hi int) {
		buf := make([]float64, p.Channels)
		for tile := lo; tile < hi; tile++ {
			planarForwardTile(out, proj, bins, colors, opacities, p.Background, tile, buf)
		}
	})
	return out
}

func planarForwardTile(out *Render, proj *PlanarProjection, bins *Bins, colors, opacities, background []float64, tile int, buf []float64) {
	x0, y0, x1, y1 := proj.Grid.TileBounds(tile)
	start, end := bins.Ranges[tile][0], bins.Ranges[tile][1]
	width := proj.Grid.Width
	d := len(buf)

	for y := y0; y < y1; y++ {
		py := float64(y)
		for x := x0; x < x1; x++ {
			px := float64(x)
			pix := y*width + x

			t := 1.0
			lastIdx := start - 1
			clear(buf)
			for cur := start; cur < end; cur++ {
				id := bins.IDs[cur]
				ev := planarEval(proj.TransMats[id], proj.XYs[id], opacities[id], px, py)
				if !ev.ok {
					continue
				}
				alpha := ev.alpha
				nextT := t * (1 - alpha)
				if nextT <= tSaturation {
					break
				}
				vis := alpha * t
				c := colors[int(id)*d : int(id+1)*d]
				for k := 0; k < d; k++ {
					buf[k] += c[k] * vis
				}
				t = nextT
				lastIdx = cur
			}

			out.FinalTs[pix] = t
			out.FinalIdx[pix] = lastIdx
			for k := 0; k < d; k++ {
				out.Image[pix*d+k] = buf[k] + t*background[k]
			}
		}
	}
}

// planarEvalResult is the per-pixel evaluation of one planar splat. The
// homogeneous intersection s, the plane coordinates (u, v), and the ray
// planes k, l are reused by the backward pass; twoD reports that the
// low-pass branch won.
type planarEvalResult struct {
	alpha float64
	vis   float64 // exp(-sigma), before the opacity multiply
	s     vec3
	k, l  vec3
	u, v  float64
	twoD  bool
	ok    bool
}

// planarEval intersects the pixel ray with the splat plane and evaluates the
// disk falloff at the hit point, capped by the screen-space low-pass
// falloff around the projected center.
func planarEval(tm [9]float64, xy [2]float64, opacity, px, py float64) planarEvalResult {
	var ev planarEvalResult
	r1 := vec3{tm[0], tm[1], tm[2]}
	r2 := vec3{tm[3], tm[4], tm[5]}
	r3 := vec3{tm[6], tm[7], tm[8]}
	ev.k = vec3{px*r3[0] - r1[0], px*r3[1] - r1[1], px*r3[2] - r1[2]}
	ev.l = vec3{py*r3[0] - r2[0], py*r3[1] - r2[1], py*r3[2] - r2[2]}
	ev.s = cross3(ev.k, ev.l)
	if ev.s[2] == 0 {
		return ev
	}
	ev.u = ev.s[0] / ev.s[2]
	ev.v = ev.s[1] / ev.s[2]

	rho3d := ev.u*ev.u + ev.v*ev.v
	dx := xy[0] - px
	dy := xy[1] - py
	rho2d := filterInvSq * (dx*dx + dy*dy)
	rho := rho3d
	if rho2d < rho3d {
		rho = rho2d
		ev.twoD = true
	}

	sigma := 0.5 * rho
	if !(sigma >= 0) {
		return ev
	}
	ev.vis = math.Exp(-sigma)
	ev.alpha = math.Min(alphaClamp, opacity*ev.vis)
	if ev.alpha < alphaSkip {
		return ev
	}
	ev.ok = true
	return ev
}
