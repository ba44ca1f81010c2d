// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"

	"github.com/gogpu/splat/internal/parallel"
)

// RenderGrads holds gradients with respect to the rasterizer inputs. XYsAbs
// accumulates the absolute value of each screen-position gradient
// contribution; densification heuristics use it to find primitives whose
// per-pixel gradients cancel in the signed sum.
type RenderGrads struct {
	XYs        [][2]float64
	XYsAbs     [][2]float64
	Conics     [][3]float64
	Colors     []float64
	Opacities  []float64
	Background []float64
}

// RasterizeBackward replays each pixel's compositing sequence in reverse,
// starting from the recorded last contributor, and reconstructs the
// transmittance in front of every primitive from the residual value. The
// replay visits exactly the primitives that contributed in the forward pass,
// so gradients match the forward compositing order exactly; primitives cut
// off by saturation receive zero gradient.
//
// Many tiles reduce onto the same primitive, so accumulation uses atomic
// float adds. vAlpha may be nil when no gradient flows through the alpha
// output.
func RasterizeBackward(proj *Projection, bins *Bins, colors, opacities []float64, p RenderParams, r *Render, vImage, vAlpha []float64) *RenderGrads {
	n := len(proj.XYs)
	grid := proj.Grid
	d := p.Channels
	out := &RenderGrads{
		XYs:        make([][2]float64, n),
		XYsAbs:     make([][2]float64, n),
		Conics:     make([][3]float64, n),
		Colors:     make([]float64, n*d),
		Opacities:  make([]float64, n),
		Background: make([]float64, d),
	}

	parallel.ForEach(grid.TileCount(), p.Workers, func(lo, hi int) {
		behind := make([]float64, d)
		vBg := make([]float64, d)
		for tile := lo; tile < hi; tile++ {
			backwardTile(out, proj, bins, colors, opacities, p.Background, r, vImage, vAlpha, tile, behind, vBg)
		}
		for k := 0; k < d; k++ {
			atomicAddFloat64(&out.Background[k], vBg[k])
		}
	})
	return out
}

func backwardTile(out *RenderGrads, proj *Projection, bins *Bins, colors, opacities, background []float64, r *Render, vImage, vAlpha []float64, tile int, behind, vBg []float64) {
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
				conic := proj.Conics[id]
				xy := proj.XYs[id]
				dx := xy[0] - px
				dy := xy[1] - py
				sigma := 0.5*(conic[0]*dx*dx+conic[2]*dy*dy) + conic[1]*dx*dy
				if sigma < 0 {
					continue
				}
				vis := math.Exp(-sigma)
				alpha := math.Min(alphaClamp, opacities[id]*vis)
				if alpha < alphaSkip {
					continue
				}

				// Transmittance in front of this primitive.
				ra := 1 / (1 - alpha)
				t *= ra
				fac := alpha * t

				vAlphaAcc := 0.0
				c := colors[int(id)*d : int(id+1)*d]
				for k := 0; k < d; k++ {
					atomicAddFloat64(&out.Colors[int(id)*d+k], fac*vOut[k])
					vAlphaAcc += (c[k]*t - behind[k]*ra) * vOut[k]
					behind[k] += c[k] * fac
				}
				vAlphaAcc += tFinal * ra * vOutAlpha
				vAlphaAcc -= tFinal * ra * bgDot

				vSigma := -opacities[id] * vis * vAlphaAcc
				atomicAddFloat64(&out.Conics[id][0], 0.5*vSigma*dx*dx)
				atomicAddFloat64(&out.Conics[id][1], 0.5*vSigma*dx*dy)
				atomicAddFloat64(&out.Conics[id][2], 0.5*vSigma*dy*dy)

				gx := vSigma * (conic[0]*dx + conic[1]*dy)
				gy := vSigma * (conic[1]*dx + conic[2]*dy)
				atomicAddFloat64(&out.XYs[id][0], gx)
				atomicAddFloat64(&out.XYs[id][1], gy)
				atomicAddFloat64(&out.XYsAbs[id][0], math.Abs(gx))
				atomicAddFloat64(&out.XYsAbs[id][1], math.Abs(gy))

				atomicAddFloat64(&out.Opacities[id], vis*vAlphaAcc)
			}
		}
	}
}
