// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"

	"github.com/gogpu/splat/internal/parallel"
)

// Compositing thresholds. A primitive below alphaSkip contributes nothing;
// alphaClamp caps single-primitive opacity; compositing stops for a pixel
// once transmittance would drop to tSaturation or below.
const (
	alphaClamp  = 0.999
	alphaSkip   = 1.0 / 255.0
	tSaturation = 1e-4
)

// RenderParams configures one rasterize pass over an existing projection.
type RenderParams struct {
	Channels   int
	Background []float64
	Workers    int
}

// Render is the forward rasterization output. FinalTs and FinalIdx record,
// per pixel, the residual transmittance and the index into Bins.IDs of the
// last contributing primitive; the backward pass replays compositing from
// there. FinalIdx is start-1 for pixels where nothing contributed.
type Render struct {
	Image    []float64 // Height*Width*Channels, row-major
	FinalTs  []float64 // Height*Width
	FinalIdx []int32   // Height*Width
}

// RasterizeForward composites the sorted splats front-to-back, one goroutine
// batch of tiles at a time. Tiles own disjoint pixel ranges, so the image is
// bit-identical for every worker count.
func RasterizeForward(proj *Projection, bins *Bins, colors, opacities []float64, p RenderParams) *Render {
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
			if p.Channels == 3 {
				forwardTile3(out, proj, bins, colors, opacities, p.Background, tile)
			} else {
				forwardTileND(out, proj, bins, colors, opacities, p.Background, tile, buf)
			}
		}
	})
	return out
}

// forwardTile3 is the specialized three-channel path; it keeps the pixel
// accumulator in registers instead of a slice.
func forwardTile3(out *Render, proj *Projection, bins *Bins, colors, opacities, background []float64, tile int) {
	x0, y0, x1, y1 := proj.Grid.TileBounds(tile)
	start, end := bins.Ranges[tile][0], bins.Ranges[tile][1]
	width := proj.Grid.Width

	for y := y0; y < y1; y++ {
		py := float64(y)
		for x := x0; x < x1; x++ {
			px := float64(x)
			pix := y*width + x

			t := 1.0
			lastIdx := start - 1
			var r, g, b float64
			for cur := start; cur < end; cur++ {
				id := bins.IDs[cur]
				alpha, ok := splatAlpha(proj.Conics[id], proj.XYs[id], opacities[id], px, py)
				if !ok {
					continue
				}
				nextT := t * (1 - alpha)
				if nextT <= tSaturation {
					break
				}
				vis := alpha * t
				c := colors[int(id)*3 : int(id)*3+3]
				r += c[0] * vis
				g += c[1] * vis
				b += c[2] * vis
				t = nextT
				lastIdx = cur
			}

			out.FinalTs[pix] = t
			out.FinalIdx[pix] = lastIdx
			out.Image[pix*3+0] = r + t*background[0]
			out.Image[pix*3+1] = g + t*background[1]
			out.Image[pix*3+2] = b + t*background[2]
		}
	}
}

// forwardTileND handles arbitrary channel counts with a scratch accumulator.
// It follows forwardTile3 exactly; the two paths must stay numerically
// identical.
func forwardTileND(out *Render, proj *Projection, bins *Bins, colors, opacities, background []float64, tile int, buf []float64) {
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
				alpha, ok := splatAlpha(proj.Conics[id], proj.XYs[id], opacities[id], px, py)
				if !ok {
					continue
				}
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

// splatAlpha evaluates the Gaussian footprint at a pixel center. ok is false
// when the contribution is negligible or the quadratic form is negative
// (numerical noise in a degenerate conic).
func splatAlpha(conic [3]float64, xy [2]float64, opacity, px, py float64) (alpha float64, ok bool) {
	dx := xy[0] - px
	dy := xy[1] - py
	sigma := 0.5*(conic[0]*dx*dx+conic[2]*dy*dy) + conic[1]*dx*dy
	if sigma < 0 {
		return 0, false
	}
	alpha = math.Min(alphaClamp, opacity*math.Exp(-sigma))
	if alpha < alphaSkip {
		return 0, false
	}
	return alpha, true
}
