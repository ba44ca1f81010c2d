// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"
	"testing"

	"github.com/gogpu/splat/gradcheck"
)

// lossWeights returns a deterministic, sign-varying weighting so gradient
// contributions do not cancel by symmetry.
func lossWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Sin(float64(i)*0.7+0.3) + 0.1
	}
	return w
}

// TestRasterizeBackwardFiniteDifference drives two overlapping splats
// through the forward compositor and checks every rasterizer gradient
// against central differences of a weighted image-plus-alpha loss. The
// scene keeps all per-pixel alphas away from the skip and saturation
// thresholds so the loss is smooth at the test point.
func TestRasterizeBackwardFiniteDifference(t *testing.T) {
	const width, height = 8, 8
	depths := []float64{1, 2}
	bg := []float64{0.1, 0.2, 0.3}
	wImg := lossWeights(width * height * 3)
	wAlpha := lossWeights(width * height)

	// x packs [xy0, xy1, conic0, conic1, opacity0, opacity1, color0, color1].
	x := []float64{
		3.2, 4.1, 5.6, 2.4,
		0.3, 0.05, 0.25, 0.2, -0.04, 0.35,
		0.6, 0.5,
		0.8, 0.3, 0.5, 0.2, 0.7, 0.4,
	}

	unpack := func(x []float64) (xys [][2]float64, conics [][3]float64, opac, colors []float64) {
		xys = [][2]float64{{x[0], x[1]}, {x[2], x[3]}}
		conics = [][3]float64{{x[4], x[5], x[6]}, {x[7], x[8], x[9]}}
		opac = []float64{x[10], x[11]}
		colors = []float64{x[12], x[13], x[14], x[15], x[16], x[17]}
		return xys, conics, opac, colors
	}

	run := func(x []float64) (*Projection, *Bins, *Render, []float64, []float64, RenderParams) {
		xys, conics, opac, colors := unpack(x)
		proj := testProjection(width, height, xys, depths, conics)
		bins := BinSplats(proj.Grid, proj.XYs, proj.Depths, proj.Radii, proj.TilesHit)
		params := RenderParams{Channels: 3, Background: bg, Workers: 1}
		r := RasterizeForward(proj, bins, colors, opac, params)
		return proj, bins, r, opac, colors, params
	}

	f := func(x []float64) float64 {
		_, _, r, _, _, _ := run(x)
		loss := 0.0
		for i, v := range r.Image {
			loss += wImg[i] * v
		}
		for i, ft := range r.FinalTs {
			loss += wAlpha[i] * (1 - ft)
		}
		return loss
	}

	proj, bins, r, opac, colors, params := run(x)
	grads := RasterizeBackward(proj, bins, colors, opac, params, r, wImg, wAlpha)

	analytic := []float64{
		grads.XYs[0][0], grads.XYs[0][1], grads.XYs[1][0], grads.XYs[1][1],
		grads.Conics[0][0], grads.Conics[0][1], grads.Conics[0][2],
		grads.Conics[1][0], grads.Conics[1][1], grads.Conics[1][2],
		grads.Opacities[0], grads.Opacities[1],
		grads.Colors[0], grads.Colors[1], grads.Colors[2],
		grads.Colors[3], grads.Colors[4], grads.Colors[5],
	}

	s := gradcheck.Settings{Step: 1e-6, RelTol: 1e-5, AbsTol: 1e-9}
	if err := gradcheck.Check(f, x, analytic, s); err != nil {
		t.Error(err)
	}
}

func TestBackgroundGradient(t *testing.T) {
	proj := testProjection(8, 8, [][2]float64{{3.5, 3.5}}, []float64{1}, [][3]float64{{0.4, 0, 0.4}})
	bins := BinSplats(proj.Grid, proj.XYs, proj.Depths, proj.Radii, proj.TilesHit)
	colors := []float64{0.9, 0.1, 0.4}
	opac := []float64{0.5}
	params := RenderParams{Channels: 3, Background: []float64{0.2, 0.4, 0.6}, Workers: 1}

	r := RasterizeForward(proj, bins, colors, opac, params)
	vImage := make([]float64, 8*8*3)
	for i := range vImage {
		vImage[i] = 1
	}
	grads := RasterizeBackward(proj, bins, colors, opac, params, r, vImage, nil)

	// d image / d background_c sums the per-pixel residual transmittance.
	var want float64
	for _, ft := range r.FinalTs {
		want += ft
	}
	for k := 0; k < 3; k++ {
		if math.Abs(grads.Background[k]-want) > 1e-9 {
			t.Errorf("background gradient[%d] = %v, want %v", k, grads.Background[k], want)
		}
	}
}

func TestBackwardGradientsDeterministicAcrossWorkers(t *testing.T) {
	proj := testProjection(48, 48,
		[][2]float64{{10.2, 11.7}, {30.1, 8.4}, {25.5, 40.3}},
		[]float64{3, 1, 2},
		[][3]float64{{0.1, 0.02, 0.12}, {0.08, -0.01, 0.1}, {0.2, 0.05, 0.15}},
	)
	bins := BinSplats(proj.Grid, proj.XYs, proj.Depths, proj.Radii, proj.TilesHit)
	colors := []float64{0.9, 0.1, 0.2, 0.2, 0.8, 0.3, 0.1, 0.3, 0.9}
	opac := []float64{0.6, 0.5, 0.7}
	bg := []float64{1, 1, 1}
	vImage := lossWeights(48 * 48 * 3)

	params1 := RenderParams{Channels: 3, Background: bg, Workers: 1}
	r := RasterizeForward(proj, bins, colors, opac, params1)
	ref := RasterizeBackward(proj, bins, colors, opac, params1, r, vImage, nil)

	params4 := RenderParams{Channels: 3, Background: bg, Workers: 4}
	got := RasterizeBackward(proj, bins, colors, opac, params4, r, vImage, nil)

	// Atomic accumulation reorders float additions across workers, so
	// compare to a tolerance rather than bit-exactly.
	for i := range ref.Opacities {
		if math.Abs(ref.Opacities[i]-got.Opacities[i]) > 1e-10 {
			t.Errorf("opacity gradient %d differs across workers: %v vs %v", i, ref.Opacities[i], got.Opacities[i])
		}
		for k := 0; k < 2; k++ {
			if math.Abs(ref.XYs[i][k]-got.XYs[i][k]) > 1e-10 {
				t.Errorf("xy gradient %d differs across workers", i)
			}
		}
	}
}
