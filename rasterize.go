package splat

import "github.com/gogpu/splat/raster"

// Render is the output of one forward rasterization: a row-major
// Height x Width x Channels image with the background composited under the
// splats, and optionally the accumulated opacity. Render keeps the
// compositing replay state (per-pixel residual transmittance and last
// contributor), so Backward needs only the upstream image gradients.
type Render struct {
	Image    []float64
	Alpha    []float64 // 1 - final transmittance, nil unless WithAlpha
	Width    int
	Height   int
	Channels int

	proj   *Projection
	bins   *raster.Bins
	raw    *raster.Render
	params raster.RenderParams
}

// RenderGrad holds gradients with respect to the rasterizer inputs. XYsAbs
// carries the sum of absolute screen-position gradient contributions, which
// densification heuristics use where the signed XYs sum cancels. XYs,
// Conics, and Compensations feed Projection.Backward as the upstream
// ProjectionGrad.
type RenderGrad struct {
	XYs           [][2]float64
	XYsAbs        [][2]float64
	Conics        [][3]float64
	Colors        []float64
	Opacities     []float64
	Compensations []float64
	Background    []float64
}

// Rasterize bins the projected footprints into tiles, sorts each tile
// front-to-back by depth, and alpha-composites the batch over the
// background. gs must be the batch p was projected from. The draw order is
// deterministic (depth, then primitive index) and the output is
// bit-identical for every worker count.
func Rasterize(p *Projection, gs *Gaussians, opts ...RasterizeOption) (*Render, error) {
	if p == nil || p.raw == nil {
		return nil, ErrNoProjection
	}
	if err := gs.validate(); err != nil {
		return nil, err
	}
	if gs.Len() != len(p.XYs) {
		return nil, ErrDimensionMismatch
	}
	o := defaultRasterizeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.background == nil {
		o.background = onesBackground(gs.Channels)
	}
	if len(o.background) != gs.Channels {
		return nil, ErrChannelMismatch
	}

	// An entirely culled batch is not an error: the bins come out empty and
	// the output is the background with zero accumulated alpha.
	bins := raster.BinSplats(p.raw.Grid, p.XYs, p.Depths, p.Radii, p.TilesHit)
	params := raster.RenderParams{
		Channels:   gs.Channels,
		Background: o.background,
		Workers:    o.workers,
	}

	// Apply the antialiasing compensation by pre-scaling opacities; its
	// gradient is unfolded in Backward.
	opac := compensatedOpacities(gs.Opacities, p.Compensations)
	raw := raster.RasterizeForward(p.raw, bins, gs.Colors, opac, params)

	out := &Render{
		Image:    raw.Image,
		Width:    p.params.Camera.Width,
		Height:   p.params.Camera.Height,
		Channels: gs.Channels,
		proj:     p,
		bins:     bins,
		raw:      raw,
		params:   params,
	}
	if o.returnAlfa {
		out.Alpha = make([]float64, len(raw.FinalTs))
		for i, t := range raw.FinalTs {
			out.Alpha[i] = 1 - t
		}
	}
	return out, nil
}

// Backward replays the compositing order in reverse and returns gradients
// with respect to the rasterizer inputs. vImage must hold
// Height*Width*Channels values; vAlpha is optional and, when set, must hold
// Height*Width values.
func (r *Render) Backward(vImage, vAlpha []float64) (*RenderGrad, error) {
	if len(vImage) != r.Width*r.Height*r.Channels {
		return nil, ErrDimensionMismatch
	}
	if vAlpha != nil && len(vAlpha) != r.Width*r.Height {
		return nil, ErrDimensionMismatch
	}

	gs := r.proj.gs
	opac := compensatedOpacities(gs.Opacities, r.proj.Compensations)
	raw := raster.RasterizeBackward(r.proj.raw, r.bins, gs.Colors, opac, r.params, r.raw, vImage, vAlpha)

	// Unfold the compensation pre-scaling: the kernel saw opacity*comp, so
	// its opacity gradient splits between the two factors.
	n := gs.Len()
	vOpac := make([]float64, n)
	vComp := make([]float64, n)
	for i := 0; i < n; i++ {
		vOpac[i] = raw.Opacities[i] * r.proj.Compensations[i]
		vComp[i] = raw.Opacities[i] * gs.Opacities[i]
	}

	return &RenderGrad{
		XYs:           raw.XYs,
		XYsAbs:        raw.XYsAbs,
		Conics:        raw.Conics,
		Colors:        raw.Colors,
		Opacities:     vOpac,
		Compensations: vComp,
		Background:    raw.Background,
	}, nil
}

func compensatedOpacities(opacities, compensations []float64) []float64 {
	out := make([]float64, len(opacities))
	for i, op := range opacities {
		out[i] = op * compensations[i]
	}
	return out
}

func onesBackground(d int) []float64 {
	bg := make([]float64, d)
	for i := range bg {
		bg[i] = 1
	}
	return bg
}
