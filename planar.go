package splat

import "github.com/gogpu/splat/raster"

// PlanarProjection holds the screen-space footprints of a batch rendered as
// flat disk splats. Each primitive is the unit disk spanned by its first two
// scaled rotation axes; TransMats map plane coordinates (u, v, 1) to
// homogeneous screen space, and pixels intersect the disk by a ray-plane
// test instead of a conic falloff.
type PlanarProjection struct {
	// XYs are projected disk centers in pixel coordinates.
	XYs [][2]float64

	// Depths are camera-space depths of the disk centers.
	Depths []float64

	// Radii are footprint bounds in pixels, zero for culled primitives.
	Radii []int32

	// TransMats hold the rows of the plane-to-screen homogeneous map.
	TransMats [][9]float64

	// Normals are camera-space unit plane normals oriented toward the
	// camera. Normals are a rendering byproduct for downstream consumers
	// and carry no gradient.
	Normals [][3]float64

	// TilesHit counts tiles overlapped by each footprint.
	TilesHit []int32

	gs        *Gaussians
	params    raster.ProjectParams
	raw       *raster.PlanarProjection
	poseGrads bool
}

// PlanarProjectionGrad carries upstream gradients into
// PlanarProjection.Backward. Nil fields contribute nothing.
type PlanarProjectionGrad struct {
	TransMats [][9]float64
	XYs       [][2]float64
	Depths    []float64
}

// ProjectPlanar transforms a batch into planar disk footprints under cam.
// The third scale component is ignored; everything else mirrors Project,
// including culling and tile-overlap counting.
func ProjectPlanar(gs *Gaussians, cam *Camera, opts ...ProjectOption) (*PlanarProjection, error) {
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
	raw := raster.ProjectPlanar(gs.Means, gs.Scales, gs.Quats, params)
	return &PlanarProjection{
		XYs:       raw.XYs,
		Depths:    raw.Depths,
		Radii:     raw.Radii,
		TransMats: raw.TransMats,
		Normals:   raw.Normals,
		TilesHit:  raw.TilesHit,
		gs:        gs,
		params:    params,
		raw:       raw,
		poseGrads: o.poseGradients,
	}, nil
}

// Backward chains upstream footprint gradients back to the world-space
// parameters of the batch this projection was created from. The disk normal
// is non-differentiable.
func (p *PlanarProjection) Backward(g PlanarProjectionGrad) (*GaussianGrad, error) {
	n := p.gs.Len()
	if err := checkGradLen(len(g.TransMats), n); err != nil {
		return nil, err
	}
	if err := checkGradLen(len(g.XYs), n); err != nil {
		return nil, err
	}
	if err := checkGradLen(len(g.Depths), n); err != nil {
		return nil, err
	}

	raw := raster.ProjectPlanarBackward(p.gs.Means, p.gs.Scales, p.gs.Quats, p.params, p.raw, raster.PlanarProjectionGrads{
		TransMats: g.TransMats,
		XYs:       g.XYs,
		Depths:    g.Depths,
	}, p.poseGrads)
	return &GaussianGrad{
		Means:  raw.Means,
		Scales: raw.Scales,
		Quats:  raw.Quats,
		View:   raw.View,
	}, nil
}

// PlanarRender is the output of one planar forward rasterization. See Render
// for the field conventions.
type PlanarRender struct {
	Image    []float64
	Alpha    []float64 // 1 - final transmittance, nil unless WithAlpha
	Width    int
	Height   int
	Channels int

	proj   *PlanarProjection
	bins   *raster.Bins
	raw    *raster.Render
	params raster.RenderParams
}

// PlanarRenderGrad holds gradients with respect to the planar rasterizer
// inputs. TransMats absorb the ray-splat branch of the falloff; XYs receive
// gradient only where the screen-space low-pass branch was active.
type PlanarRenderGrad struct {
	TransMats  [][9]float64
	XYs        [][2]float64
	XYsAbs     [][2]float64
	Colors     []float64
	Opacities  []float64
	Background []float64
}

// RasterizePlanar composites the planar footprints front-to-back with the
// same binning, ordering, and determinism guarantees as Rasterize.
func RasterizePlanar(p *PlanarProjection, gs *Gaussians, opts ...RasterizeOption) (*PlanarRender, error) {
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
	raw := raster.RasterizePlanar(p.raw, bins, gs.Colors, gs.Opacities, params)

	out := &PlanarRender{
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

// Backward replays the planar compositing order in reverse. vImage must hold
// Height*Width*Channels values; vAlpha is optional and, when set, must hold
// Height*Width values.
func (r *PlanarRender) Backward(vImage, vAlpha []float64) (*PlanarRenderGrad, error) {
	if len(vImage) != r.Width*r.Height*r.Channels {
		return nil, ErrDimensionMismatch
	}
	if vAlpha != nil && len(vAlpha) != r.Width*r.Height {
		return nil, ErrDimensionMismatch
	}

	gs := r.proj.gs
	raw := raster.RasterizePlanarBackward(r.proj.raw, r.bins, gs.Colors, gs.Opacities, r.params, r.raw, vImage, vAlpha)
	return &PlanarRenderGrad{
		TransMats:  raw.TransMats,
		XYs:        raw.XYs,
		XYsAbs:     raw.XYsAbs,
		Colors:     raw.Colors,
		Opacities:  raw.Opacities,
		Background: raw.Background,
	}, nil
}
