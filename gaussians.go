package splat

// Gaussians is a batch of N splatting primitives in world space. All slices
// are indexed by primitive and must share the same length N.
//
// The same batch drives both the volumetric pipeline (Project/Rasterize),
// which composes an anisotropic 3D covariance from Scales and Quats, and the
// planar pipeline (ProjectPlanar/RasterizePlanar), which treats each
// primitive as a flat disk spanned by the first two scaled rotation axes.
type Gaussians struct {
	// Means holds world-space centers.
	Means [][3]float64

	// Scales holds per-axis standard deviations. The planar pipeline uses
	// only the first two components; the third is ignored.
	Scales [][3]float64

	// Quats holds unit rotation quaternions in [w, x, y, z] order.
	// Quaternions are normalized internally before use.
	Quats [][4]float64

	// Opacities holds per-primitive opacity in [0, 1].
	Opacities []float64

	// Colors holds per-primitive colors, row-major N x Channels.
	Colors []float64

	// Channels is the color dimensionality D. Any D >= 1 is supported;
	// D = 3 takes a specialized fast path in the rasterizer.
	Channels int
}

// Len returns the number of primitives in the batch.
func (g *Gaussians) Len() int { return len(g.Means) }

// validate checks slice lengths against Len and Channels.
func (g *Gaussians) validate() error {
	n := g.Len()
	if n == 0 {
		return ErrEmptyBatch
	}
	if g.Channels < 1 {
		return ErrChannelMismatch
	}
	if len(g.Scales) != n || len(g.Quats) != n || len(g.Opacities) != n {
		return ErrDimensionMismatch
	}
	if len(g.Colors) != n*g.Channels {
		return ErrDimensionMismatch
	}
	return nil
}

// Color returns the color row of primitive i as a slice aliasing Colors.
func (g *Gaussians) Color(i int) []float64 {
	return g.Colors[i*g.Channels : (i+1)*g.Channels]
}
