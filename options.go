package splat

import "runtime"

// ProjectOption configures a projection pass.
// Use functional options to customize Project and ProjectPlanar behavior.
//
// Example:
//
//	// Default projection
//	proj, err := splat.Project(gs, cam)
//
//	// Custom tile size and scale modifier
//	proj, err := splat.Project(gs, cam, splat.WithBlockWidth(8), splat.WithGlobalScale(0.5))
type ProjectOption func(*projectOptions)

// projectOptions holds optional configuration for a projection pass.
type projectOptions struct {
	globalScale   float64
	blockWidth    int
	clipThresh    float64
	poseGradients bool
}

// defaultProjectOptions returns the default projection options.
func defaultProjectOptions() projectOptions {
	return projectOptions{
		globalScale: 1.0,
		blockWidth:  16,
		clipThresh:  0.01,
	}
}

// WithGlobalScale sets a uniform multiplier applied to every per-axis scale
// before the 3D covariance is composed. The default is 1.
func WithGlobalScale(s float64) ProjectOption {
	return func(o *projectOptions) {
		o.globalScale = s
	}
}

// WithBlockWidth sets the tile size in pixels for binning and rasterization.
// Valid values are 2 through 16; the default is 16. The projection records
// the tile grid, so the same block width applies to the rasterize pass.
func WithBlockWidth(bw int) ProjectOption {
	return func(o *projectOptions) {
		o.blockWidth = bw
	}
}

// WithClipThresh sets the minimum camera-space depth. Primitives whose view
// depth falls below the threshold are culled. Values at or below zero are
// replaced by the default of 0.01.
func WithClipThresh(t float64) ProjectOption {
	return func(o *projectOptions) {
		o.clipThresh = t
	}
}

// WithPoseGradients enables accumulation of gradients with respect to the
// camera view matrix during the projection backward pass. Pose gradients
// use a first-order approximation that treats the rotation block and the
// translation column independently.
func WithPoseGradients() ProjectOption {
	return func(o *projectOptions) {
		o.poseGradients = true
	}
}

// RasterizeOption configures a rasterization pass.
type RasterizeOption func(*rasterizeOptions)

// rasterizeOptions holds optional configuration for a rasterize pass.
type rasterizeOptions struct {
	background []float64
	returnAlfa bool
	workers    int
}

// defaultRasterizeOptions returns the default rasterize options.
func defaultRasterizeOptions() rasterizeOptions {
	return rasterizeOptions{
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithBackground sets the background color composited under the splats with
// the residual transmittance. Its length must equal the color channel count.
// The default is all ones (white).
func WithBackground(bg []float64) RasterizeOption {
	return func(o *rasterizeOptions) {
		o.background = bg
	}
}

// WithAlpha requests the per-pixel accumulated opacity image alongside the
// color image.
func WithAlpha() RasterizeOption {
	return func(o *rasterizeOptions) {
		o.returnAlfa = true
	}
}

// WithWorkers sets the number of goroutines used to process tiles.
// Values below 1 fall back to runtime.GOMAXPROCS(0). Results are
// bit-identical for any worker count.
func WithWorkers(n int) RasterizeOption {
	return func(o *rasterizeOptions) {
		o.workers = n
	}
}
