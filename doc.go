// Package splat provides a differentiable splatting rasterizer for Go.
//
// # Overview
//
// splat renders a batch of oriented, translucent primitives (3D Gaussians
// or planar surfel disks) into an H×W×D image, and computes exact gradients
// of a pixel-space loss with respect to every primitive parameter. It is the
// compute core of gradient-based scene reconstruction: an external optimizer
// adjusts primitive parameters between render calls until the image matches
// a target.
//
// # Quick Start
//
//	import "github.com/gogpu/splat"
//
//	cam := splat.NewCamera(512, 512, math.Pi/2)
//	proj, err := splat.Project(gs, cam)
//	if err != nil { ... }
//	r, err := splat.Rasterize(proj, gs, splat.WithBackground(0, 0, 0))
//	if err != nil { ... }
//
//	// vImage is the loss gradient w.r.t. the image, from the caller.
//	rg, err := r.Backward(vImage, nil)
//	gg, err := proj.Backward(splat.ProjectionGrad{XYs: rg.XYs, Conics: rg.Conics})
//
// # Pipeline
//
// A render is a three-stage pipeline: projection of each primitive into a
// screen-space footprint, spatial binning and depth sorting of primitive-tile
// intersections into a deterministic draw order, and tile-parallel
// front-to-back alpha compositing. The backward pass replays the exact same
// order in reverse, reconstructing transmittance analytically, so gradients
// match the forward compositing exactly.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Gaussians, Camera, the Project/Rasterize pairs and their
//     Backward methods
//   - raster: the CPU pipeline (projector, binner, tile rasterizer,
//     gradient accumulator)
//   - gradcheck: finite-difference verification of analytic gradients
//
// # Determinism
//
// Repeated forward calls on identical inputs produce bit-identical images
// regardless of worker count: tiles are independent units of parallel work,
// and within a pixel the draw order is fixed by the global sort.
//
// # Performance
//
// This is a batch forward/backward compute primitive, optimized for
// correctness and exact gradients rather than real-time display.
package splat

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
