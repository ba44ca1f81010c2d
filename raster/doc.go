// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package raster implements the differentiable splatting pipeline: EWA
// projection of 3D Gaussians (and planar disks) to screen-space footprints,
// tile binning with a deterministic depth sort, tile-parallel front-to-back
// alpha compositing, and exact backward passes that replay the forward
// compositing order.
//
// The package works on plain slices and is deterministic: given identical
// inputs, forward images are bit-identical across runs and worker counts.
// Backward gradient accumulation reduces across tiles with atomic float adds,
// so gradients are deterministic up to floating-point addition order.
//
// Most users should use the top-level splat package, which wraps this
// pipeline behind a validated API.
package raster
