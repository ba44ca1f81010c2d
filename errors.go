package splat

import "errors"

// Package errors returned by the projection and rasterization entry points.
var (
	// ErrEmptyBatch is returned when a batch contains zero primitives.
	ErrEmptyBatch = errors.New("splat: empty batch")

	// ErrInvalidBlockWidth is returned when the tile size is outside [2, 16].
	ErrInvalidBlockWidth = errors.New("splat: block width must be in [2, 16]")

	// ErrChannelMismatch is returned when the background length does not
	// match the color channel count.
	ErrChannelMismatch = errors.New("splat: background channels do not match color channels")

	// ErrDimensionMismatch is returned when per-primitive slices disagree
	// in length, or gradient buffers disagree with the render size.
	ErrDimensionMismatch = errors.New("splat: mismatched input dimensions")

	// ErrNoProjection is returned when rasterization is attempted without a
	// projection.
	ErrNoProjection = errors.New("splat: nil projection")
)
