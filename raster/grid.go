// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

// TileGrid divides an image into square tiles of BlockW pixels. Edge tiles
// are clipped to the image bounds. Tiles are identified by a row-major
// index: tileID = ty*TilesX + tx.
type TileGrid struct {
	// Width, Height are the image dimensions in pixels.
	Width, Height int

	// BlockW is the tile side length in pixels.
	BlockW int

	// TilesX, TilesY are the grid dimensions in tiles.
	TilesX, TilesY int
}

// NewTileGrid creates a grid covering a width x height image with blockW
// pixel tiles.
func NewTileGrid(width, height, blockW int) TileGrid {
	return TileGrid{
		Width:  width,
		Height: height,
		BlockW: blockW,
		TilesX: (width + blockW - 1) / blockW,
		TilesY: (height + blockW - 1) / blockW,
	}
}

// TileCount returns the total number of tiles in the grid.
func (g TileGrid) TileCount() int { return g.TilesX * g.TilesY }

// TileBounds returns the pixel rectangle [x0, x1) x [y0, y1) of the tile,
// clipped to the image.
func (g TileGrid) TileBounds(tileID int) (x0, y0, x1, y1 int) {
	tx := tileID % g.TilesX
	ty := tileID / g.TilesX
	x0 = tx * g.BlockW
	y0 = ty * g.BlockW
	x1 = min(x0+g.BlockW, g.Width)
	y1 = min(y0+g.BlockW, g.Height)
	return x0, y0, x1, y1
}

// TileRange returns the half-open tile rectangle [xmin, xmax) x [ymin, ymax)
// covered by a footprint centered at (cx, cy) with the given pixel radius,
// clamped to the grid. An empty range (xmin >= xmax or ymin >= ymax) means
// the footprint misses the image entirely.
func (g TileGrid) TileRange(cx, cy float64, radius int32) (xmin, ymin, xmax, ymax int) {
	bw := float64(g.BlockW)
	tcx, tcy := cx/bw, cy/bw
	tr := float64(radius) / bw
	xmin = clampInt(int(tcx-tr), 0, g.TilesX)
	xmax = clampInt(int(tcx+tr+1), 0, g.TilesX)
	ymin = clampInt(int(tcy-tr), 0, g.TilesY)
	ymax = clampInt(int(tcy+tr+1), 0, g.TilesY)
	return xmin, ymin, xmax, ymax
}

// TilesHit returns the number of tiles covered by the clamped footprint.
func (g TileGrid) TilesHit(cx, cy float64, radius int32) int32 {
	xmin, ymin, xmax, ymax := g.TileRange(cx, cy, radius)
	if xmax <= xmin || ymax <= ymin {
		return 0
	}
	return int32((xmax - xmin) * (ymax - ymin))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
