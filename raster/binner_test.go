// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import "testing"

func TestBinSplatsDepthOrder(t *testing.T) {
	grid := NewTileGrid(16, 16, 16) // single tile
	xys := [][2]float64{{8, 8}, {8, 8}, {8, 8}}
	depths := []float64{5.0, 1.0, 3.0}
	radii := []int32{2, 2, 2}
	hits := []int32{1, 1, 1}

	bins := BinSplats(grid, xys, depths, radii, hits)
	if len(bins.IDs) != 3 {
		t.Fatalf("got %d intersections, want 3", len(bins.IDs))
	}
	want := []int32{1, 2, 0} // front to back
	for i, id := range bins.IDs {
		if id != want[i] {
			t.Errorf("IDs[%d] = %d, want %d", i, id, want[i])
		}
	}
	if bins.Ranges[0] != [2]int32{0, 3} {
		t.Errorf("tile range = %v, want [0 3]", bins.Ranges[0])
	}
}

func TestBinSplatsDepthTiesKeepIndexOrder(t *testing.T) {
	grid := NewTileGrid(16, 16, 16)
	xys := [][2]float64{{8, 8}, {8, 8}, {8, 8}}
	depths := []float64{2.0, 2.0, 2.0}
	radii := []int32{1, 1, 1}
	hits := []int32{1, 1, 1}

	bins := BinSplats(grid, xys, depths, radii, hits)
	want := []int32{0, 1, 2}
	for i, id := range bins.IDs {
		if id != want[i] {
			t.Errorf("IDs[%d] = %d, want %d (stable tie order)", i, id, want[i])
		}
	}
}

func TestBinSplatsPerTileRanges(t *testing.T) {
	grid := NewTileGrid(32, 16, 16) // two tiles side by side
	xys := [][2]float64{
		{8, 8},  // left tile only
		{24, 8}, // right tile only
		{16, 8}, // straddles the boundary
	}
	depths := []float64{1, 1, 1}
	radii := []int32{3, 3, 3}
	hits := []int32{
		grid.TilesHit(8, 8, 3),
		grid.TilesHit(24, 8, 3),
		grid.TilesHit(16, 8, 3),
	}

	bins := BinSplats(grid, xys, depths, radii, hits)

	total := 0
	for tile, rng := range bins.Ranges {
		for pos := rng[0]; pos < rng[1]; pos++ {
			id := bins.IDs[pos]
			xmin, ymin, xmax, ymax := grid.TileRange(xys[id][0], xys[id][1], radii[id])
			tx, ty := tile%grid.TilesX, tile/grid.TilesX
			if tx < xmin || tx >= xmax || ty < ymin || ty >= ymax {
				t.Errorf("primitive %d binned to tile %d outside its range", id, tile)
			}
		}
		total += int(rng[1] - rng[0])
	}
	if total != len(bins.IDs) {
		t.Errorf("ranges cover %d entries, IDs has %d", total, len(bins.IDs))
	}
}

func TestBinSplatsSkipsCulled(t *testing.T) {
	grid := NewTileGrid(16, 16, 16)
	xys := [][2]float64{{8, 8}, {8, 8}}
	depths := []float64{1, 2}
	radii := []int32{0, 2} // first primitive culled
	hits := []int32{0, 1}

	bins := BinSplats(grid, xys, depths, radii, hits)
	if len(bins.IDs) != 1 || bins.IDs[0] != 1 {
		t.Errorf("IDs = %v, want [1]", bins.IDs)
	}
}

func TestBinSplatsEmpty(t *testing.T) {
	grid := NewTileGrid(16, 16, 16)
	bins := BinSplats(grid, nil, nil, nil, nil)
	if len(bins.IDs) != 0 {
		t.Errorf("IDs = %v, want empty", bins.IDs)
	}
	if len(bins.Ranges) != 1 {
		t.Errorf("Ranges has %d tiles, want 1", len(bins.Ranges))
	}
}
