// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"
	"sort"
)

// isect is one primitive-tile intersection. The key packs the tile index in
// the high 32 bits and the float32 depth bits in the low 32 bits, so sorting
// by key orders intersections by tile first and by depth within a tile.
// Positive depths compare correctly as raw float32 bits.
type isect struct {
	key uint64
	id  int32
}

// Bins is the sorted draw order for one render: IDs lists primitive indices
// tile-by-tile, front-to-back within each tile, and Ranges[t] is the
// half-open [start, end) slice of IDs belonging to tile t.
type Bins struct {
	IDs    []int32
	Ranges [][2]int32
}

// BinSplats expands every visible primitive into its tile intersections and
// sorts them into the deterministic compositing order. Ties in the packed
// key keep primitive-index order: the sort is stable and intersections are
// emitted in index order. Both the volumetric and the planar pipeline bin
// through here.
func BinSplats(grid TileGrid, xys [][2]float64, depths []float64, radii, tilesHit []int32) *Bins {
	total := 0
	for _, h := range tilesHit {
		total += int(h)
	}
	out := &Bins{
		IDs:    make([]int32, total),
		Ranges: make([][2]int32, grid.TileCount()),
	}
	if total == 0 {
		return out
	}

	isects := make([]isect, 0, total)
	for i, radius := range radii {
		if radius == 0 {
			continue
		}
		depthBits := uint64(math.Float32bits(float32(depths[i])))
		xmin, ymin, xmax, ymax := grid.TileRange(xys[i][0], xys[i][1], radius)
		for ty := ymin; ty < ymax; ty++ {
			for tx := xmin; tx < xmax; tx++ {
				tile := uint64(ty*grid.TilesX + tx)
				isects = append(isects, isect{key: tile<<32 | depthBits, id: int32(i)})
			}
		}
	}

	sort.SliceStable(isects, func(a, b int) bool { return isects[a].key < isects[b].key })

	for pos, is := range isects {
		out.IDs[pos] = is.id
		tile := int(is.key >> 32)
		if pos == 0 || int(isects[pos-1].key>>32) != tile {
			out.Ranges[tile][0] = int32(pos)
		}
		if pos == len(isects)-1 || int(isects[pos+1].key>>32) != tile {
			out.Ranges[tile][1] = int32(pos + 1)
		}
	}

	logger().Debug("binned splats", "intersections", total, "tiles", grid.TileCount())
	return out
}
