// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// atomicAddFloat64 adds v to *addr with a lock-free compare-and-swap loop.
// The backward passes use it to reduce per-pixel gradients from many tiles
// onto the same primitive without locks.
func atomicAddFloat64(addr *float64, v float64) {
	if v == 0 {
		return
	}
	bits := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(bits)
		upd := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(bits, old, upd) {
			return
		}
	}
}
