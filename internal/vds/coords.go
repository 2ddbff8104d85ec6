// Package vds implements the Virtual Dataset read engine: coordinate
// arithmetic, hyperslab selection algebra, the mapping descriptor, the
// source resolver/cache, and the stateful virtual read stream. It knows
// nothing about HDF5 object headers or byte layout; the enclosing hdf5
// package adapts its own File/Dataset types to the interfaces this
// package consumes.
package vds

import (
	"fmt"

	"github.com/scigolib/h5vds/internal/utils"
)

// LinearToCoords converts a row-major linear index into per-axis
// coordinates under dims. Axis 0 is the slowest-changing.
func LinearToCoords(dims []uint64, idx uint64) []uint64 {
	coords := make([]uint64, len(dims))
	LinearToCoordsInto(dims, idx, coords)
	return coords
}

// LinearToCoordsInto is the allocation-free form of LinearToCoords.
// out must have length len(dims); it is overwritten in place.
func LinearToCoordsInto(dims []uint64, idx uint64, out []uint64) {
	for k := len(dims) - 1; k >= 0; k-- {
		d := dims[k]
		if d == 0 {
			out[k] = 0
			continue
		}
		out[k] = idx % d
		idx /= d
	}
}

// CoordsToLinear converts per-axis coordinates into a row-major linear
// index. Overflow accumulating the stride product or the running sum is
// a precondition violation (coordinates outside dims, or dims whose
// product does not fit in a uint64) and is reported as an error rather
// than silently wrapping.
func CoordsToLinear(dims, coords []uint64) (uint64, error) {
	if len(dims) != len(coords) {
		return 0, fmt.Errorf("vds: dims/coords rank mismatch: %d != %d", len(dims), len(coords))
	}

	var linear uint64
	stride := uint64(1)
	for k := len(dims) - 1; k >= 0; k-- {
		term, err := utils.SafeMultiply(coords[k], stride)
		if err != nil {
			return 0, fmt.Errorf("vds: coordinate overflow at axis %d: %w", k, err)
		}
		sum := linear + term
		if sum < linear {
			return 0, fmt.Errorf("vds: linear index overflow at axis %d", k)
		}
		linear = sum

		if k > 0 {
			next, err := utils.SafeMultiply(stride, dims[k])
			if err != nil {
				return 0, fmt.Errorf("vds: stride overflow at axis %d: %w", k, err)
			}
			stride = next
		}
	}
	return linear, nil
}
