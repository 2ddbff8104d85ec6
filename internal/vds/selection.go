package vds

import (
	"errors"
	"fmt"
)

// Hyperslab represents a regular multidimensional selection: per axis k,
// block[k] consecutive elements are picked every stride[k] elements,
// count[k] times, starting at start[k]. Invariants enforced by
// NewHyperslab: stride[k] >= block[k] >= 1, count[k] >= 1.
type Hyperslab struct {
	Start  []uint64
	Stride []uint64
	Count  []uint64
	Block  []uint64
}

// NewHyperslab validates and constructs a Hyperslab. stride and block
// default to all-1s when nil, matching the convention the rest of the
// reader uses for simple (non-strided) selections.
func NewHyperslab(start, stride, count, block []uint64) (*Hyperslab, error) {
	rank := len(start)
	if rank == 0 {
		return nil, errors.New("vds: hyperslab must have rank >= 1")
	}
	if len(count) != rank {
		return nil, fmt.Errorf("vds: count rank %d != start rank %d", len(count), rank)
	}

	if stride == nil {
		stride = onesVector(rank)
	}
	if block == nil {
		block = onesVector(rank)
	}
	if len(stride) != rank || len(block) != rank {
		return nil, fmt.Errorf("vds: stride/block rank mismatch with start rank %d", rank)
	}

	for k := 0; k < rank; k++ {
		if count[k] == 0 {
			return nil, fmt.Errorf("vds: count must be >= 1 at axis %d", k)
		}
		if block[k] == 0 {
			return nil, fmt.Errorf("vds: block must be >= 1 at axis %d", k)
		}
		if stride[k] < block[k] {
			return nil, fmt.Errorf("vds: stride must be >= block at axis %d (stride=%d, block=%d)", k, stride[k], block[k])
		}
	}

	return &Hyperslab{Start: start, Stride: stride, Count: count, Block: block}, nil
}

// NewAllSelection builds the trivial hyperslab selecting every element of
// dims: one block per axis spanning the full extent.
func NewAllSelection(dims []uint64) *Hyperslab {
	rank := len(dims)
	start := make([]uint64, rank)
	stride := make([]uint64, rank)
	count := make([]uint64, rank)
	block := make([]uint64, rank)
	for k, d := range dims {
		stride[k] = d
		count[k] = 1
		block[k] = d
	}
	return &Hyperslab{Start: start, Stride: stride, Count: count, Block: block}
}

func onesVector(rank int) []uint64 {
	v := make([]uint64, rank)
	for i := range v {
		v[i] = 1
	}
	return v
}

// CompactDims returns the gap-free logical shape (count[k]*block[k] per
// axis) that an iterator over this selection sees.
func (h *Hyperslab) CompactDims() []uint64 {
	out := make([]uint64, len(h.Count))
	for i := range out {
		out[i] = h.Count[i] * h.Block[i]
	}
	return out
}

// LinearResult is the outcome of Hyperslab.ToLinearIndex.
type LinearResult struct {
	// Success is true iff the queried coordinates fall inside a block
	// of the selection.
	Success bool
	// LinearIndex is the position of the coordinates within the
	// compact (row-major, gap-free) enumeration. Valid only if Success.
	LinearIndex uint64
	// MaxCount is the run length of further selected elements along the
	// fastest-changing axis: remaining room in the current block if
	// Success, or the distance to the next block if not (0 if none).
	MaxCount uint64
}

// axisMembership tests whether coord lies inside a block of a single
// axis's (start, stride, count, block) parameters. blockIdx/within are
// meaningful only when inside is true.
func axisMembership(start, stride, count, block, coord uint64) (inside bool, blockIdx, within uint64) {
	if coord < start {
		return false, 0, 0
	}
	o := coord - start
	boundingMax := stride*(count-1) + block
	if o >= boundingMax {
		return false, 0, 0
	}
	blockIdx = o / stride
	within = o - blockIdx*stride
	inside = within < block && blockIdx < count
	return inside, blockIdx, within
}

// lastAxisMaxCount computes the fastest-changing-axis run length used
// when coord does not fall inside a block: the distance (along this
// axis alone) until the next block begins, or 0 if no further block
// exists. When coord does fall inside a block it returns the remaining
// room in that block, so callers can use it uniformly.
func lastAxisMaxCount(start, stride, count, block, coord uint64) uint64 {
	if coord < start {
		return start - coord
	}
	o := coord - start
	boundingMax := stride*(count-1) + block
	if o >= boundingMax {
		return 0
	}
	blockIdx := o / stride
	within := o - blockIdx*stride
	if within < block && blockIdx < count {
		return block - within
	}
	nextBlockIdx := blockIdx + 1
	if nextBlockIdx >= count {
		return 0
	}
	return nextBlockIdx*stride - o
}

// ToLinearIndex answers "does coords (in dims space) lie inside this
// selection, and if not, how far along the fastest-changing axis is the
// next block". Tie-break among multiple covering entries is the
// caller's responsibility (first entry in iteration order wins); this
// method only reports whether this one selection covers the point.
func (h *Hyperslab) ToLinearIndex(coords []uint64) (LinearResult, error) {
	rank := len(h.Start)
	if len(coords) != rank {
		return LinearResult{}, fmt.Errorf("vds: coordinate rank %d != selection rank %d", len(coords), rank)
	}
	if rank == 0 {
		return LinearResult{}, errors.New("vds: empty selection")
	}

	last := rank - 1
	compact := make([]uint64, rank)

	for k := 0; k < last; k++ {
		inside, blockIdx, within := axisMembership(h.Start[k], h.Stride[k], h.Count[k], h.Block[k], coords[k])
		if !inside {
			// Off-axis miss: success=false, max_count=0 regardless of
			// the last axis's own state.
			return LinearResult{Success: false, MaxCount: 0}, nil
		}
		compact[k] = blockIdx*h.Block[k] + within
	}

	insideLast, blockIdx, within := axisMembership(h.Start[last], h.Stride[last], h.Count[last], h.Block[last], coords[last])
	if !insideLast {
		gap := lastAxisMaxCount(h.Start[last], h.Stride[last], h.Count[last], h.Block[last], coords[last])
		return LinearResult{Success: false, MaxCount: gap}, nil
	}
	compact[last] = blockIdx*h.Block[last] + within

	linear, err := CoordsToLinear(h.CompactDims(), compact)
	if err != nil {
		return LinearResult{}, err
	}
	return LinearResult{Success: true, LinearIndex: linear, MaxCount: h.Block[last] - within}, nil
}

// ToCoordinates is the inverse of ToLinearIndex: given a position in
// the compact enumeration, it returns the actual coordinates in dims
// space and the run length remaining in the current block.
func (h *Hyperslab) ToCoordinates(linear uint64) ([]uint64, uint64, error) {
	out := make([]uint64, len(h.Start))
	maxCount, err := h.ToCoordinatesInto(linear, out, nil)
	return out, maxCount, err
}

// ToCoordinatesInto is the allocation-free form of ToCoordinates. out
// must have length equal to the selection's rank. compactScratch, if
// non-nil and of sufficient length, is reused instead of allocating an
// intermediate compact-coordinate buffer; pass nil to let it allocate.
func (h *Hyperslab) ToCoordinatesInto(linear uint64, out, compactScratch []uint64) (uint64, error) {
	rank := len(h.Start)
	if len(out) != rank {
		return 0, fmt.Errorf("vds: output buffer rank %d != selection rank %d", len(out), rank)
	}

	compact := compactScratch
	if len(compact) < rank {
		compact = make([]uint64, rank)
	}
	compact = compact[:rank]

	LinearToCoordsInto(h.CompactDims(), linear, compact)

	for k := 0; k < rank; k++ {
		blockIdx := compact[k] / h.Block[k]
		within := compact[k] % h.Block[k]
		out[k] = h.Start[k] + blockIdx*h.Stride[k] + within
	}

	last := rank - 1
	withinLast := compact[last] % h.Block[last]
	return h.Block[last] - withinLast, nil
}
